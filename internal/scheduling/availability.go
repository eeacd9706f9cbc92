package scheduling

import (
	"strings"
	"time"
)

// ResolveWindow returns the first ACTIVE window, in input order, whose weekday matches date.
// The boolean is false when the doctor has nothing open that day.
func ResolveWindow(date time.Time, windows []AvailabilityWindow) (AvailabilityWindow, bool) {
	day := WeekdayOf(date)
	for _, w := range windows {
		if w.Status != WindowActive {
			continue
		}
		if strings.EqualFold(string(w.DayOfWeek), string(day)) {
			return w, true
		}
	}
	return AvailabilityWindow{}, false
}

// Covers reports whether [start, end) lies entirely inside the window.
func (w AvailabilityWindow) Covers(start, end TimeOfDay) bool {
	return start >= w.StartTime && end <= w.EndTime && start < end
}

// Length is the window size in minutes.
func (w AvailabilityWindow) Length() int {
	return w.EndTime.Sub(w.StartTime)
}
