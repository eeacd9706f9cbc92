package scheduling

import "time"

// GenerateCandidates enumerates start times every SlotGranularityMinutes from the window
// start while the full duration still fits. Adjacent candidates overlap; this is a list of
// possible starts, not a partition of the window.
func GenerateCandidates(window AvailabilityWindow, durationMinutes int) []TimeSlot {
	if durationMinutes <= 0 || durationMinutes > window.Length() {
		return []TimeSlot{}
	}

	slots := make([]TimeSlot, 0, (window.Length()-durationMinutes)/SlotGranularityMinutes+1)
	for t := window.StartTime; t.Add(durationMinutes) <= window.EndTime; t = t.Add(SlotGranularityMinutes) {
		slots = append(slots, TimeSlot{
			StartTime: t,
			EndTime:   t.Add(durationMinutes),
			Available: true,
		})
	}
	return slots
}

// Overlaps reports whether the half-open ranges [aStart,aEnd) and [bStart,bEnd) intersect.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && aEnd > bStart
}

// ApplyConflicts marks every candidate overlapping any booked interval as unavailable.
// The slice is updated in place and returned; conflicting slots are kept for display.
func ApplyConflicts(candidates []TimeSlot, booked []BookedInterval) []TimeSlot {
	for i := range candidates {
		for _, b := range booked {
			if Overlaps(candidates[i].StartTime, candidates[i].EndTime, b.StartTime, b.EndTime) {
				candidates[i].Available = false
				break
			}
		}
	}
	return candidates
}

// ComputeSlots runs the generator and the conflict filter for a resolved window.
func ComputeSlots(window AvailabilityWindow, durationMinutes int, booked []BookedInterval) []TimeSlot {
	return ApplyConflicts(GenerateCandidates(window, durationMinutes), booked)
}

// SlotsForDate resolves the window for date and computes its slots. An empty result comes
// with ErrNoApplicableWindow or ErrDurationExceedsWindow; neither is fatal to the caller.
func SlotsForDate(date time.Time, windows []AvailabilityWindow, durationMinutes int, booked []BookedInterval) ([]TimeSlot, error) {
	window, ok := ResolveWindow(date, windows)
	if !ok {
		return []TimeSlot{}, ErrNoApplicableWindow
	}

	slots := ComputeSlots(window, durationMinutes, booked)
	if len(slots) == 0 {
		return slots, ErrDurationExceedsWindow
	}
	return slots, nil
}

// Bookable filters out unavailable slots.
func Bookable(slots []TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// FindSlot looks up a slot by its start time.
func FindSlot(slots []TimeSlot, start TimeOfDay) (TimeSlot, bool) {
	for _, s := range slots {
		if s.StartTime == start {
			return s, true
		}
	}
	return TimeSlot{}, false
}
