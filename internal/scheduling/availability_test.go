package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWindow_MatchesWeekday(t *testing.T) {
	windows := []AvailabilityWindow{
		window(Tuesday, "08:00", "12:00"),
		window(Monday, "09:00", "17:00"),
	}

	w, ok := ResolveWindow(monday, windows)
	require.True(t, ok)
	assert.Equal(t, tod("09:00"), w.StartTime)
}

func TestResolveWindow_SkipsInactive(t *testing.T) {
	inactive := window(Monday, "07:00", "08:00")
	inactive.Status = WindowInactive

	w, ok := ResolveWindow(monday, []AvailabilityWindow{inactive, window(Monday, "13:00", "18:00")})
	require.True(t, ok)
	assert.Equal(t, tod("13:00"), w.StartTime)

	_, ok = ResolveWindow(monday, []AvailabilityWindow{inactive})
	assert.False(t, ok)
}

func TestResolveWindow_NoWindowForWeekday(t *testing.T) {
	_, ok := ResolveWindow(monday, []AvailabilityWindow{window(Friday, "09:00", "17:00")})
	assert.False(t, ok)

	_, ok = ResolveWindow(monday, nil)
	assert.False(t, ok)
}

func TestResolveWindow_CaseInsensitiveLabel(t *testing.T) {
	w := window("monday", "10:00", "11:00")
	got, ok := ResolveWindow(monday, []AvailabilityWindow{w})
	require.True(t, ok)
	assert.Equal(t, tod("10:00"), got.StartTime)
}

// Two ACTIVE windows on one weekday: the first in input order wins.
func TestResolveWindow_FirstActiveMatchWins(t *testing.T) {
	windows := []AvailabilityWindow{
		window(Monday, "14:00", "18:00"),
		window(Monday, "08:00", "12:00"),
	}

	w, ok := ResolveWindow(monday, windows)
	require.True(t, ok)
	assert.Equal(t, tod("14:00"), w.StartTime)

	w, ok = ResolveWindow(monday, []AvailabilityWindow{windows[1], windows[0]})
	require.True(t, ok)
	assert.Equal(t, tod("08:00"), w.StartTime)
}

func TestWeekdayOf(t *testing.T) {
	want := []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
	for i, w := range want {
		assert.Equal(t, w, WeekdayOf(monday.AddDate(0, 0, i)))
	}
}

func TestParseWeekday(t *testing.T) {
	w, err := ParseWeekday(" wednesday ")
	require.NoError(t, err)
	assert.Equal(t, Wednesday, w)

	_, err = ParseWeekday("mittwoch")
	assert.Error(t, err)
}

func TestAvailabilityWindow_Covers(t *testing.T) {
	w := window(Monday, "09:00", "12:00")
	assert.True(t, w.Covers(tod("09:00"), tod("12:00")))
	assert.True(t, w.Covers(tod("10:00"), tod("10:30")))
	assert.False(t, w.Covers(tod("08:45"), tod("09:15")))
	assert.False(t, w.Covers(tod("11:45"), tod("12:15")))
	assert.False(t, w.Covers(tod("10:00"), tod("10:00")))
}
