package scheduling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", 540, false},
		{"9:05", 545, false},
		{"00:00", 0, false},
		{"24:00", 1440, false},
		{"13:30:00", 810, false},
		{"13:30:15", 0, true},
		{"24:01", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeOfDay)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	slot := TimeSlot{StartTime: NewTimeOfDay(9, 45), EndTime: NewTimeOfDay(10, 15), Available: true}

	data, err := json.Marshal(slot)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start_time":"09:45","end_time":"10:15","available":true}`, string(data))

	var back TimeSlot
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, slot, back)

	var bad TimeOfDay
	assert.Error(t, json.Unmarshal([]byte(`"25:00"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`930`), &bad))
}

func TestTimeOfDay_Arithmetic(t *testing.T) {
	start := MustParseTimeOfDay("11:45")
	assert.Equal(t, "12:15", start.Add(30).String())
	assert.Equal(t, 30, start.Add(30).Sub(start))
	assert.Equal(t, 11, start.Hour())
	assert.Equal(t, 45, start.Minute())
}
