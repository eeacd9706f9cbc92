package scheduling

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStages = []Stage{StageFilter, StageDoctor, StageDate, StageTimeSlot, StageOffice}

// completeSelection walks speciality -> doctor -> date -> slot -> office.
func completeSelection(t *testing.T) (Selection, uuid.UUID, uuid.UUID) {
	t.Helper()

	doctorID := uuid.New()
	officeID := uuid.New()

	s := Selection{}.WithSpeciality(uuid.New())
	s, err := s.WithDoctors([]Doctor{{ID: doctorID, Name: "Dr. House"}})
	require.NoError(t, err)
	s, err = s.SelectDoctor(doctorID)
	require.NoError(t, err)
	s, err = s.SetDate(monday)
	require.NoError(t, err)
	s, err = s.WithSlots(ComputeSlots(window(Monday, "09:00", "12:00"), 30, nil))
	require.NoError(t, err)
	require.NotEmpty(t, s.Slots())
	s, err = s.SelectTimeSlot(s.Slots()[2])
	require.NoError(t, err)
	s, err = s.WithOffices([]Office{{ID: officeID, Name: "101"}})
	require.NoError(t, err)
	s, err = s.SelectOffice(officeID)
	require.NoError(t, err)

	return s, doctorID, officeID
}

func assertClearedFrom(t *testing.T, s Selection, from Stage) {
	t.Helper()
	for _, k := range allStages {
		if k >= from {
			assert.False(t, s.IsSet(k), "stage %s should be cleared", k)
		}
	}
}

func TestSelection_InitialState(t *testing.T) {
	var s Selection
	for _, k := range allStages {
		assert.False(t, s.IsSet(k))
	}
	assert.False(t, s.IsComplete())
	assert.Nil(t, s.Doctors())
	assert.Nil(t, s.Slots())
	assert.Nil(t, s.Offices())
}

func TestSelection_FullWalkThenChangeDate(t *testing.T) {
	s, doctorID, _ := completeSelection(t)
	require.True(t, s.IsComplete())

	slot, ok := s.TimeSlot()
	require.True(t, ok)
	assert.Equal(t, tod("09:30"), slot.StartTime)

	s2, err := s.SetDate(monday.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.False(t, s2.IsComplete())
	assertClearedFrom(t, s2, StageTimeSlot)
	assert.Nil(t, s2.Slots())
	assert.Nil(t, s2.Offices())
	got, _ := s2.Doctor()
	assert.Equal(t, doctorID, got)

	assert.True(t, s.IsComplete(), "the original snapshot is untouched")
}

func TestSelection_CascadeClearsDownstream(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		apply func(Selection, uuid.UUID, uuid.UUID) (Selection, error)
	}{
		{"speciality", StageDoctor, func(s Selection, _, _ uuid.UUID) (Selection, error) {
			return s.WithSpeciality(uuid.New()), nil
		}},
		{"search", StageDoctor, func(s Selection, _, _ uuid.UUID) (Selection, error) {
			return s.WithSearchTerm("house")
		}},
		{"doctor", StageDate, func(s Selection, doctorID, _ uuid.UUID) (Selection, error) {
			return s.SelectDoctor(doctorID)
		}},
		{"date", StageTimeSlot, func(s Selection, _, _ uuid.UUID) (Selection, error) {
			return s.SetDate(monday)
		}},
		{"slot", StageOffice, func(s Selection, _, _ uuid.UUID) (Selection, error) {
			return s.SelectTimeSlot(s.Slots()[0])
		}},
		{"office", StageOffice + 1, func(s Selection, _, officeID uuid.UUID) (Selection, error) {
			return s.SelectOffice(officeID)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, doctorID, officeID := completeSelection(t)
			next, err := tt.apply(s, doctorID, officeID)
			require.NoError(t, err)
			assertClearedFrom(t, next, tt.stage)
			for k := StageFilter; k < tt.stage && k <= StageOffice; k++ {
				assert.True(t, next.IsSet(k), "stage %s should survive", k)
			}
		})
	}
}

func TestSelection_ClearAtEveryStage(t *testing.T) {
	for _, stage := range allStages {
		t.Run(stage.String(), func(t *testing.T) {
			s, _, _ := completeSelection(t)
			cleared := s.Clear(stage)
			assertClearedFrom(t, cleared, stage)
			for k := StageFilter; k < stage; k++ {
				assert.True(t, cleared.IsSet(k))
			}
		})
	}
}

func TestSelection_SpecialityChangeDropsDoctorList(t *testing.T) {
	s, _, _ := completeSelection(t)
	s = s.WithSpeciality(uuid.New())
	assert.Nil(t, s.Doctors())
	assert.Nil(t, s.Slots())
	assert.Nil(t, s.Offices())
}

func TestSelection_DoctorChangeKeepsDoctorList(t *testing.T) {
	s, doctorID, _ := completeSelection(t)
	s, err := s.SelectDoctor(doctorID)
	require.NoError(t, err)
	assert.Len(t, s.Doctors(), 1)
	assert.Nil(t, s.Slots())
}

func TestSelection_Preconditions(t *testing.T) {
	var s Selection

	_, err := s.SelectDoctor(uuid.New())
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	_, err = s.SetDate(monday)
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	_, err = s.SelectTimeSlot(TimeSlot{StartTime: tod("09:00"), EndTime: tod("09:30"), Available: true})
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	_, err = s.SelectOffice(uuid.New())
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	_, err = s.WithDoctors(nil)
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	_, err = s.WithSearchTerm("   ")
	assert.ErrorIs(t, err, ErrPreconditionViolation)

	s = s.WithSpeciality(uuid.New())
	unchanged, err := s.SetDate(monday)
	assert.ErrorIs(t, err, ErrPreconditionViolation)
	assert.Equal(t, s, unchanged, "a rejected transition returns the receiver")
}

func TestSelection_RejectsUnavailableSlot(t *testing.T) {
	s, _, _ := completeSelection(t)
	s, err := s.SetDate(monday)
	require.NoError(t, err)

	slots := ComputeSlots(window(Monday, "09:00", "10:00"), 30, []BookedInterval{
		{StartTime: tod("09:00"), EndTime: tod("09:30")},
	})
	s, err = s.WithSlots(slots)
	require.NoError(t, err)

	_, err = s.SelectTimeSlot(slots[0])
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	// The cached list decides availability, not the caller's copy.
	forged := slots[0]
	forged.Available = true
	_, err = s.SelectTimeSlot(forged)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = s.SelectTimeSlot(TimeSlot{StartTime: tod("09:05"), EndTime: tod("09:35"), Available: true})
	assert.ErrorIs(t, err, ErrNotACandidate)

	s, err = s.SelectTimeSlot(slots[2])
	require.NoError(t, err)
	assert.True(t, s.IsSet(StageTimeSlot))
}

func TestSelection_CandidateMembership(t *testing.T) {
	s := Selection{}.WithSpeciality(uuid.New())
	s, err := s.WithDoctors([]Doctor{{ID: uuid.New()}})
	require.NoError(t, err)

	_, err = s.SelectDoctor(uuid.New())
	assert.ErrorIs(t, err, ErrNotACandidate)
}

func TestSelection_Tokens(t *testing.T) {
	s := Selection{}.WithSpeciality(uuid.New())
	doctorID := uuid.New()
	s, err := s.SelectDoctor(doctorID)
	require.NoError(t, err)

	dateToken := s.Token(StageDate)
	assert.True(t, s.Current(dateToken))

	s2, err := s.SetDate(monday)
	require.NoError(t, err)
	assert.False(t, s2.Current(dateToken), "setting the stage itself moves its generation")

	s3, err := s.SelectDoctor(doctorID)
	require.NoError(t, err)
	assert.False(t, s3.Current(dateToken), "an upstream change invalidates downstream tokens")

	filterToken := s.Token(StageFilter)
	s4, err := s.SetDate(monday)
	require.NoError(t, err)
	assert.True(t, s4.Current(filterToken), "a downstream change leaves upstream tokens alone")

	assert.False(t, s.Reset().Current(filterToken))
	assert.False(t, s.Current(Token{Stage: Stage(42)}))
}

func TestSelection_Reset(t *testing.T) {
	s, _, _ := completeSelection(t)
	r := s.Reset()
	assertClearedFrom(t, r, StageFilter)
	assert.False(t, r.IsComplete())
}

func TestSelection_SearchFilter(t *testing.T) {
	s, err := Selection{}.WithSearchTerm("  gregory ")
	require.NoError(t, err)
	f, ok := s.Filter()
	require.True(t, ok)
	assert.Equal(t, "gregory", f.SearchTerm)
	assert.Nil(t, f.SpecialityID)
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "time_slot", StageTimeSlot.String())
	assert.Equal(t, "stage(9)", Stage(9).String())
}
