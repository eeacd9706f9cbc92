package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage is a position in the selection chain. A stage can only be set when every earlier
// stage is set, and changing it clears every later one.
type Stage int

const (
	StageFilter Stage = iota
	StageDoctor
	StageDate
	StageTimeSlot
	StageOffice

	stageCount
)

var stageNames = [stageCount]string{"filter", "doctor", "date", "time_slot", "office"}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// DoctorFilter narrows the doctor list either by speciality or by a name search.
type DoctorFilter struct {
	SpecialityID *uuid.UUID `json:"speciality_id,omitempty"`
	SearchTerm   string     `json:"search_term,omitempty"`
}

// Token identifies the generation of a stage at the moment a fetch was started.
type Token struct {
	Stage Stage
	gen   uint64
}

// Selection is an immutable snapshot of the workflow. Every transition returns a new
// value; the receiver is never modified. Candidate lists are cached alongside the stage
// they were derived from and dropped with it.
type Selection struct {
	filter *DoctorFilter
	doctor *uuid.UUID
	date   *time.Time
	slot   *TimeSlot
	office *uuid.UUID

	doctors []Doctor
	slots   []TimeSlot
	offices []Office

	gen [stageCount]uint64
}

// WithSpeciality sets the filter to a speciality and clears everything downstream.
func (s Selection) WithSpeciality(id uuid.UUID) Selection {
	n := s.invalidate(StageFilter)
	n.filter = &DoctorFilter{SpecialityID: &id}
	return n
}

// WithSearchTerm sets the filter to a doctor-name search and clears everything downstream.
func (s Selection) WithSearchTerm(term string) (Selection, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s, fmt.Errorf("%w: empty search term", ErrPreconditionViolation)
	}
	n := s.invalidate(StageFilter)
	n.filter = &DoctorFilter{SearchTerm: term}
	return n, nil
}

func (s Selection) ClearFilter() Selection {
	return s.Clear(StageFilter)
}

// WithDoctors attaches the doctor list fetched for the current filter.
func (s Selection) WithDoctors(doctors []Doctor) (Selection, error) {
	if err := s.require(StageDoctor); err != nil {
		return s, err
	}
	n := s.invalidate(StageDoctor)
	n.doctors = append([]Doctor{}, doctors...)
	return n, nil
}

func (s Selection) SelectDoctor(id uuid.UUID) (Selection, error) {
	if err := s.require(StageDoctor); err != nil {
		return s, err
	}
	if s.doctors != nil && !containsDoctor(s.doctors, id) {
		return s, fmt.Errorf("%w: doctor %s", ErrNotACandidate, id)
	}
	n := s.invalidate(StageDoctor)
	n.doctor = &id
	return n, nil
}

func (s Selection) SetDate(date time.Time) (Selection, error) {
	if err := s.require(StageDate); err != nil {
		return s, err
	}
	d := DateOf(date)
	n := s.invalidate(StageDate)
	n.date = &d
	return n, nil
}

// WithSlots attaches the slot list computed for the current doctor and date.
func (s Selection) WithSlots(slots []TimeSlot) (Selection, error) {
	if err := s.require(StageTimeSlot); err != nil {
		return s, err
	}
	n := s.invalidate(StageTimeSlot)
	n.slots = append([]TimeSlot{}, slots...)
	return n, nil
}

// SelectTimeSlot rejects unavailable slots. When a slot list is cached the slot must be in it
// and its availability is taken from the list.
func (s Selection) SelectTimeSlot(slot TimeSlot) (Selection, error) {
	if err := s.require(StageTimeSlot); err != nil {
		return s, err
	}
	if s.slots != nil {
		found, ok := FindSlot(s.slots, slot.StartTime)
		if !ok || found.EndTime != slot.EndTime {
			return s, fmt.Errorf("%w: slot %s-%s", ErrNotACandidate, slot.StartTime, slot.EndTime)
		}
		slot = found
	}
	if !slot.Available {
		return s, fmt.Errorf("%w: %s-%s", ErrSlotUnavailable, slot.StartTime, slot.EndTime)
	}
	n := s.invalidate(StageTimeSlot)
	n.slot = &slot
	return n, nil
}

// WithOffices attaches the offices free during the selected slot.
func (s Selection) WithOffices(offices []Office) (Selection, error) {
	if err := s.require(StageOffice); err != nil {
		return s, err
	}
	n := s.invalidate(StageOffice)
	n.offices = append([]Office{}, offices...)
	return n, nil
}

func (s Selection) SelectOffice(id uuid.UUID) (Selection, error) {
	if err := s.require(StageOffice); err != nil {
		return s, err
	}
	if s.offices != nil && !containsOffice(s.offices, id) {
		return s, fmt.Errorf("%w: office %s", ErrNotACandidate, id)
	}
	n := s.invalidate(StageOffice)
	n.office = &id
	return n, nil
}

// Clear nulls stage and every stage after it.
func (s Selection) Clear(stage Stage) Selection {
	if stage < 0 {
		stage = 0
	}
	if stage >= stageCount {
		return s
	}
	return s.invalidate(stage)
}

// Reset returns the initial state. Generations keep increasing so tokens taken before the
// reset are never current again.
func (s Selection) Reset() Selection {
	return s.invalidate(StageFilter)
}

// IsComplete is true when all five stages are set.
func (s Selection) IsComplete() bool {
	return s.filter != nil && s.doctor != nil && s.date != nil && s.slot != nil && s.office != nil
}

// Token captures the generation of stage. Take it before starting a fetch whose result
// feeds that stage.
func (s Selection) Token(stage Stage) Token {
	return Token{Stage: stage, gen: s.gen[stage]}
}

// Current reports whether nothing at or before t.Stage has changed since t was taken.
func (s Selection) Current(t Token) bool {
	if t.Stage < 0 || t.Stage >= stageCount {
		return false
	}
	return s.gen[t.Stage] == t.gen
}

// IsSet reports whether the given stage holds a value.
func (s Selection) IsSet(stage Stage) bool {
	switch stage {
	case StageFilter:
		return s.filter != nil
	case StageDoctor:
		return s.doctor != nil
	case StageDate:
		return s.date != nil
	case StageTimeSlot:
		return s.slot != nil
	case StageOffice:
		return s.office != nil
	}
	return false
}

func (s Selection) Filter() (DoctorFilter, bool) {
	if s.filter == nil {
		return DoctorFilter{}, false
	}
	return *s.filter, true
}

func (s Selection) Doctor() (uuid.UUID, bool) {
	if s.doctor == nil {
		return uuid.Nil, false
	}
	return *s.doctor, true
}

func (s Selection) Date() (time.Time, bool) {
	if s.date == nil {
		return time.Time{}, false
	}
	return *s.date, true
}

func (s Selection) TimeSlot() (TimeSlot, bool) {
	if s.slot == nil {
		return TimeSlot{}, false
	}
	return *s.slot, true
}

func (s Selection) Office() (uuid.UUID, bool) {
	if s.office == nil {
		return uuid.Nil, false
	}
	return *s.office, true
}

// Doctors returns the cached doctor list, nil when none has been fetched.
func (s Selection) Doctors() []Doctor {
	if s.doctors == nil {
		return nil
	}
	return append([]Doctor{}, s.doctors...)
}

func (s Selection) Slots() []TimeSlot {
	if s.slots == nil {
		return nil
	}
	return append([]TimeSlot{}, s.slots...)
}

func (s Selection) Offices() []Office {
	if s.offices == nil {
		return nil
	}
	return append([]Office{}, s.offices...)
}

// require checks that every stage before stage is set.
func (s Selection) require(stage Stage) error {
	for k := StageFilter; k < stage; k++ {
		if !s.IsSet(k) {
			return fmt.Errorf("%w: %s requires %s", ErrPreconditionViolation, stage, k)
		}
	}
	return nil
}

// invalidate returns a copy with stage and everything after it cleared, along with the
// candidate list derived from each cleared stage, and bumps their generations.
func (s Selection) invalidate(stage Stage) Selection {
	n := s
	for k := stage; k < stageCount; k++ {
		n.gen[k]++
		switch k {
		case StageFilter:
			n.filter = nil
			n.doctors = nil
		case StageDoctor:
			n.doctor = nil
		case StageDate:
			n.date = nil
			n.slots = nil
		case StageTimeSlot:
			n.slot = nil
			n.offices = nil
		case StageOffice:
			n.office = nil
		}
	}
	return n
}

func containsDoctor(doctors []Doctor, id uuid.UUID) bool {
	for _, d := range doctors {
		if d.ID == id {
			return true
		}
	}
	return false
}

func containsOffice(offices []Office, id uuid.UUID) bool {
	for _, o := range offices {
		if o.ID == id {
			return true
		}
	}
	return false
}
