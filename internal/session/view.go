package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// View is the JSON shape of a session returned to hosts.
type View struct {
	ID                uuid.UUID                `json:"id"`
	Filter            *scheduling.DoctorFilter `json:"filter,omitempty"`
	DoctorID          *uuid.UUID               `json:"doctor_id,omitempty"`
	Date              string                   `json:"date,omitempty"`
	TimeSlot          *scheduling.TimeSlot     `json:"time_slot,omitempty"`
	OfficeID          *uuid.UUID               `json:"office_id,omitempty"`
	Doctors           []scheduling.Doctor      `json:"doctors,omitempty"`
	Slots             []scheduling.TimeSlot    `json:"slots,omitempty"`
	NoSlotsReason     string                   `json:"no_slots_reason,omitempty"`
	Offices           []scheduling.Office      `json:"offices,omitempty"`
	AppointmentTypeID *uuid.UUID               `json:"appointment_type_id,omitempty"`
	PatientHistoryID  *uuid.UUID               `json:"patient_history_id,omitempty"`
	Tasks             []scheduling.MedicalTask `json:"tasks"`
	Duration          scheduling.DurationState `json:"duration"`
	Complete          bool                     `json:"complete"`
	LastUsed          time.Time                `json:"last_used"`
}

const (
	reasonNoApplicableWindow    = "no_applicable_window"
	reasonDurationExceedsWindow = "duration_exceeds_window"
)

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:                s.ID,
		Doctors:           s.sel.Doctors(),
		Slots:             s.sel.Slots(),
		Offices:           s.sel.Offices(),
		AppointmentTypeID: s.apptType,
		PatientHistoryID:  s.history,
		Tasks:             s.tasks.Tasks(),
		Duration:          s.tasks.Duration(),
		Complete:          s.sel.IsComplete(),
		LastUsed:          s.lastUsed,
	}
	if f, ok := s.sel.Filter(); ok {
		v.Filter = &f
	}
	if id, ok := s.sel.Doctor(); ok {
		v.DoctorID = &id
	}
	if d, ok := s.sel.Date(); ok {
		v.Date = d.Format(scheduling.DateLayout)
	}
	if slot, ok := s.sel.TimeSlot(); ok {
		v.TimeSlot = &slot
	}
	if id, ok := s.sel.Office(); ok {
		v.OfficeID = &id
	}

	switch s.noSlots {
	case nil:
	case scheduling.ErrNoApplicableWindow:
		v.NoSlotsReason = reasonNoApplicableWindow
	case scheduling.ErrDurationExceedsWindow:
		v.NoSlotsReason = reasonDurationExceedsWindow
	default:
		v.NoSlotsReason = s.noSlots.Error()
	}
	return v
}
