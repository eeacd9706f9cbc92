package scheduling

import (
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

type WindowStatus string

const (
	WindowActive   WindowStatus = "ACTIVE"
	WindowInactive WindowStatus = "INACTIVE"
)

// AvailabilityWindow is a recurring weekly interval during which a doctor can be booked.
type AvailabilityWindow struct {
	DayOfWeek Weekday      `json:"day_of_week"`
	StartTime TimeOfDay    `json:"start_time"`
	EndTime   TimeOfDay    `json:"end_time"`
	Status    WindowStatus `json:"status"`
}

// BookedInterval is the occupied range of an existing appointment.
type BookedInterval struct {
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// TimeSlot is a candidate appointment. Available is false when it overlaps a booked interval.
type TimeSlot struct {
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Available bool      `json:"available"`
}

type Doctor struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	SpecialityID *uuid.UUID `json:"speciality_id,omitempty"`
}

type Office struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Floor *int      `json:"floor,omitempty"`
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskCompleted TaskStatus = "COMPLETED"
)

// MedicalTask is one unit of work performed during an appointment.
// EstimatedTime is in minutes. TemplateID names the appointment-type task a template task
// was copied from and is nil for custom tasks.
type MedicalTask struct {
	ID            uuid.UUID  `json:"id"`
	Description   string     `json:"description"`
	EstimatedTime int        `json:"estimated_time"`
	Responsible   string     `json:"responsible,omitempty"`
	Status        TaskStatus `json:"status,omitempty"`
	TemplateID    *uuid.UUID `json:"template_id,omitempty"`
}

// BookingRequest is what a complete selection turns into.
type BookingRequest struct {
	DoctorID          uuid.UUID
	Date              time.Time
	StartTime         TimeOfDay
	Duration          int
	OfficeID          uuid.UUID
	PatientHistoryID  uuid.UUID
	AppointmentTypeID uuid.UUID
	Tasks             []MedicalTask
}

func (r BookingRequest) EndTime() TimeOfDay {
	return r.StartTime.Add(r.Duration)
}

type BookingConfirmation struct {
	AppointmentID uuid.UUID  `json:"appointment_id"`
	Status        string     `json:"status"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	OfficeID      uuid.UUID  `json:"office_id"`
	Date          string     `json:"date"`
	StartTime     TimeOfDay  `json:"start_time"`
	EndTime       TimeOfDay  `json:"end_time"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// DateOf truncates t to a calendar date in UTC, keeping t's own year/month/day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
