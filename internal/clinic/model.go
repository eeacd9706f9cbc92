package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusExpired   AppointmentStatus = "expired"
)

type Speciality struct {
	ID   uuid.UUID
	Name string
}

type AppointmentType struct {
	ID   uuid.UUID
	Name string
}

type PatientHistory struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	CreatedAt time.Time
}

type Appointment struct {
	ID                uuid.UUID
	DoctorID          uuid.UUID
	OfficeID          uuid.UUID
	PatientHistoryID  uuid.UUID
	AppointmentTypeID uuid.UUID
	Date              time.Time
	StartTime         scheduling.TimeOfDay
	EndTime           scheduling.TimeOfDay
	Status            AppointmentStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         *time.Time
}

// NewAppointment is what the service hands the repository to persist a pending booking.
type NewAppointment struct {
	DoctorID          uuid.UUID
	OfficeID          uuid.UUID
	PatientHistoryID  uuid.UUID
	AppointmentTypeID uuid.UUID
	Date              time.Time
	StartTime         scheduling.TimeOfDay
	EndTime           scheduling.TimeOfDay
	ExpiresAt         time.Time
	Tasks             []AppointmentTask
}

// AppointmentTask is one appointment_tasks row. Its ID is always fresh so two bookings made
// from the same template never share a key.
type AppointmentTask struct {
	ID             uuid.UUID
	TemplateTaskID *uuid.UUID
	Description    string
	EstimatedTime  int
	Responsible    string
	Status         scheduling.TaskStatus
	Position       int
}

func newAppointmentTasks(tasks []scheduling.MedicalTask) []AppointmentTask {
	rows := make([]AppointmentTask, 0, len(tasks))
	for i, t := range tasks {
		status := t.Status
		if status == "" {
			status = scheduling.TaskPending
		}
		var templateID *uuid.UUID
		if t.TemplateID != nil {
			id := *t.TemplateID
			templateID = &id
		}
		rows = append(rows, AppointmentTask{
			ID:             uuid.New(),
			TemplateTaskID: templateID,
			Description:    t.Description,
			EstimatedTime:  t.EstimatedTime,
			Responsible:    t.Responsible,
			Status:         status,
			Position:       i,
		})
	}
	return rows
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Doctor *scheduling.Doctor
	Office *scheduling.Office
	Tasks  []scheduling.MedicalTask
}

// Confirmation converts a stored appointment into the booking result returned to sessions.
func (a *Appointment) Confirmation() *scheduling.BookingConfirmation {
	return &scheduling.BookingConfirmation{
		AppointmentID: a.ID,
		Status:        string(a.Status),
		DoctorID:      a.DoctorID,
		OfficeID:      a.OfficeID,
		Date:          a.Date.Format(scheduling.DateLayout),
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		ExpiresAt:     a.ExpiresAt,
	}
}
