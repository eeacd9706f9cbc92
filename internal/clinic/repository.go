package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var (
	ErrDoctorNotFound          = errors.New("doctor not found")
	ErrOfficeNotFound          = errors.New("office not found")
	ErrAppointmentTypeNotFound = errors.New("appointment type not found")
	ErrPatientHistoryNotFound  = errors.New("patient history not found")
	ErrAppointmentNotFound     = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Directory lookups
	ListSpecialities(ctx context.Context) ([]Speciality, error)
	ListDoctorsBySpeciality(ctx context.Context, specialityID uuid.UUID) ([]scheduling.Doctor, error)
	SearchDoctorsByName(ctx context.Context, term string) ([]scheduling.Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error)
	ListAvailabilityWindows(ctx context.Context, doctorID uuid.UUID) ([]scheduling.AvailabilityWindow, error)
	GetOfficeByID(ctx context.Context, id uuid.UUID) (*scheduling.Office, error)
	ListAvailableOffices(ctx context.Context, date time.Time, start, end scheduling.TimeOfDay, now time.Time) ([]scheduling.Office, error)
	GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error)
	ListTemplateTasks(ctx context.Context, appointmentTypeID uuid.UUID) ([]scheduling.MedicalTask, error)
	GetPatientHistoryByID(ctx context.Context, id uuid.UUID) (*PatientHistory, error)

	// For conflict checks. Both count confirmed appointments and pending ones not yet expired.
	ListDoctorBookedIntervals(ctx context.Context, doctorID uuid.UUID, date, now time.Time) ([]scheduling.BookedInterval, error)
	ListOfficeBookedIntervals(ctx context.Context, officeID uuid.UUID, date, now time.Time) ([]scheduling.BookedInterval, error)

	// Creation and updates
	CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
