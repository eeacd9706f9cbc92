package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// Directory is the remote side of a scheduling session: every record the workflow needs
// but does not own, and the booking endpoint.
type Directory interface {
	FetchDoctorsBySpeciality(ctx context.Context, specialityID uuid.UUID) ([]scheduling.Doctor, error)
	FetchDoctorsByName(ctx context.Context, term string) ([]scheduling.Doctor, error)
	FetchAvailabilityWindows(ctx context.Context, doctorID uuid.UUID) ([]scheduling.AvailabilityWindow, error)
	FetchBookedIntervals(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.BookedInterval, error)
	FetchAvailableOffices(ctx context.Context, date time.Time, start, end scheduling.TimeOfDay) ([]scheduling.Office, error)
	FetchTemplateTasks(ctx context.Context, appointmentTypeID uuid.UUID) ([]scheduling.MedicalTask, error)
	SubmitBooking(ctx context.Context, req scheduling.BookingRequest) (*scheduling.BookingConfirmation, error)
}
