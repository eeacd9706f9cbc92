package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
)

var (
	ErrSlotBeingBooked         = errors.New("doctor or office is currently being booked, please retry")
	ErrAppointmentExpiredState = errors.New("appointment is already expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidBooking          = errors.New("invalid booking request")

	// ErrOutsideAvailability is a booking conflict: the doctor's windows no longer cover
	// the requested interval.
	ErrOutsideAvailability = fmt.Errorf("%w: interval is outside the doctor's availability", scheduling.ErrBookingConflict)
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) ListSpecialities(ctx context.Context) ([]Speciality, error) {
	specialities, err := s.repo.ListSpecialities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list specialities: %w", err)
	}
	return specialities, nil
}

func (s *Service) FetchDoctorsBySpeciality(ctx context.Context, specialityID uuid.UUID) ([]scheduling.Doctor, error) {
	doctors, err := s.repo.ListDoctorsBySpeciality(ctx, specialityID)
	if err != nil {
		return nil, fmt.Errorf("list doctors by speciality: %w", err)
	}
	return doctors, nil
}

func (s *Service) FetchDoctorsByName(ctx context.Context, term string) ([]scheduling.Doctor, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []scheduling.Doctor{}, nil
	}
	doctors, err := s.repo.SearchDoctorsByName(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) FetchAvailabilityWindows(ctx context.Context, doctorID uuid.UUID) ([]scheduling.AvailabilityWindow, error) {
	windows, err := s.repo.ListAvailabilityWindows(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

func (s *Service) FetchBookedIntervals(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]scheduling.BookedInterval, error) {
	booked, err := s.repo.ListDoctorBookedIntervals(ctx, doctorID, scheduling.DateOf(date), s.now())
	if err != nil {
		return nil, fmt.Errorf("list booked intervals: %w", err)
	}
	return booked, nil
}

func (s *Service) FetchAvailableOffices(ctx context.Context, date time.Time, start, end scheduling.TimeOfDay) ([]scheduling.Office, error) {
	offices, err := s.repo.ListAvailableOffices(ctx, scheduling.DateOf(date), start, end, s.now())
	if err != nil {
		return nil, fmt.Errorf("list available offices: %w", err)
	}
	return offices, nil
}

func (s *Service) FetchTemplateTasks(ctx context.Context, appointmentTypeID uuid.UUID) ([]scheduling.MedicalTask, error) {
	if _, err := s.repo.GetAppointmentTypeByID(ctx, appointmentTypeID); err != nil {
		return nil, fmt.Errorf("load appointment type: %w", err)
	}
	tasks, err := s.repo.ListTemplateTasks(ctx, appointmentTypeID)
	if err != nil {
		return nil, fmt.Errorf("list template tasks: %w", err)
	}
	return tasks, nil
}

// SubmitBooking reserves the doctor and the office for the requested interval.
// It locks the doctor's day and the office's day in Redis, then re-checks availability and
// overlaps inside the critical section before creating a pending appointment.
func (s *Service) SubmitBooking(ctx context.Context, req scheduling.BookingRequest) (*scheduling.BookingConfirmation, error) {
	if req.Duration <= 0 || !req.StartTime.Valid() || !req.EndTime().Valid() {
		return nil, fmt.Errorf("%w: interval %s+%d", ErrInvalidBooking, req.StartTime, req.Duration)
	}
	date := scheduling.DateOf(req.Date)
	start, end := req.StartTime, req.EndTime()

	if _, err := s.repo.GetDoctorByID(ctx, req.DoctorID); err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetOfficeByID(ctx, req.OfficeID); err != nil {
		return nil, fmt.Errorf("load office: %w", err)
	}
	if _, err := s.repo.GetAppointmentTypeByID(ctx, req.AppointmentTypeID); err != nil {
		return nil, fmt.Errorf("load appointment type: %w", err)
	}
	if _, err := s.repo.GetPatientHistoryByID(ctx, req.PatientHistoryID); err != nil {
		return nil, fmt.Errorf("load patient history: %w", err)
	}

	keys := []string{
		redisclient.DoctorDayKey(req.DoctorID, date),
		redisclient.OfficeDayKey(req.OfficeID, date),
	}

	var created *Appointment

	err := s.locker.WithLocks(ctx, keys, func(lockCtx context.Context) error {
		windows, err := s.repo.ListAvailabilityWindows(lockCtx, req.DoctorID)
		if err != nil {
			return fmt.Errorf("load availability windows: %w", err)
		}
		window, ok := scheduling.ResolveWindow(date, windows)
		if !ok || !window.Covers(start, end) {
			return ErrOutsideAvailability
		}

		now := s.now()

		doctorBooked, err := s.repo.ListDoctorBookedIntervals(lockCtx, req.DoctorID, date, now)
		if err != nil {
			return fmt.Errorf("load doctor bookings: %w", err)
		}
		if overlapsAny(start, end, doctorBooked) {
			return fmt.Errorf("%w: doctor already booked at %s", scheduling.ErrBookingConflict, start)
		}

		officeBooked, err := s.repo.ListOfficeBookedIntervals(lockCtx, req.OfficeID, date, now)
		if err != nil {
			return fmt.Errorf("load office bookings: %w", err)
		}
		if overlapsAny(start, end, officeBooked) {
			return fmt.Errorf("%w: office already booked at %s", scheduling.ErrBookingConflict, start)
		}

		expiresAt := now.Add(s.cfg.AppointmentTTL)
		appt, err := s.repo.CreatePendingAppointment(lockCtx, NewAppointment{
			DoctorID:          req.DoctorID,
			OfficeID:          req.OfficeID,
			PatientHistoryID:  req.PatientHistoryID,
			AppointmentTypeID: req.AppointmentTypeID,
			Date:              date,
			StartTime:         start,
			EndTime:           end,
			ExpiresAt:         expiresAt,
			Tasks:             newAppointmentTasks(req.Tasks),
		})
		if err != nil {
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"office_id":  req.OfficeID.String(),
			"date":       date.Format(scheduling.DateLayout),
			"start_time": start.String(),
			"end_time":   end.String(),
			"expires_at": expiresAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", req.DoctorID.String()),
		zap.String("date", date.Format(scheduling.DateLayout)),
		zap.String("start_time", start.String()),
	)

	return created.Confirmation(), nil
}

func overlapsAny(start, end scheduling.TimeOfDay, booked []scheduling.BookedInterval) bool {
	for _, b := range booked {
		if scheduling.Overlaps(start, end, b.StartTime, b.EndTime) {
			return true
		}
	}
	return false
}

// ConfirmAppointment moves a pending appointment to confirmed
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	now := s.now()

	if appt.Status == StatusExpired {
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status == StatusPending && appt.ExpiresAt != nil && appt.ExpiresAt.Before(now) {
		_, updErr := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusExpired)
		if updErr != nil && !errors.Is(updErr, ErrAppointmentNotFound) {
			s.logger.Warn("failed to mark appointment expired during confirm",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(updErr),
			)
		}
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "confirm_after_expiry",
		})
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})

	return updated, nil
}

// CancelAppointment releases a pending or confirmed appointment.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	switch appt.Status {
	case StatusPending, StatusConfirmed:
	case StatusExpired:
		return nil, ErrAppointmentExpiredState
	default:
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"previous_status": string(appt.Status),
	})

	return updated, nil
}

// ExpirePendingAppointments is intended to be called by the worker periodically.
// It returns how many appointments were expired.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	expiredCandidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range expiredCandidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusExpired)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Warn("failed to expire appointment",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		expired++
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "worker",
		})
	}

	return expired, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
