package main

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/session"
)

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *apiClient
	log     *zap.Logger
	metrics Metrics
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				s.doReadByID(ctx, rng)
			}
		}
	}
}

// step runs one session operation and records it. It returns false when the flow should stop.
func (s *Simulator) step(ctx context.Context, method, path string, body any, view *session.View) bool {
	*view = session.View{}

	start := time.Now()
	status, err := s.client.do(ctx, method, path, body, view)
	ok := err == nil && status >= 200 && status < 300
	s.metrics.Step.Record(time.Since(start), ok, status == http.StatusConflict)
	if err != nil && ctx.Err() == nil {
		s.log.Debug("session step failed", zap.String("path", path), zap.Error(err))
	}
	return ok
}

// doBooking walks one scheduling session from speciality to booking.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	var view session.View
	if !s.step(ctx, http.MethodPost, "/sessions", nil, &view) {
		return
	}
	base := "/sessions/" + view.ID.String()
	defer func() {
		_, _ = s.client.do(context.WithoutCancel(ctx), http.MethodDelete, base, nil, nil)
	}()

	if !s.step(ctx, http.MethodPut, base+"/appointment-type",
		map[string]string{"appointment_type_id": pick(rng, s.pool.AppointmentTypes).String()}, &view) {
		return
	}
	if !s.step(ctx, http.MethodPut, base+"/patient-history",
		map[string]string{"patient_history_id": pick(rng, s.pool.PatientHistories).String()}, &view) {
		return
	}
	if !s.step(ctx, http.MethodPut, base+"/speciality",
		map[string]string{"speciality_id": pick(rng, s.pool.Specialities).String()}, &view) {
		return
	}
	if len(view.Doctors) == 0 {
		s.metrics.NoSlots.Add(1)
		return
	}

	doctor := view.Doctors[rng.Intn(len(view.Doctors))]
	if !s.step(ctx, http.MethodPut, base+"/doctor", map[string]string{"doctor_id": doctor.ID.String()}, &view) {
		return
	}

	var bookable []scheduling.TimeSlot
	for attempt := 0; attempt < 3 && len(bookable) == 0; attempt++ {
		date := time.Now().UTC().AddDate(0, 0, rng.Intn(s.config.DaysAhead)+1)
		if !s.step(ctx, http.MethodPut, base+"/date",
			map[string]string{"date": date.Format(scheduling.DateLayout)}, &view) {
			return
		}
		bookable = scheduling.Bookable(view.Slots)
	}
	if len(bookable) == 0 {
		s.metrics.NoSlots.Add(1)
		return
	}

	slot := bookable[rng.Intn(len(bookable))]
	if !s.step(ctx, http.MethodPut, base+"/slot", map[string]string{"start_time": slot.StartTime.String()}, &view) {
		return
	}
	if len(view.Offices) == 0 {
		s.metrics.NoSlots.Add(1)
		return
	}

	office := view.Offices[rng.Intn(len(view.Offices))]
	if !s.step(ctx, http.MethodPut, base+"/office", map[string]string{"office_id": office.ID.String()}, &view) {
		return
	}

	start := time.Now()
	var conf scheduling.BookingConfirmation
	status, err := s.client.do(ctx, http.MethodPost, base+"/book", nil, &conf)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && conf.AppointmentID != uuid.Nil {
		s.pool.AddAppointment(conf.AppointmentID)
	}
	s.metrics.Booking.Record(latency, success, status == http.StatusConflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.client.do(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/confirm", nil, nil)
	s.metrics.Confirm.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.client.do(ctx, http.MethodGet, "/appointments/"+apptID.String(), nil, nil)
	s.metrics.ReadByID.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}
