package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var (
	// ErrStaleSelection is returned when a fetch resolved after the selection it was
	// started for had changed. The result has been discarded; hosts should ignore it.
	ErrStaleSelection = errors.New("selection changed while request was in flight")
	// ErrFetchFailure wraps any Directory read error. The session state is left as it was.
	ErrFetchFailure = errors.New("fetch failed")
	// ErrBookingFailed wraps a SubmitBooking error other than a conflict. The selection is kept.
	ErrBookingFailed = errors.New("booking failed")

	ErrIncomplete            = fmt.Errorf("%w: selection is not complete", scheduling.ErrPreconditionViolation)
	ErrMissingBookingContext = fmt.Errorf("%w: patient history and appointment type are required", scheduling.ErrPreconditionViolation)
)

// fetchKind identifies one kind of in-flight request. Each kind feeds one stage.
type fetchKind int

const (
	fetchDoctors fetchKind = iota
	fetchWindows
	fetchBooked
	fetchOffices
	fetchTemplate

	fetchKinds
)

// feeds maps a fetch to the selection stage whose token guards it. Template tasks are not
// tied to the selection chain.
var feeds = [fetchKinds]scheduling.Stage{
	fetchDoctors:  scheduling.StageFilter,
	fetchWindows:  scheduling.StageDoctor,
	fetchBooked:   scheduling.StageDate,
	fetchOffices:  scheduling.StageTimeSlot,
	fetchTemplate: -1,
}

type flight struct {
	seq    uint64
	token  scheduling.Token
	cancel context.CancelFunc
}

// Session is one user's pass through the booking workflow. Mutations are serialised;
// Directory calls run without the lock and are applied only if nothing they depend on
// changed in the meantime.
type Session struct {
	ID uuid.UUID

	dir          Directory
	logger       *zap.Logger
	fetchTimeout time.Duration

	mu       sync.Mutex
	sel      scheduling.Selection
	tasks    *scheduling.TaskAccumulator
	windows  []scheduling.AvailabilityWindow
	booked   []scheduling.BookedInterval
	noSlots  error
	apptType *uuid.UUID
	history  *uuid.UUID

	flights  [fetchKinds]*flight
	seq      uint64
	lastUsed time.Time
}

func New(dir Directory, logger *zap.Logger, fetchTimeout time.Duration) *Session {
	return &Session{
		ID:           uuid.New(),
		dir:          dir,
		logger:       logger,
		fetchTimeout: fetchTimeout,
		tasks:        scheduling.NewTaskAccumulator(),
		lastUsed:     time.Now(),
	}
}

// SetSpeciality filters doctors by speciality. A nil id clears the filter and everything
// after it.
func (s *Session) SetSpeciality(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.touch()
		s.commit(scheduling.StageFilter, s.sel.ClearFilter())
		return nil
	}

	specialityID := *id
	return s.fetchDoctors(ctx, func(fctx context.Context) ([]scheduling.Doctor, error) {
		return s.dir.FetchDoctorsBySpeciality(fctx, specialityID)
	}, func(sel scheduling.Selection) (scheduling.Selection, error) {
		return sel.WithSpeciality(specialityID), nil
	})
}

// SearchDoctors filters doctors by a name search term.
func (s *Session) SearchDoctors(ctx context.Context, term string) error {
	s.mu.Lock()
	_, err := s.sel.WithSearchTerm(term)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.fetchDoctors(ctx, func(fctx context.Context) ([]scheduling.Doctor, error) {
		return s.dir.FetchDoctorsByName(fctx, term)
	}, func(sel scheduling.Selection) (scheduling.Selection, error) {
		return sel.WithSearchTerm(term)
	})
}

func (s *Session) fetchDoctors(
	ctx context.Context,
	fetch func(context.Context) ([]scheduling.Doctor, error),
	setFilter func(scheduling.Selection) (scheduling.Selection, error),
) error {
	fctx, f := s.begin(ctx, fetchDoctors)
	doctors, err := fetch(fctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.finish(fetchDoctors, f)

	if err := s.check(fetchDoctors, f, err, "fetch doctors"); err != nil {
		return err
	}

	next, err := setFilter(s.sel)
	if err != nil {
		return err
	}
	next, err = next.WithDoctors(doctors)
	if err != nil {
		return err
	}
	s.commit(scheduling.StageFilter, next)
	return nil
}

// SelectDoctor picks a doctor and loads their weekly availability.
func (s *Session) SelectDoctor(ctx context.Context, doctorID uuid.UUID) error {
	s.mu.Lock()
	_, err := s.sel.SelectDoctor(doctorID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	fctx, f := s.begin(ctx, fetchWindows)
	windows, err := s.dir.FetchAvailabilityWindows(fctx, doctorID)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.finish(fetchWindows, f)

	if err := s.check(fetchWindows, f, err, "fetch availability windows"); err != nil {
		return err
	}

	next, err := s.sel.SelectDoctor(doctorID)
	if err != nil {
		return err
	}
	s.commit(scheduling.StageDoctor, next)
	s.windows = windows
	return nil
}

// SetDate picks a date, loads the doctor's booked intervals for it and computes the slots.
// An empty slot list is not an error; NoSlotsReason in the view says why.
func (s *Session) SetDate(ctx context.Context, date time.Time) error {
	date = scheduling.DateOf(date)

	s.mu.Lock()
	_, err := s.sel.SetDate(date)
	doctorID, _ := s.sel.Doctor()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.loadSlots(ctx, doctorID, date, func(sel scheduling.Selection) (scheduling.Selection, error) {
		return sel.SetDate(date)
	})
}

// RefreshSlots re-fetches booked intervals for the current doctor and date. The selected
// time slot and office are cleared.
func (s *Session) RefreshSlots(ctx context.Context) error {
	s.mu.Lock()
	doctorID, _ := s.sel.Doctor()
	date, ok := s.sel.Date()
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: refresh requires a date", scheduling.ErrPreconditionViolation)
	}

	return s.loadSlots(ctx, doctorID, date, func(sel scheduling.Selection) (scheduling.Selection, error) {
		if _, ok := sel.Date(); !ok {
			return sel, fmt.Errorf("%w: refresh requires a date", scheduling.ErrPreconditionViolation)
		}
		return sel, nil
	})
}

func (s *Session) loadSlots(
	ctx context.Context,
	doctorID uuid.UUID,
	date time.Time,
	setDate func(scheduling.Selection) (scheduling.Selection, error),
) error {
	fctx, f := s.begin(ctx, fetchBooked)
	booked, err := s.dir.FetchBookedIntervals(fctx, doctorID, date)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.finish(fetchBooked, f)

	if err := s.check(fetchBooked, f, err, "fetch booked intervals"); err != nil {
		return err
	}

	next, err := setDate(s.sel)
	if err != nil {
		return err
	}
	slots, reason := scheduling.SlotsForDate(date, s.windows, s.tasks.Duration().Duration, booked)
	next, err = next.WithSlots(slots)
	if err != nil {
		return err
	}

	s.commit(scheduling.StageDate, next)
	s.booked = booked
	s.noSlots = reason
	if reason != nil {
		s.logger.Debug("no slots for date",
			zap.String("session_id", s.ID.String()),
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", date.Format(scheduling.DateLayout)),
			zap.String("reason", reason.Error()),
		)
	}
	return nil
}

// SelectTimeSlot picks one of the computed slots by its start time and loads the offices
// free during it.
func (s *Session) SelectTimeSlot(ctx context.Context, start scheduling.TimeOfDay) error {
	s.mu.Lock()
	if !s.sel.IsSet(scheduling.StageDate) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s requires %s", scheduling.ErrPreconditionViolation, scheduling.StageTimeSlot, scheduling.StageDate)
	}
	slot, ok := scheduling.FindSlot(s.sel.Slots(), start)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: no slot starts at %s", scheduling.ErrNotACandidate, start)
	}
	_, err := s.sel.SelectTimeSlot(slot)
	date, _ := s.sel.Date()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	fctx, f := s.begin(ctx, fetchOffices)
	offices, err := s.dir.FetchAvailableOffices(fctx, date, slot.StartTime, slot.EndTime)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.finish(fetchOffices, f)

	if err := s.check(fetchOffices, f, err, "fetch available offices"); err != nil {
		return err
	}

	next, err := s.sel.SelectTimeSlot(slot)
	if err != nil {
		return err
	}
	next, err = next.WithOffices(offices)
	if err != nil {
		return err
	}
	s.commit(scheduling.StageTimeSlot, next)
	return nil
}

func (s *Session) SelectOffice(officeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	next, err := s.sel.SelectOffice(officeID)
	if err != nil {
		return err
	}
	s.commit(scheduling.StageOffice, next)
	return nil
}

// SetAppointmentType replaces the template tasks with those of the given type.
func (s *Session) SetAppointmentType(ctx context.Context, typeID uuid.UUID) error {
	fctx, f := s.begin(ctx, fetchTemplate)
	tasks, err := s.dir.FetchTemplateTasks(fctx, typeID)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.finish(fetchTemplate, f)

	if err := s.check(fetchTemplate, f, err, "fetch template tasks"); err != nil {
		return err
	}

	before := s.tasks.Duration()
	if err := s.tasks.SetTemplateTasks(tasks); err != nil {
		return err
	}
	s.apptType = &typeID
	s.durationChanged(before)
	return nil
}

func (s *Session) SetPatientHistory(historyID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.history = &historyID
}

func (s *Session) AddTask(task scheduling.MedicalTask) (scheduling.MedicalTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	before := s.tasks.Duration()
	added, err := s.tasks.AddTask(task)
	if err != nil {
		return scheduling.MedicalTask{}, err
	}
	s.durationChanged(before)
	return added, nil
}

func (s *Session) UpdateTask(index int, task scheduling.MedicalTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	before := s.tasks.Duration()
	if err := s.tasks.UpdateTask(index, task); err != nil {
		return err
	}
	s.durationChanged(before)
	return nil
}

func (s *Session) RemoveTask(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	before := s.tasks.Duration()
	if err := s.tasks.RemoveTask(index); err != nil {
		return err
	}
	s.durationChanged(before)
	return nil
}

// Book submits the complete selection. On success the session is reset. When the booking
// lost a race to another session the selected slot is dropped and slots are re-fetched.
func (s *Session) Book(ctx context.Context) (*scheduling.BookingConfirmation, error) {
	s.mu.Lock()
	req, err := s.bookingRequest()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	conf, err := s.dir.SubmitBooking(ctx, req)
	if err != nil {
		if errors.Is(err, scheduling.ErrBookingConflict) {
			s.logger.Info("booking conflict, refreshing slots",
				zap.String("session_id", s.ID.String()),
				zap.String("doctor_id", req.DoctorID.String()),
				zap.String("start_time", req.StartTime.String()),
			)
			if rerr := s.RefreshSlots(ctx); rerr != nil && !errors.Is(rerr, ErrStaleSelection) {
				s.logger.Warn("refresh slots after conflict failed",
					zap.String("session_id", s.ID.String()),
					zap.Error(rerr),
				)
			}
			return nil, fmt.Errorf("submit booking: %w", err)
		}
		return nil, fmt.Errorf("%w: submit booking: %w", ErrBookingFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()

	s.logger.Info("appointment booked",
		zap.String("session_id", s.ID.String()),
		zap.String("appointment_id", conf.AppointmentID.String()),
	)
	return conf, nil
}

// Cancel drops every selection and task and aborts in-flight fetches.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel.IsComplete()
}

// Selection returns the current snapshot.
func (s *Session) Selection() scheduling.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

func (s *Session) Duration() scheduling.DurationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Duration()
}

// LastUsed is the time of the last mutation, used for idle eviction.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) bookingRequest() (scheduling.BookingRequest, error) {
	if !s.sel.IsComplete() {
		return scheduling.BookingRequest{}, ErrIncomplete
	}
	if s.history == nil || s.apptType == nil {
		return scheduling.BookingRequest{}, ErrMissingBookingContext
	}

	doctorID, _ := s.sel.Doctor()
	date, _ := s.sel.Date()
	slot, _ := s.sel.TimeSlot()
	officeID, _ := s.sel.Office()

	return scheduling.BookingRequest{
		DoctorID:          doctorID,
		Date:              date,
		StartTime:         slot.StartTime,
		Duration:          slot.EndTime.Sub(slot.StartTime),
		OfficeID:          officeID,
		PatientHistoryID:  *s.history,
		AppointmentTypeID: *s.apptType,
		Tasks:             s.tasks.Tasks(),
	}, nil
}

// durationChanged regenerates the slot list from cached data when the task set moved the
// duration. The selected slot and office no longer fit and are cleared.
func (s *Session) durationChanged(before scheduling.DurationState) {
	after := s.tasks.Duration()
	if after.Duration == before.Duration {
		return
	}
	date, ok := s.sel.Date()
	if !ok {
		return
	}

	slots, reason := scheduling.SlotsForDate(date, s.windows, after.Duration, s.booked)
	next, err := s.sel.WithSlots(slots)
	if err != nil {
		return
	}
	s.commit(scheduling.StageTimeSlot, next)
	s.noSlots = reason
}

func (s *Session) resetLocked() {
	s.touch()
	s.cancelFlights(0)
	s.sel = s.sel.Reset()
	s.tasks.Reset()
	s.windows = nil
	s.booked = nil
	s.noSlots = nil
	s.apptType = nil
	s.history = nil
}

// commit installs next and aborts fetches that fed the stages it replaced.
// Caller holds s.mu.
func (s *Session) commit(stage scheduling.Stage, next scheduling.Selection) {
	s.touch()
	s.sel = next
	for k := fetchKind(0); k < fetchKinds; k++ {
		if feeds[k] >= stage {
			s.cancelFlight(k)
		}
	}
	if stage <= scheduling.StageDoctor {
		s.windows = nil
		s.booked = nil
		s.noSlots = nil
	}
	if stage == scheduling.StageDate {
		s.booked = nil
		s.noSlots = nil
	}
}

// begin registers a new fetch of kind, superseding any previous one of the same kind.
func (s *Session) begin(ctx context.Context, kind fetchKind) (context.Context, *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.cancelFlight(kind)

	var fctx context.Context
	var cancel context.CancelFunc
	if s.fetchTimeout > 0 {
		fctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
	} else {
		fctx, cancel = context.WithCancel(ctx)
	}

	s.seq++
	f := &flight{seq: s.seq, cancel: cancel}
	if stage := feeds[kind]; stage >= 0 {
		f.token = s.sel.Token(stage)
	}
	s.flights[kind] = f
	return fctx, f
}

// check decides what to do with a finished fetch. Caller holds s.mu.
func (s *Session) check(kind fetchKind, f *flight, fetchErr error, op string) error {
	if s.flights[kind] != f || (feeds[kind] >= 0 && !s.sel.Current(f.token)) {
		s.logger.Debug("discarding stale response",
			zap.String("session_id", s.ID.String()),
			zap.String("op", op),
		)
		return ErrStaleSelection
	}
	if fetchErr != nil {
		s.logger.Warn("directory fetch failed",
			zap.String("session_id", s.ID.String()),
			zap.String("op", op),
			zap.Error(fetchErr),
		)
		return fmt.Errorf("%w: %s: %w", ErrFetchFailure, op, fetchErr)
	}
	return nil
}

// finish releases the flight if it is still registered. Caller holds s.mu.
func (s *Session) finish(kind fetchKind, f *flight) {
	f.cancel()
	if s.flights[kind] == f {
		s.flights[kind] = nil
	}
}

func (s *Session) cancelFlight(kind fetchKind) {
	if f := s.flights[kind]; f != nil {
		f.cancel()
		s.flights[kind] = nil
	}
}

func (s *Session) cancelFlights(from fetchKind) {
	for k := from; k < fetchKinds; k++ {
		s.cancelFlight(k)
	}
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}
