package clinic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/session"
)

var _ session.Directory = (*Service)(nil)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) ListSpecialities(ctx context.Context) ([]Speciality, error) {
	args := m.Called(ctx)
	v, _ := args.Get(0).([]Speciality)
	return v, args.Error(1)
}

func (m *mockRepository) ListDoctorsBySpeciality(ctx context.Context, specialityID uuid.UUID) ([]scheduling.Doctor, error) {
	args := m.Called(ctx, specialityID)
	v, _ := args.Get(0).([]scheduling.Doctor)
	return v, args.Error(1)
}

func (m *mockRepository) SearchDoctorsByName(ctx context.Context, term string) ([]scheduling.Doctor, error) {
	args := m.Called(ctx, term)
	v, _ := args.Get(0).([]scheduling.Doctor)
	return v, args.Error(1)
}

func (m *mockRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*scheduling.Doctor)
	return v, args.Error(1)
}

func (m *mockRepository) ListAvailabilityWindows(ctx context.Context, doctorID uuid.UUID) ([]scheduling.AvailabilityWindow, error) {
	args := m.Called(ctx, doctorID)
	v, _ := args.Get(0).([]scheduling.AvailabilityWindow)
	return v, args.Error(1)
}

func (m *mockRepository) GetOfficeByID(ctx context.Context, id uuid.UUID) (*scheduling.Office, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*scheduling.Office)
	return v, args.Error(1)
}

func (m *mockRepository) ListAvailableOffices(ctx context.Context, date time.Time, start, end scheduling.TimeOfDay, now time.Time) ([]scheduling.Office, error) {
	args := m.Called(ctx, date, start, end, now)
	v, _ := args.Get(0).([]scheduling.Office)
	return v, args.Error(1)
}

func (m *mockRepository) GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*AppointmentType)
	return v, args.Error(1)
}

func (m *mockRepository) ListTemplateTasks(ctx context.Context, appointmentTypeID uuid.UUID) ([]scheduling.MedicalTask, error) {
	args := m.Called(ctx, appointmentTypeID)
	v, _ := args.Get(0).([]scheduling.MedicalTask)
	return v, args.Error(1)
}

func (m *mockRepository) GetPatientHistoryByID(ctx context.Context, id uuid.UUID) (*PatientHistory, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*PatientHistory)
	return v, args.Error(1)
}

func (m *mockRepository) ListDoctorBookedIntervals(ctx context.Context, doctorID uuid.UUID, date, now time.Time) ([]scheduling.BookedInterval, error) {
	args := m.Called(ctx, doctorID, date, now)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, time.Time, time.Time) []scheduling.BookedInterval); ok {
		return fn(ctx, doctorID, date, now), args.Error(1)
	}
	v, _ := args.Get(0).([]scheduling.BookedInterval)
	return v, args.Error(1)
}

func (m *mockRepository) ListOfficeBookedIntervals(ctx context.Context, officeID uuid.UUID, date, now time.Time) ([]scheduling.BookedInterval, error) {
	args := m.Called(ctx, officeID, date, now)
	v, _ := args.Get(0).([]scheduling.BookedInterval)
	return v, args.Error(1)
}

func (m *mockRepository) CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	args := m.Called(ctx, in)
	v, _ := args.Get(0).(*Appointment)
	return v, args.Error(1)
}

func (m *mockRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*Appointment)
	return v, args.Error(1)
}

func (m *mockRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*AppointmentDetail)
	return v, args.Error(1)
}

func (m *mockRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	args := m.Called(ctx, id, from, to)
	v, _ := args.Get(0).(*Appointment)
	return v, args.Error(1)
}

func (m *mockRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	args := m.Called(ctx, now)
	v, _ := args.Get(0).([]Appointment)
	return v, args.Error(1)
}

func (m *mockRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// memLocker is an in-process Locker that records the keys it was asked for.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
	seen [][]string
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	l.seen = append(l.seen, keys)
	for _, k := range keys {
		if l.held[k] {
			l.mu.Unlock()
			return redisclient.ErrLockNotAcquired
		}
	}
	for _, k := range keys {
		l.held[k] = true
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		for _, k := range keys {
			delete(l.held, k)
		}
		l.mu.Unlock()
	}()
	return fn(ctx)
}

var (
	monday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	fixed  = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
)

func tod(s string) scheduling.TimeOfDay {
	return scheduling.MustParseTimeOfDay(s)
}

func newTestService(repo Repository, locker redisclient.Locker) *Service {
	svc := NewService(repo, locker, config.Config{AppointmentTTL: 10 * time.Minute}, zap.NewNop())
	svc.now = func() time.Time { return fixed }
	return svc
}

type bookingFixture struct {
	repo   *mockRepository
	locker *memLocker
	svc    *Service
	req    scheduling.BookingRequest
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	repo := &mockRepository{}
	locker := newMemLocker()
	req := scheduling.BookingRequest{
		DoctorID:          uuid.New(),
		Date:              monday.Add(13 * time.Hour),
		StartTime:         tod("09:30"),
		Duration:          30,
		OfficeID:          uuid.New(),
		PatientHistoryID:  uuid.New(),
		AppointmentTypeID: uuid.New(),
		Tasks:             []scheduling.MedicalTask{{Description: "check-up", EstimatedTime: 15}},
	}

	repo.On("GetDoctorByID", mock.Anything, req.DoctorID).Return(&scheduling.Doctor{ID: req.DoctorID}, nil).Maybe()
	repo.On("GetOfficeByID", mock.Anything, req.OfficeID).Return(&scheduling.Office{ID: req.OfficeID}, nil).Maybe()
	repo.On("GetAppointmentTypeByID", mock.Anything, req.AppointmentTypeID).Return(&AppointmentType{ID: req.AppointmentTypeID}, nil).Maybe()
	repo.On("GetPatientHistoryByID", mock.Anything, req.PatientHistoryID).Return(&PatientHistory{ID: req.PatientHistoryID}, nil).Maybe()
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(nil).Maybe()

	return &bookingFixture{repo: repo, locker: locker, svc: newTestService(repo, locker), req: req}
}

func (f *bookingFixture) withWindows(windows ...scheduling.AvailabilityWindow) {
	f.repo.On("ListAvailabilityWindows", mock.Anything, f.req.DoctorID).Return(windows, nil)
}

func (f *bookingFixture) withBookings(doctor, office []scheduling.BookedInterval) {
	f.repo.On("ListDoctorBookedIntervals", mock.Anything, f.req.DoctorID, monday, fixed).Return(doctor, nil)
	f.repo.On("ListOfficeBookedIntervals", mock.Anything, f.req.OfficeID, monday, fixed).Return(office, nil).Maybe()
}

func mondayWindow() scheduling.AvailabilityWindow {
	return scheduling.AvailabilityWindow{
		DayOfWeek: scheduling.Monday,
		StartTime: tod("09:00"),
		EndTime:   tod("12:00"),
		Status:    scheduling.WindowActive,
	}
}

func TestSubmitBooking_CreatesPendingAppointment(t *testing.T) {
	f := newBookingFixture(t)
	f.withWindows(mondayWindow())
	f.withBookings(
		[]scheduling.BookedInterval{{StartTime: tod("09:00"), EndTime: tod("09:30")}},
		[]scheduling.BookedInterval{{StartTime: tod("10:00"), EndTime: tod("10:30")}},
	)

	expires := fixed.Add(10 * time.Minute)
	apptID := uuid.New()
	f.repo.On("CreatePendingAppointment", mock.Anything, mock.MatchedBy(func(in NewAppointment) bool {
		return in.DoctorID == f.req.DoctorID &&
			in.Date.Equal(monday) &&
			in.StartTime == tod("09:30") &&
			in.EndTime == tod("10:00") &&
			in.ExpiresAt.Equal(expires) &&
			len(in.Tasks) == 1
	})).Return(&Appointment{
		ID:        apptID,
		DoctorID:  f.req.DoctorID,
		OfficeID:  f.req.OfficeID,
		Date:      monday,
		StartTime: tod("09:30"),
		EndTime:   tod("10:00"),
		Status:    StatusPending,
		ExpiresAt: &expires,
	}, nil).Once()

	conf, err := f.svc.SubmitBooking(context.Background(), f.req)
	require.NoError(t, err)
	assert.Equal(t, apptID, conf.AppointmentID)
	assert.Equal(t, "pending", conf.Status)
	assert.Equal(t, "2024-01-15", conf.Date)
	assert.Equal(t, tod("10:00"), conf.EndTime)

	require.Len(t, f.locker.seen, 1)
	assert.ElementsMatch(t, []string{
		redisclient.DoctorDayKey(f.req.DoctorID, monday),
		redisclient.OfficeDayKey(f.req.OfficeID, monday),
	}, f.locker.seen[0])

	f.repo.AssertCalled(t, "InsertEvent", mock.Anything, mock.MatchedBy(func(ev EventLog) bool {
		return ev.EventType == EventAppointmentCreated && *ev.AppointmentID == apptID
	}))
}

func TestNewAppointmentTasks(t *testing.T) {
	templateID := uuid.New()
	customID := uuid.New()
	tasks := []scheduling.MedicalTask{
		{ID: templateID, Description: "intake", EstimatedTime: 10, TemplateID: &templateID},
		{ID: customID, Description: "ecg", EstimatedTime: 20, Responsible: "nurse", Status: scheduling.TaskCompleted},
	}

	rows := newAppointmentTasks(tasks)
	require.Len(t, rows, 2)

	assert.NotEqual(t, templateID, rows[0].ID)
	assert.NotEqual(t, uuid.Nil, rows[0].ID)
	require.NotNil(t, rows[0].TemplateTaskID)
	assert.Equal(t, templateID, *rows[0].TemplateTaskID)
	assert.Equal(t, scheduling.TaskPending, rows[0].Status)
	assert.Equal(t, 0, rows[0].Position)

	assert.NotEqual(t, customID, rows[1].ID)
	assert.Nil(t, rows[1].TemplateTaskID)
	assert.Equal(t, scheduling.TaskCompleted, rows[1].Status)
	assert.Equal(t, "nurse", rows[1].Responsible)
	assert.Equal(t, 1, rows[1].Position)

	again := newAppointmentTasks(tasks)
	assert.NotEqual(t, rows[0].ID, again[0].ID)
	assert.Empty(t, newAppointmentTasks(nil))
}

func TestSubmitBooking_TemplateTasksGetFreshRowIDs(t *testing.T) {
	f := newBookingFixture(t)
	f.withWindows(mondayWindow())
	f.withBookings(nil, nil)

	templateID := uuid.New()
	f.req.Tasks = []scheduling.MedicalTask{
		{ID: templateID, Description: "intake", EstimatedTime: 15, TemplateID: &templateID},
	}

	var created []NewAppointment
	f.repo.On("CreatePendingAppointment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			created = append(created, args.Get(1).(NewAppointment))
		}).
		Return(&Appointment{ID: uuid.New(), Date: monday, Status: StatusPending}, nil)

	_, err := f.svc.SubmitBooking(context.Background(), f.req)
	require.NoError(t, err)
	_, err = f.svc.SubmitBooking(context.Background(), f.req)
	require.NoError(t, err)

	require.Len(t, created, 2)
	first, second := created[0].Tasks, created[1].Tasks
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, templateID, first[0].ID)
	assert.Equal(t, &templateID, first[0].TemplateTaskID)
	assert.Equal(t, &templateID, second[0].TemplateTaskID)
}

func TestSubmitBooking_DoctorOverlap(t *testing.T) {
	f := newBookingFixture(t)
	f.withWindows(mondayWindow())
	f.withBookings([]scheduling.BookedInterval{{StartTime: tod("09:45"), EndTime: tod("10:15")}}, nil)

	_, err := f.svc.SubmitBooking(context.Background(), f.req)
	assert.ErrorIs(t, err, scheduling.ErrBookingConflict)
	f.repo.AssertNotCalled(t, "CreatePendingAppointment", mock.Anything, mock.Anything)
}

func TestSubmitBooking_OfficeOverlap(t *testing.T) {
	f := newBookingFixture(t)
	f.withWindows(mondayWindow())
	f.withBookings(nil, []scheduling.BookedInterval{{StartTime: tod("09:00"), EndTime: tod("09:45")}})

	_, err := f.svc.SubmitBooking(context.Background(), f.req)
	assert.ErrorIs(t, err, scheduling.ErrBookingConflict)
	f.repo.AssertNotCalled(t, "CreatePendingAppointment", mock.Anything, mock.Anything)
}

func TestSubmitBooking_OutsideAvailability(t *testing.T) {
	tests := []struct {
		name    string
		windows []scheduling.AvailabilityWindow
	}{
		{"no window", nil},
		{"inactive", []scheduling.AvailabilityWindow{{
			DayOfWeek: scheduling.Monday, StartTime: tod("09:00"), EndTime: tod("12:00"), Status: scheduling.WindowInactive,
		}}},
		{"window too short", []scheduling.AvailabilityWindow{{
			DayOfWeek: scheduling.Monday, StartTime: tod("09:00"), EndTime: tod("09:45"), Status: scheduling.WindowActive,
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t)
			f.withWindows(tt.windows...)

			_, err := f.svc.SubmitBooking(context.Background(), f.req)
			assert.ErrorIs(t, err, ErrOutsideAvailability)
			assert.ErrorIs(t, err, scheduling.ErrBookingConflict)
		})
	}
}

func TestSubmitBooking_LockBusy(t *testing.T) {
	f := newBookingFixture(t)
	f.locker.held[redisclient.OfficeDayKey(f.req.OfficeID, monday)] = true

	_, err := f.svc.SubmitBooking(context.Background(), f.req)
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
	f.repo.AssertNotCalled(t, "ListAvailabilityWindows", mock.Anything, mock.Anything)
}

func TestSubmitBooking_UnknownReferences(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, newMemLocker())
	req := scheduling.BookingRequest{DoctorID: uuid.New(), StartTime: tod("09:00"), Duration: 30, Date: monday}
	repo.On("GetDoctorByID", mock.Anything, req.DoctorID).Return(nil, ErrDoctorNotFound)

	_, err := svc.SubmitBooking(context.Background(), req)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = svc.SubmitBooking(context.Background(), scheduling.BookingRequest{StartTime: tod("23:50"), Duration: 30})
	assert.ErrorIs(t, err, ErrInvalidBooking)
}

func TestSubmitBooking_ConcurrentSameSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.withWindows(mondayWindow())

	var mu sync.Mutex
	var booked []scheduling.BookedInterval
	f.repo.On("ListDoctorBookedIntervals", mock.Anything, f.req.DoctorID, monday, fixed).
		Return(func(context.Context, uuid.UUID, time.Time, time.Time) []scheduling.BookedInterval {
			mu.Lock()
			defer mu.Unlock()
			return append([]scheduling.BookedInterval{}, booked...)
		}, nil)
	f.repo.On("ListOfficeBookedIntervals", mock.Anything, f.req.OfficeID, monday, fixed).
		Return([]scheduling.BookedInterval{}, nil).Maybe()
	f.repo.On("CreatePendingAppointment", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(1).(NewAppointment)
			mu.Lock()
			booked = append(booked, scheduling.BookedInterval{StartTime: in.StartTime, EndTime: in.EndTime})
			mu.Unlock()
		}).
		Return(&Appointment{ID: uuid.New(), Date: monday, Status: StatusPending}, nil)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitBooking(context.Background(), f.req)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		assert.True(t,
			errors.Is(err, scheduling.ErrBookingConflict) || errors.Is(err, ErrSlotBeingBooked),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, success)
}

func TestConfirmAppointment(t *testing.T) {
	id := uuid.New()
	future := fixed.Add(time.Minute)
	past := fixed.Add(-time.Minute)

	tests := []struct {
		name    string
		current *Appointment
		wantErr error
	}{
		{"pending", &Appointment{ID: id, Status: StatusPending, ExpiresAt: &future}, nil},
		{"pending past expiry", &Appointment{ID: id, Status: StatusPending, ExpiresAt: &past}, ErrAppointmentExpiredState},
		{"expired", &Appointment{ID: id, Status: StatusExpired}, ErrAppointmentExpiredState},
		{"confirmed", &Appointment{ID: id, Status: StatusConfirmed}, ErrInvalidStatusTransition},
		{"cancelled", &Appointment{ID: id, Status: StatusCancelled}, ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			svc := newTestService(repo, newMemLocker())
			repo.On("GetAppointmentByID", mock.Anything, id).Return(tt.current, nil)
			repo.On("InsertEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
			repo.On("UpdateAppointmentStatus", mock.Anything, id, StatusPending, StatusConfirmed).
				Return(&Appointment{ID: id, Status: StatusConfirmed}, nil).Maybe()
			repo.On("UpdateAppointmentStatus", mock.Anything, id, StatusPending, StatusExpired).
				Return(&Appointment{ID: id, Status: StatusExpired}, nil).Maybe()

			got, err := svc.ConfirmAppointment(context.Background(), id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusConfirmed, got.Status)
		})
	}
}

func TestConfirmAppointment_NotFound(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, newMemLocker())
	id := uuid.New()
	repo.On("GetAppointmentByID", mock.Anything, id).Return(nil, ErrAppointmentNotFound)

	_, err := svc.ConfirmAppointment(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelAppointment(t *testing.T) {
	id := uuid.New()

	repo := &mockRepository{}
	svc := newTestService(repo, newMemLocker())
	repo.On("GetAppointmentByID", mock.Anything, id).Return(&Appointment{ID: id, Status: StatusConfirmed}, nil).Once()
	repo.On("UpdateAppointmentStatus", mock.Anything, id, StatusConfirmed, StatusCancelled).
		Return(&Appointment{ID: id, Status: StatusCancelled}, nil).Once()
	repo.On("InsertEvent", mock.Anything, mock.MatchedBy(func(ev EventLog) bool {
		return ev.EventType == EventAppointmentCancelled
	})).Return(nil).Once()

	got, err := svc.CancelAppointment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	repo.On("GetAppointmentByID", mock.Anything, id).Return(&Appointment{ID: id, Status: StatusCancelled}, nil).Once()
	_, err = svc.CancelAppointment(context.Background(), id)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	repo.AssertExpectations(t)
}

func TestExpirePendingAppointments(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, newMemLocker())

	a, b := uuid.New(), uuid.New()
	repo.On("FindExpiredPending", mock.Anything, fixed).Return([]Appointment{{ID: a}, {ID: b}}, nil)
	repo.On("UpdateAppointmentStatus", mock.Anything, a, StatusPending, StatusExpired).
		Return(&Appointment{ID: a, Status: StatusExpired}, nil)
	repo.On("UpdateAppointmentStatus", mock.Anything, b, StatusPending, StatusExpired).
		Return(nil, ErrAppointmentNotFound)
	repo.On("InsertEvent", mock.Anything, mock.Anything).Return(nil).Once()

	n, err := svc.ExpirePendingAppointments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	repo.AssertExpectations(t)
}

func TestDirectoryLookups(t *testing.T) {
	repo := &mockRepository{}
	svc := newTestService(repo, newMemLocker())
	ctx := context.Background()

	typeID := uuid.New()
	repo.On("GetAppointmentTypeByID", mock.Anything, typeID).Return(nil, ErrAppointmentTypeNotFound).Once()
	_, err := svc.FetchTemplateTasks(ctx, typeID)
	assert.ErrorIs(t, err, ErrAppointmentTypeNotFound)

	docs, err := svc.FetchDoctorsByName(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, docs)
	repo.AssertNotCalled(t, "SearchDoctorsByName", mock.Anything, mock.Anything)

	doctorID := uuid.New()
	repo.On("ListDoctorBookedIntervals", mock.Anything, doctorID, monday, fixed).
		Return([]scheduling.BookedInterval{{StartTime: tod("09:00"), EndTime: tod("09:30")}}, nil).Once()
	booked, err := svc.FetchBookedIntervals(ctx, doctorID, monday.Add(15*time.Hour))
	require.NoError(t, err)
	assert.Len(t, booked, 1)
}
