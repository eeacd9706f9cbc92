package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// activeBooking matches appointments that still hold their doctor and office. $now is the
// placeholder number of the current time in the enclosing query.
func activeBooking(alias string, now int) string {
	return fmt.Sprintf(`(%[1]s.status = 'confirmed' OR (%[1]s.status = 'pending' AND (%[1]s.expires_at IS NULL OR %[1]s.expires_at > $%[2]d)))`, alias, now)
}

// Helpers

func scanDoctor(row pgx.Row) (*scheduling.Doctor, error) {
	var d scheduling.Doctor

	err := row.Scan(&d.ID, &d.Name, &d.SpecialityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanOffice(row pgx.Row) (*scheduling.Office, error) {
	var o scheduling.Office

	err := row.Scan(&o.ID, &o.Name, &o.Floor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOfficeNotFound
		}
		return nil, err
	}
	return &o, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start, end int
	var expiresAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.OfficeID,
		&a.PatientHistoryID,
		&a.AppointmentTypeID,
		&a.Date,
		&start,
		&end,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartTime = scheduling.TimeOfDay(start)
	a.EndTime = scheduling.TimeOfDay(end)
	a.ExpiresAt = expiresAt
	return &a, nil
}

const appointmentColumns = `id, doctor_id, office_id, patient_history_id, appointment_type_id,
		       date, start_minute, end_minute, status, created_at, updated_at, expires_at`

func collectDoctors(rows pgx.Rows) ([]scheduling.Doctor, error) {
	defer rows.Close()

	result := []scheduling.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectIntervals(rows pgx.Rows) ([]scheduling.BookedInterval, error) {
	defer rows.Close()

	result := []scheduling.BookedInterval{}
	for rows.Next() {
		var start, end int
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		result = append(result, scheduling.BookedInterval{
			StartTime: scheduling.TimeOfDay(start),
			EndTime:   scheduling.TimeOfDay(end),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectTasks(rows pgx.Rows) ([]scheduling.MedicalTask, error) {
	defer rows.Close()

	result := []scheduling.MedicalTask{}
	for rows.Next() {
		var t scheduling.MedicalTask
		if err := rows.Scan(&t.ID, &t.Description, &t.EstimatedTime, &t.Responsible, &t.Status, &t.TemplateID); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// escapeLike quotes the LIKE metacharacters of a user search term.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Interface methods

func (r *PgRepository) ListSpecialities(ctx context.Context) ([]Speciality, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM specialities ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Speciality{}
	for rows.Next() {
		var s Speciality
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListDoctorsBySpeciality(ctx context.Context, specialityID uuid.UUID) ([]scheduling.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, speciality_id
		FROM doctors
		WHERE speciality_id = $1
		ORDER BY name
	`, specialityID)
	if err != nil {
		return nil, err
	}
	return collectDoctors(rows)
}

func (r *PgRepository) SearchDoctorsByName(ctx context.Context, term string) ([]scheduling.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, speciality_id
		FROM doctors
		WHERE lower(name) LIKE '%' || lower($1) || '%'
		ORDER BY name
		LIMIT 50
	`, escapeLike(term))
	if err != nil {
		return nil, err
	}
	return collectDoctors(rows)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, speciality_id
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// ListAvailabilityWindows returns windows in their stored order; the first matching window
// for a weekday wins, so the order is part of the data.
func (r *PgRepository) ListAvailabilityWindows(ctx context.Context, doctorID uuid.UUID) ([]scheduling.AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day_of_week, start_minute, end_minute, status
		FROM availability_windows
		WHERE doctor_id = $1
		ORDER BY position, id
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []scheduling.AvailabilityWindow{}
	for rows.Next() {
		var day, status string
		var start, end int
		if err := rows.Scan(&day, &start, &end, &status); err != nil {
			return nil, err
		}
		result = append(result, scheduling.AvailabilityWindow{
			DayOfWeek: scheduling.Weekday(day),
			StartTime: scheduling.TimeOfDay(start),
			EndTime:   scheduling.TimeOfDay(end),
			Status:    scheduling.WindowStatus(status),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetOfficeByID(ctx context.Context, id uuid.UUID) (*scheduling.Office, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, floor
		FROM offices
		WHERE id = $1
	`, id)
	return scanOffice(row)
}

func (r *PgRepository) ListAvailableOffices(ctx context.Context, date time.Time, start, end scheduling.TimeOfDay, now time.Time) ([]scheduling.Office, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.name, o.floor
		FROM offices o
		WHERE NOT EXISTS (
			SELECT 1
			FROM appointments a
			WHERE a.office_id = o.id
			  AND a.date = $1
			  AND a.start_minute < $3
			  AND a.end_minute > $2
			  AND `+activeBooking("a", 4)+`
		)
		ORDER BY o.floor NULLS LAST, o.name
	`, date, int(start), int(end), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []scheduling.Office{}
	for rows.Next() {
		o, err := scanOffice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetAppointmentTypeByID(ctx context.Context, id uuid.UUID) (*AppointmentType, error) {
	var t AppointmentType
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM appointment_types
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentTypeNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) ListTemplateTasks(ctx context.Context, appointmentTypeID uuid.UUID) ([]scheduling.MedicalTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, estimated_minutes, responsible, 'PENDING', id
		FROM appointment_type_tasks
		WHERE appointment_type_id = $1
		ORDER BY position, id
	`, appointmentTypeID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *PgRepository) GetPatientHistoryByID(ctx context.Context, id uuid.UUID) (*PatientHistory, error) {
	var h PatientHistory
	err := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, created_at
		FROM patient_histories
		WHERE id = $1
	`, id).Scan(&h.ID, &h.PatientID, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientHistoryNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *PgRepository) ListDoctorBookedIntervals(ctx context.Context, doctorID uuid.UUID, date, now time.Time) ([]scheduling.BookedInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.start_minute, a.end_minute
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.date = $2
		  AND `+activeBooking("a", 3)+`
		ORDER BY a.start_minute
	`, doctorID, date, now)
	if err != nil {
		return nil, err
	}
	return collectIntervals(rows)
}

func (r *PgRepository) ListOfficeBookedIntervals(ctx context.Context, officeID uuid.UUID, date, now time.Time) ([]scheduling.BookedInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.start_minute, a.end_minute
		FROM appointments a
		WHERE a.office_id = $1
		  AND a.date = $2
		  AND `+activeBooking("a", 3)+`
		ORDER BY a.start_minute
	`, officeID, date, now)
	if err != nil {
		return nil, err
	}
	return collectIntervals(rows)
}

// CreatePendingAppointment inserts the appointment and its task list in one transaction.
func (r *PgRepository) CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	var created *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, doctor_id, office_id, patient_history_id, appointment_type_id,
			                          date, start_minute, end_minute, status, created_at, updated_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now(), $9)
			RETURNING `+appointmentColumns,
			uuid.New(), in.DoctorID, in.OfficeID, in.PatientHistoryID, in.AppointmentTypeID,
			in.Date, int(in.StartTime), int(in.EndTime), in.ExpiresAt)

		appt, err := scanAppointment(row)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		batch := &pgx.Batch{}
		for _, t := range in.Tasks {
			batch.Queue(`
				INSERT INTO appointment_tasks (id, appointment_id, template_task_id, description,
				                               estimated_minutes, responsible, status, position)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, t.ID, appt.ID, t.TemplateTaskID, t.Description, t.EstimatedTime, t.Responsible, string(t.Status), t.Position)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert appointment tasks: %w", err)
			}
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	doctor, err := r.GetDoctorByID(ctx, appt.DoctorID)
	if err != nil && !errors.Is(err, ErrDoctorNotFound) {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	detail.Doctor = doctor

	office, err := r.GetOfficeByID(ctx, appt.OfficeID)
	if err != nil && !errors.Is(err, ErrOfficeNotFound) {
		return nil, fmt.Errorf("load office: %w", err)
	}
	detail.Office = office

	rows, err := r.pool.Query(ctx, `
		SELECT id, description, estimated_minutes, responsible, status, template_task_id
		FROM appointment_tasks
		WHERE appointment_id = $1
		ORDER BY position
	`, appt.ID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	detail.Tasks, err = collectTasks(rows)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	return detail, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from))

	return scanAppointment(row)
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, COALESCE($3, '{}'::jsonb), COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
