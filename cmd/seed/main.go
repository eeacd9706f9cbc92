package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

var specialities = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

type templateTask struct {
	description string
	minutes     int
	responsible string
}

var appointmentTypes = map[string][]templateTask{
	"Consultation": {
		{"Intake interview", 10, "nurse"},
		{"Examination", 15, "doctor"},
	},
	"Follow-up": {
		{"Review results", 10, "doctor"},
	},
	"Annual check-up": {
		{"Vitals", 10, "nurse"},
		{"Blood draw", 10, "nurse"},
		{"Full examination", 30, "doctor"},
	},
	"Minor procedure": {
		{"Preparation", 15, "nurse"},
		{"Procedure", 45, "doctor"},
		{"Recovery check", 15, "nurse"},
	},
}

var weekdays = []scheduling.Weekday{
	scheduling.Monday,
	scheduling.Tuesday,
	scheduling.Wednesday,
	scheduling.Thursday,
	scheduling.Friday,
	scheduling.Saturday,
}

func main() {
	doctors := flag.Int("doctors", 100, "number of doctors")
	offices := flag.Int("offices", 30, "number of offices")
	patients := flag.Int("patients", 9000, "number of patients")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.Env).Named("seed")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	gofakeit.Seed(0)

	s := &seeder{pool: pool, log: log}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"specialities", s.seedSpecialities},
		{"doctors", func(ctx context.Context) error { return s.seedDoctors(ctx, *doctors) }},
		{"offices", func(ctx context.Context) error { return s.seedOffices(ctx, *offices) }},
		{"appointment types", s.seedAppointmentTypes},
		{"patients", func(ctx context.Context) error { return s.seedPatients(ctx, *patients) }},
	}
	for _, step := range steps {
		if err := step.fn(context.Background()); err != nil {
			log.Fatal("seed failed", zap.String("step", step.name), zap.Error(err))
		}
	}

	log.Info("seed complete")
}

type seeder struct {
	pool         *pgxpool.Pool
	log          *zap.Logger
	specialityID []uuid.UUID
}

func (s *seeder) seedSpecialities(ctx context.Context) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, name := range specialities {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO specialities (id, name) VALUES ($1, $2)
			`, id, name)
			if err != nil {
				return err
			}
			s.specialityID = append(s.specialityID, id)
		}
		s.log.Info("specialities seeded", zap.Int("count", len(specialities)))
		return nil
	})
}

func (s *seeder) seedDoctors(ctx context.Context, count int) error {
	s.log.Info("seeding doctors", zap.Int("count", count))

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			id := uuid.New()
			name := "Dr. " + gofakeit.Name()
			email := fmt.Sprintf("%s.%d@clinic.test", strings.ToLower(gofakeit.LastName()), i)
			speciality := s.specialityID[gofakeit.Number(0, len(s.specialityID)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, name, email, speciality_id, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, id, name, email, speciality)
			if err != nil {
				return err
			}

			if err := seedWindows(ctx, tx, id); err != nil {
				return fmt.Errorf("windows for doctor %s: %w", id, err)
			}
		}
		return nil
	})
}

// seedWindows gives a doctor three to five working days, occasionally with an INACTIVE window listed first.
func seedWindows(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID) error {
	days := gofakeit.Number(3, 5)
	offset := gofakeit.Number(0, len(weekdays)-1)
	position := 0

	for i := 0; i < days; i++ {
		day := weekdays[(offset+i)%len(weekdays)]
		start := scheduling.NewTimeOfDay(gofakeit.Number(7, 10), 15*gofakeit.Number(0, 3))
		end := start.Add(60 * gofakeit.Number(3, 6))

		if gofakeit.Number(1, 10) == 1 {
			if err := insertWindow(ctx, tx, doctorID, day, start, end, scheduling.WindowInactive, position); err != nil {
				return err
			}
			position++
		}
		if err := insertWindow(ctx, tx, doctorID, day, start, end, scheduling.WindowActive, position); err != nil {
			return err
		}
		position++
	}
	return nil
}

func insertWindow(
	ctx context.Context,
	tx pgx.Tx,
	doctorID uuid.UUID,
	day scheduling.Weekday,
	start, end scheduling.TimeOfDay,
	status scheduling.WindowStatus,
	position int,
) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO availability_windows (id, doctor_id, day_of_week, start_minute, end_minute, status, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), doctorID, string(day), int(start), int(end), string(status), position)
	return err
}

func (s *seeder) seedOffices(ctx context.Context, count int) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			floor := i/10 + 1
			name := fmt.Sprintf("Room %d%02d", floor, i%10+1)
			_, err := tx.Exec(ctx, `
				INSERT INTO offices (id, name, floor) VALUES ($1, $2, $3)
			`, uuid.New(), name, floor)
			if err != nil {
				return err
			}
		}
		s.log.Info("offices seeded", zap.Int("count", count))
		return nil
	})
}

func (s *seeder) seedAppointmentTypes(ctx context.Context) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for name, tasks := range appointmentTypes {
			typeID := uuid.New()
			if _, err := tx.Exec(ctx, `
				INSERT INTO appointment_types (id, name) VALUES ($1, $2)
			`, typeID, name); err != nil {
				return err
			}

			batch := &pgx.Batch{}
			for i, t := range tasks {
				batch.Queue(`
					INSERT INTO appointment_type_tasks (id, appointment_type_id, description, estimated_minutes, responsible, position)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, uuid.New(), typeID, t.description, t.minutes, t.responsible, i)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("template tasks for %q: %w", name, err)
			}
		}
		s.log.Info("appointment types seeded", zap.Int("count", len(appointmentTypes)))
		return nil
	})
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	s.log.Info("seeding patients", zap.Int("count", count))

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				patientID := uuid.New()
				email := fmt.Sprintf("%s.%d@%s", strings.ToLower(gofakeit.FirstName()), i, gofakeit.DomainName())

				if _, err := tx.Exec(ctx, `
					INSERT INTO patients (id, name, email, created_at)
					VALUES ($1, $2, $3, now())
				`, patientID, gofakeit.Name(), email); err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, `
					INSERT INTO patient_histories (id, patient_id, created_at)
					VALUES ($1, $2, now())
				`, uuid.New(), patientID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		s.log.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}
