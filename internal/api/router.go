package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/session"
)

type RouterConfig struct {
	Sessions     *session.Registry
	Appointments AppointmentService
	Health       *HealthHandler
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	r.Get("/specialities", listSpecialitiesHandler(cfg.Appointments))

	reg, log := cfg.Sessions, cfg.Logger
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", createSessionHandler(reg))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", withSession(reg, log, getSession))
			r.Delete("/", deleteSessionHandler(reg))
			r.Put("/speciality", withSession(reg, log, setSpeciality))
			r.Put("/search", withSession(reg, log, searchDoctors))
			r.Put("/doctor", withSession(reg, log, selectDoctor))
			r.Put("/date", withSession(reg, log, setDate))
			r.Put("/slot", withSession(reg, log, selectSlot))
			r.Post("/slots/refresh", withSession(reg, log, refreshSlots))
			r.Put("/office", withSession(reg, log, selectOffice))
			r.Put("/appointment-type", withSession(reg, log, setAppointmentType))
			r.Put("/patient-history", withSession(reg, log, setPatientHistory))
			r.Post("/tasks", withSession(reg, log, addTask))
			r.Put("/tasks/{index}", withSession(reg, log, updateTask))
			r.Delete("/tasks/{index}", withSession(reg, log, removeTask))
			r.Post("/book", bookHandler(reg, log))
		})
	})

	r.Route("/appointments/{id}", func(r chi.Router) {
		r.Get("/", getAppointmentHandler(cfg.Appointments))
		r.Post("/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/cancel", cancelAppointmentHandler(cfg.Appointments))
	})

	return r
}
