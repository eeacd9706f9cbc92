package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
	"github.com/hackgods/clinic-scheduling/internal/session"
)

// AppointmentService is the part of clinic.Service the HTTP layer calls directly.
type AppointmentService interface {
	ListSpecialities(ctx context.Context) ([]clinic.Speciality, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*clinic.AppointmentDetail, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)
}

// sessionHandler wraps a handler that acts on one session and answers with its view.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session) error

func withSession(reg *session.Registry, logger *zap.Logger, h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		sess, err := reg.Get(id)
		if err != nil {
			handleSessionError(w, err)
			return
		}

		if err := h(w, r, sess); err != nil {
			var bad badRequest
			if errors.As(err, &bad) {
				writeError(w, http.StatusBadRequest, bad.code, bad.details)
				return
			}
			if !errors.Is(err, session.ErrStaleSelection) {
				logger.Debug("session operation rejected",
					zap.String("session_id", id.String()),
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err),
				)
			}
			handleSessionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sess.View())
	}
}

type badRequest struct {
	code    string
	details string
}

func (b badRequest) Error() string { return b.code + ": " + b.details }

func parseUUIDField(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, badRequest{"invalid_" + field, field + " must be a valid UUID"}
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	if err := decodeJSON(r, v); err != nil {
		return badRequest{"invalid_request_body", err.Error()}
	}
	return nil
}

func createSessionHandler(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := reg.Create()
		writeJSON(w, http.StatusCreated, sess.View())
	}
}

func deleteSessionHandler(reg *session.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}
		if err := reg.Delete(id); err != nil {
			handleSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getSession(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	return nil
}

func setSpeciality(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SetSpecialityRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	if req.SpecialityID == nil {
		return sess.SetSpeciality(r.Context(), nil)
	}
	id, err := parseUUIDField(*req.SpecialityID, "speciality_id")
	if err != nil {
		return err
	}
	return sess.SetSpeciality(r.Context(), &id)
}

func searchDoctors(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SearchDoctorsRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	return sess.SearchDoctors(r.Context(), req.Term)
}

func selectDoctor(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SelectDoctorRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	id, err := parseUUIDField(req.DoctorID, "doctor_id")
	if err != nil {
		return err
	}
	return sess.SelectDoctor(r.Context(), id)
}

func setDate(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SetDateRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return badRequest{"invalid_date", "date must be YYYY-MM-DD"}
	}
	return sess.SetDate(r.Context(), date)
}

func selectSlot(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SelectSlotRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	start, err := scheduling.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return badRequest{"invalid_start_time", "start_time must be HH:MM"}
	}
	return sess.SelectTimeSlot(r.Context(), start)
}

func selectOffice(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SelectOfficeRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	id, err := parseUUIDField(req.OfficeID, "office_id")
	if err != nil {
		return err
	}
	return sess.SelectOffice(id)
}

func setAppointmentType(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SetAppointmentTypeRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	id, err := parseUUIDField(req.AppointmentTypeID, "appointment_type_id")
	if err != nil {
		return err
	}
	return sess.SetAppointmentType(r.Context(), id)
}

func setPatientHistory(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req SetPatientHistoryRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	id, err := parseUUIDField(req.PatientHistoryID, "patient_history_id")
	if err != nil {
		return err
	}
	sess.SetPatientHistory(id)
	return nil
}

func addTask(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	var req TaskRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	_, err := sess.AddTask(req.task())
	return err
}

func updateTask(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	index, err := intParam(r, "index")
	if err != nil {
		return badRequest{"invalid_task_index", "index must be an integer"}
	}
	var req TaskRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}
	return sess.UpdateTask(index, req.task())
}

func removeTask(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	index, err := intParam(r, "index")
	if err != nil {
		return badRequest{"invalid_task_index", "index must be an integer"}
	}
	return sess.RemoveTask(index)
}

func refreshSlots(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	return sess.RefreshSlots(r.Context())
}

func bookHandler(reg *session.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}
		sess, err := reg.Get(id)
		if err != nil {
			handleSessionError(w, err)
			return
		}

		conf, err := sess.Book(r.Context())
		if err != nil {
			logger.Info("booking rejected",
				zap.String("session_id", id.String()),
				zap.String("request_id", GetRequestID(r.Context())),
				zap.Error(err),
			)
			handleSessionError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, conf)
	}
}

func listSpecialitiesHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialities, err := svc.ListSpecialities(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		resp := make([]SpecialityResponse, 0, len(specialities))
		for _, s := range specialities {
			resp = append(resp, SpecialityResponse{ID: s.ID, Name: s.Name})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentDetailResponse(detail))
	}
}

func confirmAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return appointmentTransition(svc.ConfirmAppointment)
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return appointmentTransition(svc.CancelAppointment)
}

func appointmentTransition(fn func(ctx context.Context, id uuid.UUID) (*clinic.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := fn(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, clinic.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "doctor or office is currently being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrBookingConflict):
		writeError(w, http.StatusConflict, "booking_conflict", err.Error())
	case errors.Is(err, session.ErrStaleSelection):
		writeError(w, http.StatusConflict, "stale_selection", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrNotACandidate):
		writeError(w, http.StatusBadRequest, "not_a_candidate", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTask):
		writeError(w, http.StatusBadRequest, "invalid_task", err.Error())
	case errors.Is(err, clinic.ErrInvalidBooking):
		writeError(w, http.StatusBadRequest, "invalid_booking", err.Error())
	case errors.Is(err, scheduling.ErrTaskIndexOutOfRange),
		errors.Is(err, scheduling.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, "task_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPreconditionViolation):
		writeError(w, http.StatusConflict, "precondition_violation", err.Error())
	case errors.Is(err, clinic.ErrDoctorNotFound),
		errors.Is(err, clinic.ErrOfficeNotFound),
		errors.Is(err, clinic.ErrAppointmentTypeNotFound),
		errors.Is(err, clinic.ErrPatientHistoryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, session.ErrFetchFailure):
		writeError(w, http.StatusBadGateway, "fetch_failure", err.Error())
	case errors.Is(err, session.ErrBookingFailed):
		writeError(w, http.StatusBadGateway, "booking_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleAppointmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentExpiredState):
		writeError(w, http.StatusConflict, "appointment_expired", err.Error())
	case errors.Is(err, clinic.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
