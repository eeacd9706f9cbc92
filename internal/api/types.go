package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/clinic"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

type SetSpecialityRequest struct {
	SpecialityID *string `json:"speciality_id"`
}

type SearchDoctorsRequest struct {
	Term string `json:"term"`
}

type SelectDoctorRequest struct {
	DoctorID string `json:"doctor_id"`
}

type SetDateRequest struct {
	Date string `json:"date"`
}

type SelectSlotRequest struct {
	StartTime string `json:"start_time"`
}

type SelectOfficeRequest struct {
	OfficeID string `json:"office_id"`
}

type SetAppointmentTypeRequest struct {
	AppointmentTypeID string `json:"appointment_type_id"`
}

type SetPatientHistoryRequest struct {
	PatientHistoryID string `json:"patient_history_id"`
}

type TaskRequest struct {
	Description   string `json:"description"`
	EstimatedTime int    `json:"estimated_time"`
	Responsible   string `json:"responsible"`
}

func (r TaskRequest) task() scheduling.MedicalTask {
	return scheduling.MedicalTask{
		Description:   r.Description,
		EstimatedTime: r.EstimatedTime,
		Responsible:   r.Responsible,
	}
}

type AppointmentResponse struct {
	ID                uuid.UUID  `json:"id"`
	DoctorID          uuid.UUID  `json:"doctor_id"`
	OfficeID          uuid.UUID  `json:"office_id"`
	PatientHistoryID  uuid.UUID  `json:"patient_history_id"`
	AppointmentTypeID uuid.UUID  `json:"appointment_type_id"`
	Date              string     `json:"date"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	Status            string     `json:"status"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Doctor *scheduling.Doctor       `json:"doctor,omitempty"`
	Office *scheduling.Office       `json:"office,omitempty"`
	Tasks  []scheduling.MedicalTask `json:"tasks"`
}

type SpecialityResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *clinic.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                a.ID,
		DoctorID:          a.DoctorID,
		OfficeID:          a.OfficeID,
		PatientHistoryID:  a.PatientHistoryID,
		AppointmentTypeID: a.AppointmentTypeID,
		Date:              a.Date.Format(scheduling.DateLayout),
		StartTime:         a.StartTime.String(),
		EndTime:           a.EndTime.String(),
		Status:            string(a.Status),
		ExpiresAt:         a.ExpiresAt,
	}
}

func toAppointmentDetailResponse(d *clinic.AppointmentDetail) AppointmentDetailResponse {
	tasks := d.Tasks
	if tasks == nil {
		tasks = []scheduling.MedicalTask{}
	}
	return AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		Doctor:              d.Doctor,
		Office:              d.Office,
		Tasks:               tasks,
	}
}
