package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dentix/clinic-scheduling/internal/schedule"
)

// BookAppointmentRequest is the tagged booking record. StartDateTime stays
// raw because legacy clients send it in several shapes; it goes through
// strict normalization before anything else happens. Either patient_id or
// the unregistered contact fields must be present.
type BookAppointmentRequest struct {
	PatientID         string          `json:"patient_id,omitempty"`
	UnregisteredName  string          `json:"unregistered_name,omitempty"`
	UnregisteredPhone string          `json:"unregistered_phone,omitempty"`
	DoctorID          string          `json:"doctor_id"`
	StartDateTime     json.RawMessage `json:"start_date_time"`
	AppointmentType   string          `json:"appointment_type"`
	CaseType          string          `json:"case_type"`
	Notes             *string         `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	StartDateTime json.RawMessage `json:"start_date_time"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	StartDateTime   string    `json:"start_date_time"`
	AppointmentType string    `json:"appointment_type"`
	CaseType        string    `json:"case_type"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes,omitempty"`
}

func toAppointmentResponse(a *schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		StartDateTime:   a.Start.Format("2006-01-02T15:04:05"),
		AppointmentType: string(a.Type),
		CaseType:        string(a.Case),
		Status:          string(a.Status),
		Notes:           a.Notes,
	}
}

type SlotPayload struct {
	Time      string `json:"time"` // HH:MM
	Available bool   `json:"available"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID     `json:"doctor_id"`
	Date     string        `json:"date"`
	Slots    []SlotPayload `json:"slots"`
}

func toSlotsResponse(doctorID uuid.UUID, date time.Time, slots []schedule.TimeSlot) SlotsResponse {
	payload := make([]SlotPayload, 0, len(slots))
	for _, s := range slots {
		payload = append(payload, SlotPayload{
			Time:      s.Start.Format("15:04"),
			Available: s.Available,
		})
	}
	return SlotsResponse{
		DoctorID: doctorID,
		Date:     date.Format("2006-01-02"),
		Slots:    payload,
	}
}

type ConflictCheckResponse struct {
	Conflict bool                 `json:"conflict"`
	Existing *AppointmentResponse `json:"existing,omitempty"`
}

type ErrorResponse struct {
	Error       string               `json:"error"`
	Details     string               `json:"details,omitempty"`
	Reason      string               `json:"reason,omitempty"`
	Conflicting *AppointmentResponse `json:"conflicting,omitempty"`
}
