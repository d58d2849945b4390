package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dentix/clinic-scheduling/internal/schedule"
	"github.com/dentix/clinic-scheduling/internal/session"
)

func getSlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		date, err := schedule.NormalizeStrict(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		apptType := schedule.AppointmentType(r.URL.Query().Get("type"))

		var excludeID *uuid.UUID
		if raw := r.URL.Query().Get("exclude"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude must be a valid UUID")
				return
			}
			excludeID = &id
		}

		slots, err := svc.AvailableSlots(r.Context(), sess, doctorID, date, apptType, excludeID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotsResponse(doctorID, date, slots))
	}
}

func bookAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookReq, err := buildBookRequest(req)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		appt, err := svc.Book(r.Context(), sess, *bookReq)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// bookLegacyHandler accepts the older client payload shapes (nested or flat
// actor references, loose date encodings) and funnels them through the
// normalization adapter before booking.
func bookLegacyHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rec, err := schedule.DecodeLegacyAppointment(raw)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		start, err := schedule.NormalizeStrict(rec.Start)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		patientID := rec.PatientID
		appt, err := svc.Book(r.Context(), sess, schedule.BookRequest{
			PatientID: &patientID,
			DoctorID:  rec.DoctorID,
			Start:     start,
			Type:      rec.Type,
			Case:      rec.Case,
			Notes:     rec.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Appointment(r.Context(), sess, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newStart, err := schedule.NormalizeStrict(req.StartDateTime)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		appt, err := svc.Reschedule(r.Context(), sess, id, newStart)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Cancel(r.Context(), sess, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), sess, id, schedule.Status(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func patientConflictHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		date, err := schedule.NormalizeStrict(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		var excludeID *uuid.UUID
		if raw := r.URL.Query().Get("exclude"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude must be a valid UUID")
				return
			}
			excludeID = &id
		}

		conflict, err := svc.CheckPatientConflict(r.Context(), sess, patientID, date, excludeID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := ConflictCheckResponse{Conflict: conflict != nil}
		if conflict != nil && conflict.Existing != nil {
			existing := toAppointmentResponse(conflict.Existing)
			resp.Existing = &existing
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func doctorAppointmentsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		date, err := optionalDate(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.DoctorAppointments(r.Context(), sess, doctorID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

func patientAppointmentsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := mustSession(w, r)
		if !ok {
			return
		}

		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}

		date, err := optionalDate(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.PatientAppointments(r.Context(), sess, patientID, date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentList(appts))
	}
}

// helpers

func mustSession(w http.ResponseWriter, r *http.Request) (schedule.Session, bool) {
	sess, err := session.FromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no_session", "request carries no session")
		return schedule.Session{}, false
	}
	return sess, true
}

func buildBookRequest(req BookAppointmentRequest) (*schedule.BookRequest, error) {
	start, err := schedule.NormalizeStrict(req.StartDateTime)
	if err != nil {
		return nil, err
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return nil, errInvalid("doctor_id must be a valid UUID")
	}

	out := schedule.BookRequest{
		DoctorID: doctorID,
		Start:    start,
		Type:     schedule.AppointmentType(req.AppointmentType),
		Case:     schedule.CaseType(req.CaseType),
		Notes:    req.Notes,
	}

	if req.PatientID != "" {
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			return nil, errInvalid("patient_id must be a valid UUID")
		}
		out.PatientID = &patientID
	}
	if req.UnregisteredName != "" || req.UnregisteredPhone != "" {
		out.Unregistered = &schedule.UnregisteredPatient{
			Name:  req.UnregisteredName,
			Phone: req.UnregisteredPhone,
		}
	}

	return &out, nil
}

func optionalDate(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return nil, nil
	}
	d, err := schedule.NormalizeStrict(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toAppointmentList(appts []schedule.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

func errInvalid(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Is(target error) bool {
	return target == schedule.ErrValidation
}

func handleServiceError(w http.ResponseWriter, err error) {
	if c, ok := schedule.AsConflict(err); ok {
		resp := ErrorResponse{
			Error:   "scheduling_conflict",
			Details: c.Error(),
			Reason:  string(c.Reason),
		}
		if c.Existing != nil {
			existing := toAppointmentResponse(c.Existing)
			resp.Conflicting = &existing
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, schedule.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, schedule.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", "please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
