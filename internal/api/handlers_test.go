package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentix/clinic-scheduling/internal/schedule"
	"github.com/dentix/clinic-scheduling/internal/session"
)

const testSecret = "handler-test-secret"

// stubRepo is a minimal in-memory schedule.Repository for router tests.
type stubRepo struct {
	appointments map[uuid.UUID]*schedule.Appointment
}

func newStubRepo() *stubRepo {
	return &stubRepo{appointments: map[uuid.UUID]*schedule.Appointment{}}
}

func (r *stubRepo) add(a schedule.Appointment) *schedule.Appointment {
	cp := a
	r.appointments[cp.ID] = &cp
	return &cp
}

func (r *stubRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*schedule.Patient, error) {
	return &schedule.Patient{ID: id}, nil
}

func (r *stubRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*schedule.Doctor, error) {
	return &schedule.Doctor{ID: id}, nil
}

func (r *stubRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, schedule.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *stubRepo) FetchForDoctor(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]schedule.Appointment, error) {
	var out []schedule.Appointment
	for _, a := range r.appointments {
		if a.DoctorID != doctorID {
			continue
		}
		if date != nil && !schedule.SameDay(a.Start, *date) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *stubRepo) FetchForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]schedule.Appointment, error) {
	var out []schedule.Appointment
	for _, a := range r.appointments {
		if a.PatientID != patientID {
			continue
		}
		if date != nil && !schedule.SameDay(a.Start, *date) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *stubRepo) Create(ctx context.Context, p schedule.CreateParams) (*schedule.Appointment, error) {
	patientID := uuid.New()
	if p.PatientID != nil {
		patientID = *p.PatientID
	}
	a := &schedule.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  p.DoctorID,
		Start:     p.Start,
		Type:      p.Type,
		Case:      p.Case,
		Status:    schedule.StatusPending,
		Notes:     p.Notes,
	}
	r.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *stubRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to schedule.Status) (*schedule.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, schedule.ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *stubRepo) UpdateTime(ctx context.Context, id uuid.UUID, newStart time.Time) (*schedule.Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, schedule.ErrAppointmentNotFound
	}
	a.Start = newStart
	cp := *a
	return &cp, nil
}

func (r *stubRepo) FindStalePending(ctx context.Context, now time.Time) ([]schedule.Appointment, error) {
	return nil, nil
}

func testDay(hour, minute int) time.Time {
	return time.Date(2025, time.May, 15, hour, minute, 0, 0, time.Local)
}

func newTestRouter(t *testing.T, repo schedule.Repository) http.Handler {
	t.Helper()
	svc := schedule.NewService(repo, nil, schedule.DefaultGridConfig(), zerolog.Nop()).
		WithClock(func() time.Time { return testDay(0, 0).AddDate(0, 0, -1) })
	return NewRouter(RouterConfig{
		Service:   svc,
		JWTSecret: testSecret,
		Env:       "test",
		Version:   "test",
		Log:       zerolog.Nop(),
	})
}

func bearer(t *testing.T, userID uuid.UUID, role schedule.Role) string {
	t.Helper()
	token, err := session.MintToken(userID, role, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, router http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	router := newTestRouter(t, newStubRepo())

	rec := doRequest(t, router, http.MethodGet, "/appointments/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/appointments/"+uuid.NewString(), "Bearer garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSlots(t *testing.T) {
	repo := newStubRepo()
	doctorID := uuid.New()
	repo.add(schedule.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Start:     testDay(10, 0),
		Type:      schedule.TypeDetartrage,
		Case:      schedule.CaseNormal,
		Status:    schedule.StatusAccepted,
	})
	router := newTestRouter(t, repo)
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	path := fmt.Sprintf("/doctors/%s/slots?date=2025-05-15&type=DETARTRAGE", doctorID)
	rec := doRequest(t, router, http.MethodGet, path, auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, doctorID, resp.DoctorID)
	assert.Equal(t, "2025-05-15", resp.Date)
	require.Len(t, resp.Slots, 21)

	byTime := map[string]bool{}
	for _, s := range resp.Slots {
		byTime[s.Time] = s.Available
	}
	assert.False(t, byTime["10:00"])
	assert.True(t, byTime["11:00"])
}

func TestGetSlotsBadInput(t *testing.T) {
	router := newTestRouter(t, newStubRepo())
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	rec := doRequest(t, router, http.MethodGet, "/doctors/not-a-uuid/slots?date=2025-05-15&type=DETARTRAGE", auth, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := fmt.Sprintf("/doctors/%s/slots?date=someday&type=DETARTRAGE", uuid.New())
	rec = doRequest(t, router, http.MethodGet, path, auth, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path = fmt.Sprintf("/doctors/%s/slots?date=2025-05-15&type=IMPLANT", uuid.New())
	rec = doRequest(t, router, http.MethodGet, path, auth, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAppointment(t *testing.T) {
	router := newTestRouter(t, newStubRepo())
	patientID := uuid.New()
	auth := bearer(t, patientID, schedule.RolePatient)

	rec := doRequest(t, router, http.MethodPost, "/appointments", auth, BookAppointmentRequest{
		PatientID:       patientID.String(),
		DoctorID:        uuid.NewString(),
		StartDateTime:   json.RawMessage(`"2025-05-15T10:00:00"`),
		AppointmentType: "DETARTRAGE",
		CaseType:        "NORMAL",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, patientID, resp.PatientID)
	assert.Equal(t, "2025-05-15T10:00:00", resp.StartDateTime)
}

func TestBookAppointmentConflict(t *testing.T) {
	repo := newStubRepo()
	doctorID := uuid.New()
	existing := repo.add(schedule.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Start:     testDay(10, 0),
		Type:      schedule.TypeDetartrage,
		Case:      schedule.CaseNormal,
		Status:    schedule.StatusAccepted,
	})
	router := newTestRouter(t, repo)
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	rec := doRequest(t, router, http.MethodPost, "/appointments", auth, BookAppointmentRequest{
		PatientID:       uuid.NewString(),
		DoctorID:        doctorID.String(),
		StartDateTime:   json.RawMessage(`"2025-05-15T10:30:00"`),
		AppointmentType: "DETARTRAGE",
		CaseType:        "NORMAL",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduling_conflict", resp.Error)
	assert.Equal(t, "DOCTOR_OVERLAP", resp.Reason)
	require.NotNil(t, resp.Conflicting)
	assert.Equal(t, existing.ID, resp.Conflicting.ID)
}

func TestBookAppointmentForbidden(t *testing.T) {
	router := newTestRouter(t, newStubRepo())
	auth := bearer(t, uuid.New(), schedule.RolePatient)

	// Patient trying to book for somebody else.
	rec := doRequest(t, router, http.MethodPost, "/appointments", auth, BookAppointmentRequest{
		PatientID:       uuid.NewString(),
		DoctorID:        uuid.NewString(),
		StartDateTime:   json.RawMessage(`"2025-05-15T10:00:00"`),
		AppointmentType: "DETARTRAGE",
		CaseType:        "NORMAL",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBookLegacyPayload(t *testing.T) {
	router := newTestRouter(t, newStubRepo())
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	payload := map[string]any{
		"patient":    map[string]any{"id": uuid.NewString()},
		"medecin_id": uuid.NewString(),
		"date":       "15/05/2025 10:00",
		"type":       "detartrage",
		"case":       "normal",
	}
	rec := doRequest(t, router, http.MethodPost, "/appointments/legacy", auth, payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "DETARTRAGE", resp.AppointmentType)
	assert.Equal(t, "2025-05-15T10:00:00", resp.StartDateTime)
}

func TestUpdateStatusTransitions(t *testing.T) {
	repo := newStubRepo()
	appt := repo.add(schedule.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Start:     testDay(10, 0),
		Type:      schedule.TypeDetartrage,
		Case:      schedule.CaseNormal,
		Status:    schedule.StatusPending,
	})
	router := newTestRouter(t, repo)
	doctorAuth := bearer(t, appt.DoctorID, schedule.RoleDoctor)

	rec := doRequest(t, router, http.MethodPost, "/appointments/"+appt.ID.String()+"/status", doctorAuth,
		UpdateStatusRequest{Status: "ACCEPTED"})
	require.Equal(t, http.StatusOK, rec.Code)

	// ACCEPTED -> REJECTED is not an edge; conflict, no mutation.
	rec = doRequest(t, router, http.MethodPost, "/appointments/"+appt.ID.String()+"/status", doctorAuth,
		UpdateStatusRequest{Status: "REJECTED"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_status_transition", resp.Error)
}

func TestCancelAppointment(t *testing.T) {
	repo := newStubRepo()
	appt := repo.add(schedule.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Start:     testDay(10, 0),
		Type:      schedule.TypeDetartrage,
		Case:      schedule.CaseNormal,
		Status:    schedule.StatusAccepted,
	})
	router := newTestRouter(t, repo)
	auth := bearer(t, appt.PatientID, schedule.RolePatient)

	rec := doRequest(t, router, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELED", resp.Status)
}

func TestRescheduleAppointment(t *testing.T) {
	repo := newStubRepo()
	appt := repo.add(schedule.Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Start:     testDay(10, 0),
		Type:      schedule.TypeDetartrage,
		Case:      schedule.CaseNormal,
		Status:    schedule.StatusAccepted,
	})
	router := newTestRouter(t, repo)
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	rec := doRequest(t, router, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule", auth,
		RescheduleRequest{StartDateTime: json.RawMessage(`"2025-05-15T14:00:00"`)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-05-15T14:00:00", resp.StartDateTime)
	assert.Equal(t, "ACCEPTED", resp.Status)
}

func TestAppointmentNotFound(t *testing.T) {
	router := newTestRouter(t, newStubRepo())
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	rec := doRequest(t, router, http.MethodGet, "/appointments/"+uuid.NewString(), auth, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatientConflictEndpoint(t *testing.T) {
	repo := newStubRepo()
	patientID := uuid.New()
	repo.add(schedule.Appointment{
		ID:        uuid.New(),
		PatientID: patientID,
		DoctorID:  uuid.New(),
		Start:     testDay(10, 0),
		Type:      schedule.TypeSoin,
		Case:      schedule.CaseNormal,
		Status:    schedule.StatusAccepted,
	})
	router := newTestRouter(t, repo)
	auth := bearer(t, uuid.New(), schedule.RoleSecretary)

	path := fmt.Sprintf("/patients/%s/conflict?date=2025-05-15", patientID)
	rec := doRequest(t, router, http.MethodGet, path, auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConflictCheckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Conflict)
	require.NotNil(t, resp.Existing)

	path = fmt.Sprintf("/patients/%s/conflict?date=2025-05-16", patientID)
	rec = doRequest(t, router, http.MethodGet, path, auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Conflict)
}
