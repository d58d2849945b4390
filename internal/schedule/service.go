package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dentix/clinic-scheduling/internal/metrics"
)

// maxReadAttempts bounds transparent retries of snapshot reads. Writes are
// never retried: a failed create or update surfaces immediately so the caller
// resubmits explicitly, avoiding double-submission.
const maxReadAttempts = 3

// Session is the explicit actor context threaded into every engine call.
type Session struct {
	UserID uuid.UUID
	Role   Role
}

// SlotCache caches computed day grids. Implementations must fail open: a
// cache problem is logged and treated as a miss, never surfaced.
type SlotCache interface {
	GetSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, apptType AppointmentType) ([]TimeSlot, bool)
	SetSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, apptType AppointmentType, slots []TimeSlot)
	InvalidateDay(ctx context.Context, doctorID uuid.UUID, date time.Time)
}

// BookRequest is the tagged record for a booking. Exactly one of PatientID or
// Unregistered must be set; Start must already be strictly normalized.
type BookRequest struct {
	PatientID    *uuid.UUID
	Unregistered *UnregisteredPatient
	DoctorID     uuid.UUID
	Start        time.Time
	Type         AppointmentType
	Case         CaseType
	Notes        *string
}

// Service is the scheduling orchestrator: it composes the normalizer, slot
// grid, conflict detector and state machine against snapshots fetched through
// the repository. All validation here is a best-effort pre-check; the
// database constraints remain authoritative under races.
type Service struct {
	repo  Repository
	cache SlotCache
	grid  GridConfig
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(repo Repository, cache SlotCache, grid GridConfig, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		grid:  grid,
		log:   log.With().Str("component", "schedule").Logger(),
		now:   time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AvailableSlots returns the candidate grid for one doctor-day, marked
// against that doctor's ACCEPTED appointments. excludeID lets a reschedule
// see its own current slot as free.
func (s *Service) AvailableSlots(ctx context.Context, sess Session, doctorID uuid.UUID, date time.Time, apptType AppointmentType, excludeID *uuid.UUID) ([]TimeSlot, error) {
	if _, ok := apptType.Duration(); !ok {
		return nil, fmt.Errorf("%w: unknown appointment type %q", ErrValidation, apptType)
	}
	metrics.SlotQueriesTotal.Inc()

	// Cached grids are only usable for plain availability lookups; a
	// reschedule changes the exclusion set.
	if excludeID == nil && s.cache != nil {
		if slots, ok := s.cache.GetSlots(ctx, doctorID, date, apptType); ok {
			return slots, nil
		}
	}

	existing, ok := s.readDoctorDay(ctx, doctorID, date)
	if !ok {
		// Degraded read path: offer nothing rather than block the caller.
		return []TimeSlot{}, nil
	}

	slots := s.grid.AvailableSlots(date, apptType, existing, excludeID, s.now())
	if excludeID == nil && s.cache != nil {
		s.cache.SetSlots(ctx, doctorID, date, apptType, slots)
	}
	return slots, nil
}

// CheckPatientConflict reports whether the patient already holds an active
// appointment on the given day, with any doctor. Returns nil when free.
func (s *Service) CheckPatientConflict(ctx context.Context, sess Session, patientID uuid.UUID, date time.Time, excludeID *uuid.UUID) (*ConflictError, error) {
	existing, ok := s.readPatientDay(ctx, patientID, date)
	if !ok {
		// No known conflicts on a degraded read; the write path stays guarded
		// by the database constraints.
		return nil, nil
	}
	return CheckPatientDay(date, existing, excludeID), nil
}

// Book runs both conflict pre-checks and creates a PENDING appointment. A
// conflict the pre-check missed (race with another client) comes back from
// the repository in the same ConflictError shape and is surfaced verbatim.
func (s *Service) Book(ctx context.Context, sess Session, req BookRequest) (*Appointment, error) {
	if err := s.validateBook(sess, req); err != nil {
		metrics.BookingsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if req.PatientID != nil {
		existing, ok := s.readPatientDay(ctx, *req.PatientID, req.Start)
		if ok {
			if c := CheckPatientDay(req.Start, existing, nil); c != nil {
				metrics.BookingsTotal.WithLabelValues("conflict").Inc()
				metrics.ConflictsTotal.WithLabelValues(string(c.Reason)).Inc()
				return nil, c
			}
		}
	}

	doctorAppts, ok := s.readDoctorDay(ctx, req.DoctorID, req.Start)
	if ok {
		if c := CheckDoctorOverlap(req.Start, req.Type, s.grid.Buffer, doctorAppts, nil); c != nil {
			metrics.BookingsTotal.WithLabelValues("conflict").Inc()
			metrics.ConflictsTotal.WithLabelValues(string(c.Reason)).Inc()
			return nil, c
		}
	}

	appt, err := s.repo.Create(ctx, CreateParams{
		PatientID:    req.PatientID,
		Unregistered: req.Unregistered,
		DoctorID:     req.DoctorID,
		Start:        req.Start,
		Type:         req.Type,
		Case:         req.Case,
		Notes:        req.Notes,
	})
	if err != nil {
		if c, isConflict := AsConflict(err); isConflict {
			metrics.BookingsTotal.WithLabelValues("conflict").Inc()
			metrics.ConflictsTotal.WithLabelValues(string(c.Reason)).Inc()
			return nil, err
		}
		metrics.BookingsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	metrics.BookingsTotal.WithLabelValues("created").Inc()
	s.invalidateDay(ctx, appt.DoctorID, appt.Start)
	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Time("start", appt.Start).
		Msg("appointment booked")
	return appt, nil
}

// Reschedule moves an active appointment to a new start time after re-running
// both conflict checks with the appointment's own id excluded. Status is left
// untouched; terminal appointments cannot move.
func (s *Service) Reschedule(ctx context.Context, sess Session, apptID uuid.UUID, newStart time.Time) (*Appointment, error) {
	if newStart.IsZero() {
		return nil, fmt.Errorf("%w: new start time is required", ErrValidation)
	}

	appt, err := s.loadAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if !CanReschedule(appt.Status) {
		return nil, fmt.Errorf("%w: cannot reschedule %s appointment", ErrInvalidTransition, appt.Status)
	}
	if err := s.authorizeActor(sess, appt); err != nil {
		return nil, err
	}

	exclude := appt.ID
	patientAppts, ok := s.readPatientDay(ctx, appt.PatientID, newStart)
	if ok {
		if c := CheckPatientDay(newStart, patientAppts, &exclude); c != nil {
			metrics.ConflictsTotal.WithLabelValues(string(c.Reason)).Inc()
			return nil, c
		}
	}
	doctorAppts, ok := s.readDoctorDay(ctx, appt.DoctorID, newStart)
	if ok {
		if c := CheckDoctorOverlap(newStart, appt.Type, s.grid.Buffer, doctorAppts, &exclude); c != nil {
			metrics.ConflictsTotal.WithLabelValues(string(c.Reason)).Inc()
			return nil, c
		}
	}

	oldStart := appt.Start
	updated, err := s.repo.UpdateTime(ctx, apptID, newStart)
	if err != nil {
		if _, isConflict := AsConflict(err); isConflict {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment time: %w", err)
	}

	s.invalidateDay(ctx, updated.DoctorID, oldStart)
	s.invalidateDay(ctx, updated.DoctorID, newStart)
	return updated, nil
}

// Cancel moves an appointment to CANCELED on behalf of the session actor.
func (s *Service) Cancel(ctx context.Context, sess Session, apptID uuid.UUID) (*Appointment, error) {
	return s.UpdateStatus(ctx, sess, apptID, StatusCanceled)
}

// UpdateStatus validates the requested transition through the state machine
// before issuing the guarded repository update.
func (s *Service) UpdateStatus(ctx context.Context, sess Session, apptID uuid.UUID, newStatus Status) (*Appointment, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	appt, err := s.loadAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}

	own := sess.Role == RolePatient && appt.PatientID == sess.UserID
	if err := CheckTransition(appt.Status, newStatus, sess.Role, own); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, apptID, appt.Status, newStatus)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The guarded update matched no row: the status moved under us.
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.invalidateDay(ctx, updated.DoctorID, updated.Start)
	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", string(appt.Status)).
		Str("to", string(newStatus)).
		Str("role", string(sess.Role)).
		Msg("appointment status updated")
	return updated, nil
}

// Appointment loads one appointment by id.
func (s *Service) Appointment(ctx context.Context, sess Session, apptID uuid.UUID) (*Appointment, error) {
	return s.loadAppointment(ctx, apptID)
}

// DoctorAppointments lists a doctor's appointments, optionally for one day.
func (s *Service) DoctorAppointments(ctx context.Context, sess Session, doctorID uuid.UUID, date *time.Time) ([]Appointment, error) {
	return s.repo.FetchForDoctor(ctx, doctorID, date)
}

// PatientAppointments lists a patient's appointments, optionally for one day.
func (s *Service) PatientAppointments(ctx context.Context, sess Session, patientID uuid.UUID, date *time.Time) ([]Appointment, error) {
	return s.repo.FetchForPatient(ctx, patientID, date)
}

// SweepStalePending rejects PENDING appointments whose requested start has
// already passed. Run periodically by the sweeper worker, acting as the
// secretary role the state machine already permits for PENDING -> REJECTED.
func (s *Service) SweepStalePending(ctx context.Context) error {
	stale, err := s.repo.FindStalePending(ctx, s.now())
	if err != nil {
		return fmt.Errorf("find stale pending appointments: %w", err)
	}

	for _, appt := range stale {
		if _, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusRejected); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // actioned concurrently
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to reject stale appointment")
			continue
		}
		metrics.StaleSweptTotal.Inc()
		s.invalidateDay(ctx, appt.DoctorID, appt.Start)
	}
	return nil
}

// validation and shared plumbing

func (s *Service) validateBook(sess Session, req BookRequest) error {
	unregistered := req.Unregistered != nil
	if err := CanCreate(sess.Role, unregistered); err != nil {
		return err
	}
	if req.PatientID == nil && req.Unregistered == nil {
		return fmt.Errorf("%w: patient id or contact details required", ErrValidation)
	}
	if req.PatientID != nil && req.Unregistered != nil {
		return fmt.Errorf("%w: provide patient id or contact details, not both", ErrValidation)
	}
	if unregistered && (req.Unregistered.Name == "" || req.Unregistered.Phone == "") {
		return fmt.Errorf("%w: unregistered patient needs name and phone", ErrValidation)
	}
	if sess.Role == RolePatient && (req.PatientID == nil || *req.PatientID != sess.UserID) {
		return fmt.Errorf("%w: patients may only book for themselves", ErrForbidden)
	}
	if req.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor id is required", ErrValidation)
	}
	if req.Start.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrValidation)
	}
	if _, ok := req.Type.Duration(); !ok {
		return fmt.Errorf("%w: unknown appointment type %q", ErrValidation, req.Type)
	}
	if !ValidCaseType(req.Case) {
		return fmt.Errorf("%w: unknown case type %q", ErrValidation, req.Case)
	}
	return nil
}

func (s *Service) authorizeActor(sess Session, appt *Appointment) error {
	if sess.Role == RolePatient && appt.PatientID != sess.UserID {
		return fmt.Errorf("%w: patients may only act on their own appointments", ErrForbidden)
	}
	if !ValidRole(sess.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrForbidden, sess.Role)
	}
	return nil
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var appt *Appointment
	err := s.retryRead(ctx, func() error {
		var e error
		appt, e = s.repo.GetAppointmentByID(ctx, id)
		return e
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// readDoctorDay fetches one doctor-day snapshot with bounded retries. On
// exhaustion it degrades to "nothing known" instead of failing; only read
// paths may do this, writes stay guarded by the database.
func (s *Service) readDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, bool) {
	var appts []Appointment
	err := s.retryRead(ctx, func() error {
		var e error
		appts, e = s.repo.FetchForDoctor(ctx, doctorID, &date)
		return e
	})
	if err != nil {
		s.log.Warn().Err(err).Str("doctor_id", doctorID.String()).Msg("doctor snapshot read degraded to empty")
		return nil, false
	}
	return appts, true
}

func (s *Service) readPatientDay(ctx context.Context, patientID uuid.UUID, date time.Time) ([]Appointment, bool) {
	var appts []Appointment
	err := s.retryRead(ctx, func() error {
		var e error
		appts, e = s.repo.FetchForPatient(ctx, patientID, &date)
		return e
	})
	if err != nil {
		s.log.Warn().Err(err).Str("patient_id", patientID.String()).Msg("patient snapshot read degraded to empty")
		return nil, false
	}
	return appts, true
}

func (s *Service) retryRead(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxReadAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		// Domain sentinels are definitive answers, not transport failures.
		if errors.Is(err, ErrAppointmentNotFound) ||
			errors.Is(err, ErrPatientNotFound) ||
			errors.Is(err, ErrDoctorNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < maxReadAttempts {
			metrics.ReadRetriesTotal.Inc()
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}

func (s *Service) invalidateDay(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	if s.cache != nil {
		s.cache.InvalidateDay(ctx, doctorID, date)
	}
}
