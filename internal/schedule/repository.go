package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateParams is the write-side record for a new PENDING appointment.
// Exactly one of PatientID or Unregistered must be set.
type CreateParams struct {
	PatientID    *uuid.UUID
	Unregistered *UnregisteredPatient
	DoctorID     uuid.UUID
	Start        time.Time
	Type         AppointmentType
	Case         CaseType
	Notes        *string
}

// Repository contains all persistence interactions needed by the engine.
// The engine never touches storage directly; implementations own layout and
// constraints, and may reject a write the local pre-check missed (a race with
// a concurrent booking) by returning a ConflictError.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FetchForDoctor and FetchForPatient return appointment snapshots for
	// conflict checks and slot computation. A nil date means all days.
	FetchForDoctor(ctx context.Context, doctorID uuid.UUID, date *time.Time) ([]Appointment, error)
	FetchForPatient(ctx context.Context, patientID uuid.UUID, date *time.Time) ([]Appointment, error)

	// Create inserts a PENDING appointment, creating the patient row first
	// when the subject is unregistered.
	Create(ctx context.Context, p CreateParams) (*Appointment, error)

	// UpdateStatus moves id from one status to another, guarded so a
	// concurrent change loses exactly one of the two writes.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// UpdateTime moves an appointment to a new start, leaving status as is.
	UpdateTime(ctx context.Context, id uuid.UUID, newStart time.Time) (*Appointment, error)

	// FindStalePending lists PENDING appointments whose start has already
	// passed, for the sweeper.
	FindStalePending(ctx context.Context, now time.Time) ([]Appointment, error)
}
