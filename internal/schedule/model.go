package schedule

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

type AppointmentType string

const (
	TypeDetartrage  AppointmentType = "DETARTRAGE"
	TypeSoin        AppointmentType = "SOIN"
	TypeExtraction  AppointmentType = "EXTRACTION"
	TypeBlanchiment AppointmentType = "BLANCHIMENT"
	TypeOrthodontie AppointmentType = "ORTHODONTIE"
)

// typeDurations is the fixed nominal duration per appointment type.
var typeDurations = map[AppointmentType]time.Duration{
	TypeDetartrage:  30 * time.Minute,
	TypeSoin:        45 * time.Minute,
	TypeExtraction:  60 * time.Minute,
	TypeBlanchiment: 90 * time.Minute,
	TypeOrthodontie: 60 * time.Minute,
}

// Duration returns the nominal duration for the type and whether the type is known.
func (t AppointmentType) Duration() (time.Duration, bool) {
	d, ok := typeDurations[t]
	return d, ok
}

type CaseType string

const (
	CaseUrgent  CaseType = "URGENT"
	CaseControl CaseType = "CONTROL"
	CaseNormal  CaseType = "NORMAL"
)

func ValidCaseType(c CaseType) bool {
	switch c {
	case CaseUrgent, CaseControl, CaseNormal:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Phone     *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Start     time.Time
	Type      AppointmentType
	Case      CaseType
	Status    Status
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// End is the scheduled end of the appointment, without buffer.
func (a *Appointment) End() time.Time {
	d, _ := a.Type.Duration()
	return a.Start.Add(d)
}

// EffectiveInterval is the interval used for overlap detection: the scheduled
// duration extended by buf on both sides, half-open.
func (a *Appointment) EffectiveInterval(buf time.Duration) (time.Time, time.Time) {
	d, _ := a.Type.Duration()
	return a.Start.Add(-buf), a.Start.Add(d).Add(buf)
}

// Active reports whether the appointment still occupies the patient's day
// (PENDING or ACCEPTED).
func (a *Appointment) Active() bool {
	return a.Status == StatusPending || a.Status == StatusAccepted
}

// TimeSlot is a transient candidate start time for a doctor on one day.
// It is recomputed per request and never persisted.
type TimeSlot struct {
	Start     time.Time `json:"start"`
	Available bool      `json:"available"`
}

// UnregisteredPatient identifies a booking subject with no patient record,
// used when a secretary or doctor books on behalf of a walk-in caller.
type UnregisteredPatient struct {
	Name  string
	Phone string
}
