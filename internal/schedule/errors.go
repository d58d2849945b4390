package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("actor not allowed")
	ErrTransient         = errors.New("transient backend error")
)

type ConflictReason string

const (
	ReasonDoctorOverlap        ConflictReason = "DOCTOR_OVERLAP"
	ReasonPatientDoubleBooking ConflictReason = "PATIENT_DOUBLE_BOOKING"
	ReasonBackendRejected      ConflictReason = "BACKEND_REJECTED"
)

// ConflictError is returned when a booking or reschedule collides with an
// existing appointment, whether detected by the local pre-check or by the
// database on commit. Existing is set when the colliding appointment is known.
type ConflictError struct {
	Reason   ConflictReason
	Existing *Appointment
}

func (e *ConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("scheduling conflict (%s) with appointment %s at %s",
			e.Reason, e.Existing.ID, e.Existing.Start.Format("2006-01-02 15:04"))
	}
	return fmt.Sprintf("scheduling conflict (%s)", e.Reason)
}

// AsConflict unwraps err into a *ConflictError if one is in the chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
