package schedule

import (
	"time"

	"github.com/google/uuid"
)

// CheckDoctorOverlap decides whether a candidate (start, type) for one doctor
// collides with that doctor's existing ACCEPTED appointments. Both sides are
// compared on effective intervals: scheduled duration extended by buf on each
// side, half-open. excludeID skips the appointment being rescheduled.
//
// Returns nil when the candidate is free, otherwise a ConflictError carrying
// the first colliding appointment.
func CheckDoctorOverlap(start time.Time, apptType AppointmentType, buf time.Duration, existing []Appointment, excludeID *uuid.UUID) *ConflictError {
	duration, ok := apptType.Duration()
	if !ok {
		return nil
	}
	candStart := start.Add(-buf)
	candEnd := start.Add(duration).Add(buf)

	for i := range existing {
		a := existing[i]
		if a.Status != StatusAccepted {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		exStart, exEnd := a.EffectiveInterval(buf)
		if candStart.Before(exEnd) && exStart.Before(candEnd) {
			return &ConflictError{Reason: ReasonDoctorOverlap, Existing: &existing[i]}
		}
	}
	return nil
}

// CheckPatientDay enforces one active appointment per patient per calendar
// day, across all doctors. An appointment counts while PENDING or ACCEPTED.
// The comparison uses date components only; time of day is irrelevant.
func CheckPatientDay(date time.Time, existing []Appointment, excludeID *uuid.UUID) *ConflictError {
	for i := range existing {
		a := existing[i]
		if !a.Active() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if SameDay(a.Start, date) {
			return &ConflictError{Reason: ReasonPatientDoubleBooking, Existing: &existing[i]}
		}
	}
	return nil
}
