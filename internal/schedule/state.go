package schedule

import (
	"fmt"
)

// Role is the actor role attached to every engine call. There is no ambient
// session state; callers thread the role in explicitly.
type Role string

const (
	RolePatient   Role = "patient"
	RoleDoctor    Role = "doctor"
	RoleSecretary Role = "secretary"
)

func ValidRole(r Role) bool {
	switch r {
	case RolePatient, RoleDoctor, RoleSecretary:
		return true
	}
	return false
}

// transitions is the status graph. REJECTED, COMPLETED and CANCELED are
// terminal and keep history; nothing is ever deleted.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusAccepted: true,
		StatusRejected: true,
		StatusCanceled: true,
	},
	StatusAccepted: {
		StatusCompleted: true,
		StatusCanceled:  true,
	},
	StatusRejected:  {},
	StatusCompleted: {},
	StatusCanceled:  {},
}

// transitionRoles lists which roles may request each edge.
var transitionRoles = map[Status]map[Status][]Role{
	StatusPending: {
		StatusAccepted: {RoleDoctor, RoleSecretary},
		StatusRejected: {RoleDoctor, RoleSecretary},
		StatusCanceled: {RolePatient, RoleDoctor, RoleSecretary},
	},
	StatusAccepted: {
		StatusCompleted: {RoleDoctor},
		StatusCanceled:  {RolePatient, RoleDoctor, RoleSecretary},
	},
}

// ValidStatus reports whether s is one of the five known statuses.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func Terminal(s Status) bool {
	return ValidStatus(s) && len(transitions[s]) == 0
}

// CheckTransition validates a requested status change. ownAppointment must be
// true when the acting patient is the appointment's own patient; patients may
// only cancel their own appointments, and may not accept, reject or complete
// anything. Any violation returns ErrInvalidTransition (wrapped) and implies
// no mutation.
func CheckTransition(from, to Status, role Role, ownAppointment bool) error {
	if !ValidStatus(from) || !ValidStatus(to) {
		return fmt.Errorf("%w: unknown status %q -> %q", ErrInvalidTransition, from, to)
	}
	if !transitions[from][to] {
		if Terminal(from) {
			return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
		}
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	allowed := transitionRoles[from][to]
	for _, r := range allowed {
		if r != role {
			continue
		}
		if role == RolePatient && !ownAppointment {
			return fmt.Errorf("%w: patients may only act on their own appointments", ErrInvalidTransition)
		}
		return nil
	}
	return fmt.Errorf("%w: role %s may not perform %s -> %s", ErrInvalidTransition, role, from, to)
}

// CanReschedule reports whether an appointment in status s may be moved to a
// new time. Rescheduling is not a status transition: it leaves status
// untouched and is only legal while the appointment is still active.
func CanReschedule(s Status) bool {
	return s == StatusPending || s == StatusAccepted
}

// CanCreate reports whether role may create a PENDING appointment, and
// whether it may do so for an unregistered patient. Patients book for
// themselves only; secretaries and doctors may book on behalf of anyone,
// including walk-ins identified by contact details.
func CanCreate(role Role, unregistered bool) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrForbidden, role)
	}
	if unregistered && role == RolePatient {
		return fmt.Errorf("%w: only staff may book unregistered patients", ErrForbidden)
	}
	return nil
}
