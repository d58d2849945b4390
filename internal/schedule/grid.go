package schedule

import (
	"time"

	"github.com/google/uuid"
)

// GridConfig describes the clinic day used to build candidate slots.
type GridConfig struct {
	OpenHour  int           // first bookable hour, default 8
	CloseHour int           // last bookable hour, default 18
	Step      time.Duration // spacing between candidate starts, default 30m
	Buffer    time.Duration // overlap buffer on both sides, default 15m
}

func DefaultGridConfig() GridConfig {
	return GridConfig{
		OpenHour:  8,
		CloseHour: 18,
		Step:      30 * time.Minute,
		Buffer:    15 * time.Minute,
	}
}

// CandidateStarts builds the full slot grid for the clinic day containing
// date: every Step from OpenHour to CloseHour inclusive. The grid is
// recomputed per call and carries no state.
func (g GridConfig) CandidateStarts(date time.Time) []time.Time {
	y, m, d := date.Date()
	open := time.Date(y, m, d, g.OpenHour, 0, 0, 0, date.Location())
	closing := time.Date(y, m, d, g.CloseHour, 0, 0, 0, date.Location())

	var starts []time.Time
	for t := open; !t.After(closing); t = t.Add(g.Step) {
		starts = append(starts, t)
	}
	return starts
}

// AvailableSlots filters the candidate grid for one doctor-day against a
// snapshot of that doctor's appointments.
//
// Only ACCEPTED appointments block slots; a PENDING request does not remove
// availability until it is confirmed. A candidate is unavailable when its
// effective interval, using the duration of the appointment type being
// scheduled, intersects the effective interval of any retained appointment.
// excludeID lets a reschedule skip the appointment being moved so it does not
// block itself.
//
// When date is today, candidates at or before now are dropped.
func (g GridConfig) AvailableSlots(date time.Time, apptType AppointmentType, existing []Appointment, excludeID *uuid.UUID, now time.Time) []TimeSlot {
	duration, ok := apptType.Duration()
	if !ok {
		return nil
	}

	blocking := existing[:0:0]
	for _, a := range existing {
		if a.Status != StatusAccepted {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		blocking = append(blocking, a)
	}

	today := SameDay(date, now)

	var slots []TimeSlot
	for _, start := range g.CandidateStarts(date) {
		if today && !start.After(now) {
			continue
		}
		slots = append(slots, TimeSlot{
			Start:     start,
			Available: !overlapsAny(start, duration, g.Buffer, blocking),
		})
	}
	return slots
}

func overlapsAny(start time.Time, duration, buf time.Duration, existing []Appointment) bool {
	candStart := start.Add(-buf)
	candEnd := start.Add(duration).Add(buf)
	for _, a := range existing {
		exStart, exEnd := a.EffectiveInterval(buf)
		if candStart.Before(exEnd) && exStart.Before(candEnd) {
			return true
		}
	}
	return false
}
