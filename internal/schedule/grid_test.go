package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(hour, minute int) time.Time {
	return time.Date(2025, time.May, 15, hour, minute, 0, 0, time.Local)
}

func accepted(doctorID uuid.UUID, start time.Time, apptType AppointmentType) Appointment {
	return Appointment{
		ID:        uuid.New(),
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Start:     start,
		Type:      apptType,
		Case:      CaseNormal,
		Status:    StatusAccepted,
	}
}

func availableTimes(slots []TimeSlot) []string {
	var out []string
	for _, s := range slots {
		if s.Available {
			out = append(out, s.Start.Format("15:04"))
		}
	}
	return out
}

func TestCandidateStartsFullGrid(t *testing.T) {
	grid := DefaultGridConfig()
	starts := grid.CandidateStarts(day(0, 0))

	require.Len(t, starts, 21)
	assert.Equal(t, "08:00", starts[0].Format("15:04"))
	assert.Equal(t, "18:00", starts[20].Format("15:04"))

	for i := 1; i < len(starts); i++ {
		assert.Equal(t, 30*time.Minute, starts[i].Sub(starts[i-1]))
	}
}

func TestAvailableSlotsEmptyDayReturnsFullGrid(t *testing.T) {
	grid := DefaultGridConfig()
	// now is the previous day, so no truncation applies
	now := day(12, 0).AddDate(0, 0, -1)

	slots := grid.AvailableSlots(day(0, 0), TypeDetartrage, nil, nil, now)

	require.Len(t, slots, 21)
	for _, s := range slots {
		assert.True(t, s.Available, "slot %s should be free on an empty day", s.Start.Format("15:04"))
	}
}

func TestAvailableSlotsBufferAwareExclusion(t *testing.T) {
	grid := DefaultGridConfig()
	doctorID := uuid.New()
	now := day(0, 0).AddDate(0, 0, -1)

	// One confirmed 30-minute cleaning at 10:00: effective interval 09:45-10:45.
	existing := []Appointment{accepted(doctorID, day(10, 0), TypeDetartrage)}

	slots := grid.AvailableSlots(day(0, 0), TypeDetartrage, existing, nil, now)

	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Start.Format("15:04")] = s.Available
	}

	// Exact match is gone, and so are the buffer-adjacent starts whose own
	// effective intervals reach into 09:45-10:45.
	assert.False(t, byTime["10:00"])
	assert.False(t, byTime["09:30"])
	assert.False(t, byTime["10:30"])

	// One step further out is clear: 09:00 ends at 09:45 sharp.
	assert.True(t, byTime["09:00"])
	assert.True(t, byTime["11:00"])
}

func TestAvailableSlotsPendingDoesNotBlock(t *testing.T) {
	grid := DefaultGridConfig()
	doctorID := uuid.New()
	now := day(0, 0).AddDate(0, 0, -1)

	pending := accepted(doctorID, day(10, 0), TypeDetartrage)
	pending.Status = StatusPending

	slots := grid.AvailableSlots(day(0, 0), TypeDetartrage, []Appointment{pending}, nil, now)

	for _, s := range slots {
		assert.True(t, s.Available, "pending appointment must not block %s", s.Start.Format("15:04"))
	}
}

func TestAvailableSlotsSelfExclusion(t *testing.T) {
	grid := DefaultGridConfig()
	doctorID := uuid.New()
	now := day(0, 0).AddDate(0, 0, -1)

	mine := accepted(doctorID, day(10, 0), TypeDetartrage)

	// Without exclusion the current slot blocks itself.
	slots := grid.AvailableSlots(day(0, 0), TypeDetartrage, []Appointment{mine}, nil, now)
	assert.NotContains(t, availableTimes(slots), "10:00")

	// Excluded, the appointment's own slot reads as free again.
	slots = grid.AvailableSlots(day(0, 0), TypeDetartrage, []Appointment{mine}, &mine.ID, now)
	assert.Contains(t, availableTimes(slots), "10:00")
}

func TestAvailableSlotsTodayTruncation(t *testing.T) {
	grid := DefaultGridConfig()
	now := day(11, 0)

	slots := grid.AvailableSlots(day(0, 0), TypeDetartrage, nil, nil, now)

	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.True(t, s.Start.After(now), "slot %s is not after now", s.Start.Format("15:04"))
	}
	// 11:00 itself is gone; 11:30 is the first remaining candidate.
	assert.Equal(t, "11:30", slots[0].Start.Format("15:04"))
}

func TestAvailableSlotsUnknownType(t *testing.T) {
	grid := DefaultGridConfig()
	slots := grid.AvailableSlots(day(0, 0), AppointmentType("IMPLANT"), nil, nil, day(0, 0))
	assert.Nil(t, slots)
}

func TestAvailableSlotsLongTypeBlocksWiderWindow(t *testing.T) {
	grid := DefaultGridConfig()
	doctorID := uuid.New()
	now := day(0, 0).AddDate(0, 0, -1)

	// Scheduling a 90-minute whitening against a confirmed 10:00 cleaning:
	// candidate 08:30 runs 08:15-10:15 effective and collides.
	existing := []Appointment{accepted(doctorID, day(10, 0), TypeDetartrage)}

	slots := grid.AvailableSlots(day(0, 0), TypeBlanchiment, existing, nil, now)

	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Start.Format("15:04")] = s.Available
	}

	assert.False(t, byTime["08:30"])
	assert.False(t, byTime["09:00"])
	assert.True(t, byTime["08:00"]) // 07:45-09:45 vs 09:45-10:45 just misses
	assert.True(t, byTime["11:00"])
}
