package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransitionMatrix(t *testing.T) {
	cases := []struct {
		name string
		from Status
		to   Status
		role Role
		own  bool
		ok   bool
	}{
		{"doctor accepts", StatusPending, StatusAccepted, RoleDoctor, false, true},
		{"secretary accepts", StatusPending, StatusAccepted, RoleSecretary, false, true},
		{"patient cannot accept", StatusPending, StatusAccepted, RolePatient, true, false},
		{"doctor rejects", StatusPending, StatusRejected, RoleDoctor, false, true},
		{"patient cannot reject", StatusPending, StatusRejected, RolePatient, true, false},
		{"patient cancels own pending", StatusPending, StatusCanceled, RolePatient, true, true},
		{"patient cannot cancel others", StatusPending, StatusCanceled, RolePatient, false, false},
		{"secretary cancels pending", StatusPending, StatusCanceled, RoleSecretary, false, true},
		{"doctor completes", StatusAccepted, StatusCompleted, RoleDoctor, false, true},
		{"patient cannot complete", StatusAccepted, StatusCompleted, RolePatient, true, false},
		{"secretary cannot complete", StatusAccepted, StatusCompleted, RoleSecretary, false, false},
		{"patient cancels own accepted", StatusAccepted, StatusCanceled, RolePatient, true, true},
		{"doctor cancels accepted", StatusAccepted, StatusCanceled, RoleDoctor, false, true},
		{"pending cannot complete", StatusPending, StatusCompleted, RoleDoctor, false, false},
		{"accepted cannot regress", StatusAccepted, StatusPending, RoleSecretary, false, false},
		{"accepted cannot be rejected", StatusAccepted, StatusRejected, RoleDoctor, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to, tc.role, tc.own)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestCheckTransitionTerminalStates(t *testing.T) {
	terminals := []Status{StatusRejected, StatusCompleted, StatusCanceled}
	targets := []Status{StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCanceled}

	for _, from := range terminals {
		for _, to := range targets {
			err := CheckTransition(from, to, RoleSecretary, false)
			require.Error(t, err, "%s -> %s must fail", from, to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestCheckTransitionUnknownStatus(t *testing.T) {
	err := CheckTransition(Status("ARCHIVED"), StatusCanceled, RoleSecretary, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = CheckTransition(StatusPending, Status("ARCHIVED"), RoleSecretary, false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTerminal(t *testing.T) {
	assert.False(t, Terminal(StatusPending))
	assert.False(t, Terminal(StatusAccepted))
	assert.True(t, Terminal(StatusRejected))
	assert.True(t, Terminal(StatusCompleted))
	assert.True(t, Terminal(StatusCanceled))
	assert.False(t, Terminal(Status("ARCHIVED")))
}

func TestCanReschedule(t *testing.T) {
	assert.True(t, CanReschedule(StatusPending))
	assert.True(t, CanReschedule(StatusAccepted))
	assert.False(t, CanReschedule(StatusRejected))
	assert.False(t, CanReschedule(StatusCompleted))
	assert.False(t, CanReschedule(StatusCanceled))
}

func TestCanCreate(t *testing.T) {
	assert.NoError(t, CanCreate(RolePatient, false))
	assert.NoError(t, CanCreate(RoleDoctor, true))
	assert.NoError(t, CanCreate(RoleSecretary, true))

	err := CanCreate(RolePatient, true)
	assert.ErrorIs(t, err, ErrForbidden)

	err = CanCreate(Role("admin"), false)
	assert.ErrorIs(t, err, ErrForbidden)
}
