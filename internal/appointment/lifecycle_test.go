package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusScheduled, StatusConfirmed, true},
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCanceled, true},
		{StatusScheduled, StatusNoShow, true},
		{StatusConfirmed, StatusInProgress, true},
		{StatusConfirmed, StatusCanceled, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusNoShow, true},

		// An appointment in progress cannot be canceled any more.
		{StatusInProgress, StatusCanceled, false},
		// Confirming twice is not a move.
		{StatusConfirmed, StatusConfirmed, false},
		// No transition reverses a completed appointment.
		{StatusCompleted, StatusScheduled, false},
		{StatusCanceled, StatusScheduled, false},
		{StatusNoShow, StatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []Status{StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCanceled, StatusNoShow}
	for _, from := range all {
		if !from.Terminal() {
			continue
		}
		for _, to := range all {
			assert.False(t, CanTransition(from, to), "%s is terminal but allows -> %s", from, to)
		}
	}
}

func TestReschedulable(t *testing.T) {
	assert.True(t, (&Appointment{Status: StatusScheduled}).Reschedulable())
	assert.True(t, (&Appointment{Status: StatusConfirmed}).Reschedulable())
	assert.False(t, (&Appointment{Status: StatusInProgress}).Reschedulable())
	assert.False(t, (&Appointment{Status: StatusCompleted}).Reschedulable())
	assert.False(t, (&Appointment{Status: StatusCanceled}).Reschedulable())
}

func TestRescheduledStatus(t *testing.T) {
	assert.Equal(t, StatusScheduled, RescheduledStatus(StatusConfirmed))
	assert.Equal(t, StatusScheduled, RescheduledStatus(StatusScheduled))
}

func TestStatusActive(t *testing.T) {
	for _, s := range ActiveStatuses {
		assert.True(t, s.Active())
		assert.False(t, s.Terminal())
	}
	for _, s := range []Status{StatusCompleted, StatusCanceled, StatusNoShow} {
		assert.False(t, s.Active())
		assert.True(t, s.Terminal())
	}
}
