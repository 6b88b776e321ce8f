package appointment

// transitions lists, per current status, the statuses an appointment may
// move to directly. Terminal statuses have no entries. Reschedules are not
// transitions: they rewrite the interval and at most revert confirmed back
// to scheduled.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCompleted, StatusCanceled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCompleted, StatusCanceled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusNoShow},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Reschedulable reports whether the appointment's interval may be rewritten.
// Once staff has started the appointment, or it reached a terminal status,
// the time can no longer change.
func (a *Appointment) Reschedulable() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// RescheduledStatus returns the status after a successful reschedule: a
// confirmation no longer applies to a new time, so confirmed reverts to
// scheduled.
func RescheduledStatus(current Status) Status {
	if current == StatusConfirmed {
		return StatusScheduled
	}
	return current
}

// Event types recorded on successful transitions.
const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCanceled    = "APPOINTMENT_CANCELED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventStatusChanged          = "APPOINTMENT_STATUS_CHANGED"
)
