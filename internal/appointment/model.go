package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/booking-engine/internal/availability"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCanceled   Status = "canceled"
	StatusNoShow     Status = "no_show"
)

// ActiveStatuses are the statuses that occupy the calendar and participate
// in conflict checks.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed, StatusInProgress}

// Active reports whether the status occupies the staff member's calendar.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed || s == StatusInProgress
}

// Terminal reports whether no further transitions leave the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusNoShow
}

type Client struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceDefinition is a bookable service owned by a tenant. Duration and
// price are snapshotted onto the appointment at booking time; later edits to
// the definition never touch existing appointments.
type ServiceDefinition struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            string
	DurationMinutes int
	PriceCents      int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Duration returns the service length as a time.Duration.
func (s *ServiceDefinition) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Staff struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Name         string
	Specialties  []uuid.UUID // service ids this staff member offers; empty = all
	WorkingHours availability.WeekSchedule
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Offers reports whether the staff member performs the service. The
// specialties list only narrows candidate staff for availability queries;
// it never affects conflict logic.
func (s *Staff) Offers(serviceID uuid.UUID) bool {
	if len(s.Specialties) == 0 {
		return true
	}
	for _, id := range s.Specialties {
		if id == serviceID {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	ClientID     uuid.UUID
	ServiceID    uuid.UUID
	StaffID      uuid.UUID
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	Notes        *string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Interval returns the appointment's occupied time range.
func (a *Appointment) Interval() availability.Interval {
	return availability.Interval{Start: a.StartTime, End: a.EndTime}
}

// DurationMinutes is the snapshotted service length. Scheduling always uses
// this value, never the live service definition.
func (a *Appointment) DurationMinutes() int {
	return int(a.EndTime.Sub(a.StartTime) / time.Minute)
}

type EventLog struct {
	ID            int64
	TenantID      uuid.UUID
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
