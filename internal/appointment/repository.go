package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/booking-engine/internal/availability"
	"github.com/glowdesk/booking-engine/internal/events"
)

// Repository contains all DB interactions the engine needs. Every method is
// tenant-scoped: tenantID is mandatory, and a row owned by another tenant is
// indistinguishable from a missing one.
type Repository interface {
	GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error)
	GetService(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error)
	GetStaff(ctx context.Context, tenantID, id uuid.UUID) (*Staff, error)
	ListStaff(ctx context.Context, tenantID uuid.UUID) ([]Staff, error)

	GetAppointment(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error)

	// ListBusyIntervals returns the intervals of active-status appointments
	// for one staff member that overlap the window, excluding the given
	// appointment id when non-nil (for reschedules). Recomputed per query,
	// never cached: it must reflect the latest writes.
	ListBusyIntervals(ctx context.Context, tenantID, staffID uuid.UUID, window availability.Interval, exclude *uuid.UUID) ([]availability.Interval, error)

	// CreateAppointment checks for conflicts and inserts the appointment in
	// one transaction, enqueueing the given intents with it. A conflicting
	// active appointment results in ErrSlotUnavailable.
	CreateAppointment(ctx context.Context, appt *Appointment, intents ...events.Intent) (*Appointment, error)

	// RescheduleAppointment rewrites the interval (and status) of an existing
	// appointment under the same conflict guarantees, excluding the
	// appointment itself from the check.
	RescheduleAppointment(ctx context.Context, tenantID, id uuid.UUID, newStart, newEnd time.Time, newStatus Status, intents ...events.Intent) (*Appointment, error)

	// UpdateStatus is a compare-and-swap transition: it succeeds only when
	// the row still has status from, otherwise ErrInvalidTransition.
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status, cancelReason *string, intents ...events.Intent) (*Appointment, error)

	// InsertEvent records a transition on the audit log, best-effort.
	InsertEvent(ctx context.Context, ev EventLog) error
}
