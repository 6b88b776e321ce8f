package events

import (
	"time"

	"github.com/google/uuid"
)

// Channel selects which external collaborator an intent targets.
type Channel string

const (
	ChannelNotify Channel = "notify"
	ChannelSync   Channel = "sync"
)

type NotifyKind string

const (
	NotifyConfirmation NotifyKind = "confirmation"
	NotifyReschedule   NotifyKind = "reschedule"
	NotifyCancellation NotifyKind = "cancellation"
)

type SyncAction string

const (
	SyncUpsert SyncAction = "upsert"
	SyncRemove SyncAction = "remove"
)

// Intent is a fire-and-forget request to an external collaborator. Intents
// are written in the same transaction as the state change they announce and
// delivered asynchronously; delivery failure never rolls the booking back.
type Intent struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	AppointmentID uuid.UUID
	Channel       Channel
	Kind          string // NotifyKind for notify, SyncAction for sync
	Attempts      int
	CreatedAt     time.Time
}

func NewNotifyIntent(tenantID, appointmentID uuid.UUID, kind NotifyKind) Intent {
	return Intent{
		ID:            uuid.New(),
		TenantID:      tenantID,
		AppointmentID: appointmentID,
		Channel:       ChannelNotify,
		Kind:          string(kind),
	}
}

func NewSyncIntent(tenantID, appointmentID uuid.UUID, action SyncAction) Intent {
	return Intent{
		ID:            uuid.New(),
		TenantID:      tenantID,
		AppointmentID: appointmentID,
		Channel:       ChannelSync,
		Kind:          string(action),
	}
}
