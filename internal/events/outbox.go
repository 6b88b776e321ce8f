package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// OutboxStore is the persistence surface the dispatcher drains.
type OutboxStore interface {
	FetchPending(ctx context.Context, limit, maxAttempts int) ([]Intent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// DB is the query surface PgOutbox needs; both pgxpool.Pool and pgxmock
// satisfy it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgOutbox stores intents in the intent_outbox table.
type PgOutbox struct {
	db DB
}

func NewPgOutbox(db DB) *PgOutbox {
	return &PgOutbox{db: db}
}

// InsertTx enqueues intents inside the caller's transaction so that the
// intent commits or rolls back together with the state change.
func InsertTx(ctx context.Context, tx pgx.Tx, intents ...Intent) error {
	for _, in := range intents {
		_, err := tx.Exec(ctx, `
			INSERT INTO intent_outbox (id, tenant_id, appointment_id, channel, kind, attempts, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, now())
		`, in.ID, in.TenantID, in.AppointmentID, in.Channel, in.Kind)
		if err != nil {
			return fmt.Errorf("insert intent %s/%s: %w", in.Channel, in.Kind, err)
		}
	}
	return nil
}

// FetchPending claims up to limit undelivered intents, bumping their attempt
// counter. SKIP LOCKED lets several dispatchers drain the table without
// stepping on each other.
func (o *PgOutbox) FetchPending(ctx context.Context, limit, maxAttempts int) ([]Intent, error) {
	rows, err := o.db.Query(ctx, `
		UPDATE intent_outbox o
		SET attempts = o.attempts + 1
		WHERE o.id IN (
			SELECT id
			FROM intent_outbox
			WHERE delivered_at IS NULL
			  AND failed_at IS NULL
			  AND attempts < $2
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING o.id, o.tenant_id, o.appointment_id, o.channel, o.kind, o.attempts, o.created_at
	`, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("claim pending intents: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		var in Intent
		if err := rows.Scan(&in.ID, &in.TenantID, &in.AppointmentID, &in.Channel, &in.Kind, &in.Attempts, &in.CreatedAt); err != nil {
			return nil, err
		}
		intents = append(intents, in)
	}
	return intents, rows.Err()
}

func (o *PgOutbox) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	_, err := o.db.Exec(ctx, `
		UPDATE intent_outbox SET delivered_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark intent delivered: %w", err)
	}
	return nil
}

// MarkFailed dead-letters an intent that has exhausted its attempts.
func (o *PgOutbox) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := o.db.Exec(ctx, `
		UPDATE intent_outbox SET failed_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("mark intent failed: %w", err)
	}
	return nil
}
