package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/glowdesk/booking-engine/internal/availability"
	"github.com/glowdesk/booking-engine/internal/events"
)

// DB is the slice of pgxpool.Pool the repository uses; pgxmock satisfies it
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

var activeStatusStrings = []string{
	string(StatusScheduled),
	string(StatusConfirmed),
	string(StatusInProgress),
}

// Postgres raises 23P01 when the active-interval exclusion constraint on
// appointments rejects an overlapping row.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// Scan helpers

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, depErr("scan client", err)
	}
	return &c, nil
}

func scanService(row pgx.Row) (*ServiceDefinition, error) {
	var s ServiceDefinition
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, depErr("scan service", err)
	}
	return &s, nil
}

func scanStaff(row pgx.Row) (*Staff, error) {
	var (
		s            Staff
		specialties  []byte
		workingHours []byte
	)
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &specialties, &workingHours, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, depErr("scan staff", err)
	}
	if len(specialties) > 0 {
		if err := json.Unmarshal(specialties, &s.Specialties); err != nil {
			return nil, fmt.Errorf("decode staff specialties: %w", err)
		}
	}
	if len(workingHours) > 0 {
		if err := json.Unmarshal(workingHours, &s.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode staff working hours: %w", err)
		}
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.ClientID,
		&a.ServiceID,
		&a.StaffID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Notes,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, depErr("scan appointment", err)
	}
	return &a, nil
}

const appointmentColumns = `id, tenant_id, client_id, service_id, staff_id, start_time, end_time, status, notes, cancel_reason, created_at, updated_at`

// Lookups

func (r *PgRepository) GetClient(ctx context.Context, tenantID, id uuid.UUID) (*Client, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, phone, created_at, updated_at
		FROM clients
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanClient(row)
}

func (r *PgRepository) GetService(ctx context.Context, tenantID, id uuid.UUID) (*ServiceDefinition, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_minutes, price_cents, created_at, updated_at
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanService(row)
}

func (r *PgRepository) GetStaff(ctx context.Context, tenantID, id uuid.UUID) (*Staff, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, specialties, working_hours, created_at, updated_at
		FROM staff
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanStaff(row)
}

func (r *PgRepository) ListStaff(ctx context.Context, tenantID uuid.UUID) ([]Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, tenant_id, name, specialties, working_hours, created_at, updated_at
		FROM staff
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, depErr("list staff", err)
	}
	defer rows.Close()

	var result []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, depErr("list staff", err)
	}
	return result, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListBusyIntervals(ctx context.Context, tenantID, staffID uuid.UUID, window availability.Interval, exclude *uuid.UUID) ([]availability.Interval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE tenant_id = $1
		  AND staff_id = $2
		  AND status = ANY($3)
		  AND start_time < $5
		  AND end_time > $4
		  AND ($6::uuid IS NULL OR id <> $6)
		ORDER BY start_time
	`, tenantID, staffID, activeStatusStrings, window.Start, window.End, exclude)
	if err != nil {
		return nil, depErr("list busy intervals", err)
	}
	defer rows.Close()

	var busy []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, depErr("scan busy interval", err)
		}
		busy = append(busy, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, depErr("list busy intervals", err)
	}
	return busy, nil
}

// Writes

// hasConflictTx is the authoritative write-time overlap check, executed
// inside the same transaction as the write it guards. The exclusion
// constraint on appointments backs it up against writers racing in other
// transactions.
func hasConflictTx(ctx context.Context, tx pgx.Tx, tenantID, staffID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	var conflict bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE tenant_id = $1
			  AND staff_id = $2
			  AND status = ANY($3)
			  AND start_time < $5
			  AND end_time > $4
			  AND ($6::uuid IS NULL OR id <> $6)
		)
	`, tenantID, staffID, activeStatusStrings, start, end, exclude).Scan(&conflict)
	if err != nil {
		return false, depErr("conflict check", err)
	}
	return conflict, nil
}

func (r *PgRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return depErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return ErrSlotUnavailable
		}
		return depErr("commit tx", err)
	}
	return nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment, intents ...events.Intent) (*Appointment, error) {
	var created *Appointment

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		conflict, err := hasConflictTx(ctx, tx, appt.TenantID, appt.StaffID, appt.StartTime, appt.EndTime, nil)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotUnavailable
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, tenant_id, client_id, service_id, staff_id, start_time, end_time, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			RETURNING `+appointmentColumns+`
		`, appt.ID, appt.TenantID, appt.ClientID, appt.ServiceID, appt.StaffID, appt.StartTime, appt.EndTime, appt.Status, appt.Notes)

		created, err = scanAppointment(row)
		if err != nil {
			if isExclusionViolation(err) {
				return ErrSlotUnavailable
			}
			return err
		}

		return events.InsertTx(ctx, tx, intents...)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, tenantID, id uuid.UUID, newStart, newEnd time.Time, newStatus Status, intents ...events.Intent) (*Appointment, error) {
	var updated *Appointment

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		current, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE tenant_id = $1 AND id = $2
			FOR UPDATE
		`, tenantID, id))
		if err != nil {
			return err
		}

		conflict, err := hasConflictTx(ctx, tx, tenantID, current.StaffID, newStart, newEnd, &id)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotUnavailable
		}

		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET start_time = $3,
			    end_time = $4,
			    status = $5,
			    updated_at = now()
			WHERE tenant_id = $1 AND id = $2
			RETURNING `+appointmentColumns+`
		`, tenantID, id, newStart, newEnd, newStatus)

		updated, err = scanAppointment(row)
		if err != nil {
			if isExclusionViolation(err) {
				return ErrSlotUnavailable
			}
			return err
		}

		return events.InsertTx(ctx, tx, intents...)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status, cancelReason *string, intents ...events.Intent) (*Appointment, error) {
	var updated *Appointment

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments
			SET status = $4,
			    cancel_reason = COALESCE($5, cancel_reason),
			    updated_at = now()
			WHERE tenant_id = $1 AND id = $2 AND status = $3
			RETURNING `+appointmentColumns+`
		`, tenantID, id, from, to, cancelReason)

		var err error
		updated, err = scanAppointment(row)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Row missing or already moved on; let the caller decide
				// which, it has the loaded appointment.
				return ErrInvalidTransition
			}
			return err
		}

		return events.InsertTx(ctx, tx, intents...)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (tenant_id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.TenantID, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
