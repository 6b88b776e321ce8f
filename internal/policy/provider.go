package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/glowdesk/booking-engine/internal/availability"
)

var ErrTenantNotFound = errors.New("tenant not found")

// Provider resolves the scheduling policy for a tenant.
type Provider interface {
	GetPolicy(ctx context.Context, tenantID uuid.UUID) (Policy, error)
}

// Row querying surface of pgxpool.Pool; pgxmock satisfies it in tests.
type dbQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgProvider struct {
	db dbQuerier
}

func NewPgProvider(db dbQuerier) *PgProvider {
	return &PgProvider{db: db}
}

// GetPolicy loads the tenant's stored policy. Tenants without a policy row
// get the documented defaults; unset columns fall back individually.
func (p *PgProvider) GetPolicy(ctx context.Context, tenantID uuid.UUID) (Policy, error) {
	row := p.db.QueryRow(ctx, `
		SELECT t.id,
		       p.min_notice_reschedule_minutes,
		       p.min_notice_cancel_minutes,
		       p.business_hours,
		       p.timezone
		FROM tenants t
		LEFT JOIN tenant_policies p ON p.tenant_id = t.id
		WHERE t.id = $1
	`, tenantID)

	var (
		id                uuid.UUID
		rescheduleMinutes *int
		cancelMinutes     *int
		businessHours     []byte
		timezone          *string
	)
	if err := row.Scan(&id, &rescheduleMinutes, &cancelMinutes, &businessHours, &timezone); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, ErrTenantNotFound
		}
		return Policy{}, fmt.Errorf("load tenant policy: %w", err)
	}

	pol := Default(tenantID)
	if rescheduleMinutes != nil {
		pol.MinNoticeReschedule = time.Duration(*rescheduleMinutes) * time.Minute
	}
	if cancelMinutes != nil {
		pol.MinNoticeCancel = time.Duration(*cancelMinutes) * time.Minute
	}
	if timezone != nil && *timezone != "" {
		pol.Timezone = *timezone
	}
	if len(businessHours) > 0 {
		var hours availability.WeekSchedule
		if err := hours.UnmarshalJSON(businessHours); err != nil {
			return Policy{}, fmt.Errorf("decode business hours for tenant %s: %w", tenantID, err)
		}
		if len(hours) > 0 {
			pol.BusinessHours = hours
		}
	}

	return pol, nil
}

// StaticProvider serves fixed policies; used by tests and the simulator.
type StaticProvider struct {
	policies map[uuid.UUID]Policy
}

func NewStaticProvider(policies ...Policy) *StaticProvider {
	m := make(map[uuid.UUID]Policy, len(policies))
	for _, p := range policies {
		m[p.TenantID] = p
	}
	return &StaticProvider{policies: m}
}

func (p *StaticProvider) GetPolicy(_ context.Context, tenantID uuid.UUID) (Policy, error) {
	pol, ok := p.policies[tenantID]
	if !ok {
		return Policy{}, ErrTenantNotFound
	}
	return pol, nil
}
