package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/glowdesk/booking-engine/pkg/logging"
)

// CachedProvider keeps tenant policies in Redis for a short TTL. Any cache
// failure falls through to the inner provider: a policy is never guessed, so
// staleness can only last the TTL and never loosens a threshold beyond it.
type CachedProvider struct {
	inner  Provider
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedProvider(inner Provider, rdb *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedProvider{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func policyKey(tenantID uuid.UUID) string {
	return fmt.Sprintf("policy:%s", tenantID)
}

func (p *CachedProvider) GetPolicy(ctx context.Context, tenantID uuid.UUID) (Policy, error) {
	key := policyKey(tenantID)

	raw, err := p.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var pol Policy
		if jsonErr := json.Unmarshal(raw, &pol); jsonErr == nil {
			return pol, nil
		}
		// Corrupt entry; drop it and reload.
		p.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		p.logger.Warn("policy cache read failed", "tenant_id", tenantID, "error", err)
	}

	pol, err := p.inner.GetPolicy(ctx, tenantID)
	if err != nil {
		return Policy{}, err
	}

	if data, jsonErr := json.Marshal(pol); jsonErr == nil {
		if setErr := p.rdb.Set(ctx, key, data, p.ttl).Err(); setErr != nil {
			p.logger.Warn("policy cache write failed", "tenant_id", tenantID, "error", setErr)
		}
	}

	return pol, nil
}

// Invalidate removes a tenant's cached policy, for use after administration
// updates it.
func (p *CachedProvider) Invalidate(ctx context.Context, tenantID uuid.UUID) error {
	return p.rdb.Del(ctx, policyKey(tenantID)).Err()
}
