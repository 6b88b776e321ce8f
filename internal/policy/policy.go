package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/booking-engine/internal/availability"
)

// ErrViolation is the kind callers branch on; concrete violations carry the
// offended threshold and match it through errors.Is.
var ErrViolation = errors.New("policy violation")

// Defaults applied when a tenant has not configured its own thresholds.
const (
	DefaultMinNoticeReschedule = 24 * time.Hour
	DefaultMinNoticeCancel     = 2 * time.Hour
	DefaultTimezone            = "UTC"
)

// DefaultBusinessHours is used when a tenant has no configured hours and a
// staff member has no working-hours schedule of their own.
func DefaultBusinessHours() availability.WeekSchedule {
	hours := availability.WeekSchedule{}
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		hours[wd] = availability.DayWindow{Open: "09:00", Close: "18:00"}
	}
	return hours
}

// Policy is a tenant's scheduling configuration. It is owned by tenant
// administration and read-only to the booking engine.
type Policy struct {
	TenantID            uuid.UUID                 `json:"tenant_id"`
	MinNoticeReschedule time.Duration             `json:"min_notice_reschedule"`
	MinNoticeCancel     time.Duration             `json:"min_notice_cancel"`
	BusinessHours       availability.WeekSchedule `json:"business_hours"`
	Timezone            string                    `json:"timezone"`
}

// Default returns the policy applied to tenants with no stored configuration.
func Default(tenantID uuid.UUID) Policy {
	return Policy{
		TenantID:            tenantID,
		MinNoticeReschedule: DefaultMinNoticeReschedule,
		MinNoticeCancel:     DefaultMinNoticeCancel,
		BusinessHours:       DefaultBusinessHours(),
		Timezone:            DefaultTimezone,
	}
}

// Location resolves the tenant's timezone, falling back to UTC on a bad or
// empty name.
func (p Policy) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ViolationError reports a transition requested inside the tenant's
// minimum-notice window.
type ViolationError struct {
	Action    string
	MinNotice time.Duration
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%ss require at least %s notice", e.Action, formatNotice(e.MinNotice))
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrViolation
}

func formatNotice(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// CanReschedule checks the reschedule notice threshold against the
// appointment's current start time. Sitting exactly on the boundary passes.
func (p Policy) CanReschedule(now, startTime time.Time) error {
	if startTime.Sub(now) < p.MinNoticeReschedule {
		return &ViolationError{Action: "reschedule", MinNotice: p.MinNoticeReschedule}
	}
	return nil
}

// CanCancel checks the cancellation notice threshold.
func (p Policy) CanCancel(now, startTime time.Time) error {
	if startTime.Sub(now) < p.MinNoticeCancel {
		return &ViolationError{Action: "cancellation", MinNotice: p.MinNoticeCancel}
	}
	return nil
}
