package appointment

import (
	"errors"
	"fmt"

	"github.com/glowdesk/booking-engine/internal/policy"
)

// Error kinds returned across the engine boundary. Callers branch with
// errors.Is; entity-specific errors below match their kind as well.
var (
	ErrNotFound              = errors.New("not found")
	ErrSlotUnavailable       = errors.New("slot unavailable")
	ErrInvalidInterval       = errors.New("invalid interval")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrPolicyViolation aliases the policy package's kind so callers can
	// match either.
	ErrPolicyViolation = policy.ErrViolation
)

var (
	ErrTenantNotFound      = fmt.Errorf("tenant %w", ErrNotFound)
	ErrClientNotFound      = fmt.Errorf("client %w", ErrNotFound)
	ErrServiceNotFound     = fmt.Errorf("service %w", ErrNotFound)
	ErrStaffNotFound       = fmt.Errorf("staff %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
)

var (
	// ErrInvalidTransition covers lifecycle moves the state machine forbids,
	// including any transition out of a terminal status. It reports as the
	// policy-violation kind so the boundary has one consistent rejection for
	// "this request is not allowed now".
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrPolicyViolation)

	// ErrCancelReasonRequired rejects cancellations without a reason.
	ErrCancelReasonRequired = errors.New("cancel reason is required")

	// ErrOutsideBusinessHours is an InvalidInterval: the requested time does
	// not fit any business-hours window for that weekday.
	ErrOutsideBusinessHours = fmt.Errorf("%w: start time outside business hours", ErrInvalidInterval)
)

// depErr tags a transient storage failure as retryable while keeping the
// underlying error chain.
func depErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrDependencyUnavailable, err))
}
