package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/glowdesk/booking-engine/internal/appointment"
	"github.com/glowdesk/booking-engine/internal/policy"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps the engine's error kinds onto HTTP statuses. The
// order matters: ErrInvalidTransition wraps the policy-violation kind but
// deserves 409, and ErrOutsideBusinessHours wraps the invalid-interval kind.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrCancelReasonRequired):
		writeError(w, http.StatusBadRequest, "cancel_reason_required", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, policy.ErrViolation):
		writeError(w, http.StatusUnprocessableEntity, "policy_violation", err.Error())
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval", err.Error())
	case errors.Is(err, appointment.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", "a backing service is unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
