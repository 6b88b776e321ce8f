package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/booking-engine/internal/appointment"
	"github.com/glowdesk/booking-engine/internal/availability"
)

type CreateAppointmentRequest struct {
	ClientID  string  `json:"client_id"`
	ServiceID string  `json:"service_id"`
	StaffID   string  `json:"staff_id"`
	StartTime string  `json:"start_time"` // RFC 3339
	Notes     *string `json:"notes,omitempty"`
}

type RescheduleAppointmentRequest struct {
	NewStartTime string `json:"new_start_time"` // RFC 3339
	Reason       string `json:"reason,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	ClientID     uuid.UUID `json:"client_id"`
	ServiceID    uuid.UUID `json:"service_id"`
	StaffID      uuid.UUID `json:"staff_id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	Notes        *string   `json:"notes,omitempty"`
	CancelReason *string   `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		TenantID:     a.TenantID,
		ClientID:     a.ClientID,
		ServiceID:    a.ServiceID,
		StaffID:      a.StaffID,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Status:       string(a.Status),
		Notes:        a.Notes,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type SlotResponse struct {
	Time      time.Time `json:"time"`
	Available bool      `json:"available"`
}

type AvailabilityResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}

func toSlotResponses(slots []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Time: s.Time, Available: s.Available})
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
