package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/booking-engine/internal/availability"
	"github.com/glowdesk/booking-engine/internal/events"
	"github.com/glowdesk/booking-engine/internal/observability/metrics"
	"github.com/glowdesk/booking-engine/internal/policy"
	redisclient "github.com/glowdesk/booking-engine/internal/redis"
	"github.com/glowdesk/booking-engine/pkg/logging"
)

// Service is the booking orchestrator: it composes the slot generator, the
// conflict detector, the policy engine and the lifecycle rules into the
// public scheduling operations. All operations are fail-fast; the first
// failing validation aborts with no partial writes.
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	policies policy.Provider
	logger   *logging.Logger
	metrics  *metrics.BookingMetrics
	slotStep time.Duration
	now      func() time.Time
}

type ServiceConfig struct {
	Repo     Repository
	Locker   redisclient.Locker
	Policies policy.Provider
	Logger   *logging.Logger
	Metrics  *metrics.BookingMetrics
	// SlotStep is the slot granularity; defaults to 30 minutes.
	SlotStep time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Repo == nil {
		panic("appointment: repository required")
	}
	if cfg.Locker == nil {
		panic("appointment: locker required")
	}
	if cfg.Policies == nil {
		panic("appointment: policy provider required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     cfg.Repo,
		locker:   cfg.Locker,
		policies: cfg.Policies,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		slotStep: cfg.SlotStep,
		now:      cfg.Now,
	}
}

func (s *Service) getPolicy(ctx context.Context, tenantID uuid.UUID) (policy.Policy, error) {
	pol, err := s.policies.GetPolicy(ctx, tenantID)
	if err != nil {
		if errors.Is(err, policy.ErrTenantNotFound) {
			return policy.Policy{}, ErrTenantNotFound
		}
		return policy.Policy{}, depErr("load tenant policy", err)
	}
	return pol, nil
}

// GetAvailableSlots computes the bookable start times for a service on one
// date. staffID nil means "any professional": the union of availability
// across every staff member who offers the service. Slots taken by existing
// bookings stay in the result marked unavailable.
func (s *Service) GetAvailableSlots(ctx context.Context, tenantID uuid.UUID, staffID *uuid.UUID, serviceID uuid.UUID, date time.Time) ([]availability.Slot, error) {
	svcDef, err := s.repo.GetService(ctx, tenantID, serviceID)
	if err != nil {
		return nil, err
	}

	pol, err := s.getPolicy(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var staffList []Staff
	if staffID != nil {
		st, err := s.repo.GetStaff(ctx, tenantID, *staffID)
		if err != nil {
			return nil, err
		}
		staffList = []Staff{*st}
	} else {
		all, err := s.repo.ListStaff(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		for _, st := range all {
			if st.Offers(serviceID) {
				staffList = append(staffList, st)
			}
		}
	}

	// date is a calendar date: keep its Y/M/D as requested and anchor the
	// day in the tenant's timezone. Converting the instant first would
	// shift the query to the previous local day west of UTC.
	loc := pol.Location()
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayWindow := availability.Interval{Start: day, End: day.AddDate(0, 0, 1)}
	now := s.now()

	sets := make([][]availability.Slot, 0, len(staffList))
	for _, st := range staffList {
		schedule := st.WorkingHours
		if len(schedule) == 0 {
			schedule = pol.BusinessHours
		}
		window, open := schedule.WindowOn(day)
		if !open {
			continue
		}

		busy, err := s.repo.ListBusyIntervals(ctx, tenantID, st.ID, dayWindow, nil)
		if err != nil {
			return nil, err
		}

		sets = append(sets, availability.Slots(window, svcDef.Duration(), s.slotStep, busy, now))
	}

	return availability.Union(sets...), nil
}

type CreateParams struct {
	TenantID  uuid.UUID
	ClientID  uuid.UUID
	ServiceID uuid.UUID
	StaffID   uuid.UUID
	StartTime time.Time
	Notes     *string
}

// CreateAppointment books a new appointment. The end time is derived from
// the service's current duration and snapshotted; the conflict check and
// the insert run atomically per staff calendar.
func (s *Service) CreateAppointment(ctx context.Context, p CreateParams) (*Appointment, error) {
	svcDef, err := s.repo.GetService(ctx, p.TenantID, p.ServiceID)
	if err != nil {
		return nil, s.observe("create", err)
	}
	if _, err := s.repo.GetClient(ctx, p.TenantID, p.ClientID); err != nil {
		return nil, s.observe("create", err)
	}
	staff, err := s.repo.GetStaff(ctx, p.TenantID, p.StaffID)
	if err != nil {
		return nil, s.observe("create", err)
	}
	pol, err := s.getPolicy(ctx, p.TenantID)
	if err != nil {
		return nil, s.observe("create", err)
	}

	endTime := p.StartTime.Add(svcDef.Duration())
	interval := availability.Interval{Start: p.StartTime, End: endTime}
	if !interval.Valid() {
		return nil, s.observe("create", fmt.Errorf("%w: end %s not after start %s", ErrInvalidInterval, endTime, p.StartTime))
	}
	if err := s.checkBusinessHours(staff, pol, interval); err != nil {
		return nil, s.observe("create", err)
	}

	appt := &Appointment{
		ID:        uuid.New(),
		TenantID:  p.TenantID,
		ClientID:  p.ClientID,
		ServiceID: p.ServiceID,
		StaffID:   p.StaffID,
		StartTime: p.StartTime,
		EndTime:   endTime,
		Status:    StatusScheduled,
		Notes:     p.Notes,
	}

	var created *Appointment
	err = s.locker.WithStaffLock(ctx, p.TenantID, p.StaffID, func(lockCtx context.Context) error {
		var err error
		created, err = s.repo.CreateAppointment(lockCtx, appt,
			events.NewNotifyIntent(p.TenantID, appt.ID, events.NotifyConfirmation),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = fmt.Errorf("%w: staff calendar is being booked, retry shortly", ErrSlotUnavailable)
		}
		return nil, s.observe("create", err)
	}

	s.logEvent(ctx, created.TenantID, created.ID, EventAppointmentCreated, map[string]any{
		"staff_id":   created.StaffID.String(),
		"client_id":  created.ClientID.String(),
		"service_id": created.ServiceID.String(),
		"start_time": created.StartTime,
		"end_time":   created.EndTime,
	})
	s.logger.Info("appointment created",
		"tenant_id", created.TenantID,
		"appointment_id", created.ID,
		"staff_id", created.StaffID,
		"start_time", created.StartTime,
	)
	return created, s.observe("create", nil)
}

// RescheduleAppointment moves an appointment to a new start time, keeping
// its duration snapshot. A confirmed appointment reverts to scheduled since
// the confirmation applied to the old time.
func (s *Service) RescheduleAppointment(ctx context.Context, tenantID, id uuid.UUID, newStart time.Time, reason string) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, s.observe("reschedule", err)
	}
	if !appt.Reschedulable() {
		return nil, s.observe("reschedule", ErrInvalidTransition)
	}

	pol, err := s.getPolicy(ctx, tenantID)
	if err != nil {
		return nil, s.observe("reschedule", err)
	}
	if err := pol.CanReschedule(s.now(), appt.StartTime); err != nil {
		return nil, s.observe("reschedule", err)
	}

	staff, err := s.repo.GetStaff(ctx, tenantID, appt.StaffID)
	if err != nil {
		return nil, s.observe("reschedule", err)
	}

	newEnd := newStart.Add(appt.EndTime.Sub(appt.StartTime))
	interval := availability.Interval{Start: newStart, End: newEnd}
	if !interval.Valid() {
		return nil, s.observe("reschedule", fmt.Errorf("%w: end %s not after start %s", ErrInvalidInterval, newEnd, newStart))
	}
	if err := s.checkBusinessHours(staff, pol, interval); err != nil {
		return nil, s.observe("reschedule", err)
	}

	newStatus := RescheduledStatus(appt.Status)

	var updated *Appointment
	err = s.locker.WithStaffLock(ctx, tenantID, appt.StaffID, func(lockCtx context.Context) error {
		var err error
		updated, err = s.repo.RescheduleAppointment(lockCtx, tenantID, id, newStart, newEnd, newStatus,
			events.NewNotifyIntent(tenantID, id, events.NotifyReschedule),
			events.NewSyncIntent(tenantID, id, events.SyncUpsert),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			err = fmt.Errorf("%w: staff calendar is being booked, retry shortly", ErrSlotUnavailable)
		}
		return nil, s.observe("reschedule", err)
	}

	s.logEvent(ctx, tenantID, id, EventAppointmentRescheduled, map[string]any{
		"old_start": appt.StartTime,
		"new_start": updated.StartTime,
		"reason":    reason,
	})
	s.logger.Info("appointment rescheduled",
		"tenant_id", tenantID,
		"appointment_id", id,
		"new_start", updated.StartTime,
		"status", updated.Status,
	)
	return updated, s.observe("reschedule", nil)
}

// CancelAppointment cancels an appointment inside the tenant's notice
// policy. Cancellation is a status change, never a delete; the row stays
// queryable for history.
func (s *Service) CancelAppointment(ctx context.Context, tenantID, id uuid.UUID, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, s.observe("cancel", ErrCancelReasonRequired)
	}

	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, s.observe("cancel", err)
	}
	if !CanTransition(appt.Status, StatusCanceled) {
		return nil, s.observe("cancel", ErrInvalidTransition)
	}

	pol, err := s.getPolicy(ctx, tenantID)
	if err != nil {
		return nil, s.observe("cancel", err)
	}
	if err := pol.CanCancel(s.now(), appt.StartTime); err != nil {
		return nil, s.observe("cancel", err)
	}

	updated, err := s.repo.UpdateStatus(ctx, tenantID, id, appt.Status, StatusCanceled, &reason,
		events.NewNotifyIntent(tenantID, id, events.NotifyCancellation),
		events.NewSyncIntent(tenantID, id, events.SyncRemove),
	)
	if err != nil {
		return nil, s.observe("cancel", err)
	}

	s.logEvent(ctx, tenantID, id, EventAppointmentCanceled, map[string]any{"reason": reason})
	s.logger.Info("appointment canceled", "tenant_id", tenantID, "appointment_id", id)
	return updated, s.observe("cancel", nil)
}

// MarkNoShow flags a missed appointment. Not policy-gated: it is a business
// decision, not a scheduling-conflict decision.
func (s *Service) MarkNoShow(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "no_show", tenantID, id, StatusNoShow, EventAppointmentNoShow)
}

// MarkCompleted finishes an appointment.
func (s *Service) MarkCompleted(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "complete", tenantID, id, StatusCompleted, EventAppointmentCompleted)
}

// Transition applies a staff-driven forward move (confirm, start, …) that
// the state machine allows. No intents: the notify kinds only cover
// bookings, reschedules and cancellations.
func (s *Service) Transition(ctx context.Context, tenantID, id uuid.UUID, to Status) (*Appointment, error) {
	return s.transition(ctx, "transition", tenantID, id, to, EventStatusChanged)
}

func (s *Service) transition(ctx context.Context, op string, tenantID, id uuid.UUID, to Status, eventType string) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, s.observe(op, err)
	}
	if !CanTransition(appt.Status, to) {
		return nil, s.observe(op, ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateStatus(ctx, tenantID, id, appt.Status, to, nil)
	if err != nil {
		return nil, s.observe(op, err)
	}

	s.logEvent(ctx, tenantID, id, eventType, map[string]any{
		"from": appt.Status,
		"to":   to,
	})
	s.logger.Info("appointment status changed",
		"tenant_id", tenantID,
		"appointment_id", id,
		"from", appt.Status,
		"to", to,
	)
	return updated, s.observe(op, nil)
}

// GetAppointment retrieves an appointment scoped to the tenant.
func (s *Service) GetAppointment(ctx context.Context, tenantID, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// checkBusinessHours rejects intervals outside the staff member's window
// for that weekday, falling back to the tenant's default hours when the
// staff member has no schedule.
func (s *Service) checkBusinessHours(staff *Staff, pol policy.Policy, interval availability.Interval) error {
	schedule := staff.WorkingHours
	if len(schedule) == 0 {
		schedule = pol.BusinessHours
	}

	localStart := interval.Start.In(pol.Location())
	window, open := schedule.WindowOn(localStart)
	if !open {
		return ErrOutsideBusinessHours
	}
	if interval.Start.Before(window.Open) || interval.End.After(window.Close) {
		return ErrOutsideBusinessHours
	}
	return nil
}

func (s *Service) observe(op string, err error) error {
	if err == nil {
		s.metrics.ObserveOperation(op, "ok")
		return nil
	}
	switch {
	case errors.Is(err, ErrSlotUnavailable):
		s.metrics.ObserveOperation(op, "conflict")
		s.metrics.ObserveConflict()
	case errors.Is(err, ErrPolicyViolation):
		s.metrics.ObserveOperation(op, "policy_violation")
	case errors.Is(err, ErrNotFound):
		s.metrics.ObserveOperation(op, "not_found")
	case errors.Is(err, ErrInvalidInterval):
		s.metrics.ObserveOperation(op, "invalid_interval")
	default:
		s.metrics.ObserveOperation(op, "error")
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, tenantID, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		TenantID:      tenantID,
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("insert event log",
			"event_type", eventType,
			"appointment_id", appointmentID,
			"error", err,
		)
	}
}
