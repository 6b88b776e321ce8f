package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/glowdesk/booking-engine/internal/observability/metrics"
	"github.com/glowdesk/booking-engine/pkg/logging"
)

// Notifier delivers notify intents to the external notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, tenantID, appointmentID uuid.UUID, kind NotifyKind) error
}

// Syncer delivers integration-sync intents to the external calendar collaborator.
type Syncer interface {
	Sync(ctx context.Context, tenantID, appointmentID uuid.UUID, action SyncAction) error
}

// Dispatcher drains the intent outbox and delivers each intent to its
// collaborator. Delivery is best-effort: failures are logged and retried up
// to maxAttempts, then dead-lettered. The booking that produced the intent
// is never affected.
type Dispatcher struct {
	store       OutboxStore
	notifier    Notifier
	syncer      Syncer
	logger      *logging.Logger
	metrics     *metrics.DispatcherMetrics
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

type DispatcherConfig struct {
	Store       OutboxStore
	Notifier    Notifier
	Syncer      Syncer
	Logger      *logging.Logger
	Metrics     *metrics.DispatcherMetrics
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Dispatcher{
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		syncer:      cfg.Syncer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Run drains the outbox on a ticker until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("intent dispatcher stopping")
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Dispatcher) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, d.interval+20*time.Second)
	defer cancel()

	if _, err := d.RunOnce(runCtx); err != nil {
		d.logger.Error("intent dispatch run failed", "error", err)
	}
}

// RunOnce claims one batch and delivers it, returning the delivered count.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	intents, err := d.store.FetchPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, in := range intents {
		if err := d.deliver(ctx, in); err != nil {
			d.logger.Error("intent delivery failed",
				"intent_id", in.ID,
				"channel", in.Channel,
				"kind", in.Kind,
				"appointment_id", in.AppointmentID,
				"attempts", in.Attempts,
				"error", err,
			)
			d.metrics.ObserveDelivery(string(in.Channel), "error")
			if in.Attempts >= d.maxAttempts {
				if failErr := d.store.MarkFailed(ctx, in.ID); failErr != nil {
					d.logger.Error("mark intent failed", "intent_id", in.ID, "error", failErr)
				}
			}
			continue
		}

		if err := d.store.MarkDelivered(ctx, in.ID); err != nil {
			d.logger.Error("mark intent delivered", "intent_id", in.ID, "error", err)
			continue
		}
		d.metrics.ObserveDelivery(string(in.Channel), "ok")
		delivered++
	}

	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, in Intent) error {
	switch in.Channel {
	case ChannelSync:
		return d.syncer.Sync(ctx, in.TenantID, in.AppointmentID, SyncAction(in.Kind))
	default:
		return d.notifier.Notify(ctx, in.TenantID, in.AppointmentID, NotifyKind(in.Kind))
	}
}

// LogNotifier is the default Notifier: it records the intent and succeeds.
// Real delivery channels live outside this service.
type LogNotifier struct {
	Logger *logging.Logger
}

func (n *LogNotifier) Notify(_ context.Context, tenantID, appointmentID uuid.UUID, kind NotifyKind) error {
	logger := n.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("notify intent dispatched", "tenant_id", tenantID, "appointment_id", appointmentID, "kind", kind)
	return nil
}

// LogSyncer is the default Syncer counterpart to LogNotifier.
type LogSyncer struct {
	Logger *logging.Logger
}

func (s *LogSyncer) Sync(_ context.Context, tenantID, appointmentID uuid.UUID, action SyncAction) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger.Info("sync intent dispatched", "tenant_id", tenantID, "appointment_id", appointmentID, "action", action)
	return nil
}
