package reconcile

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/civicgate/payment-orchestrator/internal/domain"
	"github.com/civicgate/payment-orchestrator/internal/domain/ports"
)

const (
	// DefaultSchedule runs a sweep every five minutes
	DefaultSchedule = "*/5 * * * *"

	// DefaultMinAge keeps the sweep away from attempts the submission path
	// may still be resolving
	DefaultMinAge = 10 * time.Minute

	DefaultBatchSize = int32(100)

	sweepTimeout = 2 * time.Minute
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweeps_total",
		Help: "Reconciliation sweeps run",
	})

	settledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_attempts_settled_total",
		Help: "Attempts settled by the reconciler, by final status",
	}, []string{"status"})

	sweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_errors_total",
		Help: "Status checks or resolutions that failed during a sweep",
	})
)

// Reconciler settles attempts the submission path left in pending or
// unknown status. It asks the processor for the final status by session id
// and resolves the attempt once the answer is definitive; attempts that are
// still unclear stay queued for the next sweep.
type Reconciler struct {
	attempts ports.AttemptRepository
	status   ports.StatusChecker
	events   ports.EventPublisher
	logger   *zap.Logger

	minAge    time.Duration
	batchSize int32

	cron *cron.Cron
}

func NewReconciler(
	attempts ports.AttemptRepository,
	status ports.StatusChecker,
	events ports.EventPublisher,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		attempts:  attempts,
		status:    status,
		events:    events,
		logger:    logger,
		minAge:    DefaultMinAge,
		batchSize: DefaultBatchSize,
		cron:      cron.New(),
	}
}

// Start schedules sweeps on the given cron expression
func (r *Reconciler) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := r.Sweep(ctx); err != nil {
			r.logger.Error("reconciliation sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep settles one batch of unresolved attempts
func (r *Reconciler) Sweep(ctx context.Context) error {
	sweepsTotal.Inc()

	attempts, err := r.attempts.ListUnresolved(ctx, time.Now().Add(-r.minAge), r.batchSize)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		return nil
	}

	r.logger.Info("reconciling unresolved attempts", zap.Int("count", len(attempts)))

	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.settle(ctx, attempt)
	}
	return nil
}

// settle resolves one attempt if the processor reports a definitive status
func (r *Reconciler) settle(ctx context.Context, attempt *domain.PaymentAttempt) {
	resp, err := r.status.CheckStatus(ctx, attempt.SessionID)
	if err != nil {
		sweepErrors.Inc()
		r.logger.Warn("status check failed",
			zap.String("attempt_id", attempt.ID),
			zap.String("session_uuid", attempt.SessionID),
			zap.Error(err))
		return
	}

	if !resp.Outcome.IsTerminal() {
		// still unclear, the next sweep will ask again
		return
	}

	status := domain.StatusForOutcome(resp.Outcome)
	if err := r.attempts.Resolve(ctx, attempt.ID, status, resp.TransactionID, resp.ErrorMessage); err != nil {
		sweepErrors.Inc()
		r.logger.Error("failed to resolve reconciled attempt",
			zap.String("attempt_id", attempt.ID), zap.Error(err))
		return
	}
	settledTotal.WithLabelValues(string(status)).Inc()

	r.logger.Info("attempt settled by reconciliation",
		zap.String("attempt_id", attempt.ID),
		zap.String("session_uuid", attempt.SessionID),
		zap.String("status", string(status)))

	event := ports.PaymentEvent{
		AttemptID:        attempt.ID,
		SessionID:        attempt.SessionID,
		EntityType:       string(attempt.Entity.Type),
		EntityID:         attempt.Entity.ID,
		CustomerID:       attempt.CustomerID,
		Method:           attempt.Method,
		BaseAmountCents:  attempt.BaseAmountCents,
		TotalAmountCents: attempt.TotalAmountCents,
		Outcome:          resp.Outcome,
		TransactionID:    resp.TransactionID,
		FailureMessage:   resp.ErrorMessage,
		OccurredAt:       time.Now(),
	}
	if err := r.events.PublishPaymentEvent(ctx, event); err != nil {
		r.logger.Warn("failed to publish settlement event",
			zap.String("attempt_id", attempt.ID), zap.Error(err))
	}
}
