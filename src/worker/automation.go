package worker

import (
	"context"
	"fmt"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

// TaskRunner executes one queued coverage task.
type TaskRunner interface {
	RunAutomationTask(ctx context.Context, task models.AutomationTask) (*ledger.CoverageOutcome, error)
}

type AutomationConfig struct {
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
	// BaseBackoff is doubled per failed attempt and capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		BatchSize:   50,
		MaxRetries:  5,
		Retention:   7 * 24 * time.Hour,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  time.Hour,
	}
}

// AutomationWorker drains coverage tasks that inline automation did not finish.
type AutomationWorker struct {
	runner TaskRunner
	queue  ledger.AutomationQueue
	cfg    AutomationConfig
	log    *logging.Logger
	now    func() time.Time
}

// BatchStats summarizes one pass over the due tasks.
type BatchStats struct {
	Due     int
	Applied int
	Skipped int
	Retried int
	Failed  int
}

func NewAutomationWorker(runner TaskRunner, queue ledger.AutomationQueue, cfg AutomationConfig, log *logging.Logger) *AutomationWorker {
	defaults := DefaultAutomationConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaults.MaxBackoff
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AutomationWorker{
		runner: runner,
		queue:  queue,
		cfg:    cfg,
		log:    log.WithComponent(logging.ComponentAutomation),
		now:    time.Now,
	}
}

// WithClock replaces the worker's time source.
func (w *AutomationWorker) WithClock(now func() time.Time) *AutomationWorker {
	w.now = now
	return w
}

// ProcessDue runs every task whose next attempt is due. A failing task is
// rescheduled with backoff until it has used MaxRetries attempts, then
// marked failed. Validation and not-found errors are not retried.
func (w *AutomationWorker) ProcessDue(ctx context.Context) (BatchStats, error) {
	var stats BatchStats
	tasks, err := w.queue.DueAutomationTasks(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("get due automation tasks: %w", err)
	}
	stats.Due = len(tasks)
	if len(tasks) == 0 {
		return stats, nil
	}

	w.log.InfoContext(ctx, "Processing due automation tasks", "count", len(tasks))

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		out, err := w.runner.RunAutomationTask(ctx, task)
		if err == nil {
			if out != nil && out.Status == ledger.AutomationSkipped {
				stats.Skipped++
			} else {
				stats.Applied++
			}
			continue
		}

		attempts := task.Attempts + 1
		if attempts >= w.cfg.MaxRetries || !retryable(err) {
			if ferr := w.queue.FailAutomationTask(ctx, task.ID, err.Error()); ferr != nil {
				w.log.ErrorContext(ctx, "Failed to mark automation task failed",
					logging.FieldTaskID, task.ID,
					logging.FieldError, ferr)
			}
			w.log.ErrorContext(ctx, "Automation task failed permanently",
				logging.FieldOperation, logging.OpCoverage,
				logging.FieldUserID, task.UserID,
				logging.FieldTaskID, task.ID,
				logging.FieldEnvelopeID, task.EnvelopeID,
				logging.FieldErrorKind, string(ledger.KindOf(err)),
				"attempts", attempts,
				logging.FieldError, err)
			stats.Failed++
			continue
		}

		next := w.now().Add(w.backoff(attempts))
		if rerr := w.queue.RetryAutomationTask(ctx, task.ID, err.Error(), next); rerr != nil {
			w.log.ErrorContext(ctx, "Failed to reschedule automation task",
				logging.FieldTaskID, task.ID,
				logging.FieldError, rerr)
		}
		w.log.WarnContext(ctx, "Automation task will be retried",
			logging.FieldOperation, logging.OpCoverage,
			logging.FieldUserID, task.UserID,
			logging.FieldTaskID, task.ID,
			"attempts", attempts,
			"next_attempt_at", next,
			logging.FieldError, err)
		stats.Retried++
	}

	w.log.InfoContext(ctx, "Automation batch completed",
		"due", stats.Due,
		"applied", stats.Applied,
		"skipped", stats.Skipped,
		"retried", stats.Retried,
		"failed", stats.Failed)
	return stats, nil
}

// Purge drops finished tasks older than the retention window.
func (w *AutomationWorker) Purge(ctx context.Context) (int64, error) {
	n, err := w.queue.PurgeAutomationTasks(ctx, w.now().Add(-w.cfg.Retention))
	if err != nil {
		return 0, fmt.Errorf("purge automation tasks: %w", err)
	}
	if n > 0 {
		w.log.InfoContext(ctx, "Purged finished automation tasks", "count", n)
	}
	return n, nil
}

// Run processes due tasks on every tick until ctx is cancelled.
func (w *AutomationWorker) Run(ctx context.Context, interval time.Duration) error {
	w.log.InfoContext(ctx, "Automation worker started", "interval", interval.String())
	w.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "Automation worker stopped")
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutomationWorker) tick(ctx context.Context) {
	if _, err := w.ProcessDue(ctx); err != nil && ctx.Err() == nil {
		w.log.ErrorContext(ctx, "Automation batch failed", logging.FieldError, err)
	}
	if _, err := w.Purge(ctx); err != nil && ctx.Err() == nil {
		w.log.ErrorContext(ctx, "Automation purge failed", logging.FieldError, err)
	}
}

func (w *AutomationWorker) backoff(attempts int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}

func retryable(err error) bool {
	switch ledger.KindOf(err) {
	case ledger.KindValidation, ledger.KindNotFound:
		return false
	default:
		return true
	}
}
