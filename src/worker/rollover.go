package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

// Roller closes one period into the next for a user.
type Roller interface {
	CurrentPeriod() models.Period
	Rollover(ctx context.Context, userID int64, from, to models.Period) (*ledger.RolloverResult, error)
}

// RolloverScheduler rolls every user into the new month once the calendar
// moves on. Rollover is idempotent, so a restart simply re-checks everyone.
type RolloverScheduler struct {
	roller Roller
	users  ledger.UserDirectory
	log    *logging.Logger
	done   models.Period
}

func NewRolloverScheduler(roller Roller, users ledger.UserDirectory, log *logging.Logger) *RolloverScheduler {
	if log == nil {
		log = logging.Nop()
	}
	return &RolloverScheduler{
		roller: roller,
		users:  users,
		log:    log.WithComponent(logging.ComponentRollover),
	}
}

type RolloverStats struct {
	Period  models.Period
	Users   int
	Rolled  int
	Already int
	Failed  int
}

// Check rolls every user from the previous month into the current one
// unless that already succeeded for the current month. Failed users are
// retried on the next check.
func (s *RolloverScheduler) Check(ctx context.Context) (RolloverStats, error) {
	current := s.roller.CurrentPeriod()
	stats := RolloverStats{Period: current}
	if current == s.done {
		return stats, nil
	}

	userIDs, err := s.users.ListUserIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("list users: %w", err)
	}
	stats.Users = len(userIDs)

	from := current.Prev()
	var errs []error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		res, err := s.roller.Rollover(ctx, userID, from, current)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))
			s.log.ErrorContext(ctx, "Scheduled rollover failed",
				logging.FieldOperation, logging.OpRollover,
				logging.FieldUserID, userID,
				logging.FieldPeriod, current.String(),
				logging.FieldErrorKind, string(ledger.KindOf(err)),
				logging.FieldError, err)
			continue
		}
		if res.AlreadyPerformed {
			stats.Already++
		} else {
			stats.Rolled++
		}
	}

	s.log.InfoContext(ctx, "Scheduled rollover check completed",
		logging.FieldPeriod, current.String(),
		"users", stats.Users,
		"rolled", stats.Rolled,
		"already", stats.Already,
		"failed", stats.Failed)

	if len(errs) > 0 {
		return stats, errors.Join(errs...)
	}
	s.done = current
	return stats, nil
}

// Run checks on every tick until ctx is cancelled.
func (s *RolloverScheduler) Run(ctx context.Context, interval time.Duration) error {
	s.log.InfoContext(ctx, "Rollover scheduler started", "interval", interval.String())
	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(ctx, "Rollover scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *RolloverScheduler) tick(ctx context.Context) {
	if _, err := s.Check(ctx); err != nil && ctx.Err() == nil {
		s.log.ErrorContext(ctx, "Rollover check failed", logging.FieldError, err)
	}
}
