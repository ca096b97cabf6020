package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Intervals sets how often each background loop wakes up.
type Intervals struct {
	Automation time.Duration
	Rollover   time.Duration
}

// Run drives the automation worker and the rollover scheduler until ctx is
// cancelled or either loop returns an error.
func Run(ctx context.Context, automation *AutomationWorker, rollover *RolloverScheduler, every Intervals) error {
	g, ctx := errgroup.WithContext(ctx)
	if automation != nil {
		g.Go(func() error {
			return automation.Run(ctx, every.Automation)
		})
	}
	if rollover != nil {
		g.Go(func() error {
			return rollover.Run(ctx, every.Rollover)
		})
	}
	return g.Wait()
}
