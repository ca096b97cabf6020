package ledger

import (
	"context"
	"sort"
	"time"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

// Notifier tells real-time listeners that a user's data changed.
type Notifier interface {
	Publish(ctx context.Context, userID int64, kind models.EventKind) error
}

// SnapshotCache holds dashboard snapshots between mutations. Get returns
// the user's generation even on a miss; Set must be given that generation
// so a snapshot read before a commit is never stored as current.
type SnapshotCache interface {
	Get(userID int64, p models.Period) (*models.DashboardSnapshot, uint64, bool)
	Set(userID int64, p models.Period, gen uint64, snap *models.DashboardSnapshot)
	InvalidateUser(userID int64)
}

type Options struct {
	Notifier Notifier
	Cache    SnapshotCache
	Logger   *logging.Logger
	Clock    func() time.Time
	// InlineAutomation runs queued coverage right after the allocation commits.
	// Tasks that fail stay queued for the worker either way.
	InlineAutomation bool
}

// Service is the envelope ledger. It holds no per-user state of its own;
// everything mutable lives behind the Store.
type Service struct {
	store            Store
	notifier         Notifier
	cache            SnapshotCache
	log              *logging.Logger
	now              func() time.Time
	inlineAutomation bool
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:            store,
		notifier:         opts.Notifier,
		cache:            opts.Cache,
		log:              opts.Logger,
		now:              opts.Clock,
		inlineAutomation: opts.InlineAutomation,
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	s.log = s.log.WithComponent(logging.ComponentLedger)
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) CurrentPeriod() models.Period {
	return models.PeriodOf(s.now())
}

// unit tracks what one mutation touched so the maintainer, cache and
// notifier can follow up.
type unit struct {
	tx       Tx
	periods  map[models.Period]bool
	events   map[models.EventKind]bool
	tasks    []models.AutomationTask
	coverage []*CoverageOutcome
	totals   map[models.Period]models.Totals
}

func (u *unit) touch(periods ...models.Period) {
	for _, p := range periods {
		u.periods[p] = true
	}
}

func (u *unit) emit(kinds ...models.EventKind) {
	for _, k := range kinds {
		u.events[k] = true
	}
}

// mutate runs fn in one unit of work, brings every touched period's
// "To Be Assigned" in line before commit, then publishes and runs any
// queued automation.
func (s *Service) mutate(ctx context.Context, userID int64, fn func(ctx context.Context, u *unit) error) (*unit, error) {
	var u *unit
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		u = &unit{
			tx:      tx,
			periods: map[models.Period]bool{},
			events:  map[models.EventKind]bool{},
			totals:  map[models.Period]models.Totals{},
		}
		if err := fn(ctx, u); err != nil {
			return err
		}
		return s.settle(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, userID, u)
	return u, nil
}

func (s *Service) settle(ctx context.Context, u *unit) error {
	periods := make([]models.Period, 0, len(u.periods))
	for p := range u.periods {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	for _, p := range periods {
		_, totals, err := s.ensureToBeAssigned(ctx, u.tx, p)
		if err != nil {
			return err
		}
		u.totals[p] = totals
	}
	if len(periods) > 0 {
		u.emit(models.EventEnvelopesChanged)
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, userID int64, u *unit) {
	if s.cache != nil {
		s.cache.InvalidateUser(userID)
	}
	kinds := make([]models.EventKind, 0, len(u.events))
	for k := range u.events {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		s.publish(ctx, userID, k)
	}
	if s.inlineAutomation {
		for _, task := range u.tasks {
			u.coverage = append(u.coverage, s.runInline(ctx, task))
		}
	}
}

// publish is fire-and-forget: failures are logged, never returned.
func (s *Service) publish(ctx context.Context, userID int64, kind models.EventKind) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, userID, kind); err != nil {
		s.log.WarnContext(ctx, "Failed to publish change notification",
			logging.FieldOperation, logging.OpPublish,
			logging.FieldUserID, userID,
			logging.FieldEventKind, string(kind),
			logging.FieldError, err)
	}
}
