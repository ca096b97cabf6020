package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgee-ledger/src/db/memory"
	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
	"budgee-ledger/src/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = models.Period{Year: 2025, Month: time.March}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	ctx   context.Context
	clock *clock
	store *memory.Store
	svc   *ledger.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := newClock()
	store := memory.New().WithClock(c.Now)
	svc := ledger.NewService(store, ledger.Options{Clock: c.Now})
	return &env{ctx: context.Background(), clock: c, store: store, svc: svc}
}

// queueCoverage leaves one pending coverage task for a Dining allocation
// against a card purchase.
func (e *env) queueCoverage(t *testing.T, userID int64) *ledger.AllocationResult {
	t.Helper()
	_, err := e.svc.CreateAccount(e.ctx, userID, ledger.AccountInput{Name: "Checking", Type: models.AccountTypeCash, Balance: 100000})
	require.NoError(t, err)
	visa, err := e.svc.CreateAccount(e.ctx, userID, ledger.AccountInput{Name: "Visa", Type: models.AccountTypeCredit})
	require.NoError(t, err)
	_, err = e.svc.CreateTransaction(e.ctx, userID, ledger.TransactionInput{
		AccountID:   visa.Account.ID,
		Amount:      -12000,
		Description: "Dinner",
		Category:    "Dining",
		Date:        time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	res, err := e.svc.AllocateByName(e.ctx, userID, march, "Dining", "", 5000)
	require.NoError(t, err)
	require.Equal(t, ledger.AutomationPending, res.Automation)
	return res
}

func (e *env) envelope(t *testing.T, userID int64, name string, p models.Period) models.Envelope {
	t.Helper()
	envelopes, err := e.svc.ListEnvelopes(e.ctx, userID, p)
	require.NoError(t, err)
	for _, env := range envelopes {
		if env.Name == name {
			return env
		}
	}
	t.Fatalf("envelope %q not found in %s", name, p)
	return models.Envelope{}
}

type failingRunner struct {
	err   error
	calls int
}

func (r *failingRunner) RunAutomationTask(ctx context.Context, task models.AutomationTask) (*ledger.CoverageOutcome, error) {
	r.calls++
	return nil, r.err
}

func TestAutomationWorker_AppliesPendingCoverage(t *testing.T) {
	e := newEnv(t)
	e.queueCoverage(t, 1)

	w := worker.NewAutomationWorker(e.svc, e.store, worker.DefaultAutomationConfig(), nil).WithClock(e.clock.Now)
	stats, err := w.ProcessDue(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, worker.BatchStats{Due: 1, Applied: 1}, stats)

	assert.Equal(t, models.Cents(5000), e.envelope(t, 1, "Visa Payment", march).Allocated)
	assert.Equal(t, models.Cents(0), e.envelope(t, 1, "Dining", march).Allocated)

	// The task is done, nothing is due anymore.
	stats, err = w.ProcessDue(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Due)
}

func TestAutomationWorker_RetriesWithBackoffThenFails(t *testing.T) {
	e := newEnv(t)
	e.queueCoverage(t, 1)

	runner := &failingRunner{err: errors.New("database unavailable")}
	cfg := worker.AutomationConfig{
		BatchSize:   10,
		MaxRetries:  3,
		BaseBackoff: time.Minute,
		MaxBackoff:  time.Hour,
	}
	w := worker.NewAutomationWorker(runner, e.store, cfg, nil).WithClock(e.clock.Now)

	stats, err := w.ProcessDue(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retried)

	due, err := e.store.DueAutomationTasks(e.ctx, e.clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, due, "task should wait for its backoff")

	e.clock.Advance(time.Minute)
	due, err = e.store.DueAutomationTasks(e.ctx, e.clock.Now(), 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "database unavailable", due[0].LastError)

	stats, err = w.ProcessDue(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retried)

	// Second retry doubles the wait.
	e.clock.Advance(time.Minute)
	due, err = e.store.DueAutomationTasks(e.ctx, e.clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	e.clock.Advance(time.Minute)
	stats, err = w.ProcessDue(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, runner.calls)

	e.clock.Advance(24 * time.Hour)
	due, err = e.store.DueAutomationTasks(e.ctx, e.clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, due, "failed tasks are never picked up again")
}

func TestAutomationWorker_ValidationErrorsFailImmediately(t *testing.T) {
	e := newEnv(t)
	e.queueCoverage(t, 1)

	runner := &failingRunner{err: ledger.Validation("envelope", "bad state")}
	w := worker.NewAutomationWorker(runner, e.store, worker.AutomationConfig{MaxRetries: 5}, nil).WithClock(e.clock.Now)

	stats, err := w.ProcessDue(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Retried)
}

func TestAutomationWorker_PurgesFinishedTasks(t *testing.T) {
	e := newEnv(t)
	e.queueCoverage(t, 1)

	cfg := worker.DefaultAutomationConfig()
	cfg.Retention = time.Hour
	w := worker.NewAutomationWorker(e.svc, e.store, cfg, nil).WithClock(e.clock.Now)
	_, err := w.ProcessDue(e.ctx)
	require.NoError(t, err)

	n, err := w.Purge(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "recent tasks are kept")

	e.clock.Advance(2 * time.Hour)
	n, err = w.Purge(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRolloverScheduler_RollsEveryUserOnce(t *testing.T) {
	e := newEnv(t)
	for _, userID := range []int64{1, 2} {
		_, err := e.svc.CreateAccount(e.ctx, userID, ledger.AccountInput{Name: "Checking", Type: models.AccountTypeCash, Balance: 100000})
		require.NoError(t, err)
		_, err = e.svc.AllocateByName(e.ctx, userID, march, "Rent", "", 40000)
		require.NoError(t, err)
	}

	s := worker.NewRolloverScheduler(e.svc, e.store, nil)

	e.clock.Set(time.Date(2025, time.April, 1, 0, 5, 0, 0, time.UTC))
	stats, err := s.Check(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 2, stats.Rolled)

	april := march.Next()
	for _, userID := range []int64{1, 2} {
		assert.Equal(t, models.Cents(40000), e.envelope(t, userID, "Rent", april).Allocated)
	}

	stats, err = s.Check(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Users, "a finished month is not checked again")

	restarted := worker.NewRolloverScheduler(e.svc, e.store, nil)
	stats, err = restarted.Check(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Already)
	assert.Equal(t, 0, stats.Rolled)
}

type flakyRoller struct {
	period models.Period
	fail   map[int64]bool
	calls  map[int64]int
}

func (r *flakyRoller) CurrentPeriod() models.Period { return r.period }

func (r *flakyRoller) Rollover(ctx context.Context, userID int64, from, to models.Period) (*ledger.RolloverResult, error) {
	r.calls[userID]++
	if r.fail[userID] {
		return nil, errors.New("connection reset")
	}
	return &ledger.RolloverResult{From: from, To: to}, nil
}

type staticUsers []int64

func (u staticUsers) ListUserIDs(ctx context.Context) ([]int64, error) { return u, nil }

func TestRolloverScheduler_RetriesFailedUsers(t *testing.T) {
	roller := &flakyRoller{
		period: models.Period{Year: 2025, Month: time.April},
		fail:   map[int64]bool{2: true},
		calls:  map[int64]int{},
	}
	s := worker.NewRolloverScheduler(roller, staticUsers{1, 2, 3}, nil)

	stats, err := s.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user 2")
	assert.Equal(t, 2, stats.Rolled)
	assert.Equal(t, 1, stats.Failed)

	roller.fail[2] = false
	stats, err = s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Rolled)
	assert.Equal(t, 2, roller.calls[2])
}

func TestRun_StopsOnCancel(t *testing.T) {
	e := newEnv(t)
	e.queueCoverage(t, 1)

	w := worker.NewAutomationWorker(e.svc, e.store, worker.DefaultAutomationConfig(), nil).WithClock(e.clock.Now)
	s := worker.NewRolloverScheduler(e.svc, e.store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx, w, s, worker.Intervals{Automation: time.Hour, Rollover: time.Hour})
	}()

	require.Eventually(t, func() bool {
		due, err := e.store.DueAutomationTasks(context.Background(), e.clock.Now(), 0)
		return err == nil && len(due) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
