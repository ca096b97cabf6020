package commands

import (
	"context"
	"fmt"

	"budgee-ledger/src/config"
	"budgee-ledger/src/db"
	"budgee-ledger/src/db/memory"
	sqlstore "budgee-ledger/src/db/sql"
	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/notify"
	"budgee-ledger/src/plaid"
	"budgee-ledger/src/rules"
	"budgee-ledger/src/worker"
)

// store is everything the process needs from a backend. Both the
// Postgres and the in-memory stores provide all of it.
type store interface {
	ledger.Store
	ledger.AutomationQueue
	ledger.UserDirectory
	rules.Store
	plaid.ItemStore
}

type app struct {
	cfg      *config.Config
	log      *logging.Logger
	store    store
	ledger   *ledger.Service
	rules    *rules.Service
	syncer   *plaid.Syncer
	verifier *plaid.WebhookVerifier

	closers []func()
}

func newLogger(cfg *config.Config) *logging.Logger {
	log := logging.New(logging.Config{
		Level:     logging.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: logging.ComponentApp,
	})
	logging.SetDefault(log)
	return log
}

// newApp wires the backend, the ledger and its optional collaborators.
// Callers must Close the result.
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	switch cfg.DataBackend {
	case config.BackendMemory:
		a.store = memory.New()
		log.WarnContext(ctx, "Using in-memory backend, data is lost on exit", logging.FieldOperation, logging.OpStartup)
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.store = sqlstore.New(pool, log)
	}

	var notifier ledger.Notifier = notify.NewLogPublisher(log)
	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return nil, fmt.Errorf("connect to AMQP: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		notifier = pub
	}

	cache, err := db.NewSnapshotCache(cfg.CacheMaxCost)
	if err != nil {
		return nil, fmt.Errorf("create snapshot cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)

	a.ledger = ledger.NewService(a.store, ledger.Options{
		Notifier:         notifier,
		Cache:            cache,
		Logger:           log,
		InlineAutomation: cfg.AutomationInline,
	})
	a.rules = rules.NewService(a.store, a.ledger, log)

	if cfg.PlaidEnabled() {
		api, err := plaid.NewAPIClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
		if err != nil {
			return nil, fmt.Errorf("create plaid client: %w", err)
		}
		client := plaid.NewClient(api, "Budgee", cfg.PlaidWebhookURL)
		a.syncer = plaid.NewSyncer(client, a.store, a.ledger, a.rules, log)
		a.verifier = plaid.NewWebhookVerifier(client)
	}

	return a, nil
}

func (a *app) automationWorker() *worker.AutomationWorker {
	return worker.NewAutomationWorker(a.ledger, a.store, worker.AutomationConfig{
		BatchSize:  a.cfg.AutomationBatchSize,
		MaxRetries: a.cfg.AutomationMaxRetries,
		Retention:  a.cfg.AutomationRetention,
	}, a.log)
}

func (a *app) rolloverScheduler() *worker.RolloverScheduler {
	return worker.NewRolloverScheduler(a.ledger, a.store, a.log)
}

func (a *app) intervals() worker.Intervals {
	return worker.Intervals{
		Automation: a.cfg.AutomationPollInterval,
		Rollover:   a.cfg.RolloverCheckInterval,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
