package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"budgee-ledger/src/api"
	"budgee-ledger/src/config"
	"budgee-ledger/src/db"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		withWorker bool
		migrate    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// The in-memory backend only exists inside this process.
			if cfg.DataBackend == config.BackendMemory {
				withWorker = true
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if migrate && cfg.DataBackend == config.BackendPostgres {
				if err := db.Migrate(cfg.DatabaseURL); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
			}
			return runServe(ctx, cfg, withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the automation worker and rollover scheduler")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, withWorker bool) error {
	log := newLogger(cfg)
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	router := api.NewRouter(api.Deps{
		Ledger:     a.ledger,
		Rules:      a.rules,
		Syncer:     a.syncer,
		Webhooks:   a.verifier,
		Logger:     log,
		JWTSecret:  cfg.JWTSecret,
		CORSOrigin: cfg.CORSOrigin,
		IsDemo:     cfg.IsDemo,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(ctx, "API server running",
			logging.FieldOperation, logging.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"plaid", cfg.PlaidEnabled(),
			"demo", cfg.IsDemo)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down API server", logging.FieldOperation, logging.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if withWorker {
		g.Go(func() error {
			return worker.Run(ctx, a.automationWorker(), a.rolloverScheduler(), a.intervals())
		})
	}
	return g.Wait()
}
