package commands

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"budgee-ledger/src/config"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/worker"
)

func newWorkerCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run credit coverage automation and scheduled rollovers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DataBackend == config.BackendMemory {
				return errors.New("the worker needs a shared backend; use serve with the memory backend")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := newLogger(cfg).WithComponent(logging.ComponentWorker)
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			automation := a.automationWorker()
			rollover := a.rolloverScheduler()
			if !once {
				return worker.Run(ctx, automation, rollover, a.intervals())
			}

			batch, err := automation.ProcessDue(ctx)
			if err != nil {
				return err
			}
			purged, err := automation.Purge(ctx)
			if err != nil {
				return err
			}
			rolled, err := rollover.Check(ctx)
			log.InfoContext(ctx, "Worker pass finished",
				"due", batch.Due,
				"applied", batch.Applied,
				"retried", batch.Retried,
				"failed", batch.Failed,
				"purged", purged,
				"rolled", rolled.Rolled)
			return err
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "process due work a single time and exit")

	return cmd
}
