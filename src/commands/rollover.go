package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"budgee-ledger/src/models"
)

func newRolloverCommand() *cobra.Command {
	var (
		userID   int64
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Close one month into the next for a user",
		Long:  "Carries positive envelope balances forward and applies overspending rules. Defaults to last month into this month.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user must be a positive id")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer a.Close()

			toPeriod := a.ledger.CurrentPeriod()
			if to != "" {
				if toPeriod, err = models.ParsePeriod(to); err != nil {
					return fmt.Errorf("--to: %w", err)
				}
			}
			fromPeriod := toPeriod.Prev()
			if from != "" {
				if fromPeriod, err = models.ParsePeriod(from); err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				if to == "" {
					toPeriod = fromPeriod.Next()
				}
			}

			res, err := a.ledger.Rollover(ctx, userID, fromPeriod, toPeriod)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&from, "from", "", "month to close, YYYY-MM")
	cmd.Flags().StringVar(&to, "to", "", "month to open, YYYY-MM")

	return cmd
}
