package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

type RolloverResult struct {
	From                  models.Period `json:"from"`
	To                    models.Period `json:"to"`
	AlreadyPerformed      bool          `json:"already_performed"`
	CarriedForward        []string      `json:"carried_forward"`
	CreditReset           []string      `json:"credit_reset"`
	CashOverspent         []string      `json:"cash_overspent"`
	CashOverspending      models.Cents  `json:"cash_overspending"`
	ToBeAssignedDeduction models.Cents  `json:"to_be_assigned_deduction"`
	Totals                models.Totals `json:"totals"`
}

// Rollover closes out from and opens to. Positive balances carry forward,
// credit overspending resets and cash overspending is taken out of the new
// month's "To Be Assigned". Once any envelope other than "To Be Assigned"
// exists in to, the call is a no-op.
func (s *Service) Rollover(ctx context.Context, userID int64, from, to models.Period) (*RolloverResult, error) {
	if !from.Valid() || !to.Valid() {
		return nil, Validation("rollover", "invalid period")
	}
	if to != from.Next() {
		return nil, Validation("rollover", "%s does not follow %s", to, from)
	}

	var (
		res      *RolloverResult
		recorded bool
	)
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		res = &RolloverResult{From: from, To: to}

		existing, err := u.tx.ListEnvelopes(ctx, to)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if !e.IsToBeAssigned() {
				res.AlreadyPerformed = true
				recorded, err = u.tx.HasRollover(ctx, from, to)
				return err
			}
		}
		return s.rollover(ctx, u, res)
	})
	if err != nil {
		return nil, err
	}
	if res.AlreadyPerformed && !recorded {
		s.log.WarnContext(ctx, "Rollover skipped, target period already has envelopes",
			logging.FieldOperation, logging.OpRollover,
			logging.FieldUserID, userID,
			logging.FieldPeriod, to.String())
		return res, nil
	}
	if res.AlreadyPerformed {
		s.log.InfoContext(ctx, "Rollover already performed",
			logging.FieldOperation, logging.OpRollover,
			logging.FieldUserID, userID,
			logging.FieldPeriod, to.String())
		return res, nil
	}
	res.Totals = u.totals[to]
	s.log.InfoContext(ctx, "Rolled over period",
		logging.FieldOperation, logging.OpRollover,
		logging.FieldUserID, userID,
		logging.FieldPeriod, to.String(),
		"carried", len(res.CarriedForward),
		"credit_reset", len(res.CreditReset),
		"cash_overspending_cents", int64(res.CashOverspending))
	return res, nil
}

func (s *Service) rollover(ctx context.Context, u *unit, res *RolloverResult) error {
	from, to := res.From, res.To
	source, err := u.tx.ListEnvelopes(ctx, from)
	if err != nil {
		return err
	}
	sort.Slice(source, func(i, j int) bool { return source[i].ID < source[j].ID })

	creditPurchases, err := u.tx.ListTransactions(ctx, TransactionFilter{
		Period:       &from,
		AccountType:  models.AccountTypeCredit,
		OutflowsOnly: true,
	})
	if err != nil {
		return fmt.Errorf("list credit purchases: %w", err)
	}
	creditCategories := make(map[string]bool, len(creditPurchases))
	for _, t := range creditPurchases {
		creditCategories[categoryKey(t.Category)] = true
	}

	for _, e := range source {
		if e.IsToBeAssigned() {
			continue
		}
		available := e.Available()
		switch {
		case available > 0:
			if _, err := u.tx.CreateEnvelope(ctx, &models.Envelope{
				Name:          e.Name,
				CategoryGroup: e.CategoryGroup,
				Allocated:     available,
				Month:         int(to.Month),
				Year:          to.Year,
			}); err != nil {
				return fmt.Errorf("carry forward %q: %w", e.Name, err)
			}
			res.CarriedForward = append(res.CarriedForward, e.Name)
		case available < 0:
			if creditCategories[categoryKey(e.Name)] {
				res.CreditReset = append(res.CreditReset, e.Name)
				continue
			}
			res.CashOverspending += -available
			res.CashOverspent = append(res.CashOverspent, e.Name)
		}
	}

	tba, _, err := s.ensureToBeAssigned(ctx, u.tx, to)
	if err != nil {
		return err
	}
	// The deduction lives in the envelope's spent so later recomputes of
	// allocated leave it intact.
	deduction := models.MinCents(res.CashOverspending, models.MaxCents(0, tba.Allocated))
	if deduction != tba.Spent {
		if err := u.tx.AdjustEnvelopeSpent(ctx, tba.ID, deduction-tba.Spent); err != nil {
			return err
		}
	}
	res.ToBeAssignedDeduction = deduction

	if err := u.tx.RecordRollover(ctx, models.Rollover{
		UserID:                u.tx.UserID(),
		From:                  from,
		To:                    to,
		CarriedEnvelopes:      len(res.CarriedForward),
		CashOverspending:      res.CashOverspending,
		ToBeAssignedDeduction: deduction,
	}); err != nil {
		return fmt.Errorf("record rollover: %w", err)
	}
	u.touch(to)
	return nil
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
