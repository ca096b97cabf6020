package ledger

import (
	"context"
	"fmt"
	"sort"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

// CoverageOutcome describes one run of the credit coverage step.
type CoverageOutcome struct {
	TaskID     int64             `json:"task_id"`
	EnvelopeID int64             `json:"envelope_id"`
	Status     AutomationStatus  `json:"status"`
	Covered    models.Cents      `json:"covered"`
	Released   models.Cents      `json:"released"`
	Transfers  []models.Transfer `json:"transfers,omitempty"`
	SkipReason string            `json:"skip_reason,omitempty"`
}

// RunAutomationTask applies a queued coverage task in its own unit of work.
// The task is marked done in that same unit, so running a finished task
// again changes nothing.
func (s *Service) RunAutomationTask(ctx context.Context, task models.AutomationTask) (*CoverageOutcome, error) {
	var out *CoverageOutcome
	_, err := s.mutate(ctx, task.UserID, func(ctx context.Context, u *unit) error {
		current, err := u.tx.GetAutomationTask(ctx, task.ID)
		if IsNotFound(err) {
			out = skipped(task, "task no longer exists")
			return nil
		}
		if err != nil {
			return err
		}
		if current.Status != models.AutomationPending {
			out = skipped(*current, "task already "+string(current.Status))
			return nil
		}
		out, err = s.applyCoverage(ctx, u, *current)
		if err != nil {
			return err
		}
		return u.tx.CompleteAutomationTask(ctx, current.ID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// runInline attempts a task right after the allocation that queued it.
// Failures leave the task pending for the worker.
func (s *Service) runInline(ctx context.Context, task models.AutomationTask) *CoverageOutcome {
	out, err := s.RunAutomationTask(ctx, task)
	if err != nil {
		degraded := AutomationDegraded(task.EnvelopeID, err)
		s.log.WarnContext(ctx, "Credit coverage deferred to worker",
			logging.FieldOperation, logging.OpCoverage,
			logging.FieldUserID, task.UserID,
			logging.FieldTaskID, task.ID,
			logging.FieldErrorKind, string(degraded.Kind),
			logging.FieldError, degraded)
		return &CoverageOutcome{TaskID: task.ID, EnvelopeID: task.EnvelopeID, Status: AutomationPending}
	}
	return out
}

func skipped(task models.AutomationTask, reason string) *CoverageOutcome {
	return &CoverageOutcome{
		TaskID:     task.ID,
		EnvelopeID: task.EnvelopeID,
		Status:     AutomationSkipped,
		SkipReason: reason,
	}
}

func (s *Service) applyCoverage(ctx context.Context, u *unit, task models.AutomationTask) (*CoverageOutcome, error) {
	env, err := u.tx.GetEnvelope(ctx, task.EnvelopeID)
	if IsNotFound(err) {
		s.log.InfoContext(ctx, "Skipping coverage for missing envelope",
			logging.FieldOperation, logging.OpCoverage,
			logging.FieldUserID, task.UserID,
			logging.FieldEnvelopeID, task.EnvelopeID)
		return skipped(task, "envelope no longer exists"), nil
	}
	if err != nil {
		return nil, err
	}
	if !coversCredit(*env) {
		return skipped(task, "envelope does not take part in coverage"), nil
	}

	out := &CoverageOutcome{TaskID: task.ID, EnvelopeID: env.ID, Status: AutomationApplied}
	switch {
	case task.Delta > 0:
		err = s.coverIncrease(ctx, u, env, task, out)
	case task.Delta < 0:
		err = s.releaseDecrease(ctx, u, env, -task.Delta, out)
	}
	if err != nil {
		return nil, err
	}
	if len(out.Transfers) == 0 && out.SkipReason == "" {
		out.SkipReason = "nothing to cover"
	}
	return out, nil
}

// coverIncrease moves newly assigned money into card payment envelopes for
// the envelope's uncovered credit purchases, oldest purchase first.
func (s *Service) coverIncrease(ctx context.Context, u *unit, env *models.Envelope, task models.AutomationTask, out *CoverageOutcome) error {
	p := env.Period()
	purchases, err := u.tx.ListTransactions(ctx, TransactionFilter{
		Period:       &p,
		Category:     env.Name,
		AccountType:  models.AccountTypeCredit,
		OutflowsOnly: true,
	})
	if err != nil {
		return fmt.Errorf("list credit purchases: %w", err)
	}
	if len(purchases) == 0 {
		return nil
	}
	sort.SliceStable(purchases, func(i, j int) bool {
		if !purchases[i].Date.Equal(purchases[j].Date) {
			return purchases[i].Date.Before(purchases[j].Date)
		}
		return purchases[i].ID < purchases[j].ID
	})

	covered, err := netCoverage(ctx, u.tx, purchases)
	if err != nil {
		return err
	}
	var exposure models.Cents
	for _, t := range purchases {
		exposure += models.MaxCents(0, t.Amount.Abs()-covered[t.ID])
	}
	overspent := models.MaxCents(0, exposure-task.AllocatedBefore)
	coverage := models.MinCents(task.Delta, overspent, models.MaxCents(0, env.Allocated))
	if coverage <= 0 {
		return nil
	}

	payments := map[int64]*models.Envelope{}
	remaining := coverage
	for _, t := range purchases {
		if remaining == 0 {
			break
		}
		open := t.Amount.Abs() - covered[t.ID]
		if open <= 0 {
			continue
		}
		pay, card, err := s.paymentEnvelope(ctx, u, t.AccountID, p, payments)
		if IsNotFound(err) {
			s.log.WarnContext(ctx, "Skipping coverage for purchase on missing account",
				logging.FieldOperation, logging.OpCoverage,
				logging.FieldUserID, task.UserID,
				logging.FieldTransaction, t.ID,
				logging.FieldAccountID, t.AccountID)
			continue
		}
		if err != nil {
			return err
		}

		portion := models.MinCents(open, remaining)
		txnID := t.ID
		transfer, err := u.tx.CreateTransfer(ctx, &models.Transfer{
			FromEnvelopeID: &env.ID,
			ToEnvelopeID:   &pay.ID,
			Amount:         portion,
			Reason:         fmt.Sprintf("Cover %s purchase: %s", card, t.Description),
			Kind:           models.TransferKindCoverage,
			Automated:      true,
			TransactionID:  &txnID,
		})
		if err != nil {
			return fmt.Errorf("record coverage: %w", err)
		}
		pay.Allocated += portion
		if err := u.tx.SetEnvelopeAllocated(ctx, pay.ID, pay.Allocated); err != nil {
			return err
		}
		remaining -= portion
		out.Covered += portion
		out.Transfers = append(out.Transfers, *transfer)
	}
	if out.Covered == 0 {
		return nil
	}
	if err := u.tx.SetEnvelopeAllocated(ctx, env.ID, env.Allocated-out.Covered); err != nil {
		return err
	}
	env.Allocated -= out.Covered
	u.touch(p)
	return nil
}

// releaseDecrease reverses earlier coverage from env, oldest transfer first,
// returning the money to "To Be Assigned". Payment envelopes never go negative.
func (s *Service) releaseDecrease(ctx context.Context, u *unit, env *models.Envelope, amount models.Cents, out *CoverageOutcome) error {
	coverages, err := u.tx.ListTransfers(ctx, TransferFilter{
		FromEnvelopeID: &env.ID,
		Kinds:          []models.TransferKind{models.TransferKindCoverage},
	})
	if err != nil {
		return fmt.Errorf("list coverage transfers: %w", err)
	}
	if len(coverages) == 0 {
		return nil
	}
	released, err := releasedAmounts(ctx, u.tx, coverages)
	if err != nil {
		return err
	}

	p := env.Period()
	tba, _, err := s.ensureToBeAssigned(ctx, u.tx, p)
	if err != nil {
		return err
	}

	payments := map[int64]*models.Envelope{}
	remaining := amount
	for _, c := range coverages {
		if remaining == 0 {
			break
		}
		open := c.Amount - released[c.ID]
		if open <= 0 || c.ToEnvelopeID == nil {
			continue
		}
		pay, ok := payments[*c.ToEnvelopeID]
		if !ok {
			pay, err = u.tx.GetEnvelope(ctx, *c.ToEnvelopeID)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			payments[pay.ID] = pay
		}
		r := models.MinCents(open, remaining, models.MaxCents(0, pay.Allocated))
		if r <= 0 {
			continue
		}
		coverageID := c.ID
		transfer, err := u.tx.CreateTransfer(ctx, &models.Transfer{
			FromEnvelopeID: &pay.ID,
			ToEnvelopeID:   &tba.ID,
			Amount:         r,
			Reason:         fmt.Sprintf("Release coverage from %s", env.Name),
			Kind:           models.TransferKindCoverageRelease,
			Automated:      true,
			ReversalOf:     &coverageID,
		})
		if err != nil {
			return fmt.Errorf("record release: %w", err)
		}
		pay.Allocated -= r
		if err := u.tx.SetEnvelopeAllocated(ctx, pay.ID, pay.Allocated); err != nil {
			return err
		}
		remaining -= r
		out.Released += r
		out.Transfers = append(out.Transfers, *transfer)
	}
	if out.Released > 0 {
		u.touch(p)
	}
	return nil
}

// paymentEnvelope finds or creates "<Card> Payment" for the purchase's account.
func (s *Service) paymentEnvelope(ctx context.Context, u *unit, accountID int64, p models.Period, cache map[int64]*models.Envelope) (*models.Envelope, string, error) {
	account, err := u.tx.GetAccount(ctx, accountID)
	if err != nil {
		return nil, "", err
	}
	if env, ok := cache[accountID]; ok {
		return env, account.Name, nil
	}
	name := models.PaymentEnvelopeName(account.Name)
	env, err := s.envelopeFor(ctx, u, name, models.CreditCardPaymentsGroup, p)
	if err != nil {
		return nil, "", fmt.Errorf("payment envelope for %s: %w", account.Name, err)
	}
	cache[accountID] = env
	return env, account.Name, nil
}

// netCoverage sums coverage per transaction across all envelopes, less
// whatever has been released back. Releases link to the coverage they
// reverse, not to the transaction.
func netCoverage(ctx context.Context, tx Tx, txns []models.Transaction) (map[int64]models.Cents, error) {
	ids := make([]int64, len(txns))
	for i, t := range txns {
		ids[i] = t.ID
	}
	coverages, err := tx.ListTransfers(ctx, TransferFilter{
		TransactionIDs: ids,
		Kinds:          []models.TransferKind{models.TransferKindCoverage},
	})
	if err != nil {
		return nil, fmt.Errorf("list coverage: %w", err)
	}
	released, err := releasedAmounts(ctx, tx, coverages)
	if err != nil {
		return nil, err
	}
	covered := make(map[int64]models.Cents, len(txns))
	for _, c := range coverages {
		if c.TransactionID == nil {
			continue
		}
		covered[*c.TransactionID] += c.Amount - released[c.ID]
	}
	return covered, nil
}

func releasedAmounts(ctx context.Context, tx Tx, coverages []models.Transfer) (map[int64]models.Cents, error) {
	if len(coverages) == 0 {
		return map[int64]models.Cents{}, nil
	}
	ids := make([]int64, len(coverages))
	for i, c := range coverages {
		ids[i] = c.ID
	}
	releases, err := tx.ListTransfers(ctx, TransferFilter{
		ReversalOf: ids,
		Kinds:      []models.TransferKind{models.TransferKindCoverageRelease},
	})
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	released := make(map[int64]models.Cents, len(coverages))
	for _, r := range releases {
		if r.ReversalOf != nil {
			released[*r.ReversalOf] += r.Amount
		}
	}
	return released, nil
}
