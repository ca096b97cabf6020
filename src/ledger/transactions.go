package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
	"budgee-ledger/src/util"
)

type TransactionInput struct {
	AccountID    int64
	EnvelopeID   *int64
	Amount       models.Cents
	Description  string
	MerchantName string
	Category     string
	Date         time.Time
	Cleared      bool
	Approved     bool
	FlagColor    string
}

type TransactionResult struct {
	Transaction models.Transaction `json:"transaction"`
	Totals      models.Totals      `json:"totals"`
}

// Recategorization moves one transaction to the envelope named Category.
type Recategorization struct {
	TransactionID int64
	Category      string
}

func (s *Service) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		var err error
		txns, err = tx.ListTransactions(ctx, f)
		return err
	})
	return txns, err
}

// CreateTransaction records a manually entered transaction.
func (s *Service) CreateTransaction(ctx context.Context, userID int64, in TransactionInput) (*TransactionResult, error) {
	t := &models.Transaction{
		AccountID:    in.AccountID,
		EnvelopeID:   in.EnvelopeID,
		Amount:       in.Amount,
		Description:  strings.TrimSpace(in.Description),
		MerchantName: strings.TrimSpace(in.MerchantName),
		Category:     in.Category,
		Date:         in.Date,
		Cleared:      in.Cleared,
		Approved:     in.Approved,
		IsManual:     true,
		FlagColor:    strings.ToLower(in.FlagColor),
	}
	var created *models.Transaction
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		var err error
		created, err = s.insertTransaction(ctx, u, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &TransactionResult{Transaction: *created, Totals: u.totals[created.Period()]}, nil
}

// UpdateTransaction applies a partial update, moving money between the old
// and new account and envelope as needed.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id int64, req models.UpdateTransactionRequest) (*TransactionResult, error) {
	var updated *models.Transaction
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		var err error
		updated, err = s.updateTransaction(ctx, u, id, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &TransactionResult{Transaction: *updated, Totals: u.totals[updated.Period()]}, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, userID, id int64) (*models.Totals, error) {
	var p models.Period
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		t, err := u.tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		p = t.Period()
		return s.removeTransaction(ctx, u, t)
	})
	if err != nil {
		return nil, err
	}
	totals := u.totals[p]
	return &totals, nil
}

// Recategorize moves transactions to other envelopes in one unit of work.
// It returns how many transactions actually changed.
func (s *Service) Recategorize(ctx context.Context, userID int64, changes []Recategorization) (int, error) {
	changed := 0
	_, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		changed = 0
		for _, c := range changes {
			t, err := u.tx.GetTransaction(ctx, c.TransactionID)
			if err != nil {
				return err
			}
			name, err := util.NormalizeCategory(c.Category)
			if err != nil {
				return Validation("transaction", "%v", err)
			}
			if models.SameName(t.Category, name) && t.EnvelopeID != nil {
				continue
			}
			category := name
			if _, err := s.updateTransaction(ctx, u, t.ID, models.UpdateTransactionRequest{Category: &category}); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

func (s *Service) insertTransaction(ctx context.Context, u *unit, t *models.Transaction) (*models.Transaction, error) {
	if err := validateTransaction(t); err != nil {
		return nil, err
	}
	if _, err := u.tx.GetAccount(ctx, t.AccountID); err != nil {
		return nil, err
	}
	if err := s.linkEnvelope(ctx, u, t); err != nil {
		return nil, err
	}
	created, err := u.tx.CreateTransaction(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	if err := applyEffects(ctx, u.tx, *created, 1); err != nil {
		return nil, err
	}
	u.touch(created.Period(), s.CurrentPeriod())
	u.emit(models.EventTransactionsChanged, models.EventAccountsChanged)
	return created, nil
}

func (s *Service) updateTransaction(ctx context.Context, u *unit, id int64, req models.UpdateTransactionRequest) (*models.Transaction, error) {
	old, err := u.tx.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *old
	if req.AccountID != nil {
		if _, err := u.tx.GetAccount(ctx, *req.AccountID); err != nil {
			return nil, err
		}
		next.AccountID = *req.AccountID
	}
	if req.Amount != nil {
		next.Amount = *req.Amount
	}
	if req.Description != nil {
		next.Description = strings.TrimSpace(*req.Description)
	}
	if req.MerchantName != nil {
		next.MerchantName = strings.TrimSpace(*req.MerchantName)
	}
	if req.Date != nil {
		next.Date = *req.Date
	}
	if req.Cleared != nil {
		next.Cleared = *req.Cleared
	}
	if req.Pending != nil {
		next.Pending = *req.Pending
	}
	if req.Approved != nil {
		next.Approved = *req.Approved
	}
	if req.FlagColor != nil {
		next.FlagColor = strings.ToLower(*req.FlagColor)
	}
	switch {
	case req.EnvelopeID != nil:
		next.EnvelopeID = req.EnvelopeID
	case req.Category != nil:
		next.EnvelopeID = nil
		next.Category = *req.Category
	case next.Period() != old.Period():
		// Same category, new month: relink to that month's envelope.
		next.EnvelopeID = nil
	}
	if err := validateTransaction(&next); err != nil {
		return nil, err
	}

	if !req.MovesMoney() {
		updated, err := u.tx.UpdateTransaction(ctx, &next)
		if err != nil {
			return nil, err
		}
		u.emit(models.EventTransactionsChanged)
		return updated, nil
	}

	if err := applyEffects(ctx, u.tx, *old, -1); err != nil {
		return nil, err
	}
	if err := s.linkEnvelope(ctx, u, &next); err != nil {
		return nil, err
	}
	updated, err := u.tx.UpdateTransaction(ctx, &next)
	if err != nil {
		return nil, err
	}
	if err := applyEffects(ctx, u.tx, *updated, 1); err != nil {
		return nil, err
	}
	u.touch(old.Period(), updated.Period(), s.CurrentPeriod())
	u.emit(models.EventTransactionsChanged, models.EventAccountsChanged)
	return updated, nil
}

func (s *Service) removeTransaction(ctx context.Context, u *unit, t *models.Transaction) error {
	if err := applyEffects(ctx, u.tx, *t, -1); err != nil {
		return err
	}
	if err := u.tx.DeleteTransaction(ctx, t.ID); err != nil {
		return err
	}
	u.touch(t.Period(), s.CurrentPeriod())
	u.emit(models.EventTransactionsChanged, models.EventAccountsChanged)
	return nil
}

// linkEnvelope resolves the envelope a transaction belongs to, creating the
// category's envelope for the transaction's month when needed.
func (s *Service) linkEnvelope(ctx context.Context, u *unit, t *models.Transaction) error {
	p := t.Period()
	if t.EnvelopeID != nil {
		env, err := u.tx.GetEnvelope(ctx, *t.EnvelopeID)
		if err != nil {
			return err
		}
		if env.Period() != p {
			return Validation("transaction", "envelope %q belongs to %s but the transaction is dated %s", env.Name, env.Period(), p)
		}
		if env.IsToBeAssigned() && t.IsOutflow() {
			return Validation("transaction", "outflows cannot be categorized as %s", models.ToBeAssignedName)
		}
		t.Category = env.Name
		return nil
	}
	name, err := util.NormalizeCategory(t.Category)
	if err != nil {
		return Validation("transaction", "%v", err)
	}
	if models.IsToBeAssignedName(name) && t.IsOutflow() {
		return Validation("transaction", "outflows cannot be categorized as %s", models.ToBeAssignedName)
	}
	env, err := s.envelopeFor(ctx, u, name, "", p)
	if err != nil {
		return err
	}
	t.EnvelopeID = &env.ID
	t.Category = env.Name
	return nil
}

// applyEffects adds (sign 1) or removes (sign -1) a transaction's effect on
// its account balance and its envelope's spent.
func applyEffects(ctx context.Context, tx Tx, t models.Transaction, sign models.Cents) error {
	if err := tx.AdjustAccountBalance(ctx, t.AccountID, sign*t.Amount); err != nil {
		return fmt.Errorf("adjust account %d: %w", t.AccountID, err)
	}
	if c := t.SpentContribution(); c != 0 {
		if err := tx.AdjustEnvelopeSpent(ctx, *t.EnvelopeID, sign*c); err != nil {
			return fmt.Errorf("adjust envelope %d: %w", *t.EnvelopeID, err)
		}
	}
	return nil
}

func validateTransaction(t *models.Transaction) error {
	if t.Amount == 0 {
		return Validation("transaction", "amount must not be zero")
	}
	if t.Date.IsZero() {
		return Validation("transaction", "date is required")
	}
	if !util.ValidateFlagColor(t.FlagColor) {
		return Validation("transaction", "unknown flag color %q", t.FlagColor)
	}
	return nil
}

func (s *Service) logSkippedImport(ctx context.Context, userID int64, externalID, reason string) {
	s.log.WarnContext(ctx, "Skipping imported transaction",
		logging.FieldOperation, logging.OpImport,
		logging.FieldUserID, userID,
		"external_id", externalID,
		"reason", reason)
}
