package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budgee-ledger/src/models"
)

// ImportedAccount is an aggregator account with its balance already in
// the ledger's sign convention.
type ImportedAccount struct {
	ItemID       *int64
	ExternalID   string
	Name         string
	OfficialName string
	Mask         string
	Type         models.AccountType
	Subtype      string
	Balance      models.Cents
	Available    *models.Cents
}

// ImportedTransaction is an aggregator transaction with a normalized amount.
type ImportedTransaction struct {
	ExternalID        string
	AccountExternalID string
	Amount            models.Cents
	Description       string
	MerchantName      string
	Category          string
	Date              time.Time
	Pending           bool
}

type ImportBatch struct {
	Accounts []ImportedAccount
	Added    []ImportedTransaction
	Modified []ImportedTransaction
	Removed  []string
}

type ImportSummary struct {
	Accounts   int           `json:"accounts"`
	Added      int           `json:"added"`
	Duplicates int           `json:"duplicates"`
	Modified   int           `json:"modified"`
	Removed    int           `json:"removed"`
	Skipped    int           `json:"skipped"`
	Totals     models.Totals `json:"totals"`
}

// ImportTransactions applies one aggregator sync page. Added transactions
// are deduplicated by external id; account balances are refreshed from the
// aggregator last so they win over per-transaction adjustments.
func (s *Service) ImportTransactions(ctx context.Context, userID int64, batch ImportBatch) (*ImportSummary, error) {
	var sum ImportSummary
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		sum = ImportSummary{}
		accounts := map[string]*models.Account{}
		for _, ia := range batch.Accounts {
			a, err := upsertImportedAccount(ctx, u.tx, ia)
			if err != nil {
				return err
			}
			accounts[ia.ExternalID] = a
			sum.Accounts++
		}

		lookup := func(externalID string) (*models.Account, error) {
			if a, ok := accounts[externalID]; ok {
				return a, nil
			}
			a, err := u.tx.GetAccountByExternalID(ctx, externalID)
			if err != nil {
				return nil, err
			}
			accounts[externalID] = a
			return a, nil
		}

		for _, it := range batch.Added {
			if _, err := u.tx.GetTransactionByExternalID(ctx, it.ExternalID); err == nil {
				sum.Duplicates++
				continue
			} else if !IsNotFound(err) {
				return err
			}
			if err := s.importNew(ctx, u, it, lookup); err != nil {
				if KindOf(err) == KindValidation || IsNotFound(err) {
					s.logSkippedImport(ctx, userID, it.ExternalID, err.Error())
					sum.Skipped++
					continue
				}
				return err
			}
			sum.Added++
		}

		for _, it := range batch.Modified {
			existing, err := u.tx.GetTransactionByExternalID(ctx, it.ExternalID)
			if IsNotFound(err) {
				if err := s.importNew(ctx, u, it, lookup); err != nil {
					if KindOf(err) == KindValidation || IsNotFound(err) {
						s.logSkippedImport(ctx, userID, it.ExternalID, err.Error())
						sum.Skipped++
						continue
					}
					return err
				}
				sum.Added++
				continue
			}
			if err != nil {
				return err
			}
			amount, date, desc, merchant := it.Amount, it.Date, it.Description, it.MerchantName
			pending, cleared := it.Pending, !it.Pending
			req := models.UpdateTransactionRequest{
				Amount:       &amount,
				Description:  &desc,
				MerchantName: &merchant,
				Pending:      &pending,
				Cleared:      &cleared,
			}
			if !date.IsZero() {
				req.Date = &date
			}
			if _, err := s.updateTransaction(ctx, u, existing.ID, req); err != nil {
				return fmt.Errorf("apply modified %s: %w", it.ExternalID, err)
			}
			sum.Modified++
		}

		for _, externalID := range batch.Removed {
			t, err := u.tx.GetTransactionByExternalID(ctx, externalID)
			if IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if err := s.removeTransaction(ctx, u, t); err != nil {
				return err
			}
			sum.Removed++
		}

		for _, ia := range batch.Accounts {
			a := accounts[ia.ExternalID]
			a.Balance = ia.Balance
			a.AvailableBalance = ia.Available
			if _, err := u.tx.UpdateAccount(ctx, a); err != nil {
				return err
			}
		}
		u.touch(s.CurrentPeriod())
		u.emit(models.EventAccountsChanged)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sum.Totals = u.totals[s.CurrentPeriod()]
	return &sum, nil
}

func (s *Service) importNew(ctx context.Context, u *unit, it ImportedTransaction, lookup func(string) (*models.Account, error)) error {
	account, err := lookup(it.AccountExternalID)
	if err != nil {
		return err
	}
	category := it.Category
	if it.Amount < 0 && models.IsToBeAssignedName(category) {
		category = models.DefaultCategoryName
	}
	_, err = s.insertTransaction(ctx, u, &models.Transaction{
		AccountID:    account.ID,
		ExternalID:   it.ExternalID,
		Amount:       it.Amount,
		Description:  strings.TrimSpace(it.Description),
		MerchantName: strings.TrimSpace(it.MerchantName),
		Category:     category,
		Date:         it.Date,
		Pending:      it.Pending,
		Cleared:      !it.Pending,
	})
	return err
}

func upsertImportedAccount(ctx context.Context, tx Tx, ia ImportedAccount) (*models.Account, error) {
	if ia.ExternalID == "" {
		return nil, Validation("account", "imported account has no external id")
	}
	if !ia.Type.Valid() {
		return nil, Validation("account", "unknown account type %q", ia.Type)
	}
	existing, err := tx.GetAccountByExternalID(ctx, ia.ExternalID)
	if IsNotFound(err) {
		return tx.CreateAccount(ctx, &models.Account{
			ItemID:           ia.ItemID,
			ExternalID:       ia.ExternalID,
			Name:             ia.Name,
			OfficialName:     ia.OfficialName,
			Mask:             ia.Mask,
			Type:             ia.Type,
			Subtype:          ia.Subtype,
			Balance:          ia.Balance,
			AvailableBalance: ia.Available,
		})
	}
	if err != nil {
		return nil, err
	}
	existing.Name = ia.Name
	existing.OfficialName = ia.OfficialName
	existing.Mask = ia.Mask
	existing.Type = ia.Type
	existing.Subtype = ia.Subtype
	if ia.ItemID != nil {
		existing.ItemID = ia.ItemID
	}
	return tx.UpdateAccount(ctx, existing)
}
