package ledger

import (
	"context"

	"budgee-ledger/src/models"
	"budgee-ledger/src/util"
)

type AccountInput struct {
	Name         string
	Type         models.AccountType
	Subtype      string
	Balance      models.Cents
	JustWatching bool
}

// AccountPatch is a partial account update; nil fields are left unchanged.
type AccountPatch struct {
	Name         *string       `json:"name"`
	Balance      *models.Cents `json:"balance"`
	JustWatching *bool         `json:"just_watching"`
}

type AccountResult struct {
	Account models.Account `json:"account"`
	Totals  models.Totals  `json:"totals"`
}

func (s *Service) ListAccounts(ctx context.Context, userID int64) ([]models.Account, error) {
	var accounts []models.Account
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}

// CreateAccount adds a manually tracked account.
func (s *Service) CreateAccount(ctx context.Context, userID int64, in AccountInput) (*AccountResult, error) {
	name := util.CleanName(in.Name)
	if err := util.ValidateName(name); err != nil {
		return nil, Validation("account", "%v", err)
	}
	if !in.Type.Valid() {
		return nil, Validation("account", "unknown account type %q", in.Type)
	}
	var created *models.Account
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		var err error
		created, err = u.tx.CreateAccount(ctx, &models.Account{
			Name:         name,
			Type:         in.Type,
			Subtype:      in.Subtype,
			Balance:      in.Balance,
			JustWatching: in.JustWatching,
		})
		if err != nil {
			return err
		}
		u.touch(s.CurrentPeriod())
		u.emit(models.EventAccountsChanged)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &AccountResult{Account: *created, Totals: u.totals[s.CurrentPeriod()]}, nil
}

// UpdateAccount renames an account, toggles just-watching or sets its balance.
func (s *Service) UpdateAccount(ctx context.Context, userID, accountID int64, patch AccountPatch) (*AccountResult, error) {
	var name string
	if patch.Name != nil {
		name = util.CleanName(*patch.Name)
		if err := util.ValidateName(name); err != nil {
			return nil, Validation("account", "%v", err)
		}
	}
	var updated *models.Account
	u, err := s.mutate(ctx, userID, func(ctx context.Context, u *unit) error {
		a, err := u.tx.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			a.Name = name
		}
		if patch.Balance != nil {
			a.Balance = *patch.Balance
		}
		if patch.JustWatching != nil {
			a.JustWatching = *patch.JustWatching
		}
		updated, err = u.tx.UpdateAccount(ctx, a)
		if err != nil {
			return err
		}
		u.touch(s.CurrentPeriod())
		u.emit(models.EventAccountsChanged)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &AccountResult{Account: *updated, Totals: u.totals[s.CurrentPeriod()]}, nil
}
