package models

import "time"

type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeInvestment AccountType = "investment"
	AccountTypeOther      AccountType = "other"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeCash, AccountTypeCredit, AccountTypeLoan, AccountTypeInvestment, AccountTypeOther:
		return true
	}
	return false
}

// IsLiability reports whether balances of this type are debt.
func (t AccountType) IsLiability() bool {
	return t == AccountTypeCredit || t == AccountTypeLoan
}

// Account balances are signed: liabilities are negative while money is owed.
type Account struct {
	ID               int64       `json:"id"`
	UserID           int64       `json:"user_id"`
	ItemID           *int64      `json:"item_id,omitempty"`
	ExternalID       string      `json:"external_id,omitempty"`
	Name             string      `json:"name"`
	OfficialName     string      `json:"official_name,omitempty"`
	Mask             string      `json:"mask,omitempty"`
	Type             AccountType `json:"type"`
	Subtype          string      `json:"subtype,omitempty"`
	Balance          Cents       `json:"balance"`
	AvailableBalance *Cents      `json:"available_balance,omitempty"`
	JustWatching     bool        `json:"just_watching"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
