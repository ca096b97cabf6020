package models

import "time"

var FlagColors = map[string]bool{
	"red":    true,
	"orange": true,
	"yellow": true,
	"green":  true,
	"blue":   true,
	"purple": true,
}

// Transaction amounts are positive for inflows and negative for outflows.
type Transaction struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	AccountID    int64     `json:"account_id"`
	EnvelopeID   *int64    `json:"envelope_id,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"`
	Amount       Cents     `json:"amount"`
	Description  string    `json:"description"`
	MerchantName string    `json:"merchant_name,omitempty"`
	Category     string    `json:"category"`
	Date         time.Time `json:"date"`
	Cleared      bool      `json:"cleared"`
	Approved     bool      `json:"approved"`
	IsManual     bool      `json:"is_manual"`
	Pending      bool      `json:"pending"`
	FlagColor    string    `json:"flag_color,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t Transaction) IsOutflow() bool {
	return t.Amount < 0
}

func (t Transaction) Period() Period {
	return PeriodOf(t.Date)
}

// SpentContribution is what the transaction adds to its envelope's spent.
func (t Transaction) SpentContribution() Cents {
	if t.EnvelopeID == nil || t.Amount >= 0 {
		return 0
	}
	return -t.Amount
}
