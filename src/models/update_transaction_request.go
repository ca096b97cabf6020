package models

import "time"

// UpdateTransactionRequest is a partial update; nil fields are left unchanged.
type UpdateTransactionRequest struct {
	AccountID    *int64     `json:"account_id"`
	EnvelopeID   *int64     `json:"envelope_id"`
	Amount       *Cents     `json:"amount"`
	Description  *string    `json:"description"`
	MerchantName *string    `json:"merchant_name"`
	Category     *string    `json:"category"`
	Date         *time.Time `json:"date"`
	Cleared      *bool      `json:"cleared"`
	Pending      *bool      `json:"pending"`
	Approved     *bool      `json:"approved"`
	FlagColor    *string    `json:"flag_color"`
}

func (r UpdateTransactionRequest) MovesMoney() bool {
	return r.AccountID != nil || r.EnvelopeID != nil || r.Amount != nil || r.Category != nil || r.Date != nil
}
