package models

import (
	"encoding/json"
	"time"
)

// TransactionRule assigns Category to imported transactions matching Conditions.
type TransactionRule struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Name       string          `json:"name"`
	Conditions json.RawMessage `json:"conditions"` // JSONB
	Category   string          `json:"category"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
