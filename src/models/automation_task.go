package models

import "time"

type AutomationStatus string

const (
	AutomationPending AutomationStatus = "pending"
	AutomationDone    AutomationStatus = "done"
	AutomationFailed  AutomationStatus = "failed"
)

// AutomationTask is the queued credit coverage step that follows an allocation change.
// At most one pending task exists per (user, envelope, period).
type AutomationTask struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	EnvelopeID      int64            `json:"envelope_id"`
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	AllocatedBefore Cents            `json:"allocated_before"`
	Delta           Cents            `json:"delta"`
	Status          AutomationStatus `json:"status"`
	Attempts        int              `json:"attempts"`
	LastError       string           `json:"last_error,omitempty"`
	NextAttemptAt   time.Time        `json:"next_attempt_at"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (t AutomationTask) Period() Period {
	return Period{Year: t.Year, Month: time.Month(t.Month)}
}
