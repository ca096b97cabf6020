package models

import "time"

type Goal struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Name         string     `json:"name"`
	EnvelopeName string     `json:"envelope_name,omitempty"`
	TargetAmount Cents      `json:"target_amount"`
	TargetDate   *time.Time `json:"target_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LinkedEnvelopeName falls back to the goal name when no explicit link is set.
func (g Goal) LinkedEnvelopeName() string {
	if g.EnvelopeName != "" {
		return g.EnvelopeName
	}
	return g.Name
}

type GoalProgress struct {
	Goal      Goal  `json:"goal"`
	Funded    Cents `json:"funded"`
	Remaining Cents `json:"remaining"`
	Percent   int   `json:"percent"`
	Linked    bool  `json:"linked"`
}
