package models

import (
	"strings"
	"time"
)

const (
	ToBeAssignedName        = "To Be Assigned"
	ToBeAssignedGroup       = "Inflow"
	DefaultCategoryName     = "Needs a Category"
	DefaultCategoryGroup    = "Uncategorized"
	DefaultGroup            = "General"
	CreditCardPaymentsGroup = "Credit Card Payments"
)

// PaymentEnvelopeName is the name of the envelope holding money set aside for a card.
func PaymentEnvelopeName(cardName string) string {
	return cardName + " Payment"
}

// Envelope is a named allocation bucket for one month.
type Envelope struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Name          string    `json:"name"`
	CategoryGroup string    `json:"category_group"`
	Allocated     Cents     `json:"allocated"`
	Spent         Cents     `json:"spent"`
	Month         int       `json:"month"`
	Year          int       `json:"year"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (e Envelope) Available() Cents {
	return e.Allocated - e.Spent
}

func (e Envelope) Period() Period {
	return Period{Year: e.Year, Month: time.Month(e.Month)}
}

func (e Envelope) IsToBeAssigned() bool {
	return IsToBeAssignedName(e.Name)
}

func (e Envelope) IsCardPayment() bool {
	return e.CategoryGroup == CreditCardPaymentsGroup
}

// Deficit is how far spending exceeds the allocation, zero when not overspent.
func (e Envelope) Deficit() Cents {
	return MaxCents(0, e.Spent-e.Allocated)
}

func IsToBeAssignedName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), ToBeAssignedName)
}

// SameName compares envelope names the way the unique index does.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
