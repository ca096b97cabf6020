package models

// Totals is the output of the balance calculator for one user and period.
type Totals struct {
	Cash         Cents `json:"cash"`
	Debt         Cents `json:"debt"`
	NetWorth     Cents `json:"net_worth"`
	Allocated    Cents `json:"allocated"`
	Spent        Cents `json:"spent"`
	ToBeAssigned Cents `json:"to_be_assigned"`
}

type EnvelopeGroup struct {
	Name      string     `json:"name"`
	Envelopes []Envelope `json:"envelopes"`
	Allocated Cents      `json:"allocated"`
	Spent     Cents      `json:"spent"`
	Available Cents      `json:"available"`
}

type DashboardSnapshot struct {
	Period              Period          `json:"period"`
	Totals              Totals          `json:"totals"`
	CarriedOverspending Cents           `json:"carried_overspending"`
	AvailableToAssign   Cents           `json:"available_to_assign"`
	ToBeAssigned        *Envelope       `json:"to_be_assigned_envelope,omitempty"`
	Groups              []EnvelopeGroup `json:"groups"`
	RecentTransactions  []Transaction   `json:"recent_transactions"`
	Accounts            []Account       `json:"accounts"`
	Goals               []GoalProgress  `json:"goals"`
}

type Rollover struct {
	UserID                int64  `json:"user_id"`
	From                  Period `json:"from"`
	To                    Period `json:"to"`
	CarriedEnvelopes      int    `json:"carried_envelopes"`
	CashOverspending      Cents  `json:"cash_overspending"`
	ToBeAssignedDeduction Cents  `json:"to_be_assigned_deduction"`
}
