package ledger

import "budgee-ledger/src/models"

// Calculate derives the budgeting totals for one period. It is pure.
func Calculate(accounts []models.Account, envelopes []models.Envelope) models.Totals {
	var t models.Totals
	for _, a := range accounts {
		if a.JustWatching {
			continue
		}
		switch {
		case a.Type.IsLiability():
			t.Debt += a.Balance
		case a.Type == models.AccountTypeCash || a.Type == models.AccountTypeInvestment:
			t.Cash += models.MaxCents(0, a.Balance)
		}
	}
	for _, e := range envelopes {
		if e.IsToBeAssigned() {
			continue
		}
		t.Allocated += e.Allocated
		t.Spent += e.Spent
	}
	t.NetWorth = t.Cash + t.Debt
	t.ToBeAssigned = t.Cash - t.Allocated
	return t
}
