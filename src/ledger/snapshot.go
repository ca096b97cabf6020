package ledger

import (
	"context"
	"sort"

	"budgee-ledger/src/models"
)

const recentTransactionLimit = 20

// GetDashboardSnapshot returns the totals, grouped envelopes, accounts,
// recent activity and goals for one period. Snapshots are cached until
// the user's next mutation.
func (s *Service) GetDashboardSnapshot(ctx context.Context, userID int64, p models.Period) (*models.DashboardSnapshot, error) {
	if !p.Valid() {
		return nil, Validation("period", "invalid period %s", p)
	}
	var gen uint64
	if s.cache != nil {
		snap, g, ok := s.cache.Get(userID, p)
		if ok {
			return snap, nil
		}
		gen = g
	}

	snap := &models.DashboardSnapshot{Period: p}
	err := s.store.WithinUserTx(ctx, userID, func(tx Tx) error {
		tba, totals, err := s.ensureToBeAssigned(ctx, tx, p)
		if err != nil {
			return err
		}
		snap.Totals = totals
		snap.ToBeAssigned = tba
		snap.CarriedOverspending = tba.Spent
		snap.AvailableToAssign = tba.Available()

		envelopes, err := tx.ListEnvelopes(ctx, p)
		if err != nil {
			return err
		}
		snap.Groups = groupEnvelopes(envelopes)

		if snap.Accounts, err = tx.ListAccounts(ctx); err != nil {
			return err
		}
		if snap.RecentTransactions, err = tx.ListTransactions(ctx, TransactionFilter{Period: &p, Limit: recentTransactionLimit}); err != nil {
			return err
		}
		goals, err := tx.ListGoals(ctx)
		if err != nil {
			return err
		}
		snap.Goals = goalProgress(goals, envelopes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(userID, p, gen, snap)
	}
	return snap, nil
}

// groupEnvelopes groups everything but "To Be Assigned" by category group,
// card payments first and the rest alphabetically.
func groupEnvelopes(envelopes []models.Envelope) []models.EnvelopeGroup {
	index := map[string]int{}
	var groups []models.EnvelopeGroup
	for _, e := range envelopes {
		if e.IsToBeAssigned() {
			continue
		}
		i, ok := index[e.CategoryGroup]
		if !ok {
			i = len(groups)
			index[e.CategoryGroup] = i
			groups = append(groups, models.EnvelopeGroup{Name: e.CategoryGroup})
		}
		g := &groups[i]
		g.Envelopes = append(g.Envelopes, e)
		g.Allocated += e.Allocated
		g.Spent += e.Spent
		g.Available += e.Available()
	}
	sort.SliceStable(groups, func(i, j int) bool {
		ci := groups[i].Name == models.CreditCardPaymentsGroup
		cj := groups[j].Name == models.CreditCardPaymentsGroup
		if ci != cj {
			return ci
		}
		return groups[i].Name < groups[j].Name
	})
	for _, g := range groups {
		sort.SliceStable(g.Envelopes, func(i, j int) bool { return g.Envelopes[i].Name < g.Envelopes[j].Name })
	}
	return groups
}
