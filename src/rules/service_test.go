package rules_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"budgee-ledger/src/db/memory"
	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
	"budgee-ledger/src/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRecategorizesThroughLedger(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC) }
	store := memory.New().WithClock(clock)
	l := ledger.NewService(store, ledger.Options{Clock: clock})
	svc := rules.NewService(store, l, nil)
	const user int64 = 11

	acct, err := l.CreateAccount(ctx, user, ledger.AccountInput{Name: "Checking", Type: models.AccountTypeCash, Balance: 100000})
	require.NoError(t, err)
	for _, desc := range []string{"Blue Bottle Cafe", "Shell Gas"} {
		_, err := l.CreateTransaction(ctx, user, ledger.TransactionInput{
			AccountID:   acct.Account.ID,
			Amount:      -1200,
			Description: desc,
			Date:        clock(),
		})
		require.NoError(t, err)
	}

	_, err = svc.Create(ctx, user, rules.RuleInput{
		Name:       "Coffee shops",
		Conditions: json.RawMessage(`{"field":"name","op":"contains","value":"cafe"}`),
		Category:   "Coffee",
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user, rules.RuleInput{Name: "Broken", Conditions: json.RawMessage(`{"field":"x"}`), Category: "X"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	changed, err := svc.Apply(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	p := models.PeriodOf(clock())
	envelopes, err := l.ListEnvelopes(ctx, user, p)
	require.NoError(t, err)
	spent := map[string]models.Cents{}
	for _, e := range envelopes {
		spent[e.Name] = e.Spent
	}
	assert.Equal(t, models.Cents(1200), spent["Coffee"])
	assert.Equal(t, models.Cents(1200), spent[models.DefaultCategoryName])

	changed, err = svc.Apply(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, changed, "applying twice is a no-op")
}
