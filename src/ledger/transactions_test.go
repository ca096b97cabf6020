package ledger_test

import (
	"testing"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateTransactionMovesSpentSymmetrically(t *testing.T) {
	f := newFixture(t)
	checking := f.account(t, "Checking", models.AccountTypeCash, 100000)
	savings := f.account(t, "Savings", models.AccountTypeCash, 50000)
	txn := f.spend(t, checking, "Groceries", 5000, 3)
	assert.Equal(t, models.Cents(5000), f.envelope(t, "Groceries", march).Spent)
	assert.Equal(t, models.Cents(95000), f.accountBalance(t, checking.ID))

	amount := models.Cents(-8000)
	_, err := f.svc.UpdateTransaction(f.ctx, testUser, txn.ID, models.UpdateTransactionRequest{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, models.Cents(8000), f.envelope(t, "Groceries", march).Spent)
	assert.Equal(t, models.Cents(92000), f.accountBalance(t, checking.ID))

	category := "Dining"
	res, err := f.svc.UpdateTransaction(f.ctx, testUser, txn.ID, models.UpdateTransactionRequest{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "Dining", res.Transaction.Category)
	assert.Equal(t, models.Cents(0), f.envelope(t, "Groceries", march).Spent)
	assert.Equal(t, models.Cents(8000), f.envelope(t, "Dining", march).Spent)

	_, err = f.svc.UpdateTransaction(f.ctx, testUser, txn.ID, models.UpdateTransactionRequest{AccountID: &savings.ID})
	require.NoError(t, err)
	assert.Equal(t, models.Cents(100000), f.accountBalance(t, checking.ID))
	assert.Equal(t, models.Cents(42000), f.accountBalance(t, savings.ID))

	feb := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.UpdateTransaction(f.ctx, testUser, txn.ID, models.UpdateTransactionRequest{Date: &feb})
	require.NoError(t, err)
	assert.Equal(t, models.Cents(0), f.envelope(t, "Dining", march).Spent)
	assert.Equal(t, models.Cents(8000), f.envelope(t, "Dining", march.Prev()).Spent)

	totals, err := f.svc.DeleteTransaction(f.ctx, testUser, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Cents(50000), f.accountBalance(t, savings.ID))
	assert.Equal(t, models.Cents(0), f.envelope(t, "Dining", march.Prev()).Spent)
	assert.Equal(t, models.Cents(150000), totals.Cash)
	f.requireConserved(t, march)
}

func TestUpdateTransactionMetadataOnly(t *testing.T) {
	f := newFixture(t)
	checking := f.account(t, "Checking", models.AccountTypeCash, 100000)
	txn := f.spend(t, checking, "Groceries", 5000, 3)
	f.notifier.take()

	flag, cleared := "Green", true
	res, err := f.svc.UpdateTransaction(f.ctx, testUser, txn.ID, models.UpdateTransactionRequest{FlagColor: &flag, Cleared: &cleared})
	require.NoError(t, err)
	assert.Equal(t, "green", res.Transaction.FlagColor)
	assert.True(t, res.Transaction.Cleared)
	assert.Equal(t, models.Cents(5000), f.envelope(t, "Groceries", march).Spent)
	assert.Equal(t, []models.EventKind{models.EventTransactionsChanged}, f.notifier.take())

	bad := "magenta"
	_, err = f.svc.UpdateTransaction(f.ctx, testUser, txn.ID, models.UpdateTransactionRequest{FlagColor: &bad})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCreateTransactionValidation(t *testing.T) {
	f := newFixture(t)
	checking := f.account(t, "Checking", models.AccountTypeCash, 100000)
	day := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   ledger.TransactionInput
		kind ledger.Kind
	}{
		{"zero amount", ledger.TransactionInput{AccountID: checking.ID, Date: day}, ledger.KindValidation},
		{"missing date", ledger.TransactionInput{AccountID: checking.ID, Amount: -100}, ledger.KindValidation},
		{"unknown account", ledger.TransactionInput{AccountID: 4242, Amount: -100, Date: day}, ledger.KindNotFound},
		{"outflow to To Be Assigned", ledger.TransactionInput{AccountID: checking.ID, Amount: -100, Date: day, Category: "to be assigned"}, ledger.KindValidation},
		{"control characters", ledger.TransactionInput{AccountID: checking.ID, Amount: -100, Date: day, Category: "bad\x00name"}, ledger.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransaction(f.ctx, testUser, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, ledger.KindOf(err))
		})
	}
	assert.Equal(t, models.Cents(100000), f.accountBalance(t, checking.ID))
}

func TestBlankCategoryFallsBackToNeedsACategory(t *testing.T) {
	f := newFixture(t)
	checking := f.account(t, "Checking", models.AccountTypeCash, 100000)
	txn := f.spend(t, checking, "  ", 1500, 3)

	assert.Equal(t, models.DefaultCategoryName, txn.Category)
	env := f.envelope(t, models.DefaultCategoryName, march)
	assert.Equal(t, models.DefaultCategoryGroup, env.CategoryGroup)
	assert.Equal(t, models.Cents(1500), env.Spent)
}

func TestInflowToToBeAssigned(t *testing.T) {
	f := newFixture(t)
	checking := f.account(t, "Checking", models.AccountTypeCash, 0)

	res, err := f.svc.CreateTransaction(f.ctx, testUser, ledger.TransactionInput{
		AccountID: checking.ID,
		Amount:    250000,
		Category:  models.ToBeAssignedName,
		Date:      time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.Cents(250000), res.Totals.ToBeAssigned)
	tba := f.envelope(t, models.ToBeAssignedName, march)
	assert.Equal(t, tba.ID, *res.Transaction.EnvelopeID)
	assert.Equal(t, models.Cents(0), tba.Spent)
}

func TestRecategorize(t *testing.T) {
	f := newFixture(t)
	checking := f.account(t, "Checking", models.AccountTypeCash, 100000)
	a := f.spend(t, checking, "Needs a Category", 1000, 3)
	b := f.spend(t, checking, "Groceries", 2000, 4)

	changed, err := f.svc.Recategorize(f.ctx, testUser, []ledger.Recategorization{
		{TransactionID: a.ID, Category: "Coffee"},
		{TransactionID: b.ID, Category: "groceries"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, models.Cents(1000), f.envelope(t, "Coffee", march).Spent)
	assert.Equal(t, models.Cents(0), f.envelope(t, models.DefaultCategoryName, march).Spent)
	assert.Equal(t, models.Cents(2000), f.envelope(t, "Groceries", march).Spent)

	_, err = f.svc.Recategorize(f.ctx, testUser, []ledger.Recategorization{
		{TransactionID: a.ID, Category: "Rent"},
		{TransactionID: 999999, Category: "Rent"},
	})
	assert.True(t, ledger.IsNotFound(err))
	assert.Equal(t, models.Cents(1000), f.envelope(t, "Coffee", march).Spent, "a failed batch changes nothing")
}

func TestImportTransactions(t *testing.T) {
	f := newFixture(t)
	day := func(d int) time.Time { return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC) }
	batch := ledger.ImportBatch{
		Accounts: []ledger.ImportedAccount{
			{ExternalID: "acc-chk", Name: "Plaid Checking", Type: models.AccountTypeCash, Balance: 50000},
			{ExternalID: "acc-card", Name: "Plaid Card", Type: models.AccountTypeCredit, Balance: -4000},
		},
		Added: []ledger.ImportedTransaction{
			{ExternalID: "t1", AccountExternalID: "acc-chk", Amount: -2500, Description: "Market", Category: "Groceries", Date: day(2)},
			{ExternalID: "t2", AccountExternalID: "acc-chk", Amount: 120000, Description: "Payroll", Category: models.ToBeAssignedName, Date: day(1)},
			{ExternalID: "t3", AccountExternalID: "acc-card", Amount: -4000, Description: "Odd refund", Category: models.ToBeAssignedName, Date: day(3)},
			{ExternalID: "t4", AccountExternalID: "acc-missing", Amount: -100, Date: day(3)},
		},
	}

	sum, err := f.svc.ImportTransactions(f.ctx, testUser, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Accounts)
	assert.Equal(t, 3, sum.Added)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, models.Cents(50000), sum.Totals.Cash, "aggregator balances win")
	assert.Equal(t, models.Cents(-4000), sum.Totals.Debt)
	assert.Equal(t, models.Cents(4000), f.envelope(t, models.DefaultCategoryName, march).Spent)

	again := ledger.ImportBatch{
		Accounts: batch.Accounts[:1],
		Added:    batch.Added[:1],
		Modified: []ledger.ImportedTransaction{
			{ExternalID: "t1", AccountExternalID: "acc-chk", Amount: -3000, Description: "Market", Date: day(2)},
		},
		Removed: []string{"t2", "never-seen"},
	}
	sum, err = f.svc.ImportTransactions(f.ctx, testUser, again)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 1, sum.Modified)
	assert.Equal(t, 1, sum.Removed)
	assert.Equal(t, models.Cents(3000), f.envelope(t, "Groceries", march).Spent)

	txns, err := f.svc.ListTransactions(f.ctx, testUser, ledger.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	f.requireConserved(t, march)
}

func TestImportModifiedSettlesPendingTransaction(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, time.March, 4, 0, 0, 0, 0, time.UTC)
	accounts := []ledger.ImportedAccount{
		{ExternalID: "acc-chk", Name: "Plaid Checking", Type: models.AccountTypeCash, Balance: 50000},
	}
	byExternalID := func(id string) models.Transaction {
		t.Helper()
		txns, err := f.svc.ListTransactions(f.ctx, testUser, ledger.TransactionFilter{})
		require.NoError(t, err)
		for _, txn := range txns {
			if txn.ExternalID == id {
				return txn
			}
		}
		t.Fatalf("transaction %s not imported", id)
		return models.Transaction{}
	}

	_, err := f.svc.ImportTransactions(f.ctx, testUser, ledger.ImportBatch{
		Accounts: accounts,
		Added: []ledger.ImportedTransaction{
			{ExternalID: "p1", AccountExternalID: "acc-chk", Amount: -1800, Description: "Cafe", Category: "Dining", Date: day, Pending: true},
		},
	})
	require.NoError(t, err)
	pending := byExternalID("p1")
	assert.True(t, pending.Pending)
	assert.False(t, pending.Cleared)

	sum, err := f.svc.ImportTransactions(f.ctx, testUser, ledger.ImportBatch{
		Accounts: accounts,
		Modified: []ledger.ImportedTransaction{
			{ExternalID: "p1", AccountExternalID: "acc-chk", Amount: -2100, Description: "Cafe", Date: day},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Modified)
	settled := byExternalID("p1")
	assert.False(t, settled.Pending)
	assert.True(t, settled.Cleared)
	assert.Equal(t, models.Cents(-2100), settled.Amount)
	assert.Equal(t, models.Cents(2100), f.envelope(t, "Dining", march).Spent)
	f.requireConserved(t, march)
}
