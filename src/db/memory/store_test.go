package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return New().WithClock(func() time.Time { return testNow })
}

func TestFailedUnitOfWorkLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	boom := errors.New("boom")
	err := s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		_, err := tx.CreateAccount(ctx, &models.Account{Name: "Checking", Type: models.AccountTypeCash, Balance: 1000})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		accounts, err := tx.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Empty(t, accounts)
		return nil
	})
	require.NoError(t, err)
}

func TestUsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	var accountID int64
	require.NoError(t, s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		a, err := tx.CreateAccount(ctx, &models.Account{Name: "Checking", Type: models.AccountTypeCash})
		accountID = a.ID
		return err
	}))

	err := s.WithinUserTx(ctx, 2, func(tx ledger.Tx) error {
		_, err := tx.GetAccount(ctx, accountID)
		return err
	})
	assert.True(t, ledger.IsNotFound(err))

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestSameUserWorkIsSerialized(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	var envelopeID int64
	require.NoError(t, s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		e, err := tx.CreateEnvelope(ctx, &models.Envelope{Name: "Groceries", Month: 3, Year: 2025})
		envelopeID = e.ID
		return err
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
				e, err := tx.GetEnvelope(ctx, envelopeID)
				if err != nil {
					return err
				}
				return tx.SetEnvelopeAllocated(ctx, envelopeID, e.Allocated+100)
			})
		}()
	}
	wg.Wait()

	require.NoError(t, s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		e, err := tx.GetEnvelope(ctx, envelopeID)
		require.NoError(t, err)
		assert.Equal(t, models.Cents(5000), e.Allocated)
		return nil
	}))
}

func TestEnvelopeNamesAreUniquePerPeriod(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	err := s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		if _, err := tx.CreateEnvelope(ctx, &models.Envelope{Name: "Rent", Month: 3, Year: 2025}); err != nil {
			return err
		}
		_, err := tx.CreateEnvelope(ctx, &models.Envelope{Name: "rent ", Month: 3, Year: 2025})
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestDeleteEnvelopeDetachesReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()
	require.NoError(t, s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		a, _ := tx.CreateAccount(ctx, &models.Account{Name: "Checking", Type: models.AccountTypeCash})
		from, _ := tx.CreateEnvelope(ctx, &models.Envelope{Name: "Fun", Month: 3, Year: 2025})
		to, _ := tx.CreateEnvelope(ctx, &models.Envelope{Name: "Rent", Month: 3, Year: 2025})
		txn, err := tx.CreateTransaction(ctx, &models.Transaction{AccountID: a.ID, EnvelopeID: &from.ID, Amount: -100, Date: testNow})
		require.NoError(t, err)
		_, err = tx.CreateTransfer(ctx, &models.Transfer{FromEnvelopeID: &from.ID, ToEnvelopeID: &to.ID, Amount: 50, Kind: models.TransferKindManual})
		require.NoError(t, err)

		require.NoError(t, tx.DeleteEnvelope(ctx, from.ID))

		got, err := tx.GetTransaction(ctx, txn.ID)
		require.NoError(t, err)
		assert.Nil(t, got.EnvelopeID)
		transfers, err := tx.ListTransfers(ctx, ledger.TransferFilter{ToEnvelopeID: &to.ID})
		require.NoError(t, err)
		require.Len(t, transfers, 1)
		assert.Nil(t, transfers[0].FromEnvelopeID)
		assert.Equal(t, models.Cents(50), transfers[0].Amount)
		return nil
	}))
}

func TestAutomationQueue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	var first, second *models.AutomationTask
	require.NoError(t, s.WithinUserTx(ctx, 1, func(tx ledger.Tx) error {
		var err error
		first, err = tx.EnqueueAutomationTask(ctx, models.AutomationTask{EnvelopeID: 10, Year: 2025, Month: 3, AllocatedBefore: 0, Delta: 500, NextAttemptAt: testNow})
		require.NoError(t, err)
		merged, err := tx.EnqueueAutomationTask(ctx, models.AutomationTask{EnvelopeID: 10, Year: 2025, Month: 3, AllocatedBefore: 500, Delta: 300, NextAttemptAt: testNow})
		require.NoError(t, err)
		assert.Equal(t, first.ID, merged.ID)
		assert.Equal(t, models.Cents(800), merged.Delta)
		assert.Equal(t, models.Cents(0), merged.AllocatedBefore)
		return nil
	}))
	require.NoError(t, s.WithinUserTx(ctx, 2, func(tx ledger.Tx) error {
		var err error
		second, err = tx.EnqueueAutomationTask(ctx, models.AutomationTask{EnvelopeID: 20, Year: 2025, Month: 3, Delta: 100, NextAttemptAt: testNow.Add(time.Minute)})
		return err
	}))

	due, err := s.DueAutomationTasks(ctx, testNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, first.ID, due[0].ID)

	require.NoError(t, s.RetryAutomationTask(ctx, first.ID, "db down", testNow.Add(2*time.Minute)))
	due, err = s.DueAutomationTasks(ctx, testNow.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, second.ID, due[0].ID)

	require.NoError(t, s.FailAutomationTask(ctx, second.ID, "gave up"))
	due, err = s.DueAutomationTasks(ctx, testNow.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "db down", due[0].LastError)

	purged, err := s.PurgeAutomationTasks(ctx, testNow.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	assert.True(t, ledger.IsNotFound(s.RetryAutomationTask(ctx, 424242, "", testNow)))
}

func TestPlaidItemsAndRules(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	item, err := s.CreateItem(ctx, &models.PlaidItem{UserID: 3, ItemID: "item-1", AccessToken: "secret"})
	require.NoError(t, err)
	_, err = s.CreateItem(ctx, &models.PlaidItem{UserID: 4, ItemID: "item-1"})
	assert.ErrorIs(t, err, ledger.ErrConflict)

	require.NoError(t, s.UpdateItemCursor(ctx, 3, item.ID, "cursor-2"))
	found, err := s.FindItemByExternalID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "cursor-2", found.SyncCursor)
	assert.Equal(t, int64(3), found.UserID)

	_, err = s.GetItem(ctx, 4, item.ID)
	assert.True(t, ledger.IsNotFound(err))
	require.NoError(t, s.DeleteItem(ctx, 3, item.ID))
	_, err = s.FindItemByExternalID(ctx, "item-1")
	assert.True(t, ledger.IsNotFound(err))

	rule, err := s.CreateRule(ctx, &models.TransactionRule{UserID: 3, Name: "Coffee", Conditions: []byte(`{"field":"name","op":"contains","value":"cafe"}`), Category: "Coffee"})
	require.NoError(t, err)
	rule.Category = "Dining"
	updated, err := s.UpdateRule(ctx, rule)
	require.NoError(t, err)
	assert.Equal(t, "Dining", updated.Category)
	rules, err := s.ListRules(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
	require.NoError(t, s.DeleteRule(ctx, 3, rule.ID))
	assert.True(t, ledger.IsNotFound(s.DeleteRule(ctx, 3, rule.ID)))
}
