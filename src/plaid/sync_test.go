package plaid_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgee-ledger/src/db/memory"
	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
	"budgee-ledger/src/plaid"

	plaidapi "github.com/plaid/plaid-go/v41/plaid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user int64 = 11

func clock() time.Time {
	return time.Date(2025, time.March, 20, 9, 0, 0, 0, time.UTC)
}

func float(f float64) *float64 { return &f }

type fakeAPI struct {
	pages   []*plaid.SyncPage
	cursors []string
	syncErr error
}

func (f *fakeAPI) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	return "link-sandbox-1", nil
}

func (f *fakeAPI) ExchangePublicToken(ctx context.Context, publicToken string) (*plaid.Exchange, error) {
	return &plaid.Exchange{
		AccessToken:     "access-" + publicToken,
		ItemID:          "item-1",
		InstitutionID:   "ins_1",
		InstitutionName: "First Platypus Bank",
	}, nil
}

func (f *fakeAPI) SyncTransactions(ctx context.Context, accessToken, cursor string) (*plaid.SyncPage, error) {
	f.cursors = append(f.cursors, cursor)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	if len(f.pages) == 0 {
		return &plaid.SyncPage{NextCursor: cursor}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeAPI) VerificationKey(ctx context.Context, kid string) (*plaidapi.JWKPublicKey, error) {
	return nil, errors.New("not used")
}

func remoteAccounts() []plaid.RemoteAccount {
	return []plaid.RemoteAccount{
		{ID: "chk", Name: "Checking", Type: "depository", Current: float(1000)},
		{ID: "visa", Name: "Visa", Type: "credit", Current: float(250)},
	}
}

type syncFixture struct {
	ctx    context.Context
	api    *fakeAPI
	store  *memory.Store
	svc    *ledger.Service
	syncer *plaid.Syncer
}

func newSyncFixture() *syncFixture {
	store := memory.New().WithClock(clock)
	svc := ledger.NewService(store, ledger.Options{Clock: clock})
	api := &fakeAPI{}
	return &syncFixture{
		ctx:    context.Background(),
		api:    api,
		store:  store,
		svc:    svc,
		syncer: plaid.NewSyncer(api, store, svc, nil, nil),
	}
}

func (f *syncFixture) transaction(t *testing.T, externalID string) *models.Transaction {
	t.Helper()
	txns, err := f.svc.ListTransactions(f.ctx, user, ledger.TransactionFilter{})
	require.NoError(t, err)
	for i := range txns {
		if txns[i].ExternalID == externalID {
			return &txns[i]
		}
	}
	return nil
}

func TestLinkImportsAllPages(t *testing.T) {
	f := newSyncFixture()
	f.api.pages = []*plaid.SyncPage{
		{
			Accounts: remoteAccounts(),
			Added: []plaid.RemoteTransaction{
				{ID: "t1", AccountID: "chk", Amount: 12.5, Name: "Corner Cafe", Category: "FOOD_AND_DRINK", Date: "2025-03-10"},
				{ID: "t2", AccountID: "visa", Amount: -40, Name: "Hardware Store", Category: "GENERAL_MERCHANDISE", Date: "2025-03-11"},
				{ID: "t3", AccountID: "chk", Amount: -2000, Name: "Payroll", Category: "INCOME", Date: "2025-03-01"},
			},
			NextCursor: "c1",
			HasMore:    true,
		},
		{
			Accounts: remoteAccounts(),
			Added: []plaid.RemoteTransaction{
				{ID: "t4", AccountID: "chk", Amount: 3, Name: "Broken", Date: "not-a-date"},
			},
			Modified: []plaid.RemoteTransaction{
				{ID: "t1", AccountID: "chk", Amount: 15, Name: "Corner Cafe", Category: "FOOD_AND_DRINK", Date: "2025-03-10"},
			},
			NextCursor: "c2",
		},
	}

	item, res, err := f.syncer.Link(f.ctx, user, "public-sandbox")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "item-1", item.ItemID)
	assert.Equal(t, "First Platypus Bank", item.InstitutionName)
	assert.Equal(t, []string{"", "c1"}, f.api.cursors)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 3, res.Summary.Added)
	assert.Equal(t, 1, res.Summary.Modified)
	assert.Equal(t, 1, res.Summary.Skipped)

	stored, err := f.store.GetItem(f.ctx, user, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", stored.SyncCursor)

	cafe := f.transaction(t, "t1")
	require.NotNil(t, cafe)
	assert.Equal(t, models.Cents(-1500), cafe.Amount)
	assert.Equal(t, "Food and Drink", cafe.Category)

	purchase := f.transaction(t, "t2")
	require.NotNil(t, purchase)
	assert.Equal(t, models.Cents(-4000), purchase.Amount)

	payroll := f.transaction(t, "t3")
	require.NotNil(t, payroll)
	assert.Equal(t, models.Cents(200000), payroll.Amount)
	assert.Equal(t, models.ToBeAssignedName, payroll.Category)
	assert.Nil(t, f.transaction(t, "t4"))

	accounts, err := f.svc.ListAccounts(f.ctx, user)
	require.NoError(t, err)
	balances := map[string]models.Cents{}
	for _, a := range accounts {
		balances[a.ExternalID] = a.Balance
		assert.Equal(t, &item.ID, a.ItemID)
	}
	assert.Equal(t, models.Cents(100000), balances["chk"])
	assert.Equal(t, models.Cents(-25000), balances["visa"])
}

func TestSyncItemResumesFromCursor(t *testing.T) {
	f := newSyncFixture()
	item, _, err := f.syncer.Link(f.ctx, user, "public-sandbox")
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateItemCursor(f.ctx, user, item.ID, "saved"))

	f.api.cursors = nil
	f.api.pages = []*plaid.SyncPage{{
		Accounts:   remoteAccounts(),
		Added:      []plaid.RemoteTransaction{{ID: "t9", AccountID: "chk", Amount: 1, Date: "2025-03-18"}},
		NextCursor: "next",
	}}
	res, err := f.syncer.SyncItem(f.ctx, user, item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"saved"}, f.api.cursors)
	assert.Equal(t, 1, res.Summary.Added)
}

func TestSyncFailureKeepsCursor(t *testing.T) {
	f := newSyncFixture()
	item, res, err := f.syncer.Link(f.ctx, user, "public-sandbox")
	require.NoError(t, err)
	require.NotNil(t, res)

	f.api.syncErr = errors.New("plaid unavailable")
	_, err = f.syncer.SyncItem(f.ctx, user, item.ID)
	require.Error(t, err)

	stored, err := f.store.GetItem(f.ctx, user, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.SyncCursor)
}

func TestHandleWebhook(t *testing.T) {
	f := newSyncFixture()
	_, _, err := f.syncer.Link(f.ctx, user, "public-sandbox")
	require.NoError(t, err)
	f.api.cursors = nil

	err = f.syncer.HandleWebhook(f.ctx, []byte(`{"webhook_type":"ITEM","webhook_code":"PENDING_EXPIRATION","item_id":"item-1"}`))
	require.NoError(t, err)
	assert.Empty(t, f.api.cursors)

	err = f.syncer.HandleWebhook(f.ctx, []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-1"}`))
	require.NoError(t, err)
	assert.Len(t, f.api.cursors, 1)

	err = f.syncer.HandleWebhook(f.ctx, []byte(`{"webhook_type":"TRANSACTIONS","webhook_code":"SYNC_UPDATES_AVAILABLE","item_id":"item-404"}`))
	assert.True(t, ledger.IsNotFound(err))

	err = f.syncer.HandleWebhook(f.ctx, []byte(`{`))
	assert.Equal(t, ledger.KindValidation, ledger.KindOf(err))
}

func TestSyncUserCoversEveryItem(t *testing.T) {
	f := newSyncFixture()
	_, _, err := f.syncer.Link(f.ctx, user, "public-a")
	require.NoError(t, err)

	results, err := f.syncer.SyncUser(f.ctx, user)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	token, err := f.syncer.LinkToken(f.ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-1", token)
}
