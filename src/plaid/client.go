// Package plaid connects bank accounts through Plaid and feeds their
// transactions into the ledger.
package plaid

import (
	"context"
	"fmt"
	"strconv"

	"github.com/plaid/plaid-go/v41/plaid"
)

// NewAPIClient builds a Plaid API client for the "sandbox" or "production" environment.
func NewAPIClient(clientID, secret, env string) (*plaid.APIClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %q", env)
	}

	return plaid.NewAPIClient(configuration), nil
}

// Exchange is the result of linking an item.
type Exchange struct {
	AccessToken     string
	ItemID          string
	InstitutionID   string
	InstitutionName string
}

// RemoteAccount is an account as Plaid reports it, before normalization.
type RemoteAccount struct {
	ID           string
	Name         string
	OfficialName string
	Mask         string
	Type         string
	Subtype      string
	Current      *float64
	Available    *float64
}

// RemoteTransaction is a transaction as Plaid reports it, before normalization.
type RemoteTransaction struct {
	ID           string
	AccountID    string
	Amount       float64
	Name         string
	MerchantName string
	Category     string
	Date         string
	Pending      bool
}

// SyncPage is one page of /transactions/sync.
type SyncPage struct {
	Accounts   []RemoteAccount
	Added      []RemoteTransaction
	Modified   []RemoteTransaction
	Removed    []string
	NextCursor string
	HasMore    bool
}

// API is the slice of Plaid the adapter uses.
type API interface {
	CreateLinkToken(ctx context.Context, userID int64) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*Exchange, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncPage, error)
	VerificationKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error)
}

// Client implements API on top of the generated Plaid client.
type Client struct {
	api        *plaid.APIClient
	clientName string
	webhookURL string
}

func NewClient(api *plaid.APIClient, clientName, webhookURL string) *Client {
	return &Client{api: api, clientName: clientName, webhookURL: webhookURL}
}

func (c *Client) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: strconv.FormatInt(userID, 10),
	}
	request := plaid.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
	)
	request.SetUser(user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})
	if c.webhookURL != "" {
		request.SetWebhook(c.webhookURL)
	}
	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}
	return resp.GetLinkToken(), nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*Exchange, error) {
	exchangeReq := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	exchangeResp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*exchangeReq).Execute()
	if err != nil {
		return nil, fmt.Errorf("exchange public token: %w", err)
	}
	out := &Exchange{
		AccessToken: exchangeResp.GetAccessToken(),
		ItemID:      exchangeResp.GetItemId(),
	}

	// Institution details are optional; a failed lookup does not fail the link.
	itemReq := plaid.NewItemGetRequest(out.AccessToken)
	itemResp, _, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*itemReq).Execute()
	if err == nil {
		item := itemResp.GetItem()
		out.InstitutionID = item.GetInstitutionId()
		if name, ok := item.AdditionalProperties["institution_name"].(string); ok {
			out.InstitutionName = name
		}
	}
	return out, nil
}

func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (*SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return nil, fmt.Errorf("sync transactions: %w", err)
	}

	page := &SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, acc := range resp.GetAccounts() {
		balances := acc.GetBalances()
		page.Accounts = append(page.Accounts, RemoteAccount{
			ID:           acc.GetAccountId(),
			Name:         acc.GetName(),
			OfficialName: acc.GetOfficialName(),
			Mask:         acc.GetMask(),
			Type:         string(acc.GetType()),
			Subtype:      string(acc.GetSubtype()),
			Current:      balances.Current.Get(),
			Available:    balances.Available.Get(),
		})
	}
	for _, t := range resp.GetAdded() {
		page.Added = append(page.Added, remoteTransaction(t))
	}
	for _, t := range resp.GetModified() {
		page.Modified = append(page.Modified, remoteTransaction(t))
	}
	for _, r := range resp.GetRemoved() {
		page.Removed = append(page.Removed, r.GetTransactionId())
	}
	return page, nil
}

func remoteTransaction(t plaid.Transaction) RemoteTransaction {
	category := t.GetPersonalFinanceCategory()
	return RemoteTransaction{
		ID:           t.GetTransactionId(),
		AccountID:    t.GetAccountId(),
		Amount:       t.GetAmount(),
		Name:         t.GetName(),
		MerchantName: t.GetMerchantName(),
		Category:     category.GetPrimary(),
		Date:         t.GetDate(),
		Pending:      t.GetPending(),
	}
}

func (c *Client) VerificationKey(ctx context.Context, kid string) (*plaid.JWKPublicKey, error) {
	req := *plaid.NewWebhookVerificationKeyGetRequest(kid)
	resp, _, err := c.api.PlaidApi.WebhookVerificationKeyGet(ctx).
		WebhookVerificationKeyGetRequest(req).
		Execute()
	if err != nil {
		return nil, err
	}
	key := resp.GetKey()
	return &key, nil
}
