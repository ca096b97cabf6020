package plaid

import (
	"context"
	"encoding/json"
	"fmt"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
	"budgee-ledger/src/rules"
)

const defaultMaxPages = 50

// ItemStore persists linked Plaid items.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.PlaidItem) (*models.PlaidItem, error)
	ListItems(ctx context.Context, userID int64) ([]models.PlaidItem, error)
	GetItem(ctx context.Context, userID, id int64) (*models.PlaidItem, error)
	FindItemByExternalID(ctx context.Context, itemID string) (*models.PlaidItem, error)
	UpdateItemCursor(ctx context.Context, userID, id int64, cursor string) error
	DeleteItem(ctx context.Context, userID, id int64) error
}

// RuleSource supplies the category rules applied during import.
type RuleSource interface {
	Matcher(ctx context.Context, userID int64) (*rules.Matcher, error)
}

type SyncResult struct {
	ItemID  int64                `json:"item_id"`
	Pages   int                  `json:"pages"`
	Summary ledger.ImportSummary `json:"summary"`
}

// Syncer links Plaid items and pulls their transactions into the ledger.
type Syncer struct {
	api      API
	items    ItemStore
	ledger   *ledger.Service
	rules    RuleSource
	log      *logging.Logger
	maxPages int
}

func NewSyncer(api API, items ItemStore, l *ledger.Service, ruleSource RuleSource, log *logging.Logger) *Syncer {
	if log == nil {
		log = logging.Nop()
	}
	return &Syncer{
		api:      api,
		items:    items,
		ledger:   l,
		rules:    ruleSource,
		log:      log.WithComponent(logging.ComponentPlaid),
		maxPages: defaultMaxPages,
	}
}

func (s *Syncer) LinkToken(ctx context.Context, userID int64) (string, error) {
	return s.api.CreateLinkToken(ctx, userID)
}

// Link exchanges a public token, stores the item and runs its first sync.
// A failed first sync leaves the item linked; the next webhook retries it.
func (s *Syncer) Link(ctx context.Context, userID int64, publicToken string) (*models.PlaidItem, *SyncResult, error) {
	if publicToken == "" {
		return nil, nil, ledger.Validation("plaid_item", "public_token is required")
	}
	exchange, err := s.api.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.items.CreateItem(ctx, &models.PlaidItem{
		UserID:          userID,
		AccessToken:     exchange.AccessToken,
		ItemID:          exchange.ItemID,
		InstitutionID:   exchange.InstitutionID,
		InstitutionName: exchange.InstitutionName,
		Status:          "active",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("store item: %w", err)
	}
	s.log.InfoContext(ctx, "Linked Plaid item",
		logging.FieldUserID, userID,
		logging.FieldItemID, item.ItemID)

	res, err := s.SyncItem(ctx, userID, item.ID)
	if err != nil {
		s.log.WarnContext(ctx, "Initial sync failed",
			logging.FieldOperation, logging.OpSync,
			logging.FieldUserID, userID,
			logging.FieldItemID, item.ItemID,
			logging.FieldError, err)
		return item, nil, nil
	}
	return item, res, nil
}

func (s *Syncer) ListItems(ctx context.Context, userID int64) ([]models.PlaidItem, error) {
	return s.items.ListItems(ctx, userID)
}

// RemoveItem forgets an item. Imported accounts and transactions stay.
func (s *Syncer) RemoveItem(ctx context.Context, userID, id int64) error {
	return s.items.DeleteItem(ctx, userID, id)
}

// SyncItem pages through /transactions/sync from the stored cursor. The
// cursor is saved after each imported page so a failure resumes there.
func (s *Syncer) SyncItem(ctx context.Context, userID, id int64) (*SyncResult, error) {
	item, err := s.items.GetItem(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	matcher, err := s.matcher(ctx, userID)
	if err != nil {
		return nil, err
	}
	normalizer := NewNormalizer(matcher)
	accounts, err := s.ledger.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.ExternalID != "" {
			normalizer.AddAccount(a.ExternalID, a.Type, a.Name)
		}
	}

	log := s.log.With(
		logging.FieldOperation, logging.OpSync,
		logging.FieldUserID, userID,
		logging.FieldItemID, item.ItemID)

	res := &SyncResult{ItemID: item.ID}
	cursor := item.SyncCursor
	for res.Pages < s.maxPages {
		page, err := s.api.SyncTransactions(ctx, item.AccessToken, cursor)
		if err != nil {
			return res, err
		}
		res.Pages++

		batch, skipped := s.batch(ctx, log, item, normalizer, page)
		sum, err := s.ledger.ImportTransactions(ctx, userID, batch)
		if err != nil {
			return res, fmt.Errorf("import page %d: %w", res.Pages, err)
		}
		addSummary(&res.Summary, sum)
		res.Summary.Skipped += skipped

		if err := s.items.UpdateItemCursor(ctx, userID, item.ID, page.NextCursor); err != nil {
			return res, fmt.Errorf("save cursor: %w", err)
		}
		cursor = page.NextCursor
		if !page.HasMore {
			break
		}
	}
	if res.Pages == s.maxPages {
		log.WarnContext(ctx, "Stopped sync at page limit", "pages", res.Pages)
	}
	log.InfoContext(ctx, "Synced Plaid item",
		"pages", res.Pages,
		"added", res.Summary.Added,
		"modified", res.Summary.Modified,
		"removed", res.Summary.Removed,
		"skipped", res.Summary.Skipped)
	return res, nil
}

func (s *Syncer) batch(ctx context.Context, log *logging.Logger, item *models.PlaidItem, n *Normalizer, page *SyncPage) (ledger.ImportBatch, int) {
	var batch ledger.ImportBatch
	for _, ra := range page.Accounts {
		acc := NormalizeAccount(&item.ID, ra)
		n.AddAccount(acc.ExternalID, acc.Type, acc.Name)
		batch.Accounts = append(batch.Accounts, acc)
	}

	skipped := 0
	convert := func(in []RemoteTransaction) []ledger.ImportedTransaction {
		out := make([]ledger.ImportedTransaction, 0, len(in))
		for _, rt := range in {
			it, err := n.Transaction(rt)
			if err != nil {
				skipped++
				log.WarnContext(ctx, "Skipping malformed Plaid transaction",
					logging.FieldError, err)
				continue
			}
			out = append(out, it)
		}
		return out
	}
	batch.Added = convert(page.Added)
	batch.Modified = convert(page.Modified)
	batch.Removed = page.Removed
	return batch, skipped
}

func (s *Syncer) matcher(ctx context.Context, userID int64) (*rules.Matcher, error) {
	if s.rules == nil {
		return nil, nil
	}
	m, err := s.rules.Matcher(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return m, nil
}

// SyncUser syncs every item the user has linked, continuing past failures.
func (s *Syncer) SyncUser(ctx context.Context, userID int64) ([]SyncResult, error) {
	items, err := s.items.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	var (
		results  []SyncResult
		firstErr error
	)
	for _, item := range items {
		res, err := s.SyncItem(ctx, userID, item.ID)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to sync Plaid item",
				logging.FieldOperation, logging.OpSync,
				logging.FieldUserID, userID,
				logging.FieldItemID, item.ItemID,
				logging.FieldError, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, *res)
	}
	return results, firstErr
}

type webhookPayload struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
}

var syncCodes = map[string]bool{
	"SYNC_UPDATES_AVAILABLE": true,
	"INITIAL_UPDATE":         true,
	"HISTORICAL_UPDATE":      true,
	"DEFAULT_UPDATE":         true,
}

// HandleWebhook reacts to an already verified webhook body. Transaction
// updates sync the item; everything else is logged and ignored.
func (s *Syncer) HandleWebhook(ctx context.Context, body []byte) error {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ledger.Validation("webhook", "invalid body: %v", err)
	}
	if payload.WebhookType != "TRANSACTIONS" || !syncCodes[payload.WebhookCode] {
		s.log.InfoContext(ctx, "Ignoring Plaid webhook",
			"webhook_type", payload.WebhookType,
			"webhook_code", payload.WebhookCode,
			logging.FieldItemID, payload.ItemID)
		return nil
	}
	item, err := s.items.FindItemByExternalID(ctx, payload.ItemID)
	if err != nil {
		return err
	}
	_, err = s.SyncItem(ctx, item.UserID, item.ID)
	return err
}

func addSummary(total *ledger.ImportSummary, page *ledger.ImportSummary) {
	total.Accounts += page.Accounts
	total.Added += page.Added
	total.Duplicates += page.Duplicates
	total.Modified += page.Modified
	total.Removed += page.Removed
	total.Skipped += page.Skipped
	total.Totals = page.Totals
}
