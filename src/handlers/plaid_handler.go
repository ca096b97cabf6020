package handlers

import (
	"context"
	"io"
	"net/http"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
	"budgee-ledger/src/plaid"
)

// WebhookVerifier checks the signature Plaid attaches to webhook calls.
type WebhookVerifier interface {
	Verify(ctx context.Context, body []byte, header http.Header) error
}

func CreateLinkToken(syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		linkToken, err := syncer.LinkToken(r.Context(), userID)
		if err != nil {
			writeError(w, r, "failed to create link token", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"link_token": linkToken})
	}
}

func ExchangePublicToken(syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			PublicToken string `json:"public_token"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "plaid_item", "%v", err)
			return
		}
		item, res, err := syncer.Link(r.Context(), userID, req.PublicToken)
		if err != nil {
			writeError(w, r, "failed to exchange public token", err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": item, "sync": res})
	}
}

func GetPlaidItems(syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		items, err := syncer.ListItems(r.Context(), userID)
		if err != nil {
			writeError(w, r, "failed to get plaid items", err)
			return
		}
		if items == nil {
			items = []models.PlaidItem{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func DeletePlaidItem(syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		itemID, err := idParam(r, "item_id")
		if err != nil {
			writeError(w, r, "invalid item id", err)
			return
		}
		if err := syncer.RemoveItem(r.Context(), userID, itemID); err != nil {
			writeError(w, r, "failed to delete plaid item", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "plaid item deleted"})
	}
}

func SyncTransactions(syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		itemID, err := idParam(r, "item_id")
		if err != nil {
			writeError(w, r, "invalid item id", err)
			return
		}
		res, err := syncer.SyncItem(r.Context(), userID, itemID)
		if err != nil {
			writeError(w, r, "failed to sync transactions", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// SyncAllTransactions syncs every item the user has linked.
func SyncAllTransactions(syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		results, err := syncer.SyncUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, "failed to sync transactions", err)
			return
		}
		if results == nil {
			results = []plaid.SyncResult{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// PlaidWebhook verifies a webhook call and syncs the item it names.
// Unknown items are acknowledged so Plaid stops retrying them.
func PlaidWebhook(verifier WebhookVerifier, syncer *plaid.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			badRequest(w, r, "webhook", "read body: %v", err)
			return
		}
		if err := verifier.Verify(r.Context(), body, r.Header); err != nil {
			log.WarnContext(r.Context(), "Rejected Plaid webhook",
				logging.FieldOperation, logging.OpSync,
				logging.FieldError, err)
			http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
			return
		}
		if err := syncer.HandleWebhook(r.Context(), body); err != nil {
			if ledger.IsNotFound(err) {
				log.WarnContext(r.Context(), "Plaid webhook for unknown item", logging.FieldError, err)
				writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
				return
			}
			writeError(w, r, "failed to handle plaid webhook", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
