package handlers

import (
	"net/http"
	"strconv"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

const defaultTransactionLimit = 200

func GetTransactions(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		f := ledger.TransactionFilter{
			Category:    q.Get("category"),
			AccountType: models.AccountType(q.Get("account_type")),
			Limit:       defaultTransactionLimit,
		}
		if raw := q.Get("period"); raw != "" {
			p, err := models.ParsePeriod(raw)
			if err != nil {
				badRequest(w, r, "transaction", "invalid period %q", raw)
				return
			}
			f.Period = &p
		}
		var err error
		if f.AccountID, err = optionalInt64(r, "account_id"); err != nil {
			writeError(w, r, "invalid transactions request", err)
			return
		}
		if f.EnvelopeID, err = optionalInt64(r, "envelope_id"); err != nil {
			writeError(w, r, "invalid transactions request", err)
			return
		}
		if raw := q.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				badRequest(w, r, "transaction", "invalid limit %q", raw)
				return
			}
			f.Limit = limit
		}
		txns, err := l.ListTransactions(r.Context(), userID, f)
		if err != nil {
			writeError(w, r, "failed to get transactions", err)
			return
		}
		if txns == nil {
			txns = []models.Transaction{}
		}
		writeJSON(w, http.StatusOK, txns)
	}
}

func CreateTransaction(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			AccountID    int64        `json:"account_id"`
			EnvelopeID   *int64       `json:"envelope_id"`
			Amount       models.Cents `json:"amount"`
			Description  string       `json:"description"`
			MerchantName string       `json:"merchant_name"`
			Category     string       `json:"category"`
			Date         string       `json:"date"`
			Cleared      bool         `json:"cleared"`
			Approved     bool         `json:"approved"`
			FlagColor    string       `json:"flag_color"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "transaction", "%v", err)
			return
		}
		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, r, "invalid transaction date", err)
			return
		}
		res, err := l.CreateTransaction(r.Context(), userID, ledger.TransactionInput{
			AccountID:    req.AccountID,
			EnvelopeID:   req.EnvelopeID,
			Amount:       req.Amount,
			Description:  req.Description,
			MerchantName: req.MerchantName,
			Category:     req.Category,
			Date:         date,
			Cleared:      req.Cleared,
			Approved:     req.Approved,
			FlagColor:    req.FlagColor,
		})
		if err != nil {
			writeError(w, r, "failed to create transaction", err)
			return
		}
		logging.FromContext(r.Context()).InfoContext(r.Context(), "Created transaction",
			logging.FieldUserID, userID,
			logging.FieldTransaction, res.Transaction.ID,
			logging.FieldAmountCents, int64(res.Transaction.Amount))
		writeJSON(w, http.StatusCreated, res)
	}
}

func UpdateTransaction(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		transactionID, err := idParam(r, "transaction_id")
		if err != nil {
			writeError(w, r, "invalid transaction id", err)
			return
		}
		var req struct {
			AccountID    *int64        `json:"account_id"`
			EnvelopeID   *int64        `json:"envelope_id"`
			Amount       *models.Cents `json:"amount"`
			Description  *string       `json:"description"`
			MerchantName *string       `json:"merchant_name"`
			Category     *string       `json:"category"`
			Date         *string       `json:"date"`
			Cleared      *bool         `json:"cleared"`
			Approved     *bool         `json:"approved"`
			FlagColor    *string       `json:"flag_color"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "transaction", "%v", err)
			return
		}
		patch := models.UpdateTransactionRequest{
			AccountID:    req.AccountID,
			EnvelopeID:   req.EnvelopeID,
			Amount:       req.Amount,
			Description:  req.Description,
			MerchantName: req.MerchantName,
			Category:     req.Category,
			Cleared:      req.Cleared,
			Approved:     req.Approved,
			FlagColor:    req.FlagColor,
		}
		if req.Date != nil {
			date, err := parseDate(*req.Date)
			if err != nil {
				writeError(w, r, "invalid transaction date", err)
				return
			}
			patch.Date = &date
		}
		res, err := l.UpdateTransaction(r.Context(), userID, transactionID, patch)
		if err != nil {
			writeError(w, r, "failed to update transaction", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func DeleteTransaction(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		transactionID, err := idParam(r, "transaction_id")
		if err != nil {
			writeError(w, r, "invalid transaction id", err)
			return
		}
		totals, err := l.DeleteTransaction(r.Context(), userID, transactionID)
		if err != nil {
			writeError(w, r, "failed to delete transaction", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "transaction deleted", "totals": totals})
	}
}
