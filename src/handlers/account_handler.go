package handlers

import (
	"net/http"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

func GetAccounts(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		accounts, err := l.ListAccounts(r.Context(), userID)
		if err != nil {
			writeError(w, r, "failed to get accounts", err)
			return
		}
		if accounts == nil {
			accounts = []models.Account{}
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func CreateAccount(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Name         string             `json:"name"`
			Type         models.AccountType `json:"type"`
			Subtype      string             `json:"subtype"`
			Balance      models.Cents       `json:"balance"`
			JustWatching bool               `json:"just_watching"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "account", "%v", err)
			return
		}
		res, err := l.CreateAccount(r.Context(), userID, ledger.AccountInput{
			Name:         req.Name,
			Type:         req.Type,
			Subtype:      req.Subtype,
			Balance:      req.Balance,
			JustWatching: req.JustWatching,
		})
		if err != nil {
			writeError(w, r, "failed to create account", err)
			return
		}
		logging.FromContext(r.Context()).InfoContext(r.Context(), "Created account",
			logging.FieldUserID, userID,
			logging.FieldAccountID, res.Account.ID)
		writeJSON(w, http.StatusCreated, res)
	}
}

func UpdateAccount(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		accountID, err := idParam(r, "account_id")
		if err != nil {
			writeError(w, r, "invalid account id", err)
			return
		}
		var patch ledger.AccountPatch
		if err := decodeJSON(w, r, &patch); err != nil {
			badRequest(w, r, "account", "%v", err)
			return
		}
		res, err := l.UpdateAccount(r.Context(), userID, accountID, patch)
		if err != nil {
			writeError(w, r, "failed to update account", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
