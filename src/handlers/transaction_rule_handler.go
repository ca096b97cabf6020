package handlers

import (
	"net/http"

	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
	"budgee-ledger/src/rules"
)

func CreateTransactionRule(svc *rules.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req rules.RuleInput
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "transaction rule", "%v", err)
			return
		}
		created, err := svc.Create(r.Context(), userID, req)
		if err != nil {
			writeError(w, r, "failed to create transaction rule", err)
			return
		}
		logging.FromContext(r.Context()).InfoContext(r.Context(), "Created transaction rule",
			logging.FieldUserID, userID,
			"rule_id", created.ID,
			"name", created.Name)
		writeJSON(w, http.StatusCreated, created)
	}
}

func GetTransactionRuleByID(svc *rules.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ruleID, err := idParam(r, "rule_id")
		if err != nil {
			writeError(w, r, "invalid rule id", err)
			return
		}
		rule, err := svc.Get(r.Context(), userID, ruleID)
		if err != nil {
			writeError(w, r, "failed to get transaction rule", err)
			return
		}
		writeJSON(w, http.StatusOK, rule)
	}
}

func GetAllTransactionRules(svc *rules.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		list, err := svc.List(r.Context(), userID)
		if err != nil {
			writeError(w, r, "failed to get transaction rules", err)
			return
		}
		if list == nil {
			list = []models.TransactionRule{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func UpdateTransactionRule(svc *rules.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ruleID, err := idParam(r, "rule_id")
		if err != nil {
			writeError(w, r, "invalid rule id", err)
			return
		}
		var req rules.RuleInput
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "transaction rule", "%v", err)
			return
		}
		updated, err := svc.Update(r.Context(), userID, ruleID, req)
		if err != nil {
			writeError(w, r, "failed to update transaction rule", err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func DeleteTransactionRule(svc *rules.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		ruleID, err := idParam(r, "rule_id")
		if err != nil {
			writeError(w, r, "invalid rule id", err)
			return
		}
		if err := svc.Delete(r.Context(), userID, ruleID); err != nil {
			writeError(w, r, "failed to delete transaction rule", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "transaction rule deleted"})
	}
}

// TriggerTransactionRules re-applies every rule to the user's existing transactions.
func TriggerTransactionRules(svc *rules.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		changed, err := svc.Apply(r.Context(), userID)
		if err != nil {
			writeError(w, r, "failed to apply transaction rules", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"updated": changed})
	}
}
