package handlers

import (
	"net/http"

	"budgee-ledger/src/ledger"
)

func GetDashboard(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := periodParam(r, l.CurrentPeriod())
		if err != nil {
			writeError(w, r, "invalid dashboard request", err)
			return
		}
		snap, err := l.GetDashboardSnapshot(r.Context(), userID, p)
		if err != nil {
			writeError(w, r, "failed to build dashboard", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
