package handlers

import (
	"net/http"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/models"
)

func GetGoals(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := periodParam(r, l.CurrentPeriod())
		if err != nil {
			writeError(w, r, "invalid goals request", err)
			return
		}
		goals, err := l.ListGoals(r.Context(), userID, p)
		if err != nil {
			writeError(w, r, "failed to get goals", err)
			return
		}
		if goals == nil {
			goals = []models.GoalProgress{}
		}
		writeJSON(w, http.StatusOK, goals)
	}
}

func CreateGoal(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Name         string       `json:"name"`
			EnvelopeName string       `json:"envelope_name"`
			TargetAmount models.Cents `json:"target_amount"`
			TargetDate   string       `json:"target_date"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "goal", "%v", err)
			return
		}
		in := ledger.GoalInput{
			Name:         req.Name,
			EnvelopeName: req.EnvelopeName,
			TargetAmount: req.TargetAmount,
		}
		if req.TargetDate != "" {
			d, err := parseDate(req.TargetDate)
			if err != nil {
				writeError(w, r, "invalid goal target date", err)
				return
			}
			in.TargetDate = &d
		}
		goal, err := l.CreateGoal(r.Context(), userID, in)
		if err != nil {
			writeError(w, r, "failed to create goal", err)
			return
		}
		writeJSON(w, http.StatusCreated, goal)
	}
}

func DeleteGoal(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		goalID, err := idParam(r, "goal_id")
		if err != nil {
			writeError(w, r, "invalid goal id", err)
			return
		}
		if err := l.DeleteGoal(r.Context(), userID, goalID); err != nil {
			writeError(w, r, "failed to delete goal", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "goal deleted"})
	}
}
