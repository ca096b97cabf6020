package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/models"
)

func GetEnvelopes(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		p, err := periodParam(r, l.CurrentPeriod())
		if err != nil {
			writeError(w, r, "invalid envelopes request", err)
			return
		}
		envelopes, err := l.ListEnvelopes(r.Context(), userID, p)
		if err != nil {
			writeError(w, r, "failed to get envelopes", err)
			return
		}
		if envelopes == nil {
			envelopes = []models.Envelope{}
		}
		writeJSON(w, http.StatusOK, envelopes)
	}
}

func CreateEnvelope(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Name      string         `json:"name"`
			Group     string         `json:"category_group"`
			Period    *models.Period `json:"period"`
			Allocated models.Cents   `json:"allocated"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "envelope", "%v", err)
			return
		}
		p := l.CurrentPeriod()
		if req.Period != nil {
			p = *req.Period
		}
		res, err := l.CreateEnvelope(r.Context(), userID, ledger.EnvelopeInput{
			Name:      req.Name,
			Group:     req.Group,
			Period:    p,
			Allocated: req.Allocated,
		})
		if err != nil {
			writeError(w, r, "failed to create envelope", err)
			return
		}
		logging.FromContext(r.Context()).InfoContext(r.Context(), "Created envelope",
			logging.FieldUserID, userID,
			logging.FieldEnvelopeID, res.Envelope.ID,
			logging.FieldPeriod, p.String())
		writeJSON(w, http.StatusCreated, res)
	}
}

func DeleteEnvelope(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		envelopeID, err := idParam(r, "envelope_id")
		if err != nil {
			writeError(w, r, "invalid envelope id", err)
			return
		}
		totals, err := l.DeleteEnvelope(r.Context(), userID, envelopeID)
		if err != nil {
			writeError(w, r, "failed to delete envelope", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "envelope deleted", "totals": totals})
	}
}

// AllocateEnvelope sets an envelope's allocated amount.
func AllocateEnvelope(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		envelopeID, err := idParam(r, "envelope_id")
		if err != nil {
			writeError(w, r, "invalid envelope id", err)
			return
		}
		var req struct {
			Amount *models.Cents `json:"amount"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "envelope", "%v", err)
			return
		}
		if req.Amount == nil {
			badRequest(w, r, "envelope", "amount is required")
			return
		}
		res, err := l.Allocate(r.Context(), userID, envelopeID, *req.Amount)
		if err != nil {
			writeError(w, r, "failed to allocate", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// AllocateByName allocates to a named envelope, creating it on first use.
func AllocateByName(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Name   string         `json:"name"`
			Group  string         `json:"category_group"`
			Period *models.Period `json:"period"`
			Amount *models.Cents  `json:"amount"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "envelope", "%v", err)
			return
		}
		if req.Amount == nil {
			badRequest(w, r, "envelope", "amount is required")
			return
		}
		p := l.CurrentPeriod()
		if req.Period != nil {
			p = *req.Period
		}
		res, err := l.AllocateByName(r.Context(), userID, p, req.Name, req.Group, *req.Amount)
		if err != nil {
			writeError(w, r, "failed to allocate", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func MoveMoney(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			FromEnvelopeID int64        `json:"from_envelope_id"`
			ToEnvelopeID   int64        `json:"to_envelope_id"`
			Amount         models.Cents `json:"amount"`
			Reason         string       `json:"reason"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "transfer", "%v", err)
			return
		}
		res, err := l.MoveMoney(r.Context(), userID, req.FromEnvelopeID, req.ToEnvelopeID, req.Amount, req.Reason)
		if err != nil {
			writeError(w, r, "failed to move money", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// CoverOverspending spreads money from one envelope over overspent ones.
func CoverOverspending(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			SourceEnvelopeID  int64        `json:"source_envelope_id"`
			Amount            models.Cents `json:"amount"`
			TargetEnvelopeIDs []int64      `json:"target_envelope_ids"`
			Reason            string       `json:"reason"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, r, "transfer", "%v", err)
			return
		}
		res, err := l.TransferOverspend(r.Context(), userID, ledger.OverspendRequest{
			SourceID:  req.SourceEnvelopeID,
			Amount:    req.Amount,
			TargetIDs: req.TargetEnvelopeIDs,
			Reason:    req.Reason,
		})
		if err != nil {
			writeError(w, r, "failed to cover overspending", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Rollover closes a month into the next one. Without a body it rolls the
// previous month into the current one.
func Rollover(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			From *models.Period `json:"from"`
			To   *models.Period `json:"to"`
		}
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, r, "rollover", "%v", err)
			return
		}
		to := l.CurrentPeriod()
		from := to.Prev()
		switch {
		case req.From != nil && req.To != nil:
			from, to = *req.From, *req.To
		case req.From != nil:
			from, to = *req.From, req.From.Next()
		case req.To != nil:
			from, to = req.To.Prev(), *req.To
		}
		res, err := l.Rollover(r.Context(), userID, from, to)
		if err != nil {
			writeError(w, r, "failed to roll over", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetTransfers lists the envelope transfer audit trail.
func GetTransfers(l *ledger.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var f ledger.TransferFilter
		var err error
		if f.FromEnvelopeID, err = optionalInt64(r, "from_envelope_id"); err != nil {
			writeError(w, r, "invalid transfers request", err)
			return
		}
		if f.ToEnvelopeID, err = optionalInt64(r, "to_envelope_id"); err != nil {
			writeError(w, r, "invalid transfers request", err)
			return
		}
		if raw := r.URL.Query().Get("kind"); raw != "" {
			for _, k := range strings.Split(raw, ",") {
				f.Kinds = append(f.Kinds, models.TransferKind(strings.TrimSpace(k)))
			}
		}
		transfers, err := l.ListTransfers(r.Context(), userID, f)
		if err != nil {
			writeError(w, r, "failed to get transfers", err)
			return
		}
		if transfers == nil {
			transfers = []models.Transfer{}
		}
		writeJSON(w, http.StatusOK, transfers)
	}
}
