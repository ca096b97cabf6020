package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"budgee-ledger/src/ledger"
	"budgee-ledger/src/logging"
	"budgee-ledger/src/middleware"
	"budgee-ledger/src/models"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Entity string `json:"entity,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindAutomationDegraded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps ledger error kinds to status codes. Internal failures are
// logged and their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	kind := ledger.KindOf(err)
	status := statusFor(kind)
	resp := errorResponse{Error: err.Error(), Kind: string(kind)}
	var le *ledger.Error
	if errors.As(err, &le) {
		resp.Entity = le.Entity
	}

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), msg,
			logging.FieldErrorKind, string(kind),
			logging.FieldError, err)
		if kind == ledger.KindInternal {
			resp.Error = msg
		}
	} else {
		log.WarnContext(r.Context(), msg,
			logging.FieldErrorKind, string(kind),
			logging.FieldError, err)
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, r *http.Request, entity, format string, args ...any) {
	writeError(w, r, "invalid request", ledger.Validation(entity, format, args...))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// userID reads the identity placed by the auth middleware.
func userID(r *http.Request) (int64, bool) {
	return middleware.UserIDFromContext(r.Context())
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := userID(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return id, ok
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.Validation("", "invalid %s %q", name, raw)
	}
	return id, nil
}

// periodParam reads ?period=YYYY-MM, defaulting to the current month.
func periodParam(r *http.Request, current models.Period) (models.Period, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return current, nil
	}
	p, err := models.ParsePeriod(raw)
	if err != nil {
		return models.Period{}, ledger.Validation("", "invalid period %q", raw)
	}
	return p, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ledger.Validation("", "invalid date %q: use YYYY-MM-DD", raw)
	}
	return t, nil
}

func optionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, ledger.Validation("", "invalid %s %q", name, raw)
	}
	return &v, nil
}
