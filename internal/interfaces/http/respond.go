package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bankmirror/internal/domain/account"
	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/connection"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/domain/report"
	"bankmirror/internal/domain/transaction"
	"bankmirror/internal/infrastructure/saltedge"
	"bankmirror/internal/shared/logger"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathID parses a positive surrogate id from the named path segment.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeInvalidID(w http.ResponseWriter, name string) {
	http.Error(w, "Invalid "+name, http.StatusBadRequest)
}

// writeError maps domain and aggregator errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a 500 with msg.
func writeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var apiErr *saltedge.APIError
	switch {
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, connection.ErrNotFound),
		errors.Is(err, account.ErrNotFound),
		errors.Is(err, transaction.ErrNotFound),
		errors.Is(err, banksync.ErrCustomerNotFound),
		saltedge.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, customer.ErrInvalidInput),
		errors.Is(err, connection.ErrInvalidInput),
		errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, transaction.ErrInvalidInput),
		errors.Is(err, report.ErrInvalidPeriod):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, customer.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &apiErr):
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Int("remote_status", apiErr.StatusCode).Msg(msg)
		http.Error(w, msg+": "+apiErr.Error(), http.StatusBadGateway)
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
