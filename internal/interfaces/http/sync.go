package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"bankmirror/internal/domain/banksync"
	"bankmirror/internal/domain/customer"
	"bankmirror/internal/interfaces/scheduler"

	"github.com/rs/zerolog"
)

type SyncRunner interface {
	SyncCustomer(ctx context.Context, identifier string) (*banksync.Result, error)
}

type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (*customer.Customer, error)
	List(ctx context.Context) ([]*customer.Customer, error)
}

type SyncHandler struct {
	runner    SyncRunner
	customers CustomerDirectory
	jobs      JobSubmitter
	alerts    scheduler.Alerter
	logger    zerolog.Logger
}

func NewSyncHandler(runner SyncRunner, customers CustomerDirectory, jobs JobSubmitter, alerts scheduler.Alerter, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		runner:    runner,
		customers: customers,
		jobs:      jobs,
		alerts:    alerts,
		logger:    logger,
	}
}

type SyncRequest struct {
	CustomerIdentifier string `json:"customer_identifier"`
}

type BackgroundSyncResponse struct {
	Message   string   `json:"message"`
	Customers []string `json:"customers,omitempty"`
	Queued    int      `json:"queued"`
}

// HandleSyncCustomer runs a full sync inline and returns the result, partial
// errors included.
func (h *SyncHandler) HandleSyncCustomer(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.CustomerIdentifier = strings.TrimSpace(req.CustomerIdentifier)
	if req.CustomerIdentifier == "" {
		http.Error(w, "customer_identifier is required", http.StatusBadRequest)
		return
	}

	result, err := h.runner.SyncCustomer(r.Context(), req.CustomerIdentifier)
	if err != nil {
		writeError(w, r, err, "Sync failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleSyncCustomerBackground queues a sync for one customer.
func (h *SyncHandler) HandleSyncCustomerBackground(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeInvalidID(w, "customer id")
		return
	}

	c, err := h.customers.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to load customer")
		return
	}

	if err := h.jobs.Submit(h.job(c.Identifier)); err != nil {
		logger := h.logger.With().Str("customer", c.Identifier).Logger()
		logger.Warn().Err(err).Msg("Background sync not queued")
		http.Error(w, "Sync queue is unavailable, retry later", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, BackgroundSyncResponse{
		Message:   fmt.Sprintf("Background sync initiated for customer %s", c.Identifier),
		Customers: []string{c.Identifier},
		Queued:    1,
	})
}

// HandleSyncAllBackground queues a sync for every local customer. Customers
// that do not fit in the queue are reported by omission from Customers.
func (h *SyncHandler) HandleSyncAllBackground(w http.ResponseWriter, r *http.Request) {
	customers, err := h.customers.List(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list customers")
		return
	}
	if len(customers) == 0 {
		writeJSON(w, http.StatusOK, BackgroundSyncResponse{Message: "No customers found"})
		return
	}

	queued := make([]string, 0, len(customers))
	for _, c := range customers {
		if err := h.jobs.Submit(h.job(c.Identifier)); err != nil {
			h.logger.Warn().Err(err).Str("customer", c.Identifier).Msg("Background sync not queued")
			continue
		}
		queued = append(queued, c.Identifier)
	}

	writeJSON(w, http.StatusAccepted, BackgroundSyncResponse{
		Message:   fmt.Sprintf("Background sync initiated for %d of %d customers", len(queued), len(customers)),
		Customers: queued,
		Queued:    len(queued),
	})
}

func (h *SyncHandler) job(identifier string) scheduler.Job {
	return scheduler.NewCustomerSyncJob(identifier, h.runner, h.alerts, h.logger)
}
