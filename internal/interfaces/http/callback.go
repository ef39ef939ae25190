package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"bankmirror/internal/domain/callback"
	"bankmirror/internal/interfaces/scheduler"
	"bankmirror/internal/shared/logger"
)

const (
	SignatureHeader = "Signature"
	ExpiresAtHeader = "Expires-at"

	callbackPrefix = "/api/v1/callbacks"
)

// CallbackRoute is one webhook endpoint exposed to the aggregator.
type CallbackRoute struct {
	Path        string
	Category    callback.Category
	Description string
}

// CallbackRoutes lists every webhook endpoint, relative to /api/v1/callbacks.
var CallbackRoutes = []CallbackRoute{
	{"/ais/success", callback.CategorySuccess, "Connection succeeded or new data is available"},
	{"/ais/failure", callback.CategoryFailure, "Connection failed"},
	{"/ais/notify", callback.CategoryNotify, "Connection progress notice"},
	{"/ais/destroy", callback.CategoryDestroy, "Connection removed at the aggregator"},
	{"/ais/provider-changes", callback.CategoryProviderChanges, "Provider changed its API or status"},
	{"/pis/success", callback.CategoryPaymentSuccess, "Payment completed"},
	{"/pis/failure", callback.CategoryPaymentFailure, "Payment failed"},
	{"/pis/notify", callback.CategoryPaymentNotify, "Payment status changed"},
	{"/salt-edge", callback.CategoryLegacy, "Single endpoint routed by the payload stage"},
}

type CallbackProcessor interface {
	Accept(ctx context.Context, in callback.Inbound) (*callback.Callback, error)
	Process(ctx context.Context, cb *callback.Callback) error
}

type JobSubmitter interface {
	Submit(job scheduler.Job) error
}

// CallbackHandler acknowledges webhooks synchronously and hands the state
// transition to the worker pool.
type CallbackHandler struct {
	processor    CallbackProcessor
	jobs         JobSubmitter
	maxBodyBytes int64
	now          func() time.Time
}

func NewCallbackHandler(processor CallbackProcessor, jobs JobSubmitter, maxBodyBytes int64) *CallbackHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &CallbackHandler{
		processor:    processor,
		jobs:         jobs,
		maxBodyBytes: maxBodyBytes,
		now:          time.Now,
	}
}

// Handle returns the endpoint for one callback category.
func (h *CallbackHandler) Handle(category callback.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}

		cb, err := h.processor.Accept(r.Context(), callback.Inbound{
			Category:  category,
			Path:      r.URL.Path,
			Signature: r.Header.Get(SignatureHeader),
			ExpiresAt: r.Header.Get(ExpiresAtHeader),
			Body:      body,
		})
		switch {
		case err == nil:
		case errors.Is(err, callback.ErrInvalidSignature), errors.Is(err, callback.ErrSignatureExpired):
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		case errors.Is(err, callback.ErrMalformedPayload):
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		default:
			log.Error().Err(err).Str("callback", string(category)).Msg("Failed to accept callback")
			http.Error(w, "Failed to accept callback", http.StatusInternalServerError)
			return
		}

		// The aggregator retries anything but 2xx, so a full queue is logged
		// and left to the next scheduled sync.
		if err := h.jobs.Submit(scheduler.NewCallbackJob(cb, h.processor)); err != nil {
			log.Error().Err(err).
				Str("callback_id", cb.ID).
				Str("callback", string(cb.Category)).
				Str("connection", cb.Payload.ConnectionID).
				Msg("Dropped accepted callback")
		}

		writeJSON(w, http.StatusOK, callback.NewAck(cb.Category, h.now()))
	}
}

// HandleTest lets operators confirm the webhook URL is reachable.
func (h *CallbackHandler) HandleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"message":   "Callback endpoint is accessible",
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"endpoint":  callbackPrefix + "/salt-edge",
	})
}

// HandleTestPayload wraps an arbitrary JSON object in a sample success
// envelope without processing it.
func (h *CallbackHandler) HandleTestPayload(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes)).Decode(&payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "processed",
		"message": "Test payload processed successfully",
		"test_callback": map[string]any{
			"data": map[string]any{
				"connection_id": "test_connection_123",
				"customer_id":   "test_customer_456",
				"stage":         callback.StageFinish,
				"custom_fields": payload,
			},
			"meta": map[string]string{
				"version": "6",
				"time":    h.now().UTC().Format(time.RFC3339),
			},
		},
	})
}

type setupEndpoint struct {
	Category    callback.Category `json:"category"`
	URL         string            `json:"url"`
	Description string            `json:"description"`
}

type setupInstructions struct {
	Title        string          `json:"title"`
	BaseURL      string          `json:"base_url"`
	Endpoints    []setupEndpoint `json:"callback_endpoints"`
	Headers      []string        `json:"signed_headers"`
	TestURL      string          `json:"test_url"`
	Requirements []string        `json:"production_requirements"`
}

// HandleSetupInstructions lists the URLs to configure in the aggregator
// dashboard, built from the host this request arrived on.
func (h *CallbackHandler) HandleSetupInstructions(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	base := scheme + "://" + r.Host

	endpoints := make([]setupEndpoint, 0, len(CallbackRoutes))
	for _, route := range CallbackRoutes {
		endpoints = append(endpoints, setupEndpoint{
			Category:    route.Category,
			URL:         base + callbackPrefix + route.Path,
			Description: route.Description,
		})
	}

	writeJSON(w, http.StatusOK, setupInstructions{
		Title:     "Aggregator callback setup",
		BaseURL:   base,
		Endpoints: endpoints,
		Headers:   []string{SignatureHeader, ExpiresAtHeader},
		TestURL:   base + callbackPrefix + "/test",
		Requirements: []string{
			"HTTPS endpoints reachable from the aggregator",
			"Signature verification enabled with the app secret",
		},
	})
}
