package http

import (
	"context"
	"net/http"
	"time"

	"bankmirror/internal/domain/statusprobe"
)

type StatusProber interface {
	Check(ctx context.Context) *statusprobe.Report
	TestProviders(ctx context.Context) (*statusprobe.TestProviders, error)
}

type StatusHandler struct {
	probe    StatusProber
	settings statusprobe.Settings
	db       Pinger
	now      func() time.Time
}

func NewStatusHandler(probe StatusProber, settings statusprobe.Settings, db Pinger) *StatusHandler {
	return &StatusHandler{probe: probe, settings: settings, db: db, now: time.Now}
}

// HandleAggregator classifies what the configured credentials can do. It
// always answers 200; failed sub-probes lower the tier instead.
func (h *StatusHandler) HandleAggregator(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.probe.Check(r.Context()))
}

func (h *StatusHandler) HandleTestProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.probe.TestProviders(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list test providers")
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

// HandleReadiness reports whether this deployment is configured for live
// traffic. It only looks at local settings and the database.
func (h *StatusHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, statusprobe.AssessReadiness(h.settings, h.db.PingContext(ctx), h.now()))
}

type nextStepsResponse struct {
	CurrentStatus   string   `json:"current_status"`
	NextSteps       []string `json:"next_steps"`
	Recommendations []string `json:"recommendations"`
}

// HandleNextSteps runs the aggregator probe and turns the estimated tier
// into a to-do list.
func (h *StatusHandler) HandleNextSteps(w http.ResponseWriter, r *http.Request) {
	report := h.probe.Check(r.Context())
	writeJSON(w, http.StatusOK, nextStepsResponse{
		CurrentStatus:   report.EstimatedStatus,
		NextSteps:       statusprobe.NextSteps(report.EstimatedStatus),
		Recommendations: report.Recommendations,
	})
}

// Pinger is satisfied by *postgres.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
