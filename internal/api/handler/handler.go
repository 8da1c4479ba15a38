// Package handler provides HTTP handlers for the admin API.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/albapepper/athletics-notify/internal/api/respond"
	"github.com/albapepper/athletics-notify/internal/cache"
	"github.com/albapepper/athletics-notify/internal/delivery"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

// HealthChecker probes the database. Satisfied by *db.Pool.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	LedgerReady(ctx context.Context) (bool, error)
}

// PassRunner runs a manual pass. Satisfied by *scheduler.Scheduler.
type PassRunner interface {
	RunManual(ctx context.Context) delivery.PassResult
}

// LedgerReporter summarizes ledger state. Satisfied by ledger.Store.
type LedgerReporter interface {
	Summary(ctx context.Context, staleBefore time.Time) ([]ledger.Count, error)
}

// Deps are the handler's collaborators.
type Deps struct {
	DB         HealthChecker
	Runner     PassRunner
	Ledger     LedgerReporter
	Cache      *cache.Cache
	StaleAfter time.Duration
	SummaryTTL time.Duration
	// RunTimeout bounds a manual pass. It is detached from the request so a
	// dropped connection does not interrupt delivery.
	RunTimeout time.Duration
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	d Deps
}

// New creates a Handler.
func New(d Deps) *Handler {
	if d.Cache == nil {
		d.Cache = cache.New(false, 0)
	}
	if d.StaleAfter <= 0 {
		d.StaleAfter = 5 * time.Minute
	}
	if d.SummaryTTL <= 0 {
		d.SummaryTTL = cache.TTLLedgerSummary
	}
	if d.RunTimeout <= 0 {
		d.RunTimeout = 10 * time.Minute
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return &Handler{d: d}
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": h.d.Clock().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity and the ledger table.
// @Summary Database health check
// @Description Verifies Postgres connectivity and that the notification ledger exists.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	ts := h.d.Clock().UTC().Format(time.RFC3339)
	if h.d.DB == nil {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "database": "not configured", "timestamp": ts,
		})
		return
	}
	if err := h.d.DB.HealthCheck(r.Context()); err != nil {
		h.d.Logger.Warn("Database health check failed", "error", err)
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "database": "disconnected", "timestamp": ts,
		})
		return
	}
	ready, err := h.d.DB.LedgerReady(r.Context())
	if err != nil || !ready {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy", "database": "connected", "ledger": "missing", "timestamp": ts,
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"status": "healthy", "database": "connected", "ledger": "ready", "timestamp": ts,
	})
}
