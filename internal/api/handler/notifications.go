package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/albapepper/athletics-notify/internal/api/respond"
	"github.com/albapepper/athletics-notify/internal/cache"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

const ledgerSummaryKey = "ledger:summary"

// LedgerSummary is the body of GET /api/v1/admin/notifications/ledger.
type LedgerSummary struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	StaleAfterSeconds int            `json:"stale_after_seconds"`
	Counts            []ledger.Count `json:"counts"`
}

// RunNotifications runs a manual notification pass and returns its result.
// Quiet hours do not apply.
// @Summary Run notification pass
// @Description Runs a notification pass immediately, ignoring quiet hours. Per-recipient failures are listed in errors.
// @Tags notifications
// @Produce json
// @Success 200 {object} delivery.PassResult
// @Failure 503 {object} respond.ErrorResponse
// @Router /api/v1/admin/notifications/run [post]
func (h *Handler) RunNotifications(w http.ResponseWriter, r *http.Request) {
	if h.d.Runner == nil {
		respond.Error(w, http.StatusServiceUnavailable, "RUNNER_UNAVAILABLE", "Notification runner is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.d.RunTimeout)
	defer cancel()

	result := h.d.Runner.RunManual(ctx)
	h.d.Cache.Invalidate("ledger:")
	h.d.Logger.Info("Manual notification pass finished", "summary", result.Summary())
	respond.JSON(w, http.StatusOK, result)
}

// GetLedgerSummary returns per-kind, per-status ledger counts.
// @Summary Ledger summary
// @Description Returns ledger record counts per kind and status, including claims older than the stale threshold.
// @Tags notifications
// @Produce json
// @Success 200 {object} LedgerSummary
// @Success 304
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/v1/admin/notifications/ledger [get]
func (h *Handler) GetLedgerSummary(w http.ResponseWriter, r *http.Request) {
	if body, etag, ok := h.d.Cache.Get(ledgerSummaryKey); ok {
		if cache.Matches(r.Header.Get("If-None-Match"), etag) {
			respond.NotModified(w, etag)
			return
		}
		respond.Cached(w, body, etag, h.d.SummaryTTL, true)
		return
	}

	if h.d.Ledger == nil {
		respond.Error(w, http.StatusServiceUnavailable, "LEDGER_UNAVAILABLE", "Ledger is not configured")
		return
	}

	now := h.d.Clock()
	counts, err := h.d.Ledger.Summary(r.Context(), now.Add(-h.d.StaleAfter))
	if err != nil {
		h.d.Logger.Error("Ledger summary failed", "error", err)
		respond.ErrorDetail(w, http.StatusInternalServerError, "LEDGER_ERROR", "Could not read the notification ledger", err.Error())
		return
	}
	if counts == nil {
		counts = []ledger.Count{}
	}

	body, err := json.Marshal(LedgerSummary{
		GeneratedAt:       now.UTC(),
		StaleAfterSeconds: int(h.d.StaleAfter.Seconds()),
		Counts:            counts,
	})
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "ENCODE_ERROR", "Could not encode ledger summary")
		return
	}

	etag := h.d.Cache.Set(ledgerSummaryKey, body, h.d.SummaryTTL)
	if cache.Matches(r.Header.Get("If-None-Match"), etag) {
		respond.NotModified(w, etag)
		return
	}
	respond.Cached(w, body, etag, h.d.SummaryTTL, false)
}
