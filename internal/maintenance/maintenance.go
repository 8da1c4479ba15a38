// Package maintenance runs periodic background checks as Go tickers.
//
// The ledger is append-mostly: sent records are permanent tombstones and
// abandoned claims are recovered by the claim protocol itself. Nothing here
// deletes rows. The ticker only reports claims that have gone stale, which
// points at crashed workers or a transport that hangs past the threshold.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/athletics-notify/internal/ledger"
)

// Reporter summarizes ledger state. Satisfied by ledger.Store.
type Reporter interface {
	Summary(ctx context.Context, staleBefore time.Time) ([]ledger.Count, error)
}

// Config controls the check interval. Zero disables the ticker.
type Config struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// Report is the result of one ledger health check.
type Report struct {
	Sent        int
	InFlight    int
	Stale       int
	StaleByKind map[ledger.Kind]int
}

// Start runs Check every cfg.Interval. Blocks until ctx is cancelled.
// Intended to be called with `go`.
func Start(ctx context.Context, store Reporter, cfg Config, logger *slog.Logger) {
	if cfg.Interval <= 0 {
		logger.Info("Ledger health ticker disabled")
		return
	}
	logger.Info("Ledger health ticker started", "interval", cfg.Interval, "stale_after", cfg.StaleAfter)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := Check(ctx, store, cfg.StaleAfter, time.Now(), logger); err != nil {
				logger.Warn("Ledger health check failed", "error", err)
			}
		case <-ctx.Done():
			logger.Info("Ledger health ticker stopped")
			return
		}
	}
}

// Check summarizes the ledger once and logs stale claims per kind.
func Check(ctx context.Context, store Reporter, staleAfter time.Duration, now time.Time, logger *slog.Logger) (Report, error) {
	counts, err := store.Summary(ctx, now.Add(-staleAfter))
	if err != nil {
		return Report{}, err
	}

	r := Report{StaleByKind: make(map[ledger.Kind]int)}
	for _, c := range counts {
		if c.Status == ledger.StatusSent {
			r.Sent += c.Total
			continue
		}
		r.InFlight += c.Total
		if c.Stale > 0 {
			r.Stale += c.Stale
			r.StaleByKind[c.Kind] += c.Stale
		}
	}

	for kind, n := range r.StaleByKind {
		logger.Warn("Stale notification claims", "kind", kind, "count", n, "stale_after", staleAfter)
	}
	logger.Debug("Ledger health", "sent", r.Sent, "in_flight", r.InFlight, "stale", r.Stale)
	return r, nil
}
