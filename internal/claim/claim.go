// Package claim implements the three-phase send protocol on top of the
// ledger: claim (pending) → sending → sent.
//
// Cross-worker exclusion comes only from the ledger's insert-or-conflict and
// conditional updates; there is no in-process locking. A stale record is
// reclaimed even when the previous worker may have already delivered: a
// duplicate reminder is preferred over a missed one.
package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/athletics-notify/internal/ledger"
)

// DefaultStaleAfter is how long a pending or sending record may sit before
// it is presumed abandoned by a crashed worker.
const DefaultStaleAfter = 5 * time.Minute

// Protocol runs claim state transitions against a ledger store.
type Protocol struct {
	store      ledger.Store
	now        func() time.Time
	staleAfter time.Duration
	logger     *slog.Logger
}

// Option customizes a Protocol.
type Option func(*Protocol)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Protocol) { p.now = now }
}

// WithStaleAfter overrides DefaultStaleAfter.
func WithStaleAfter(d time.Duration) Option {
	return func(p *Protocol) {
		if d > 0 {
			p.staleAfter = d
		}
	}
}

// WithLogger sets the logger used for reclaim events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// New creates a protocol bound to store.
func New(store ledger.Store, opts ...Option) *Protocol {
	p := &Protocol{
		store:      store,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StaleAfter returns the configured staleness threshold.
func (p *Protocol) StaleAfter() time.Duration { return p.staleAfter }

// TryClaim attempts to take exclusive ownership of key. A true result means
// the caller must now send. False means the reminder was already delivered or
// another worker is handling it. Errors are storage failures for this key
// only.
func (p *Protocol) TryClaim(ctx context.Context, key ledger.Key) (bool, error) {
	// Two attempts: the record can disappear between our conflicting insert
	// and the load when another worker releases it after a failed send.
	for attempt := 0; attempt < 2; attempt++ {
		now := p.now()
		err := p.store.Insert(ctx, key, now)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, ledger.ErrConflict) {
			return false, fmt.Errorf("claim %s: %w", key, err)
		}

		rec, err := p.store.Get(ctx, key)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("load claim %s: %w", key, err)
		}
		return p.resolveExisting(ctx, rec, now)
	}
	return false, nil
}

// resolveExisting applies the rules for a key that is already in the ledger.
func (p *Protocol) resolveExisting(ctx context.Context, rec ledger.Record, now time.Time) (bool, error) {
	switch rec.Status {
	case ledger.StatusSent:
		return false, nil
	case ledger.StatusPending, ledger.StatusSending:
		if now.Sub(rec.CreatedAt) <= p.staleAfter {
			return false, nil
		}
	default:
		return false, fmt.Errorf("claim %s: unexpected status %q", rec.Key, rec.Status)
	}

	staleBefore := now.Add(-p.staleAfter)
	reclaimed, err := p.store.Reclaim(ctx, rec.Key, rec.Status, staleBefore, now)
	if err != nil {
		return false, fmt.Errorf("reclaim %s: %w", rec.Key, err)
	}
	if reclaimed {
		// A stale sending record means the delivery outcome is unknown;
		// resending may duplicate.
		p.logger.Warn("Reclaimed stale notification claim",
			"game_id", rec.GameID, "recipient_id", rec.RecipientID,
			"kind", rec.Kind, "previous_status", rec.Status,
			"age", now.Sub(rec.CreatedAt).Round(time.Second))
	}
	return reclaimed, nil
}

// MarkSending moves a claimed record from pending to sending. False means the
// record is no longer pending and the caller must not send.
func (p *Protocol) MarkSending(ctx context.Context, key ledger.Key) (bool, error) {
	ok, err := p.store.Advance(ctx, key, ledger.StatusPending, ledger.StatusSending, p.now())
	if err != nil {
		return false, fmt.Errorf("mark sending %s: %w", key, err)
	}
	return ok, nil
}

// MarkSent records a confirmed delivery. If this fails the record stays in
// sending and a later pass reclaims it once stale.
func (p *Protocol) MarkSent(ctx context.Context, key ledger.Key) (bool, error) {
	ok, err := p.store.MarkSent(ctx, key, p.now())
	if err != nil {
		return false, fmt.Errorf("mark sent %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes the record after a failed delivery so the next pass can
// retry without waiting for staleness.
func (p *Protocol) Release(ctx context.Context, key ledger.Key) error {
	if err := p.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
