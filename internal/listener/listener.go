// Package listener consumes Postgres NOTIFY events raised when the game
// schedule is re-synced, and runs a notification pass so newly added or
// moved games are picked up without waiting for the next hourly tick.
//
// It holds a dedicated pgx connection (not from the pool). Bursts of events
// are coalesced into one pass. Quiet hours still apply.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/athletics-notify/internal/delivery"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
	defaultDebounce  = 10 * time.Second
)

// Conn is the part of *pgx.Conn a listen session uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a dedicated connection.
type Dialer func(ctx context.Context) (Conn, error)

// PgxDialer dials dbURL with pgx.
func PgxDialer(dbURL string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dbURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Triggerer runs a quiet-hours-aware pass. Satisfied by *scheduler.Scheduler.
type Triggerer interface {
	Trigger(ctx context.Context, trigger string) (delivery.PassResult, bool)
}

// SyncEvent is the optional JSON payload of a schedule_synced notification.
type SyncEvent struct {
	Source string `json:"source"`
	Games  int    `json:"games"`
}

// Options configures a Listener.
type Options struct {
	Channel string
	// Debounce is how long to wait after an event for more to arrive.
	Debounce   time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *slog.Logger
}

// Listener turns schedule sync notifications into passes.
type Listener struct {
	dial    Dialer
	trigger Triggerer
	opts    Options
	logger  *slog.Logger
	pending chan struct{}
}

// New creates a listener.
func New(dial Dialer, trigger Triggerer, opts Options) *Listener {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = reconnectBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = maxReconnect
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Listener{
		dial:    dial,
		trigger: trigger,
		opts:    opts,
		logger:  opts.Logger.With("channel", opts.Channel),
		pending: make(chan struct{}, 1),
	}
}

// Run listens until ctx is cancelled, reconnecting on connection loss.
// Intended to be called with `go`.
func (l *Listener) Run(ctx context.Context) {
	go l.dispatch(ctx)

	backoff := l.opts.MinBackoff
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Schedule listener stopped")
			return
		}
		if connected {
			backoff = l.opts.MinBackoff
		}

		l.logger.Error("Schedule listener disconnected, reconnecting",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, l.opts.MaxBackoff)
		case <-ctx.Done():
			return
		}
	}
}

// session runs one LISTEN session. connected reports whether LISTEN
// succeeded before the session ended.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.opts.Channel}.Sanitize()); err != nil {
		return false, fmt.Errorf("LISTEN %s: %w", l.opts.Channel, err)
	}
	l.logger.Info("Schedule listener connected")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return true, fmt.Errorf("wait for notification: %w", err)
		}

		var ev SyncEvent
		if n.Payload != "" {
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				l.logger.Warn("Unparseable schedule sync payload", "payload", n.Payload, "error", err)
			}
		}
		l.logger.Info("Schedule sync received", "source", ev.Source, "games", ev.Games)

		select {
		case l.pending <- struct{}{}:
		default:
			// A pass is already queued.
		}
	}
}

// dispatch runs at most one pass at a time, after a debounce window.
func (l *Listener) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.pending:
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.opts.Debounce):
		}
		select {
		case <-l.pending:
		default:
		}

		res, ran := l.trigger.Trigger(ctx, delivery.TriggerSync)
		if ran {
			l.logger.Info("Sync-triggered pass complete", "summary", res.Summary())
		}
	}
}
