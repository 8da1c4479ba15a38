// Package delivery runs notification passes: it finds games inside a
// reminder window, claims each (game, recipient, kind) slot in the ledger,
// calls the email or push transport, and reconciles the outcome.
//
// Pass: load inputs → evaluate windows → claim → mark sending → send →
// mark sent (success) or release (failure).
//
// A pass never fails because of a single recipient. Only a failure to load
// the inputs aborts it, and that happens before any ledger write.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/athletics-notify/internal/athletics"
	"github.com/albapepper/athletics-notify/internal/ledger"
)

// ErrNotDelivered is the failure reported for a transport that answered
// "not delivered" without an error of its own.
var ErrNotDelivered = errors.New("delivery: transport reported not delivered")

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// Catalog provides the read-only inputs of a pass.
type Catalog interface {
	LoadGames(ctx context.Context) ([]athletics.Game, error)
	LoadSubscribers(ctx context.Context) ([]athletics.Subscriber, error)
	LoadPushTargets(ctx context.Context) ([]athletics.PushTarget, error)
	DeletePushTarget(ctx context.Context, id int64) error
}

// Claimer is the claim protocol. Satisfied by *claim.Protocol.
type Claimer interface {
	TryClaim(ctx context.Context, key ledger.Key) (bool, error)
	MarkSending(ctx context.Context, key ledger.Key) (bool, error)
	MarkSent(ctx context.Context, key ledger.Key) (bool, error)
	Release(ctx context.Context, key ledger.Key) error
}

// EmailSender delivers one reminder email. Any non-nil error is a failed
// delivery.
type EmailSender interface {
	SendReminder(ctx context.Context, kind ledger.Kind, sub athletics.Subscriber, game athletics.Game) error
}

// PushSender delivers one push message. push.ErrTokenInvalid marks a token
// that will never work.
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// Outcome folds a transport's (delivered, err) answer into a single error:
// nil when delivered, ErrNotDelivered for a plain false, err otherwise.
func Outcome(delivered bool, err error) error {
	if err != nil {
		return err
	}
	if !delivered {
		return ErrNotDelivered
	}
	return nil
}

// EmailFunc adapts a bool-returning email transport to EmailSender.
type EmailFunc func(ctx context.Context, kind ledger.Kind, sub athletics.Subscriber, game athletics.Game) (bool, error)

// SendReminder implements EmailSender.
func (f EmailFunc) SendReminder(ctx context.Context, kind ledger.Kind, sub athletics.Subscriber, game athletics.Game) error {
	return Outcome(f(ctx, kind, sub, game))
}

// PushFunc adapts a bool-returning push transport to PushSender.
type PushFunc func(ctx context.Context, token, title, body string, data map[string]string) (bool, error)

// Send implements PushSender.
func (f PushFunc) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	return Outcome(f(ctx, token, title, body, data))
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// PassResult tracks the outcome of one notification pass.
type PassResult struct {
	RunID                string        `json:"run_id"`
	Trigger              string        `json:"trigger"`
	StartedAt            time.Time     `json:"started_at"`
	Duration             time.Duration `json:"duration_ns"`
	GamesIn24HourWindow  int           `json:"games_in_24hour_window"`
	GamesInGameDayWindow int           `json:"games_in_gameday_window"`
	EmailsSent           int           `json:"emails_sent"`
	PushesSent           int           `json:"pushes_sent"`
	Delivered            int           `json:"delivered"`
	DuplicatesSkipped    int           `json:"duplicates_skipped"`
	PushTargetsRemoved   int           `json:"push_targets_removed"`
	Errors               []string      `json:"errors"`
}

// Summary returns a human-readable summary.
func (r *PassResult) Summary() string {
	return fmt.Sprintf(
		"run=%s trigger=%s 24h_games=%d gameday_games=%d emails=%d pushes=%d skipped=%d removed_targets=%d errors=%d dur=%s",
		r.RunID, r.Trigger, r.GamesIn24HourWindow, r.GamesInGameDayWindow,
		r.EmailsSent, r.PushesSent, r.DuplicatesSkipped, r.PushTargetsRemoved,
		len(r.Errors), r.Duration.Round(time.Millisecond))
}

// AddErrorf records a formatted error message.
func (r *PassResult) AddErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
