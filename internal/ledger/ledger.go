// Package ledger persists notification claim records keyed by
// (game, recipient, kind). The uniqueness of that key is what turns an insert
// into an atomic claim: a successful insert means nobody else owns the slot,
// a conflict means somebody already does.
//
// A record moves pending → sending → sent. The only backward move is a stale
// reclaim back to pending. Sent records are never deleted; they are the
// deduplication tombstones.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrConflict is returned by Insert when a record for the key already exists.
	ErrConflict = errors.New("ledger: record already exists")
	// ErrNotFound is returned by Get when no record exists for the key.
	ErrNotFound = errors.New("ledger: record not found")
)

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

// Kind identifies which reminder a record tracks. Email and push reminders
// are distinct kinds so a recipient can receive both channels independently.
type Kind string

const (
	Kind24Hour      Kind = "24hour"
	KindGameDay     Kind = "gameday"
	Kind24HourPush  Kind = "24hour-push"
	KindGameDayPush Kind = "gameday-push"
)

// AllKinds lists every valid kind in display order.
var AllKinds = []Kind{Kind24Hour, KindGameDay, Kind24HourPush, KindGameDayPush}

// ParseKind validates a stored or user-supplied kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown notification kind %q", s)
}

// Channel is the delivery channel a kind belongs to.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// Window names a reminder window. Declared here so kinds can be derived
// without importing the evaluator.
type Window string

const (
	Window24Hour  Window = "24hour"
	WindowGameDay Window = "gameday"
)

// KindFor maps a window and channel to the ledger kind.
func KindFor(w Window, ch Channel) Kind {
	switch {
	case w == Window24Hour && ch == ChannelPush:
		return Kind24HourPush
	case w == WindowGameDay && ch == ChannelPush:
		return KindGameDayPush
	case w == WindowGameDay:
		return KindGameDay
	default:
		return Kind24Hour
	}
}

// Channel returns the delivery channel of the kind.
func (k Kind) Channel() Channel {
	if k == Kind24HourPush || k == KindGameDayPush {
		return ChannelPush
	}
	return ChannelEmail
}

// Window returns the reminder window of the kind.
func (k Kind) Window() Window {
	if k == KindGameDay || k == KindGameDayPush {
		return WindowGameDay
	}
	return Window24Hour
}

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
)

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Key is the composite identity of a record. RecipientID is a subscriber ID
// for email kinds and a push target ID for push kinds.
type Key struct {
	GameID      int64
	RecipientID int64
	Kind        Kind
}

func (k Key) String() string {
	return fmt.Sprintf("game=%d recipient=%d kind=%s", k.GameID, k.RecipientID, k.Kind)
}

// Record is one ledger row. CreatedAt is reset on every claim and reclaim
// and serves as the staleness clock.
type Record struct {
	Key
	Status    Status
	CreatedAt time.Time
	SentAt    *time.Time
}

// Count is one row of a ledger summary.
type Count struct {
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Total  int    `json:"total"`
	Stale  int    `json:"stale"`
}

// Store exposes the atomic primitives the claim protocol is built on.
// Insert and the conditional updates must be atomic per row; nothing else is.
type Store interface {
	// Insert creates a pending record stamped with now, or returns ErrConflict.
	Insert(ctx context.Context, key Key, now time.Time) error
	// Get loads a record, or returns ErrNotFound.
	Get(ctx context.Context, key Key) (Record, error)
	// Reclaim resets a record in status from whose CreatedAt is before
	// staleBefore to pending, stamped with now. Reports whether a row changed.
	Reclaim(ctx context.Context, key Key, from Status, staleBefore, now time.Time) (bool, error)
	// Advance moves a record from one status to another, stamped with now,
	// only if it is currently in from.
	Advance(ctx context.Context, key Key, from, to Status, now time.Time) (bool, error)
	// MarkSent moves a record to sent regardless of its current status.
	MarkSent(ctx context.Context, key Key, now time.Time) (bool, error)
	// Delete removes a record.
	Delete(ctx context.Context, key Key) error
	// Summary counts records per kind and status. Non-terminal records
	// created before staleBefore are also counted as stale.
	Summary(ctx context.Context, staleBefore time.Time) ([]Count, error)
}
