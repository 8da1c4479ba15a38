package maintenance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/athletics-notify/internal/ledger"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCheck_CountsStaleClaims(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	old := now.Add(-time.Hour)
	store := ledger.NewMemoryStore()

	store.Put(ledger.Record{Key: ledger.Key{GameID: 1, RecipientID: 1, Kind: ledger.Kind24Hour}, Status: ledger.StatusSent, CreatedAt: old, SentAt: &old})
	store.Put(ledger.Record{Key: ledger.Key{GameID: 1, RecipientID: 2, Kind: ledger.Kind24Hour}, Status: ledger.StatusSending, CreatedAt: old})
	store.Put(ledger.Record{Key: ledger.Key{GameID: 1, RecipientID: 3, Kind: ledger.Kind24HourPush}, Status: ledger.StatusPending, CreatedAt: old})
	store.Put(ledger.Record{Key: ledger.Key{GameID: 1, RecipientID: 4, Kind: ledger.Kind24Hour}, Status: ledger.StatusPending, CreatedAt: now.Add(-time.Minute)})

	r, err := Check(context.Background(), store, 5*time.Minute, now, discard)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Sent)
	assert.Equal(t, 3, r.InFlight)
	assert.Equal(t, 2, r.Stale)
	assert.Equal(t, map[ledger.Kind]int{ledger.Kind24Hour: 1, ledger.Kind24HourPush: 1}, r.StaleByKind)

	// Nothing is deleted.
	assert.Len(t, store.Records(), 4)
}

type failingReporter struct{}

func (failingReporter) Summary(context.Context, time.Time) ([]ledger.Count, error) {
	return nil, errors.New("db down")
}

func TestCheck_Error(t *testing.T) {
	_, err := Check(context.Background(), failingReporter{}, time.Minute, time.Now(), discard)
	assert.Error(t, err)
}

func TestStart_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		Start(context.Background(), failingReporter{}, Config{}, discard)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled ticker did not return")
	}
}
