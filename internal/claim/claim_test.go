package claim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/athletics-notify/internal/ledger"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var key = ledger.Key{GameID: 1, RecipientID: 100, Kind: ledger.Kind24Hour}

func setup() (*Protocol, *ledger.MemoryStore, *fakeClock) {
	store := ledger.NewMemoryStore()
	clock := newFakeClock()
	return New(store, WithClock(clock.Now)), store, clock
}

func TestTryClaim_HappyPath(t *testing.T) {
	ctx := context.Background()
	p, store, clock := setup()

	ok, err := p.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.MarkSending(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(time.Second)
	ok, err = p.MarkSent(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusSent, rec.Status)
	require.NotNil(t, rec.SentAt)
	assert.Equal(t, clock.Now(), *rec.SentAt)
}

func TestTryClaim_FreshClaimBlocksOthers(t *testing.T) {
	ctx := context.Background()
	p, _, clock := setup()

	ok, err := p.TryClaim(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(DefaultStaleAfter)
	ok, err = p.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "exactly at the threshold is not stale")

	_, err = p.MarkSending(ctx, key)
	require.NoError(t, err)
	ok, err = p.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "fresh sending record is in flight")
}

func TestTryClaim_SentIsPermanent(t *testing.T) {
	ctx := context.Background()
	p, _, clock := setup()

	ok, _ := p.TryClaim(ctx, key)
	require.True(t, ok)
	_, _ = p.MarkSending(ctx, key)
	_, err := p.MarkSent(ctx, key)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		clock.Advance(24 * time.Hour)
		ok, err := p.TryClaim(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestTryClaim_StalePendingReclaimedOnce(t *testing.T) {
	ctx := context.Background()
	p, store, clock := setup()

	ok, _ := p.TryClaim(ctx, key)
	require.True(t, ok)
	clock.Advance(DefaultStaleAfter + time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.TryClaim(ctx, key)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	rec, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Equal(t, clock.Now(), rec.CreatedAt, "reclaim refreshes the timestamp")
}

func TestTryClaim_StaleSendingReclaimedOnce(t *testing.T) {
	ctx := context.Background()
	p, store, clock := setup()

	ok, _ := p.TryClaim(ctx, key)
	require.True(t, ok)
	ok, _ = p.MarkSending(ctx, key)
	require.True(t, ok)
	clock.Advance(10 * time.Minute)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.TryClaim(ctx, key)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	rec, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status, "sending is rewound to pending")
}

func TestRelease_AllowsImmediateReclaim(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setup()

	ok, _ := p.TryClaim(ctx, key)
	require.True(t, ok)
	_, _ = p.MarkSending(ctx, key)
	require.NoError(t, p.Release(ctx, key))

	ok, err := p.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkSending_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setup()

	ok, err := p.MarkSending(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "no record")

	_, _ = p.TryClaim(ctx, key)
	_, _ = p.MarkSending(ctx, key)
	ok, err = p.MarkSending(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "already sending")
}

// vanishingStore reports a conflict once, then pretends the record was
// released before it could be loaded.
type vanishingStore struct {
	*ledger.MemoryStore
	conflicts int
}

func (s *vanishingStore) Insert(ctx context.Context, k ledger.Key, now time.Time) error {
	if s.conflicts > 0 {
		s.conflicts--
		return ledger.ErrConflict
	}
	return s.MemoryStore.Insert(ctx, k, now)
}

func TestTryClaim_RetriesWhenRecordVanishes(t *testing.T) {
	store := &vanishingStore{MemoryStore: ledger.NewMemoryStore(), conflicts: 1}
	p := New(store)

	ok, err := p.TryClaim(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryClaim_GivesUpAfterRepeatedVanish(t *testing.T) {
	store := &vanishingStore{MemoryStore: ledger.NewMemoryStore(), conflicts: 2}
	p := New(store)

	ok, err := p.TryClaim(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

type failingStore struct {
	*ledger.MemoryStore
}

func (failingStore) Insert(context.Context, ledger.Key, time.Time) error {
	return errors.New("connection refused")
}

func TestTryClaim_PropagatesStorageErrors(t *testing.T) {
	p := New(failingStore{ledger.NewMemoryStore()})

	ok, err := p.TryClaim(context.Background(), key)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ledger.ErrConflict)
}

func TestWithStaleAfter(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	clock := newFakeClock()
	p := New(store, WithClock(clock.Now), WithStaleAfter(time.Minute))
	assert.Equal(t, time.Minute, p.StaleAfter())

	ok, _ := p.TryClaim(ctx, key)
	require.True(t, ok)
	clock.Advance(2 * time.Minute)
	ok, err := p.TryClaim(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
