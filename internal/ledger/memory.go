package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with the same per-row atomicity as the
// Postgres table. Used by tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	records map[Key]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]Record)}
}

func (m *MemoryStore) Insert(_ context.Context, key Key, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[key]; exists {
		return ErrConflict
	}
	m.records[key] = Record{Key: key, Status: StatusPending, CreatedAt: now}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Reclaim(_ context.Context, key Key, from Status, staleBefore, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Status != from || !rec.CreatedAt.Before(staleBefore) {
		return false, nil
	}
	rec.Status = StatusPending
	rec.CreatedAt = now
	m.records[key] = rec
	return true, nil
}

func (m *MemoryStore) Advance(_ context.Context, key Key, from, to Status, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	rec.CreatedAt = now
	m.records[key] = rec
	return true, nil
}

func (m *MemoryStore) MarkSent(_ context.Context, key Key, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		return false, nil
	}
	sentAt := now
	rec.Status = StatusSent
	rec.SentAt = &sentAt
	m.records[key] = rec
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *MemoryStore) Summary(_ context.Context, staleBefore time.Time) ([]Count, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type group struct {
		kind   Kind
		status Status
	}
	totals := make(map[group]*Count)
	for _, rec := range m.records {
		g := group{rec.Kind, rec.Status}
		c, ok := totals[g]
		if !ok {
			c = &Count{Kind: rec.Kind, Status: rec.Status}
			totals[g] = c
		}
		c.Total++
		if rec.Status != StatusSent && rec.CreatedAt.Before(staleBefore) {
			c.Stale++
		}
	}

	counts := make([]Count, 0, len(totals))
	for _, c := range totals {
		counts = append(counts, *c)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Kind != counts[j].Kind {
			return counts[i].Kind < counts[j].Kind
		}
		return counts[i].Status < counts[j].Status
	})
	return counts, nil
}

// Records returns a snapshot of every record. Test helper.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	return out
}

// Put overwrites a record. Test helper for seeding crashed-worker states.
func (m *MemoryStore) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Key] = rec
}
