package history

import (
	"context"
	"sync"
)

// ringCapacity holds 24 hours of samples at a 5-minute poll cadence.
const ringCapacity = 288

// ring is a fixed-size circular buffer of records for one asset.
// O(1) append; overwrites the oldest record when full.
type ring struct {
	records [ringCapacity]Record
	head    int // next insertion point
	size    int
}

func (r *ring) append(rec Record) {
	r.records[r.head] = rec
	r.head = (r.head + 1) % ringCapacity
	if r.size < ringCapacity {
		r.size++
	}
}

// last returns up to count most-recent records in ascending order.
func (r *ring) last(count int) []Record {
	if count <= 0 || r.size == 0 {
		return nil
	}
	if count > r.size {
		count = r.size
	}

	result := make([]Record, count)
	start := r.head - count
	if start < 0 {
		start += ringCapacity
	}
	for i := 0; i < count; i++ {
		result[i] = r.records[(start+i)%ringCapacity]
	}
	return result
}

// MemoryStore is the degraded-mode history store used when no database is
// configured: per-asset ring buffers, optionally pre-seeded with reference
// series so the dashboard still charts before real samples accumulate.
type MemoryStore struct {
	mu    sync.RWMutex
	rings map[string]*ring
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rings: make(map[string]*ring)}
}

// NewSeededMemoryStore creates a store pre-loaded with the static reference
// series for the well-known assets.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	for asset, records := range referenceSeries() {
		for _, rec := range records {
			_ = s.Record(context.Background(), rec)
		}
		_ = asset
	}
	return s
}

// Record appends one row. Never fails.
func (s *MemoryStore) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rings[rec.Asset]
	if !ok {
		r = &ring{}
		s.rings[rec.Asset] = r
	}
	r.append(rec)
	return nil
}

// History returns up to limit most-recent records in ascending order.
// Unknown assets yield an empty slice.
func (s *MemoryStore) History(_ context.Context, asset string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rings[asset]
	if !ok {
		return nil, nil
	}
	return r.last(limit), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}
