// Package history holds the bounded chart-facing stores a session controller
// maintains: the time-ordered bar window and the trade marker list.
package history

import (
	"sort"
	"sync"

	"live-clientv1/internal/model"
)

// DefaultBarCap bounds the bar window when no explicit cap is configured.
const DefaultBarCap = 500

// BarStore is a bounded, time-ascending, upsert-capable store of OHLCV bars
// keyed by unix-second time. Oldest bars are evicted once the cap is reached.
// Safe for concurrent snapshot readers.
type BarStore struct {
	mu   sync.RWMutex
	cap  int
	bars []model.Bar
}

// NewBarStore creates a BarStore with the given capacity (DefaultBarCap if <= 0).
func NewBarStore(capacity int) *BarStore {
	if capacity <= 0 {
		capacity = DefaultBarCap
	}
	return &BarStore{cap: capacity, bars: make([]model.Bar, 0, capacity)}
}

// Upsert inserts the bar keeping time order, replacing in place when a bar
// with the same time already exists. Reports whether the bar was applied;
// bars with non-finite fields are rejected.
func (s *BarStore) Upsert(b model.Bar) bool {
	if !b.Valid() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.bars), func(i int) bool { return s.bars[i].Time >= b.Time })
	if i < len(s.bars) && s.bars[i].Time == b.Time {
		// In-progress candle update; time unchanged, so order is preserved
		s.bars[i] = b
		return true
	}

	s.bars = append(s.bars, model.Bar{})
	copy(s.bars[i+1:], s.bars[i:])
	s.bars[i] = b

	if len(s.bars) > s.cap {
		s.bars = s.bars[:copy(s.bars, s.bars[1:])]
	}
	return true
}

// BulkLoad replaces the store contents with the given bars, sorted ascending
// by time and truncated to the cap keeping the most recent entries. Returns
// the number of bars accepted; invalid bars are dropped.
func (s *BarStore) BulkLoad(bars []model.Bar) int {
	valid := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			valid = append(valid, b)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Time < valid[j].Time })
	if len(valid) > s.cap {
		valid = valid[len(valid)-s.cap:]
	}

	s.mu.Lock()
	s.bars = append(s.bars[:0], valid...)
	s.mu.Unlock()
	return len(valid)
}

// Snapshot returns a copy of the stored bars in ascending time order.
func (s *BarStore) Snapshot() []model.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Bar, len(s.bars))
	copy(cp, s.bars)
	return cp
}

// Len returns the number of stored bars.
func (s *BarStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Clear removes all bars.
func (s *BarStore) Clear() {
	s.mu.Lock()
	s.bars = s.bars[:0]
	s.mu.Unlock()
}
