package history

import (
	"fmt"
	"strings"
	"sync"

	"live-clientv1/internal/model"
)

// DefaultMarkerCap bounds the marker list when no explicit cap is configured.
const DefaultMarkerCap = 100

// MarkerStore is a bounded FIFO of trade annotations. Markers are appended in
// arrival order; the oldest-appended marker is evicted on overflow.
type MarkerStore struct {
	mu      sync.RWMutex
	cap     int
	markers []model.Marker
}

// NewMarkerStore creates a MarkerStore with the given capacity
// (DefaultMarkerCap if <= 0).
func NewMarkerStore(capacity int) *MarkerStore {
	if capacity <= 0 {
		capacity = DefaultMarkerCap
	}
	return &MarkerStore{cap: capacity, markers: make([]model.Marker, 0, capacity)}
}

// AddFromTrade appends exactly one marker for a live trade event, placed at
// the trade's timestamp. Returns the marker.
func (s *MarkerStore) AddFromTrade(t model.Trade) model.Marker {
	m := liveMarker(t)
	s.push(m)
	return m
}

// LoadFromTrades replaces the store contents from a historical batch. A
// completed trade yields an entry marker and, when both entry and exit
// timestamps are present, a mirrored exit marker.
func (s *MarkerStore) LoadFromTrades(trades []model.Trade) {
	s.mu.Lock()
	s.markers = s.markers[:0]
	s.mu.Unlock()

	for _, t := range trades {
		entry, exit, hasExit := historicalMarkers(t)
		s.push(entry)
		if hasExit {
			s.push(exit)
		}
	}
}

// Clear removes all markers.
func (s *MarkerStore) Clear() {
	s.mu.Lock()
	s.markers = s.markers[:0]
	s.mu.Unlock()
}

// Snapshot returns a copy of the markers in append order.
func (s *MarkerStore) Snapshot() []model.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]model.Marker, len(s.markers))
	copy(cp, s.markers)
	return cp
}

// Len returns the number of stored markers.
func (s *MarkerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

func (s *MarkerStore) push(m model.Marker) {
	s.mu.Lock()
	s.markers = append(s.markers, m)
	if len(s.markers) > s.cap {
		s.markers = s.markers[:copy(s.markers, s.markers[1:])]
	}
	s.mu.Unlock()
}

// liveMarker builds the single marker for a streamed trade event.
func liveMarker(t model.Trade) model.Marker {
	pos, shape := entryStyle(t.Side)
	return model.Marker{
		Time:     t.Timestamp,
		Position: pos,
		Shape:    shape,
		Text:     fmt.Sprintf("%s %.4g @ %.2f", strings.ToUpper(string(t.Side)), t.Quantity, t.Price),
	}
}

// historicalMarkers builds entry and optional exit markers for a completed
// trade from a historical batch.
func historicalMarkers(t model.Trade) (entry, exit model.Marker, hasExit bool) {
	entryTime := t.EntryTime
	if entryTime == 0 {
		entryTime = t.Timestamp
	}
	entryPrice := t.EntryPrice
	if entryPrice == 0 {
		entryPrice = t.Price
	}

	pos, shape := entryStyle(t.Side)
	entry = model.Marker{
		Time:     entryTime,
		Position: pos,
		Shape:    shape,
		Text:     fmt.Sprintf("%s %.4g @ %.2f", strings.ToUpper(string(t.Side)), t.Quantity, entryPrice),
	}

	if t.EntryTime == 0 || t.ExitTime == 0 {
		return entry, model.Marker{}, false
	}

	exitPos, exitShape := exitStyle(t.Side)
	text := fmt.Sprintf("EXIT @ %.2f", t.ExitPrice)
	if t.PnL != nil {
		text = fmt.Sprintf("EXIT @ %.2f (%+.2f)", t.ExitPrice, *t.PnL)
	}
	exit = model.Marker{
		Time:     t.ExitTime,
		Position: exitPos,
		Shape:    exitShape,
		Text:     text,
	}
	return entry, exit, true
}

// entryStyle places a long entry below the bar pointing up and a short entry
// above the bar pointing down.
func entryStyle(side model.Side) (model.MarkerPosition, model.MarkerShape) {
	if side == model.SideShort {
		return model.MarkerAbove, model.ShapeArrowDown
	}
	return model.MarkerBelow, model.ShapeArrowUp
}

// exitStyle is the mirror of entryStyle.
func exitStyle(side model.Side) (model.MarkerPosition, model.MarkerShape) {
	if side == model.SideShort {
		return model.MarkerBelow, model.ShapeArrowUp
	}
	return model.MarkerAbove, model.ShapeArrowDown
}
