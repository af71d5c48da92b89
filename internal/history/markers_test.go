package history

import (
	"strings"
	"testing"

	"live-clientv1/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestMarkerStore_LiveTradeYieldsOneMarker(t *testing.T) {
	s := NewMarkerStore(10)
	m := s.AddFromTrade(model.Trade{Timestamp: 1000, Side: model.SideLong, Quantity: 0.5, Price: 42000})
	if s.Len() != 1 {
		t.Fatalf("expected 1 marker, got %d", s.Len())
	}
	if m.Time != 1000 {
		t.Errorf("marker time=%d, want 1000", m.Time)
	}
	if m.Position != model.MarkerBelow || m.Shape != model.ShapeArrowUp {
		t.Errorf("long entry should sit below bar pointing up, got %s/%s", m.Position, m.Shape)
	}
	if !strings.Contains(m.Text, "LONG") {
		t.Errorf("marker text missing side: %q", m.Text)
	}
}

func TestMarkerStore_ShortSideMirrored(t *testing.T) {
	s := NewMarkerStore(10)
	m := s.AddFromTrade(model.Trade{Timestamp: 1000, Side: model.SideShort, Quantity: 1, Price: 100})
	if m.Position != model.MarkerAbove || m.Shape != model.ShapeArrowDown {
		t.Errorf("short entry should sit above bar pointing down, got %s/%s", m.Position, m.Shape)
	}
}

func TestMarkerStore_HistoricalCompletedTradeYieldsTwoMarkers(t *testing.T) {
	s := NewMarkerStore(10)
	s.LoadFromTrades([]model.Trade{
		{
			Timestamp:  2000,
			Side:       model.SideLong,
			Quantity:   1,
			Price:      100,
			PnL:        ptr(12.5),
			EntryTime:  1000,
			ExitTime:   2000,
			EntryPrice: 100,
			ExitPrice:  112.5,
		},
	})
	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected entry+exit markers, got %d", len(snap))
	}
	entry, exit := snap[0], snap[1]
	if entry.Time != 1000 || exit.Time != 2000 {
		t.Errorf("marker times entry=%d exit=%d, want 1000/2000", entry.Time, exit.Time)
	}
	if exit.Position != model.MarkerAbove || exit.Shape != model.ShapeArrowDown {
		t.Errorf("long exit should mirror the entry, got %s/%s", exit.Position, exit.Shape)
	}
	if !strings.Contains(exit.Text, "+12.50") {
		t.Errorf("exit text missing pnl: %q", exit.Text)
	}
}

func TestMarkerStore_OpenHistoricalTradeYieldsOneMarker(t *testing.T) {
	s := NewMarkerStore(10)
	s.LoadFromTrades([]model.Trade{
		{Timestamp: 1000, Side: model.SideLong, Quantity: 1, Price: 100, EntryTime: 1000},
	})
	if s.Len() != 1 {
		t.Fatalf("open trade should yield only the entry marker, got %d", s.Len())
	}
}

func TestMarkerStore_CapEvictsOldestAppended(t *testing.T) {
	s := NewMarkerStore(3)
	for i := 0; i < 5; i++ {
		s.AddFromTrade(model.Trade{Timestamp: int64(1000 + i), Side: model.SideLong, Quantity: 1, Price: 100})
	}
	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected cap of 3, got %d", len(snap))
	}
	if snap[0].Time != 1002 || snap[2].Time != 1004 {
		t.Errorf("expected markers 1002..1004 after eviction, got %d..%d", snap[0].Time, snap[2].Time)
	}
}

func TestMarkerStore_LoadReplacesContents(t *testing.T) {
	s := NewMarkerStore(10)
	s.AddFromTrade(model.Trade{Timestamp: 1, Side: model.SideLong, Quantity: 1, Price: 1})
	s.LoadFromTrades([]model.Trade{
		{Timestamp: 9, Side: model.SideShort, Quantity: 1, Price: 1},
	})
	snap := s.Snapshot()
	if len(snap) != 1 || snap[0].Time != 9 {
		t.Fatalf("expected load to replace contents, got %+v", snap)
	}
}
