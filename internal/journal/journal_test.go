package journal

import (
	"path/filepath"
	"testing"

	"live-clientv1/internal/model"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_BarUpsertReplacesRow(t *testing.T) {
	j := openTestJournal(t)

	if err := j.RecordBar("s-1", model.Bar{Time: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}); err != nil {
		t.Fatalf("RecordBar: %v", err)
	}
	// Same ts, updated close: the in-progress candle was replaced
	if err := j.RecordBar("s-1", model.Bar{Time: 1000, Open: 1, High: 2.5, Low: 0.5, Close: 2.2, Volume: 15}); err != nil {
		t.Fatalf("RecordBar update: %v", err)
	}

	bars, err := j.Bars("s-1", 10)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("expected 1 row after upsert, got %d", len(bars))
	}
	if bars[0].Close != 2.2 || bars[0].Volume != 15 {
		t.Errorf("row not replaced: %+v", bars[0])
	}
}

func TestJournal_TradesRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	pnl := 3.5
	trades := []model.Trade{
		{Timestamp: 1000, Side: model.SideLong, Quantity: 0.5, Price: 100},
		{Timestamp: 2000, Side: model.SideShort, Quantity: 1, Price: 110, PnL: &pnl},
	}
	for _, tr := range trades {
		if err := j.RecordTrade("s-1", tr); err != nil {
			t.Fatalf("RecordTrade: %v", err)
		}
	}

	got, err := j.Trades("s-1", 10)
	if err != nil {
		t.Fatalf("Trades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if got[0].PnL != nil {
		t.Error("open trade should round-trip with nil pnl")
	}
	if got[1].PnL == nil || *got[1].PnL != 3.5 {
		t.Errorf("closed trade pnl lost: %+v", got[1])
	}
	if got[1].Side != model.SideShort {
		t.Errorf("side=%s, want short", got[1].Side)
	}
}

func TestJournal_SessionsIsolated(t *testing.T) {
	j := openTestJournal(t)
	j.RecordBar("a", model.Bar{Time: 1, Close: 1})
	j.RecordBar("b", model.Bar{Time: 1, Close: 2})

	bars, err := j.Bars("a", 10)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	if len(bars) != 1 || bars[0].Close != 1 {
		t.Errorf("session isolation broken: %+v", bars)
	}
}
