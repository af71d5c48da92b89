package model

import "encoding/json"

// Side is the direction of a trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Trade is a single executed trade reported by the server. Immutable once
// received. A completed historical trade carries both entry and exit
// timestamps; a live trade event carries only Timestamp.
type Trade struct {
	Timestamp  int64    `json:"timestamp"`
	Side       Side     `json:"side"`
	Quantity   float64  `json:"quantity"`
	Price      float64  `json:"price"`
	PnL        *float64 `json:"pnl"`
	EntryTime  int64    `json:"entry_time,omitempty"`
	ExitTime   int64    `json:"exit_time,omitempty"`
	EntryPrice float64  `json:"entry_price,omitempty"`
	ExitPrice  float64  `json:"exit_price,omitempty"`
}

// Closed reports whether the trade has a realized result.
func (t Trade) Closed() bool { return t.PnL != nil }

// JSON returns the JSON-encoded trade (ignoring errors for hot-path usage).
func (t *Trade) JSON() []byte {
	data, _ := json.Marshal(t)
	return data
}

// MarkerPosition places a marker relative to its bar.
type MarkerPosition string

const (
	MarkerBelow MarkerPosition = "below_bar"
	MarkerAbove MarkerPosition = "above_bar"
)

// MarkerShape is the glyph drawn for a marker.
type MarkerShape string

const (
	ShapeArrowUp   MarkerShape = "arrow_up"
	ShapeArrowDown MarkerShape = "arrow_down"
)

// Marker is one trade annotation for the display layer. Markers are kept in
// arrival order; the display layer may resort by time.
type Marker struct {
	Time     int64          `json:"time"`
	Position MarkerPosition `json:"position"`
	Shape    MarkerShape    `json:"shape"`
	Text     string         `json:"text"`
}
