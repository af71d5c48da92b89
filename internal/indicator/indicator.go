// Package indicator computes technical indicator series over an ordered bar
// sequence. Every function is pure and recomputes from scratch on each call;
// the bar history is capped upstream, so a full recompute is cheap and avoids
// the drift an incremental variant would accumulate across reconnect resyncs.
package indicator

import "live-clientv1/internal/model"

// Point is a single indicator value aligned to a bar's time.
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// BandPoint is one Bollinger Bands sample aligned to its window's last bar.
type BandPoint struct {
	Time   int64   `json:"time"`
	Middle float64 `json:"middle"`
	Upper  float64 `json:"upper"`
	Lower  float64 `json:"lower"`
}

// Config selects the series derived after each bar mutation.
type Config struct {
	RSILength  int
	EMALength  int
	BollLength int
	BollStdDev float64
}

// DefaultConfig returns the standard chart defaults.
func DefaultConfig() Config {
	return Config{RSILength: 14, EMALength: 20, BollLength: 20, BollStdDev: 2.0}
}

// Series bundles all derived series for one snapshot of the bar history.
type Series struct {
	RSI       []Point     `json:"rsi"`
	EMA       []Point     `json:"ema"`
	Bollinger []BandPoint `json:"bollinger"`
}

// Compute derives all configured series from the given bars.
func Compute(bars []model.Bar, cfg Config) Series {
	return Series{
		RSI:       RSI(bars, cfg.RSILength),
		EMA:       EMA(bars, cfg.EMALength),
		Bollinger: Bollinger(bars, cfg.BollLength, cfg.BollStdDev),
	}
}
