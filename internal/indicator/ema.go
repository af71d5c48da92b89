package indicator

import "live-clientv1/internal/model"

// EMA computes the Exponential Moving Average of closes. The first value is
// seeded with a simple average of the first `length` closes and aligns with
// bars[length-1]; fewer than `length` bars yield an empty series.
func EMA(bars []model.Bar, length int) []Point {
	if length <= 0 || len(bars) < length {
		return nil
	}

	sum := 0.0
	for i := 0; i < length; i++ {
		sum += bars[i].Close
	}
	ema := sum / float64(length)
	multiplier := 2.0 / float64(length+1)

	out := make([]Point, 0, len(bars)-length+1)
	out = append(out, Point{Time: bars[length-1].Time, Value: ema})

	// EMA = (Close - EMA_prev) * multiplier + EMA_prev
	for i := length; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*multiplier + ema
		out = append(out, Point{Time: bars[i].Time, Value: ema})
	}
	return out
}
