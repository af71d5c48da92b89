package indicator

import "live-clientv1/internal/model"

// RSI computes the Relative Strength Index using Wilder's smoothing method.
// The initial averages are seeded with a simple mean of the first `length`
// deltas; later values use exponential smoothing on the gain and loss
// channels separately. The first output aligns with bars[length]; fewer than
// length+1 bars yield an empty series.
func RSI(bars []model.Bar, length int) []Point {
	if length <= 0 || len(bars) <= length {
		return nil
	}

	var avgGain, avgLoss float64
	for i := 1; i <= length; i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	p := float64(length)
	avgGain /= p
	avgLoss /= p

	out := make([]Point, 0, len(bars)-length)
	out = append(out, Point{Time: bars[length].Time, Value: rsiValue(avgGain, avgLoss)})

	// Wilder's smoothing: avg = (prevAvg * (length-1) + delta) / length
	for i := length + 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out = append(out, Point{Time: bars[i].Time, Value: rsiValue(avgGain, avgLoss)})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
