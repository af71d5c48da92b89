package indicator

import (
	"math"

	"live-clientv1/internal/model"
)

// Bollinger computes Bollinger Bands: for every window of `length`
// consecutive bars, the middle band is the mean of closes and the upper and
// lower bands sit stdDev population standard deviations away. Each point
// aligns with its window's last bar; fewer than `length` bars yield an empty
// series.
func Bollinger(bars []model.Bar, length int, stdDev float64) []BandPoint {
	if length <= 0 || len(bars) < length {
		return nil
	}

	out := make([]BandPoint, 0, len(bars)-length+1)
	for end := length; end <= len(bars); end++ {
		window := bars[end-length : end]

		sum := 0.0
		for _, b := range window {
			sum += b.Close
		}
		mean := sum / float64(length)

		variance := 0.0
		for _, b := range window {
			d := b.Close - mean
			variance += d * d
		}
		variance /= float64(length)
		sigma := math.Sqrt(variance)

		out = append(out, BandPoint{
			Time:   window[length-1].Time,
			Middle: mean,
			Upper:  mean + stdDev*sigma,
			Lower:  mean - stdDev*sigma,
		})
	}
	return out
}
