package audio

import "math"

// MeanMagnitude returns the average absolute energy across frequency bins.
func MeanMagnitude(bins []float64) float64 {
	if len(bins) == 0 {
		return 0
	}

	var sum float64
	for _, b := range bins {
		sum += math.Abs(b)
	}
	return sum / float64(len(bins))
}
