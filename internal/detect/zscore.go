package detect

import "math"

// ZScore computes the standard score of value against the baseline sample.
// Returns ok=false when the sample is too small or has zero variance, in
// which case the statistical rule does not apply.
func ZScore(baseline []float64, value float64) (float64, bool) {
	if len(baseline) < 2 {
		return 0, false
	}

	var sum float64
	for _, v := range baseline {
		sum += v
	}
	mean := sum / float64(len(baseline))

	var sq float64
	for _, v := range baseline {
		sq += (v - mean) * (v - mean)
	}
	// Sample standard deviation.
	std := math.Sqrt(sq / float64(len(baseline)-1))
	if std == 0 {
		return 0, false
	}

	return (value - mean) / std, true
}
