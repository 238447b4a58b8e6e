package calculator

import "math"

// logFloor stands in for non-positive values so log never yields NaN or -Inf.
const logFloor = 1e-4

// ComputeScaleFactor returns the multiplicative factor that aligns historical with current
// in log space: exp(mean(log current) - mean(log historical)).
// Mismatched or empty inputs return the neutral factor 1.
func ComputeScaleFactor(current, historical []float64) float64 {
	if len(current) != len(historical) || len(current) == 0 {
		return 1
	}
	return math.Exp(meanLog(current) - meanLog(historical))
}

func meanLog(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += math.Log(math.Max(v, logFloor))
	}
	return sum / float64(len(values))
}

// Scale multiplies every value by factor into a new slice.
func Scale(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * factor
	}
	return out
}
