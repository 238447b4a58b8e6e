package calculator

import "math"

// PearsonCorrelation computes the Pearson correlation coefficient of x and y.
// Mismatched or empty inputs return 0, and so does a constant series
// (zero variance), so a max-search never prefers a degenerate window.
func PearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	mx, my := Mean(x), Mean(y)

	var num, sumSqX, sumSqY float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		num += dx * dy
		sumSqX += dx * dx
		sumSqY += dy * dy
	}

	den := math.Sqrt(sumSqX * sumSqY)
	if den == 0 {
		return 0
	}
	return num / den
}
