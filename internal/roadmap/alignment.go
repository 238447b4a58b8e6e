package roadmap

import (
	"fmt"
	"math"

	"CrashRadar/internal/calculator"
	"CrashRadar/internal/model"
)

// minTrailingHistory is the number of historical points the comparison window
// always leaves free so the search has room to slide.
const minTrailingHistory = 10

// FindBestAlignment slides the last comparisonWindow values of current across
// every position of historical and returns the offset with the highest
// correlation after log-space scaling.
//
// The window size is min(comparisonWindow, len(current), len(historical)-10).
// Candidate windows end at historical indexes windowSize..len(historical); the
// last one ends exactly at the trough. Ties keep the earliest end position.
func FindBestAlignment(current, historical []float64, comparisonWindow int) (model.AlignmentResult, error) {
	histLen := len(historical)
	windowSize := min(comparisonWindow, len(current), histLen-minTrailingHistory)
	if windowSize <= 0 {
		return model.AlignmentResult{}, &InsufficientDataError{
			Reason: fmt.Sprintf("comparison window is empty (current=%d, historical=%d, requested=%d)",
				len(current), histLen, comparisonWindow),
		}
	}

	currentWindow := current[len(current)-windowSize:]

	bestEnd := histLen
	bestScale := 1.0
	bestCorr := math.Inf(-1)

	for endPos := windowSize; endPos <= histLen; endPos++ {
		slice := historical[endPos-windowSize : endPos]
		scale := calculator.ComputeScaleFactor(currentWindow, slice)
		corr := calculator.PearsonCorrelation(currentWindow, calculator.Scale(slice, scale))
		if corr > bestCorr {
			bestCorr = corr
			bestEnd = endPos
			bestScale = scale
		}
	}

	return model.AlignmentResult{
		MonthsToBottom:       max(0, histLen-bestEnd),
		ScaleFactor:          bestScale,
		Correlation:          bestCorr,
		ComparisonWindowSize: windowSize,
		EndPosition:          bestEnd,
	}, nil
}
