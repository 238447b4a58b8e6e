package calculator

import (
	"errors"
	"sort"
	"time"

	"CrashRadar/internal/model"
)

// ErrEmptyInput is returned when a window is requested from an empty series.
var ErrEmptyInput = errors.New("empty input series")

// SortedCopy returns the points ordered by period without touching the input.
func SortedCopy(points []model.Point) []model.Point {
	out := make([]model.Point, len(points))
	copy(out, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// ExtractCurrentWindow returns the most recent windowMonths points in ascending order.
// A series shorter than the window is returned whole.
func ExtractCurrentWindow(points []model.Point, windowMonths int) ([]model.Point, error) {
	if len(points) == 0 {
		return nil, ErrEmptyInput
	}
	if windowMonths <= 0 {
		return []model.Point{}, nil
	}
	sorted := SortedCopy(points)
	if len(sorted) > windowMonths {
		sorted = sorted[len(sorted)-windowMonths:]
	}
	return sorted, nil
}

// ExtractHistoricalWindow returns the windowMonths months ending with the month of bottom,
// i.e. every point with start <= period < month(bottom)+1. The result may be empty.
func ExtractHistoricalWindow(points []model.Point, bottom time.Time, windowMonths int) []model.Point {
	endExclusive := model.AddMonths(bottom, 1)
	start := model.AddMonths(endExclusive, -windowMonths)

	out := make([]model.Point, 0, windowMonths)
	for _, p := range points {
		if !p.Period.Before(start) && p.Period.Before(endExclusive) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out
}

// Values extracts the value column of points.
func Values(points []model.Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
