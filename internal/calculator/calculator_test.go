package calculator

import (
	"math"
	"testing"
	"time"

	"CrashRadar/internal/model"
)

func monthly(start time.Time, values ...float64) []model.Point {
	points := make([]model.Point, len(values))
	for i, v := range values {
		points[i] = model.Point{Period: model.AddMonths(start, i), Value: v}
	}
	return points
}

func TestExtractCurrentWindow_WholeSeriesWhenWindowLarger(t *testing.T) {
	points := monthly(model.MustDate("2020-01-01"), 1, 2, 3, 4, 5)
	for _, w := range []int{5, 6, 120} {
		got, err := ExtractCurrentWindow(points, w)
		if err != nil {
			t.Fatalf("window %d: unexpected error: %v", w, err)
		}
		if len(got) != len(points) {
			t.Fatalf("window %d: expected %d points, got %d", w, len(points), len(got))
		}
		for i := range points {
			if !got[i].Period.Equal(points[i].Period) || got[i].Value != points[i].Value {
				t.Errorf("window %d: point %d changed: %+v vs %+v", w, i, got[i], points[i])
			}
		}
	}
}

func TestExtractCurrentWindow_LastPointsSorted(t *testing.T) {
	start := model.MustDate("2020-01-01")
	points := []model.Point{
		{Period: model.AddMonths(start, 3), Value: 4},
		{Period: model.AddMonths(start, 0), Value: 1},
		{Period: model.AddMonths(start, 2), Value: 3},
		{Period: model.AddMonths(start, 1), Value: 2},
	}
	got, err := ExtractCurrentWindow(points, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Value != 3 || got[1].Value != 4 {
		t.Fatalf("expected values [3 4], got %+v", got)
	}
	if points[0].Value != 4 {
		t.Error("input slice was reordered")
	}
}

func TestExtractCurrentWindow_Empty(t *testing.T) {
	if _, err := ExtractCurrentWindow(nil, 12); err != ErrEmptyInput {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	got, err := ExtractCurrentWindow(monthly(model.MustDate("2020-01-01"), 1, 2), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty window for zero months, got %d points", len(got))
	}
}

func TestExtractHistoricalWindow(t *testing.T) {
	values := make([]float64, 132) // 2000-01 .. 2010-12
	for i := range values {
		values[i] = float64(i + 1)
	}
	points := monthly(model.MustDate("2000-01-01"), values...)

	got := ExtractHistoricalWindow(points, time.Date(2009, 3, 17, 0, 0, 0, 0, time.UTC), 24)
	if len(got) != 24 {
		t.Fatalf("expected 24 points, got %d", len(got))
	}
	if first := got[0].Period.Format(model.PeriodLayout); first != "2007-04-01" {
		t.Errorf("expected window to start at 2007-04-01, got %s", first)
	}
	if last := got[len(got)-1].Period.Format(model.PeriodLayout); last != "2009-03-01" {
		t.Errorf("expected window to end at the bottom month 2009-03-01, got %s", last)
	}

	if early := ExtractHistoricalWindow(points, model.MustDate("1932-06-01"), 24); len(early) != 0 {
		t.Errorf("expected empty window before the data starts, got %d points", len(early))
	}

	partial := ExtractHistoricalWindow(points, model.MustDate("2000-06-01"), 24)
	if len(partial) != 6 {
		t.Errorf("expected 6 points for a window overlapping the series start, got %d", len(partial))
	}
}

func TestComputeScaleFactor(t *testing.T) {
	x := []float64{10, 20, 15, 30}
	if s := ComputeScaleFactor(x, x); math.Abs(s-1) > 1e-12 {
		t.Errorf("self scale should be 1, got %v", s)
	}

	hist := []float64{1, 2, 4, 8}
	cur := Scale(hist, 250)
	if s := ComputeScaleFactor(cur, hist); math.Abs(s-250) > 1e-9 {
		t.Errorf("expected scale 250, got %v", s)
	}

	tests := []struct {
		name string
		cur  []float64
		hist []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", []float64{1, 2}, []float64{1}},
	}
	for _, tt := range tests {
		if s := ComputeScaleFactor(tt.cur, tt.hist); s != 1 {
			t.Errorf("%s: expected neutral factor 1, got %v", tt.name, s)
		}
	}

	if s := ComputeScaleFactor([]float64{0, -5}, []float64{1, 1}); math.IsNaN(s) || math.IsInf(s, 0) || s <= 0 {
		t.Errorf("non-positive values must be clamped, got %v", s)
	}
}

func TestPearsonCorrelation(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4}
	if c := PearsonCorrelation(x, x); math.Abs(c-1) > 1e-12 {
		t.Errorf("self correlation should be 1, got %v", c)
	}
	if c := PearsonCorrelation(x, Scale(x, -2)); math.Abs(c+1) > 1e-12 {
		t.Errorf("negated correlation should be -1, got %v", c)
	}
	if c := PearsonCorrelation([]float64{7, 7, 7, 7, 7}, x); c != 0 {
		t.Errorf("constant series should have zero correlation, got %v", c)
	}
	if c := PearsonCorrelation(x, x[:3]); c != 0 {
		t.Errorf("length mismatch should yield 0, got %v", c)
	}
	if c := PearsonCorrelation(nil, nil); c != 0 {
		t.Errorf("empty input should yield 0, got %v", c)
	}
}

func TestCalculateSMA(t *testing.T) {
	avg, err := CalculateSMA([]float64{1, 2, 3, 4, 5}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if avg != 4.5 {
		t.Errorf("expected 4.5, got %v", avg)
	}
	if _, err := CalculateSMA([]float64{1}, 2); err == nil {
		t.Error("expected error for short input")
	}
	if _, err := CalculateSMA([]float64{1}, 0); err == nil {
		t.Error("expected error for non-positive period")
	}
}
