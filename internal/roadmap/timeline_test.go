package roadmap

import (
	"testing"

	"CrashRadar/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(start string, n int, value func(i int) float64) []model.Point {
	first := model.MustDate(start)
	points := make([]model.Point, n)
	for i := range points {
		points[i] = model.Point{Period: model.AddMonths(first, i), Value: value(i)}
	}
	return points
}

func TestBuildTimeline_PlacesCurrentAndProjectsLabels(t *testing.T) {
	hist := series("2007-04-01", 24, func(i int) float64 { return float64(100 + i) })
	cur := series("2024-01-01", 12, func(i int) float64 { return float64(5000 + i) })
	align := model.AlignmentResult{MonthsToBottom: 5, ScaleFactor: 2}

	frame := BuildTimeline(hist, cur, align, model.MustDate("2008-09-15"))

	require.Len(t, frame.CurrentSeries, 24)
	require.Len(t, frame.CurrentLabels, 24)
	require.Len(t, frame.HistoricalLabels, 24)
	assert.Equal(t, 24, frame.TotalPositions)
	assert.Equal(t, 23, frame.BottomPosition)
	assert.Equal(t, 7, frame.CurrentStartPosition)
	assert.Equal(t, 18, frame.CurrentEndPosition)

	for i := 0; i < 7; i++ {
		assert.Nil(t, frame.CurrentSeries[i], "position %d precedes the current window", i)
		assert.Empty(t, frame.CurrentLabels[i])
	}
	require.NotNil(t, frame.CurrentSeries[7])
	assert.Equal(t, 5000.0, *frame.CurrentSeries[7])
	require.NotNil(t, frame.CurrentSeries[18])
	assert.Equal(t, 5011.0, *frame.CurrentSeries[18])
	for i := 19; i < 24; i++ {
		assert.Nil(t, frame.CurrentSeries[i], "projected position %d must not carry data", i)
	}

	assert.Equal(t, "Jan 2024", frame.CurrentLabels[7])
	assert.Equal(t, "Dec 2024", frame.CurrentLabels[18])
	assert.Equal(t, "Jan 2025", frame.CurrentLabels[19])
	assert.Equal(t, "May 2025", frame.CurrentLabels[23])

	assert.Equal(t, "Apr 2007", frame.HistoricalLabels[0])
	assert.Equal(t, "Mar 2009", frame.HistoricalLabels[23])
	assert.Equal(t, 200.0, frame.HistoricalSeries[0])

	assert.Equal(t, 17, frame.CrashPosition, "Sep 2008 is 17 months after Apr 2007")
	assert.Equal(t, 0, frame.MonthsToCrash, "current already sits past the crash marker")
}

func TestBuildTimeline_MonthsToCrash(t *testing.T) {
	hist := series("2007-04-01", 24, func(i int) float64 { return 1 })
	cur := series("2024-01-01", 12, func(i int) float64 { return 1 })

	frame := BuildTimeline(hist, cur, model.AlignmentResult{MonthsToBottom: 10, ScaleFactor: 1}, model.MustDate("2008-09-01"))
	assert.Equal(t, 13, frame.CurrentEndPosition)
	assert.Equal(t, 4, frame.MonthsToCrash)
}

func TestBuildTimeline_DropsOffAxisCurrentValues(t *testing.T) {
	hist := series("2007-04-01", 24, func(i int) float64 { return 1 })
	cur := series("2022-07-01", 30, func(i int) float64 { return float64(i) })

	frame := BuildTimeline(hist, cur, model.AlignmentResult{MonthsToBottom: 0, ScaleFactor: 1}, model.MustDate("2008-09-01"))

	assert.Equal(t, 0, frame.CurrentStartPosition)
	assert.Equal(t, 23, frame.CurrentEndPosition)
	require.NotNil(t, frame.CurrentSeries[0])
	assert.Equal(t, 6.0, *frame.CurrentSeries[0], "the first six current points fall before position 0")
	assert.Equal(t, "Jan 2023", frame.CurrentLabels[0])
	assert.Equal(t, "Dec 2024", frame.CurrentLabels[23])
}

func TestBuildTimeline_CrashMarkerClamping(t *testing.T) {
	hist := series("2007-04-01", 24, func(i int) float64 { return 1 })
	cur := series("2024-01-01", 6, func(i int) float64 { return 1 })
	align := model.AlignmentResult{MonthsToBottom: 3, ScaleFactor: 1}

	tests := []struct {
		name  string
		crash string
		want  int
	}{
		{"crash before window", "1999-01-01", 0},
		{"crash in bottom month", "2009-03-01", 22},
		{"crash after window", "2015-01-01", 0},
		{"crash mid-month", "2007-06-20", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := BuildTimeline(hist, cur, align, model.MustDate(tt.crash))
			assert.Equal(t, tt.want, frame.CrashPosition)
			assert.Less(t, frame.CrashPosition, frame.BottomPosition)
		})
	}
}
