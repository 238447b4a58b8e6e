package roadmap

import (
	"time"

	"CrashRadar/internal/model"
)

// BuildTimeline places both windows on a shared axis anchored at the historical
// trough (position L-1) and derives labels and markers for charting.
//
// The current series ends at L-1-MonthsToBottom; positions before 0 are dropped.
// Current-axis labels past the last real point are projected month by month
// from the last current period. The crash marker is the first historical period
// on or after crashDate, kept strictly before the trough.
func BuildTimeline(historical, current []model.Point, alignment model.AlignmentResult, crashDate time.Time) model.ChartFrame {
	histLen := len(historical)
	curLen := len(current)

	frame := model.ChartFrame{
		HistoricalLabels: make([]string, histLen),
		CurrentLabels:    make([]string, histLen),
		HistoricalSeries: make([]float64, histLen),
		CurrentSeries:    make([]*float64, histLen),
		BottomPosition:   histLen - 1,
		TotalPositions:   histLen,
	}

	for i, p := range historical {
		frame.HistoricalLabels[i] = model.FormatLabel(p.Period)
		frame.HistoricalSeries[i] = p.Value * alignment.ScaleFactor
	}

	currentEnd := histLen - 1 - alignment.MonthsToBottom
	currentStart := currentEnd - curLen + 1

	for i, p := range current {
		pos := currentStart + i
		if pos < 0 || pos >= histLen {
			continue
		}
		v := p.Value
		frame.CurrentSeries[pos] = &v
		frame.CurrentLabels[pos] = model.FormatLabel(p.Period)
	}

	if curLen > 0 {
		last := current[curLen-1].Period
		for i := max(currentEnd+1, 0); i < histLen; i++ {
			frame.CurrentLabels[i] = model.FormatLabel(model.AddMonths(last, i-currentEnd))
		}
	}

	frame.CrashPosition = crashPosition(historical, crashDate)
	frame.CurrentStartPosition = max(0, currentStart)
	frame.CurrentEndPosition = min(histLen-1, currentEnd)
	frame.MonthsToCrash = max(0, frame.CrashPosition-frame.CurrentEndPosition)
	return frame
}

func crashPosition(historical []model.Point, crashDate time.Time) int {
	crash := model.MonthStart(crashDate)
	pos := 0
	for i, p := range historical {
		if !p.Period.Before(crash) {
			pos = i
			break
		}
	}
	return max(0, min(pos, len(historical)-2))
}
