package model

import "time"

// Crisis is one entry of the historical crash catalog.
type Crisis struct {
	ID          string
	Name        string
	Description string
	CrashDate   time.Time
	BottomDate  time.Time
	Color       string
}

// AlignmentResult is the best fit found by the sliding correlation search.
type AlignmentResult struct {
	MonthsToBottom       int
	ScaleFactor          float64
	Correlation          float64
	ComparisonWindowSize int
	EndPosition          int // exclusive end of the best slice on the historical axis
}

// ChartFrame is the dual-axis chart data. Every slice has TotalPositions entries.
type ChartFrame struct {
	HistoricalLabels     []string
	CurrentLabels        []string
	HistoricalSeries     []float64
	CurrentSeries        []*float64 // nil marks "no data"
	CurrentStartPosition int
	CurrentEndPosition   int
	CrashPosition        int
	BottomPosition       int
	TotalPositions       int
	MonthsToCrash        int
}

// RoadmapAlignment is the alignment summary exposed with a roadmap.
type RoadmapAlignment struct {
	MonthsToBottom       int
	MonthsToCrash        int
	ScaleFactor          float64
	Correlation          float64
	ComparisonWindowSize int
}

// RoadmapMeta describes how a roadmap was computed.
type RoadmapMeta struct {
	ID             string
	Metric         Metric
	WindowMonths   int
	MaxShiftMonths int
	ComputedAt     time.Time
}

// Roadmap is the assembled comparison of the current market with one crisis.
type Roadmap struct {
	Crisis        Crisis
	CurrentSeries []Point
	LastPeriod    time.Time
	Alignment     RoadmapAlignment
	Chart         ChartFrame
	Meta          RoadmapMeta
}
