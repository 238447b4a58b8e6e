package api

import (
	"time"

	"CrashRadar/internal/model"

	"github.com/shopspring/decimal"
)

type crisisDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CrashDate   string `json:"crashDate"`
	BottomDate  string `json:"bottomDate"`
	Color       string `json:"color"`
}

type pointDTO struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

type roadmapDTO struct {
	Crisis  crisisDTO `json:"crisis"`
	Current struct {
		Series     []pointDTO `json:"series"`
		LastPeriod string     `json:"lastPeriod"`
	} `json:"current"`
	Alignment struct {
		MonthsToBottom       int     `json:"monthsToBottom"`
		MonthsToCrash        int     `json:"monthsToCrash"`
		ScaleFactor          float64 `json:"scaleFactor"`
		Correlation          float64 `json:"correlation"`
		ComparisonWindowSize int     `json:"comparisonWindowSize"`
	} `json:"alignment"`
	Chart struct {
		Labels               []string   `json:"labels"`
		HistoricalLabels     []string   `json:"historicalLabels"`
		CurrentLabels        []string   `json:"currentLabels"`
		CurrentSeries        []*float64 `json:"currentSeries"`
		HistoricalSeries     []float64  `json:"historicalSeries"`
		CurrentStartPosition int        `json:"currentStartPosition"`
		CurrentEndPosition   int        `json:"currentEndPosition"`
		CrashPosition        int        `json:"crashPosition"`
		BottomPosition       int        `json:"bottomPosition"`
		TotalPositions       int        `json:"totalPositions"`
	} `json:"chart"`
	Meta struct {
		ID             string `json:"id"`
		WindowMonths   int    `json:"windowMonths"`
		MaxShiftMonths int    `json:"maxShiftMonths"`
		Metric         string `json:"metric"`
		ComputedAt     string `json:"computedAt"`
	} `json:"meta"`
}

type seriesDTO struct {
	Series struct {
		Slug        string `json:"slug"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Unit        string `json:"unit"`
	} `json:"series"`
	Points []pointDTO `json:"points"`
	Meta   struct {
		FirstPeriod *string `json:"first_period"`
		LastPeriod  *string `json:"last_period"`
		TotalPoints int     `json:"total_points"`
	} `json:"meta"`
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func newCrisisDTO(c model.Crisis) crisisDTO {
	return crisisDTO{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CrashDate:   c.CrashDate.Format(model.PeriodLayout),
		BottomDate:  c.BottomDate.Format(model.PeriodLayout),
		Color:       c.Color,
	}
}

func newPointDTOs(points []model.Point, places int32) []pointDTO {
	out := make([]pointDTO, len(points))
	for i, p := range points {
		out[i] = pointDTO{Period: p.Period.Format(model.PeriodLayout), Value: round(p.Value, places)}
	}
	return out
}

func newRoadmapDTO(r *model.Roadmap) roadmapDTO {
	var d roadmapDTO
	d.Crisis = newCrisisDTO(r.Crisis)

	d.Current.Series = newPointDTOs(r.CurrentSeries, 2)
	d.Current.LastPeriod = r.LastPeriod.Format(model.PeriodLayout)

	d.Alignment.MonthsToBottom = r.Alignment.MonthsToBottom
	d.Alignment.MonthsToCrash = r.Alignment.MonthsToCrash
	d.Alignment.ScaleFactor = round(r.Alignment.ScaleFactor, 4)
	d.Alignment.Correlation = round(r.Alignment.Correlation, 4)
	d.Alignment.ComparisonWindowSize = r.Alignment.ComparisonWindowSize

	ch := r.Chart
	d.Chart.Labels = ch.HistoricalLabels
	d.Chart.HistoricalLabels = ch.HistoricalLabels
	d.Chart.CurrentLabels = ch.CurrentLabels
	d.Chart.HistoricalSeries = make([]float64, len(ch.HistoricalSeries))
	for i, v := range ch.HistoricalSeries {
		d.Chart.HistoricalSeries[i] = round(v, 2)
	}
	d.Chart.CurrentSeries = make([]*float64, len(ch.CurrentSeries))
	for i, v := range ch.CurrentSeries {
		if v != nil {
			rounded := round(*v, 2)
			d.Chart.CurrentSeries[i] = &rounded
		}
	}
	d.Chart.CurrentStartPosition = ch.CurrentStartPosition
	d.Chart.CurrentEndPosition = ch.CurrentEndPosition
	d.Chart.CrashPosition = ch.CrashPosition
	d.Chart.BottomPosition = ch.BottomPosition
	d.Chart.TotalPositions = ch.TotalPositions

	d.Meta.ID = r.Meta.ID
	d.Meta.WindowMonths = r.Meta.WindowMonths
	d.Meta.MaxShiftMonths = r.Meta.MaxShiftMonths
	d.Meta.Metric = string(r.Meta.Metric)
	d.Meta.ComputedAt = r.Meta.ComputedAt.Format(time.RFC3339)
	return d
}

func newSeriesDTO(info *model.SeriesInfo, points []model.Point, stats model.PointStats) seriesDTO {
	var d seriesDTO
	d.Series.Slug = info.Slug
	d.Series.Name = info.Name
	d.Series.Description = info.Description
	d.Series.Unit = info.Unit
	d.Points = newPointDTOs(points, 4)
	if !stats.FirstPeriod.IsZero() {
		first := stats.FirstPeriod.Format(model.PeriodLayout)
		last := stats.LastPeriod.Format(model.PeriodLayout)
		d.Meta.FirstPeriod = &first
		d.Meta.LastPeriod = &last
	}
	d.Meta.TotalPoints = stats.TotalPoints
	return d
}
