package model

import "time"

// Metric selects which monthly S&P 500 series a request works on.
type Metric string

const (
	MetricPrice Metric = "price"
	MetricPE    Metric = "pe"
)

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m == MetricPrice || m == MetricPE
}

// Point is a single monthly observation. Period is always the first day of the month (UTC).
type Point struct {
	Period time.Time
	Value  float64
	Source string // fetcher that produced the value, empty when unknown
}

// SeriesInfo describes a stored series.
type SeriesInfo struct {
	Slug          string
	Name          string
	Description   string
	Unit          string
	Status        string // "active" or "inactive"
	LastSuccessAt time.Time
	LastAttemptAt time.Time
}

// Active reports whether the series takes part in scheduled updates.
func (s *SeriesInfo) Active() bool { return s.Status == "" || s.Status == "active" }

// PointStats summarizes the stored points of a series.
type PointStats struct {
	FirstPeriod time.Time
	LastPeriod  time.Time
	TotalPoints int
}

// IngestionRun records one fetch-and-store attempt.
type IngestionRun struct {
	ID           string
	Slug         string
	RunType      string // "snapshot", "incremental", "reset"
	Status       string // "running", "success", "fail"
	RowsUpserted int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
}
