package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"CrashRadar/internal/model"
	"CrashRadar/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownSeries is returned for slugs without a definition.
var ErrUnknownSeries = errors.New("unknown series")

const (
	RunSnapshot    = "snapshot"
	RunIncremental = "incremental"
	RunReset       = "reset"

	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFail    = "fail"
)

// MockFetcher returns fixed or synthetic data for development and testing.
type MockFetcher struct {
	Label string
	Data  map[model.Metric][]model.Point
	Err   error
	Calls int
}

func (m *MockFetcher) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

func (m *MockFetcher) FetchMonthly(_ context.Context, metric model.Metric) ([]model.Point, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Data != nil {
		return m.Data[metric], nil
	}
	return generateMockSeries(metric, model.MustDate("1900-01-01"), model.MonthStart(time.Now().UTC())), nil
}

// generateMockSeries produces a slowly growing series with a periodic swing so alignments have shape.
func generateMockSeries(metric model.Metric, from, to time.Time) []model.Point {
	base, growth := 10.0, 0.004
	if metric == model.MetricPE {
		base, growth = 15, 0.0003
	}
	n := model.MonthsBetween(from, to) + 1
	points := make([]model.Point, 0, n)
	for i := 0; i < n; i++ {
		v := base * math.Exp(growth*float64(i)) * (1 + 0.25*math.Sin(float64(i)/18))
		points = append(points, model.Point{Period: model.AddMonths(from, i), Value: v})
	}
	return points
}

// Definition binds a stored series to the sources that feed it.
type Definition struct {
	Info          model.SeriesInfo
	Metric        model.Metric
	Sources       []Source
	Strategy      MergeStrategy
	RoundDecimals int
}

// UpdateSummary reports the outcome of UpdateAll.
type UpdateSummary struct {
	Runs    []model.IngestionRun
	Skipped []string
}

// Succeeded counts successful runs.
func (s UpdateSummary) Succeeded() int {
	n := 0
	for _, r := range s.Runs {
		if r.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed counts failed runs.
func (s UpdateSummary) Failed() int { return len(s.Runs) - s.Succeeded() }

// Collector fetches series from their sources and stores them.
type Collector struct {
	Store store.Store
	Now   func() time.Time

	defs  map[string]Definition
	order []string
}

// NewCollector creates a Collector for the given series definitions.
func NewCollector(st store.Store, defs []Definition) *Collector {
	c := &Collector{
		Store: st,
		Now:   time.Now,
		defs:  make(map[string]Definition, len(defs)),
	}
	for _, d := range defs {
		if _, dup := c.defs[d.Info.Slug]; !dup {
			c.order = append(c.order, d.Info.Slug)
		}
		c.defs[d.Info.Slug] = d
	}
	return c
}

// Slugs returns the defined series slugs in definition order.
func (c *Collector) Slugs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Seed makes sure every defined series exists in the store.
func (c *Collector) Seed(ctx context.Context) error {
	for _, slug := range c.order {
		created, err := c.Store.EnsureSeries(ctx, c.defs[slug].Info)
		if err != nil {
			return fmt.Errorf("seed %s: %w", slug, err)
		}
		if created {
			log.Printf("[INFO] seeded series %s", slug)
		}
	}
	return nil
}

// Snapshot backfills the complete history of a series.
func (c *Collector) Snapshot(ctx context.Context, slug string) (*model.IngestionRun, error) {
	return c.execute(ctx, slug, RunSnapshot, func(def Definition) (int, error) {
		points, err := c.fetchAll(ctx, def)
		if err != nil {
			return 0, err
		}
		return c.Store.UpsertPoints(ctx, slug, points)
	})
}

// Incremental stores only the months after the last stored period.
func (c *Collector) Incremental(ctx context.Context, slug string) (*model.IngestionRun, error) {
	return c.execute(ctx, slug, RunIncremental, func(def Definition) (int, error) {
		last, ok, err := c.Store.LastPeriod(ctx, slug)
		if err != nil {
			return 0, err
		}
		points, err := c.fetch(ctx, def)
		if err != nil {
			return 0, err
		}
		if ok {
			fresh := points[:0]
			for _, p := range points {
				if p.Period.After(last) {
					fresh = append(fresh, p)
				}
			}
			log.Printf("[INFO] %s: %d new points after %s", slug, len(fresh), last.Format(model.MonthLayout))
			points = fresh
		}
		if len(points) == 0 {
			return 0, nil
		}
		return c.Store.UpsertPoints(ctx, slug, points)
	})
}

// Reset replaces the stored points of a series with a fresh backfill. The
// download finishes before the store is touched and the swap is atomic, so a
// failed reset keeps the old data.
func (c *Collector) Reset(ctx context.Context, slug string) (*model.IngestionRun, error) {
	return c.execute(ctx, slug, RunReset, func(def Definition) (int, error) {
		points, err := c.fetchAll(ctx, def)
		if err != nil {
			return 0, err
		}
		deleted, written, err := c.Store.ReplacePoints(ctx, slug, points)
		if err != nil {
			return 0, err
		}
		log.Printf("[INFO] %s: replaced %d points with %d", slug, deleted, written)
		return written, nil
	})
}

// UpdateAll runs an incremental update for every active series. Failures do not stop the loop.
func (c *Collector) UpdateAll(ctx context.Context) UpdateSummary {
	var summary UpdateSummary
	for _, slug := range c.order {
		if ctx.Err() != nil {
			break
		}
		info, err := c.Store.GetSeries(ctx, slug)
		if err == nil && !info.Active() {
			log.Printf("[INFO] series %s is not active, skipping", slug)
			summary.Skipped = append(summary.Skipped, slug)
			continue
		}
		run, _ := c.Incremental(ctx, slug)
		if run != nil {
			summary.Runs = append(summary.Runs, *run)
		}
	}
	log.Printf("[INFO] update-all finished: %d succeeded, %d failed, %d skipped",
		summary.Succeeded(), summary.Failed(), len(summary.Skipped))
	return summary
}

func (c *Collector) execute(ctx context.Context, slug, runType string, write func(Definition) (int, error)) (*model.IngestionRun, error) {
	def, ok := c.defs[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, slug)
	}
	if _, err := c.Store.EnsureSeries(ctx, def.Info); err != nil {
		return nil, fmt.Errorf("ensure series %s: %w", slug, err)
	}

	run := &model.IngestionRun{
		ID:        uuid.NewString(),
		Slug:      slug,
		RunType:   runType,
		Status:    StatusRunning,
		StartedAt: c.Now(),
	}
	if err := c.Store.RecordRun(ctx, run); err != nil {
		log.Printf("[WARN] record run %s: %v", run.ID, err)
	}
	if err := c.Store.MarkAttempt(ctx, slug, run.StartedAt); err != nil {
		log.Printf("[WARN] mark attempt %s: %v", slug, err)
	}

	log.Printf("[INFO] %s %s started (run %s)", runType, slug, run.ID)
	rows, err := write(def)
	run.FinishedAt = c.Now()
	if err != nil {
		run.Status = StatusFail
		run.ErrorMessage = err.Error()
		log.Printf("[ERROR] %s %s failed: %v", runType, slug, err)
	} else {
		run.Status = StatusSuccess
		run.RowsUpserted = rows
		if markErr := c.Store.MarkSuccess(ctx, slug, run.FinishedAt); markErr != nil {
			log.Printf("[WARN] mark success %s: %v", slug, markErr)
		}
		log.Printf("[INFO] %s %s finished: %d rows", runType, slug, rows)
	}
	if recErr := c.Store.RecordRun(ctx, run); recErr != nil {
		log.Printf("[WARN] record run %s: %v", run.ID, recErr)
	}
	if err != nil {
		return run, fmt.Errorf("%s %s: %w", runType, slug, err)
	}
	return run, nil
}

// fetchAll is fetch for full backfills, where an empty result is an error.
func (c *Collector) fetchAll(ctx context.Context, def Definition) ([]model.Point, error) {
	points, err := c.fetch(ctx, def)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, errors.New("no data points fetched")
	}
	return points, nil
}

func (c *Collector) fetch(ctx context.Context, def Definition) ([]model.Point, error) {
	points, err := Merge(ctx, def.Sources, def.Metric, def.Strategy)
	if err != nil {
		return nil, err
	}
	if def.RoundDecimals > 0 {
		for i := range points {
			points[i].Value = roundTo(points[i].Value, def.RoundDecimals)
		}
	}
	return points, nil
}

func roundTo(v float64, places int) float64 {
	return decimal.NewFromFloat(v).Round(int32(places)).InexactFloat64()
}
