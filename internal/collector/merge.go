package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"CrashRadar/internal/model"
)

// MergeStrategy decides what happens when two sources report the same month.
type MergeStrategy string

const (
	// FillGaps keeps the value from the highest-priority source that has the month.
	FillGaps MergeStrategy = "fill_gaps"
	// Overwrite lets each later (lower-priority) source replace earlier values.
	Overwrite MergeStrategy = "overwrite"
)

// Source is a fetcher with its priority within a series. Lower priority runs first.
type Source struct {
	Fetcher  Fetcher
	Priority int
}

// Merge fetches from every source in priority order and combines their points.
// Failing sources are logged and skipped. It errors only when no source succeeds.
func Merge(ctx context.Context, sources []Source, metric model.Metric, strategy MergeStrategy) ([]model.Point, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources configured")
	}
	sorted := make([]Source, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	merged := make(map[time.Time]model.Point)
	var errs []error
	for _, src := range sorted {
		name := src.Fetcher.Name()
		points, err := src.Fetcher.FetchMonthly(ctx, metric)
		if err != nil {
			log.Printf("[WARN] source %s (priority %d) failed: %v", name, src.Priority, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, p := range points {
			p.Period = model.MonthStart(p.Period)
			p.Source = name
			if _, exists := merged[p.Period]; exists && strategy != Overwrite {
				continue
			}
			merged[p.Period] = p
		}
	}
	if len(errs) == len(sorted) {
		return nil, errors.Join(errs...)
	}

	out := make([]model.Point, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}
