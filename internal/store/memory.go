package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"CrashRadar/internal/model"
)

// MemoryStore keeps everything in process memory. Used by tests and the "memory" driver.
type MemoryStore struct {
	mu     sync.RWMutex
	series map[string]model.SeriesInfo
	points map[string]map[time.Time]model.Point
	runs   map[string]model.IngestionRun
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series: make(map[string]model.SeriesInfo),
		points: make(map[string]map[time.Time]model.Point),
		runs:   make(map[string]model.IngestionRun),
	}
}

func (m *MemoryStore) EnsureSeries(_ context.Context, info model.SeriesInfo) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[info.Slug]; ok {
		return false, nil
	}
	if info.Status == "" {
		info.Status = "active"
	}
	m.series[info.Slug] = info
	return true, nil
}

func (m *MemoryStore) ListSeries(_ context.Context) ([]model.SeriesInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SeriesInfo, 0, len(m.series))
	for _, s := range m.series {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *MemoryStore) GetSeries(_ context.Context, slug string) (*model.SeriesInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.series[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, slug)
	}
	return &s, nil
}

func (m *MemoryStore) Points(ctx context.Context, slug string) ([]model.Point, error) {
	return m.PointsInRange(ctx, slug, time.Time{}, time.Time{})
}

func (m *MemoryStore) PointsInRange(_ context.Context, slug string, from, to time.Time) ([]model.Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Point
	for period, p := range m.points[slug] {
		if inRange(period, from, to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	return out, nil
}

func (m *MemoryStore) LastPeriod(_ context.Context, slug string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last time.Time
	for period := range m.points[slug] {
		if period.After(last) {
			last = period
		}
	}
	return last, !last.IsZero(), nil
}

func (m *MemoryStore) Stats(_ context.Context, slug string) (model.PointStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats model.PointStats
	for period := range m.points[slug] {
		if stats.FirstPeriod.IsZero() || period.Before(stats.FirstPeriod) {
			stats.FirstPeriod = period
		}
		if period.After(stats.LastPeriod) {
			stats.LastPeriod = period
		}
		stats.TotalPoints++
	}
	return stats, nil
}

func (m *MemoryStore) UpsertPoints(_ context.Context, slug string, points []model.Point) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[slug]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrSeriesNotFound, slug)
	}
	bucket, ok := m.points[slug]
	if !ok {
		bucket = make(map[time.Time]model.Point)
		m.points[slug] = bucket
	}
	for _, p := range points {
		p.Period = model.MonthStart(p.Period)
		bucket[p.Period] = p
	}
	return len(points), nil
}

func (m *MemoryStore) DeletePoints(_ context.Context, slug string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.points[slug])
	delete(m.points, slug)
	return n, nil
}

func (m *MemoryStore) ReplacePoints(_ context.Context, slug string, points []model.Point) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.series[slug]; !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrSeriesNotFound, slug)
	}
	deleted := len(m.points[slug])
	bucket := make(map[time.Time]model.Point, len(points))
	for _, p := range points {
		p.Period = model.MonthStart(p.Period)
		bucket[p.Period] = p
	}
	m.points[slug] = bucket
	return deleted, len(points), nil
}

func (m *MemoryStore) RecordRun(_ context.Context, run *model.IngestionRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = *run
	return nil
}

// Runs returns recorded ingestion runs for slug, oldest first.
func (m *MemoryStore) Runs(slug string) []model.IngestionRun {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.IngestionRun
	for _, r := range m.runs {
		if r.Slug == slug {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *MemoryStore) MarkAttempt(_ context.Context, slug string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[slug]
	if !ok {
		return nil
	}
	s.LastAttemptAt = at
	m.series[slug] = s
	return nil
}

func (m *MemoryStore) MarkSuccess(_ context.Context, slug string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[slug]
	if !ok {
		return nil
	}
	s.LastAttemptAt = at
	s.LastSuccessAt = at
	m.series[slug] = s
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }
