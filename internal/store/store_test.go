package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"CrashRadar/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func monthly(start string, values ...float64) []model.Point {
	first := model.MustDate(start)
	points := make([]model.Point, len(values))
	for i, v := range values {
		points[i] = model.Point{Period: model.AddMonths(first, i), Value: v, Source: "test"}
	}
	return points
}

func TestStoreSeriesLifecycle(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info := model.SeriesInfo{Slug: "spx_price_monthly", Name: "S&P 500", Unit: "index"}

			created, err := s.EnsureSeries(ctx, info)
			require.NoError(t, err)
			assert.True(t, created)

			created, err = s.EnsureSeries(ctx, model.SeriesInfo{Slug: info.Slug, Name: "renamed"})
			require.NoError(t, err)
			assert.False(t, created)

			got, err := s.GetSeries(ctx, info.Slug)
			require.NoError(t, err)
			assert.Equal(t, "S&P 500", got.Name)
			assert.Equal(t, "active", got.Status)
			assert.True(t, got.LastSuccessAt.IsZero())

			_, err = s.GetSeries(ctx, "missing")
			assert.ErrorIs(t, err, ErrSeriesNotFound)

			at := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
			require.NoError(t, s.MarkSuccess(ctx, info.Slug, at))
			got, err = s.GetSeries(ctx, info.Slug)
			require.NoError(t, err)
			assert.True(t, got.LastSuccessAt.Equal(at))
			assert.True(t, got.LastAttemptAt.Equal(at))

			list, err := s.ListSeries(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStorePoints(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			slug := "spx_pe_monthly"

			_, err := s.UpsertPoints(ctx, slug, monthly("2020-01-01", 1))
			assert.ErrorIs(t, err, ErrSeriesNotFound)

			_, err = s.EnsureSeries(ctx, model.SeriesInfo{Slug: slug, Name: "CAPE"})
			require.NoError(t, err)

			_, ok, err := s.LastPeriod(ctx, slug)
			require.NoError(t, err)
			assert.False(t, ok)

			n, err := s.UpsertPoints(ctx, slug, monthly("2020-01-01", 10, 11, 12, 13))
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			// Overwrite the last two months and append one.
			_, err = s.UpsertPoints(ctx, slug, monthly("2020-03-01", 22, 23, 24))
			require.NoError(t, err)

			points, err := s.Points(ctx, slug)
			require.NoError(t, err)
			require.Len(t, points, 5)
			values := make([]float64, len(points))
			for i, p := range points {
				values[i] = p.Value
			}
			assert.Equal(t, []float64{10, 11, 22, 23, 24}, values)
			assert.True(t, points[0].Period.Equal(model.MustDate("2020-01-01")))

			ranged, err := s.PointsInRange(ctx, slug, model.MustDate("2020-02-01"), model.MustDate("2020-04-01"))
			require.NoError(t, err)
			assert.Len(t, ranged, 3)

			last, ok, err := s.LastPeriod(ctx, slug)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.True(t, last.Equal(model.MustDate("2020-05-01")))

			stats, err := s.Stats(ctx, slug)
			require.NoError(t, err)
			assert.Equal(t, 5, stats.TotalPoints)
			assert.True(t, stats.FirstPeriod.Equal(model.MustDate("2020-01-01")))

			deleted, err := s.DeletePoints(ctx, slug)
			require.NoError(t, err)
			assert.Equal(t, 5, deleted)

			points, err = s.Points(ctx, slug)
			require.NoError(t, err)
			assert.Empty(t, points)
		})
	}
}

func TestStoreReplacePoints(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			slug := "spx_price_monthly"

			_, _, err := s.ReplacePoints(ctx, slug, monthly("2020-01-01", 1))
			assert.ErrorIs(t, err, ErrSeriesNotFound)

			_, err = s.EnsureSeries(ctx, model.SeriesInfo{Slug: slug, Name: "S&P 500"})
			require.NoError(t, err)
			_, err = s.UpsertPoints(ctx, slug, monthly("2020-01-01", 1, 2, 3))
			require.NoError(t, err)

			deleted, written, err := s.ReplacePoints(ctx, slug, monthly("2021-06-01", 7, 8))
			require.NoError(t, err)
			assert.Equal(t, 3, deleted)
			assert.Equal(t, 2, written)

			points, err := s.Points(ctx, slug)
			require.NoError(t, err)
			require.Len(t, points, 2)
			assert.True(t, points[0].Period.Equal(model.MustDate("2021-06-01")))
			assert.Equal(t, 8.0, points[1].Value)
		})
	}
}

func TestSQLiteReplacePointsRollsBackOnFailure(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "radar.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	slug := "spx_price_monthly"
	_, err = s.EnsureSeries(ctx, model.SeriesInfo{Slug: slug, Name: "S&P 500"})
	require.NoError(t, err)
	_, err = s.UpsertPoints(ctx, slug, monthly("2020-01-01", 1, 2, 3))
	require.NoError(t, err)

	// NaN binds as NULL and violates the NOT NULL value column after the delete ran.
	_, _, err = s.ReplacePoints(ctx, slug, monthly("2021-01-01", 5, math.NaN()))
	require.Error(t, err)

	points, err := s.Points(ctx, slug)
	require.NoError(t, err)
	assert.Len(t, points, 3, "failed replace keeps the previous points")
}

func TestStoreRecordRunUpdatesInPlace(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			run := &model.IngestionRun{
				ID:        "run-1",
				Slug:      "spx_price_monthly",
				RunType:   "snapshot",
				Status:    "running",
				StartedAt: time.Now(),
			}
			require.NoError(t, s.RecordRun(ctx, run))

			run.Status = "success"
			run.RowsUpserted = 42
			run.FinishedAt = time.Now()
			require.NoError(t, s.RecordRun(ctx, run))

			if mem, ok := s.(*MemoryStore); ok {
				runs := mem.Runs(run.Slug)
				require.Len(t, runs, 1)
				assert.Equal(t, "success", runs[0].Status)
				assert.Equal(t, 42, runs[0].RowsUpserted)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.Error(t, err)

	s, err := Open(Config{Driver: "memory"})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}
