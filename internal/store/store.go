package store

import (
	"context"
	"errors"
	"time"

	"CrashRadar/internal/model"
)

// ErrSeriesNotFound is returned when a slug has no series row.
var ErrSeriesNotFound = errors.New("series not found")

// Store persists monthly series points and ingestion bookkeeping.
type Store interface {
	// EnsureSeries inserts the series if its slug is unknown. Existing rows are left untouched.
	EnsureSeries(ctx context.Context, info model.SeriesInfo) (created bool, err error)
	ListSeries(ctx context.Context) ([]model.SeriesInfo, error)
	GetSeries(ctx context.Context, slug string) (*model.SeriesInfo, error)

	// Points returns every point of the series ordered by period.
	Points(ctx context.Context, slug string) ([]model.Point, error)
	// PointsInRange returns points with from <= period <= to. Zero bounds are open.
	PointsInRange(ctx context.Context, slug string, from, to time.Time) ([]model.Point, error)
	LastPeriod(ctx context.Context, slug string) (time.Time, bool, error)
	Stats(ctx context.Context, slug string) (model.PointStats, error)

	// UpsertPoints inserts or replaces points by period and returns how many were written.
	UpsertPoints(ctx context.Context, slug string, points []model.Point) (int, error)
	DeletePoints(ctx context.Context, slug string) (int, error)
	// ReplacePoints swaps the stored points of a series for points in one transaction.
	// On error the previous points are kept.
	ReplacePoints(ctx context.Context, slug string, points []model.Point) (deleted, written int, err error)

	RecordRun(ctx context.Context, run *model.IngestionRun) error
	MarkAttempt(ctx context.Context, slug string, at time.Time) error
	MarkSuccess(ctx context.Context, slug string, at time.Time) error

	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store implementation.
type Config struct {
	Driver     string // "sqlite" (default), "mysql" or "memory"
	SQLitePath string
	MySQLDSN   string
}

// Open builds the Store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "mysql":
		return NewGormStore(cfg.MySQLDSN)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown database driver: " + cfg.Driver)
	}
}

func inRange(p, from, to time.Time) bool {
	if !from.IsZero() && p.Before(from) {
		return false
	}
	if !to.IsZero() && p.After(to) {
		return false
	}
	return true
}
