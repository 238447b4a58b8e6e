package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"CrashRadar/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists series to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while the updater writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS series (
			slug            TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			description     TEXT,
			unit            TEXT,
			status          TEXT NOT NULL DEFAULT 'active',
			last_success_at INTEGER,
			last_attempt_at INTEGER,
			created_at      INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS series_points (
			slug   TEXT NOT NULL,
			period TEXT NOT NULL,
			value  REAL NOT NULL,
			source TEXT,
			as_of  INTEGER NOT NULL,
			PRIMARY KEY (slug, period)
		)`,

		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			id            TEXT PRIMARY KEY,
			slug          TEXT NOT NULL,
			run_type      TEXT NOT NULL,
			status        TEXT NOT NULL,
			rows_upserted INTEGER,
			error_message TEXT,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_slug ON ingestion_runs(slug, started_at)`,
	}

	for i, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *SQLiteStore) EnsureSeries(ctx context.Context, info model.SeriesInfo) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := info.Status
	if status == "" {
		status = "active"
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO series
		(slug, name, description, unit, status, created_at)
		VALUES (?,?,?,?,?,?)`,
		info.Slug, info.Name, info.Description, info.Unit, status, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert series %s: %w", info.Slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListSeries(ctx context.Context) ([]model.SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug, name, description, unit, status, last_success_at, last_attempt_at
		FROM series ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	var out []model.SeriesInfo
	for rows.Next() {
		info, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSeries(ctx context.Context, slug string) (*model.SeriesInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT slug, name, description, unit, status, last_success_at, last_attempt_at
		FROM series WHERE slug = ?`, slug)
	info, err := scanSeries(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, slug)
	}
	return info, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSeries(sc scanner) (*model.SeriesInfo, error) {
	var (
		info                 model.SeriesInfo
		desc, unit           sql.NullString
		lastSuccess, lastTry sql.NullInt64
	)
	if err := sc.Scan(&info.Slug, &info.Name, &desc, &unit, &info.Status, &lastSuccess, &lastTry); err != nil {
		return nil, err
	}
	info.Description = desc.String
	info.Unit = unit.String
	if lastSuccess.Valid {
		info.LastSuccessAt = time.Unix(lastSuccess.Int64, 0).UTC()
	}
	if lastTry.Valid {
		info.LastAttemptAt = time.Unix(lastTry.Int64, 0).UTC()
	}
	return &info, nil
}

func (s *SQLiteStore) Points(ctx context.Context, slug string) ([]model.Point, error) {
	return s.PointsInRange(ctx, slug, time.Time{}, time.Time{})
}

func (s *SQLiteStore) PointsInRange(ctx context.Context, slug string, from, to time.Time) ([]model.Point, error) {
	query := `SELECT period, value, source FROM series_points WHERE slug = ?`
	args := []any{slug}
	if !from.IsZero() {
		query += ` AND period >= ?`
		args = append(args, from.Format(model.PeriodLayout))
	}
	if !to.IsZero() {
		query += ` AND period <= ?`
		args = append(args, to.Format(model.PeriodLayout))
	}
	query += ` ORDER BY period ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query points %s: %w", slug, err)
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var (
			period string
			p      model.Point
			source sql.NullString
		)
		if err := rows.Scan(&period, &p.Value, &source); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if p.Period, err = time.Parse(model.PeriodLayout, period); err != nil {
			return nil, fmt.Errorf("parse period %q: %w", period, err)
		}
		p.Source = source.String
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) LastPeriod(ctx context.Context, slug string) (time.Time, bool, error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(period) FROM series_points WHERE slug = ?`, slug).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("last period %s: %w", slug, err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(model.PeriodLayout, last.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse period %q: %w", last.String, err)
	}
	return t, true, nil
}

func (s *SQLiteStore) Stats(ctx context.Context, slug string) (model.PointStats, error) {
	var (
		stats       model.PointStats
		first, last sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT MIN(period), MAX(period), COUNT(*) FROM series_points WHERE slug = ?`, slug).
		Scan(&first, &last, &stats.TotalPoints)
	if err != nil {
		return stats, fmt.Errorf("stats %s: %w", slug, err)
	}
	if first.Valid {
		stats.FirstPeriod, _ = time.Parse(model.PeriodLayout, first.String)
	}
	if last.Valid {
		stats.LastPeriod, _ = time.Parse(model.PeriodLayout, last.String)
	}
	return stats, nil
}

func (s *SQLiteStore) UpsertPoints(ctx context.Context, slug string, points []model.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	if _, err := s.GetSeries(ctx, slug); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upserted, err := upsertPointsTx(ctx, tx, slug, points)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return upserted, nil
}

func (s *SQLiteStore) ReplacePoints(ctx context.Context, slug string, points []model.Point) (int, int, error) {
	if _, err := s.GetSeries(ctx, slug); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM series_points WHERE slug = ?`, slug)
	if err != nil {
		return 0, 0, fmt.Errorf("delete points %s: %w", slug, err)
	}
	deleted, _ := res.RowsAffected()

	written, err := upsertPointsTx(ctx, tx, slug, points)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return int(deleted), written, nil
}

func upsertPointsTx(ctx context.Context, tx *sql.Tx, slug string, points []model.Point) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO series_points (slug, period, value, source, as_of)
		VALUES (?,?,?,?,?)
		ON CONFLICT(slug, period) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			as_of = excluded.as_of`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	upserted := 0
	for _, p := range points {
		res, err := stmt.ExecContext(ctx, slug, model.MonthStart(p.Period).Format(model.PeriodLayout), p.Value, p.Source, now)
		if err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", slug, p.Period.Format(model.PeriodLayout), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			upserted++
		}
	}
	return upserted, nil
}

func (s *SQLiteStore) DeletePoints(ctx context.Context, slug string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM series_points WHERE slug = ?`, slug)
	if err != nil {
		return 0, fmt.Errorf("delete points %s: %w", slug, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.IngestionRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = run.FinishedAt.Unix()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingestion_runs
		(id, slug, run_type, status, rows_upserted, error_message, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			rows_upserted = excluded.rows_upserted,
			error_message = excluded.error_message,
			finished_at = excluded.finished_at`,
		run.ID, run.Slug, run.RunType, run.Status, run.RowsUpserted, run.ErrorMessage,
		run.StartedAt.Unix(), finished,
	)
	return err
}

func (s *SQLiteStore) MarkAttempt(ctx context.Context, slug string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE series SET last_attempt_at = ? WHERE slug = ?`, at.Unix(), slug)
	return err
}

func (s *SQLiteStore) MarkSuccess(ctx context.Context, slug string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE series SET last_success_at = ?, last_attempt_at = ? WHERE slug = ?`,
		at.Unix(), at.Unix(), slug)
	return err
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
