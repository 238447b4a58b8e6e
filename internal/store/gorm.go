package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"CrashRadar/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seriesRow struct {
	Slug          string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:128;not null"`
	Description   string `gorm:"size:512"`
	Unit          string `gorm:"size:32"`
	Status        string `gorm:"size:16;default:active"`
	LastSuccessAt *time.Time
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}

func (seriesRow) TableName() string { return "series" }

type pointRow struct {
	Slug   string    `gorm:"primaryKey;size:64"`
	Period time.Time `gorm:"primaryKey;type:date"`
	Value  float64   `gorm:"not null"`
	Source string    `gorm:"size:32"`
	AsOf   time.Time `gorm:"index"`
}

func (pointRow) TableName() string { return "series_points" }

type runRow struct {
	ID           string `gorm:"primaryKey;size:36"`
	Slug         string `gorm:"size:64;index:idx_runs_slug"`
	RunType      string `gorm:"size:16"`
	Status       string `gorm:"size:16"`
	RowsUpserted int
	ErrorMessage string    `gorm:"type:text"`
	StartedAt    time.Time `gorm:"index:idx_runs_slug"`
	FinishedAt   *time.Time
}

func (runRow) TableName() string { return "ingestion_runs" }

// GormStore persists series to MySQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore connects to MySQL and auto-migrates the schema.
func NewGormStore(dsn string) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is empty")
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&seriesRow{}, &pointRow{}, &runRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Println("[INFO] mysql store opened")
	return &GormStore{db: db}, nil
}

func (g *GormStore) EnsureSeries(ctx context.Context, info model.SeriesInfo) (bool, error) {
	status := info.Status
	if status == "" {
		status = "active"
	}
	row := seriesRow{
		Slug:        info.Slug,
		Name:        info.Name,
		Description: info.Description,
		Unit:        info.Unit,
		Status:      status,
	}
	res := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert series %s: %w", info.Slug, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (g *GormStore) ListSeries(ctx context.Context) ([]model.SeriesInfo, error) {
	var rows []seriesRow
	if err := g.db.WithContext(ctx).Order("slug").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	out := make([]model.SeriesInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *GormStore) GetSeries(ctx context.Context, slug string) (*model.SeriesInfo, error) {
	var row seriesRow
	err := g.db.WithContext(ctx).First(&row, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, slug)
	}
	if err != nil {
		return nil, err
	}
	info := row.toModel()
	return &info, nil
}

func (r seriesRow) toModel() model.SeriesInfo {
	info := model.SeriesInfo{
		Slug:        r.Slug,
		Name:        r.Name,
		Description: r.Description,
		Unit:        r.Unit,
		Status:      r.Status,
	}
	if r.LastSuccessAt != nil {
		info.LastSuccessAt = r.LastSuccessAt.UTC()
	}
	if r.LastAttemptAt != nil {
		info.LastAttemptAt = r.LastAttemptAt.UTC()
	}
	return info
}

func (g *GormStore) Points(ctx context.Context, slug string) ([]model.Point, error) {
	return g.PointsInRange(ctx, slug, time.Time{}, time.Time{})
}

func (g *GormStore) PointsInRange(ctx context.Context, slug string, from, to time.Time) ([]model.Point, error) {
	q := g.db.WithContext(ctx).Where("slug = ?", slug)
	if !from.IsZero() {
		q = q.Where("period >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("period <= ?", to)
	}
	var rows []pointRow
	if err := q.Order("period ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query points %s: %w", slug, err)
	}
	points := make([]model.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, model.Point{
			Period: model.MonthStart(r.Period),
			Value:  r.Value,
			Source: r.Source,
		})
	}
	return points, nil
}

func (g *GormStore) LastPeriod(ctx context.Context, slug string) (time.Time, bool, error) {
	var row pointRow
	err := g.db.WithContext(ctx).Where("slug = ?", slug).Order("period DESC").Limit(1).Find(&row).Error
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last period %s: %w", slug, err)
	}
	if row.Slug == "" {
		return time.Time{}, false, nil
	}
	return model.MonthStart(row.Period), true, nil
}

func (g *GormStore) Stats(ctx context.Context, slug string) (model.PointStats, error) {
	var agg struct {
		First *time.Time
		Last  *time.Time
		Total int
	}
	err := g.db.WithContext(ctx).Model(&pointRow{}).
		Select("MIN(period) AS first, MAX(period) AS last, COUNT(*) AS total").
		Where("slug = ?", slug).
		Scan(&agg).Error
	if err != nil {
		return model.PointStats{}, fmt.Errorf("stats %s: %w", slug, err)
	}
	stats := model.PointStats{TotalPoints: agg.Total}
	if agg.First != nil {
		stats.FirstPeriod = model.MonthStart(*agg.First)
	}
	if agg.Last != nil {
		stats.LastPeriod = model.MonthStart(*agg.Last)
	}
	return stats, nil
}

func (g *GormStore) UpsertPoints(ctx context.Context, slug string, points []model.Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	if _, err := g.GetSeries(ctx, slug); err != nil {
		return 0, err
	}

	rows := pointRows(slug, points)
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return upsertPointRows(tx, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", slug, err)
	}
	return len(rows), nil
}

func (g *GormStore) ReplacePoints(ctx context.Context, slug string, points []model.Point) (int, int, error) {
	if _, err := g.GetSeries(ctx, slug); err != nil {
		return 0, 0, err
	}

	rows := pointRows(slug, points)
	var deleted int64
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("slug = ?", slug).Delete(&pointRow{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		if len(rows) == 0 {
			return nil
		}
		return upsertPointRows(tx, rows)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("replace points %s: %w", slug, err)
	}
	return int(deleted), len(rows), nil
}

func pointRows(slug string, points []model.Point) []pointRow {
	now := time.Now()
	rows := make([]pointRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, pointRow{
			Slug:   slug,
			Period: model.MonthStart(p.Period),
			Value:  p.Value,
			Source: p.Source,
			AsOf:   now,
		})
	}
	return rows
}

func upsertPointRows(tx *gorm.DB, rows []pointRow) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "source", "as_of"}),
	}).CreateInBatches(rows, 500).Error
}

func (g *GormStore) DeletePoints(ctx context.Context, slug string) (int, error) {
	res := g.db.WithContext(ctx).Where("slug = ?", slug).Delete(&pointRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete points %s: %w", slug, res.Error)
	}
	return int(res.RowsAffected), nil
}

func (g *GormStore) RecordRun(ctx context.Context, run *model.IngestionRun) error {
	row := runRow{
		ID:           run.ID,
		Slug:         run.Slug,
		RunType:      run.RunType,
		Status:       run.Status,
		RowsUpserted: run.RowsUpserted,
		ErrorMessage: run.ErrorMessage,
		StartedAt:    run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		row.FinishedAt = &finished
	}
	return g.db.WithContext(ctx).Save(&row).Error
}

func (g *GormStore) MarkAttempt(ctx context.Context, slug string, at time.Time) error {
	return g.db.WithContext(ctx).Model(&seriesRow{}).
		Where("slug = ?", slug).
		Update("last_attempt_at", at).Error
}

func (g *GormStore) MarkSuccess(ctx context.Context, slug string, at time.Time) error {
	return g.db.WithContext(ctx).Model(&seriesRow{}).
		Where("slug = ?", slug).
		Updates(map[string]interface{}{"last_attempt_at": at, "last_success_at": at}).Error
}

func (g *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	log.Println("[INFO] closing mysql store")
	return sqlDB.Close()
}
