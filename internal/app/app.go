// Package app wires configuration into the store, fetchers and collector shared by the binaries.
package app

import (
	"fmt"
	"time"

	"CrashRadar/internal/collector"
	"CrashRadar/internal/config"
	"CrashRadar/internal/model"
	"CrashRadar/internal/store"
)

// OpenStore opens the store selected by cfg.Database.
func OpenStore(cfg *config.Config) (store.Store, error) {
	return store.Open(store.Config{
		Driver:     cfg.Database.Driver,
		SQLitePath: cfg.Database.SQLitePath,
		MySQLDSN:   cfg.Database.MySQLDSN,
	})
}

// NewFetcher builds the fetcher for a source type.
func NewFetcher(cfg *config.Config, sourceType string) (collector.Fetcher, error) {
	opts := collector.ClientOptions{
		Timeout:  time.Duration(cfg.Sources.TimeoutSeconds) * time.Second,
		ProxyURL: cfg.Sources.Proxy,
	}
	switch sourceType {
	case "shiller":
		return collector.NewShillerFetcher(cfg.Sources.ShillerURL, opts), nil
	case "stooq":
		return collector.NewStooqFetcher(cfg.Sources.StooqURL, opts), nil
	case "mock":
		return &collector.MockFetcher{}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s. Available: shiller, stooq, mock", sourceType)
	}
}

// Definitions turns the configured series into collector definitions.
// Fetchers are shared between series so each source type is built once.
func Definitions(cfg *config.Config) ([]collector.Definition, error) {
	fetchers := make(map[string]collector.Fetcher)
	defs := make([]collector.Definition, 0, len(cfg.Series))
	for _, sc := range cfg.Series {
		def := collector.Definition{
			Info: model.SeriesInfo{
				Slug:        sc.Slug,
				Name:        sc.Name,
				Description: sc.Description,
				Unit:        sc.Unit,
				Status:      sc.Status,
			},
			Metric:        model.Metric(sc.Metric),
			Strategy:      collector.MergeStrategy(sc.MergeStrategy),
			RoundDecimals: sc.RoundDecimals,
		}
		for _, src := range sc.Sources {
			f, ok := fetchers[src.Type]
			if !ok {
				var err error
				if f, err = NewFetcher(cfg, src.Type); err != nil {
					return nil, fmt.Errorf("series %s: %w", sc.Slug, err)
				}
				fetchers[src.Type] = f
			}
			def.Sources = append(def.Sources, collector.Source{Fetcher: f, Priority: src.Priority})
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// NewCollector builds a collector over st for every configured series.
func NewCollector(cfg *config.Config, st store.Store) (*collector.Collector, error) {
	defs, err := Definitions(cfg)
	if err != nil {
		return nil, err
	}
	return collector.NewCollector(st, defs), nil
}
