package app

import (
	"context"
	"testing"

	"CrashRadar/internal/collector"
	"CrashRadar/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("does-not-exist.yaml")
	require.NoError(t, err)
	cfg.Database.Driver = "memory"
	return cfg
}

func TestDefinitionsShareFetchers(t *testing.T) {
	cfg := defaultConfig(t)
	defs, err := Definitions(cfg)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	price, pe := defs[0], defs[1]
	assert.Equal(t, "spx_price_monthly", price.Info.Slug)
	require.Len(t, price.Sources, 2)
	assert.Equal(t, "shiller", price.Sources[0].Fetcher.Name())
	assert.Equal(t, "stooq", price.Sources[1].Fetcher.Name())
	assert.Same(t, price.Sources[0].Fetcher, pe.Sources[0].Fetcher)
	assert.Equal(t, collector.FillGaps, pe.Strategy)
	assert.Equal(t, 2, pe.RoundDecimals)
}

func TestDefinitionsUnknownSource(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Series[0].Sources[0].Type = "bloomberg"
	_, err := Definitions(cfg)
	assert.Error(t, err)
}

func TestMockSeriesEndToEnd(t *testing.T) {
	cfg := defaultConfig(t)
	for i := range cfg.Series {
		cfg.Series[i].Sources = []config.SourceConfig{{Type: "mock", Priority: 1}}
	}
	st, err := OpenStore(cfg)
	require.NoError(t, err)
	col, err := NewCollector(cfg, st)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, col.Seed(ctx))
	summary := col.UpdateAll(ctx)
	assert.Equal(t, 2, summary.Succeeded())
}
