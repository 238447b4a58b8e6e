// Command ingest runs one-off series maintenance: snapshot, incremental, reset, update-all and check.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CrashRadar/internal/app"
	"CrashRadar/internal/collector"
	"CrashRadar/internal/config"
	"CrashRadar/internal/model"
	"CrashRadar/internal/store"
)

const usage = `usage: ingest [flags] <command>

commands:
  snapshot     full backfill of --slug (or every series)
  incremental  fetch months after the last stored period
  reset        delete stored points and backfill again
  update-all   incremental update of every active series
  check        print the latest stored period per series

flags:
`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "config file")
	slug := flag.String("slug", "", "series slug, empty means every configured series")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	st, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	col, err := app.NewCollector(cfg, st)
	if err != nil {
		log.Fatalf("[FATAL] init collector: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := col.Seed(ctx); err != nil {
		log.Fatalf("[FATAL] seed series: %v", err)
	}

	if err := run(ctx, flag.Arg(0), *slug, col, st); err != nil {
		log.Printf("[ERROR] %v", err)
		st.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, command, slug string, col *collector.Collector, st store.Store) error {
	slugs := col.Slugs()
	if slug != "" {
		slugs = []string{slug}
	}

	var step func(context.Context, string) (*model.IngestionRun, error)
	switch command {
	case "snapshot":
		step = col.Snapshot
	case "incremental":
		step = col.Incremental
	case "reset":
		step = col.Reset
	case "update-all":
		summary := col.UpdateAll(ctx)
		if summary.Failed() > 0 {
			return fmt.Errorf("%d series failed to update", summary.Failed())
		}
		return nil
	case "check":
		return check(ctx, st, slugs)
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	failed := 0
	for _, s := range slugs {
		r, err := step(ctx, s)
		if err != nil {
			log.Printf("[ERROR] %v", err)
			failed++
			continue
		}
		log.Printf("[INFO] %s %s: %d rows (run %s)", r.RunType, s, r.RowsUpserted, r.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d series failed", failed, len(slugs))
	}
	return nil
}

func check(ctx context.Context, st store.Store, slugs []string) error {
	for _, s := range slugs {
		stats, err := st.Stats(ctx, s)
		if err != nil {
			return err
		}
		if stats.TotalPoints == 0 {
			fmt.Printf("%-20s no data\n", s)
			continue
		}
		fmt.Printf("%-20s %s .. %s (%d points)\n", s,
			stats.FirstPeriod.Format(model.PeriodLayout), stats.LastPeriod.Format(model.PeriodLayout), stats.TotalPoints)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
