package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CrashRadar/internal/api"
	"CrashRadar/internal/app"
	"CrashRadar/internal/config"
	"CrashRadar/internal/notifier"
	"CrashRadar/internal/roadmap"
	"CrashRadar/internal/scheduler"

	"github.com/gin-gonic/gin"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] CrashRadar starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init store
	st, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init collector and seed series definitions
	col, err := app.NewCollector(cfg, st)
	if err != nil {
		log.Fatalf("[FATAL] init collector: %v", err)
	}
	if err := col.Seed(ctx); err != nil {
		log.Fatalf("[FATAL] seed series: %v", err)
	}

	// Init roadmap engine behind the result cache
	engine := roadmap.NewEngine(st, cfg.Analysis.ComparisonWindow)
	roadmaps := roadmap.NewService(engine, time.Duration(cfg.Analysis.CacheTTLSeconds)*time.Second)

	// Init Telegram notifier
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Sources.Proxy)
	} else {
		log.Println("[WARN] telegram not configured, notifications disabled")
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, col, roadmaps, st, tn)
	sched.DigestCrisis = cfg.Telegram.DigestCrisis
	sched.DigestWindow = cfg.Analysis.DefaultWindow
	sched.DigestShift = cfg.Analysis.DefaultShift
	if err := sched.RegisterAll(cfg.Schedule.UpdateCron); err != nil {
		log.Fatalf("[FATAL] register cron tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Println("[INFO] Telegram polling started")
	}

	// Optional: backfill empty series on start
	if os.Getenv("RUN_SNAPSHOT_ON_START") == "true" {
		log.Println("[INFO] RUN_SNAPSHOT_ON_START enabled, backfilling empty series")
		go func() {
			for _, slug := range col.Slugs() {
				if _, ok, err := st.LastPeriod(ctx, slug); err != nil || ok {
					continue
				}
				if _, err := col.Snapshot(ctx, slug); err != nil {
					log.Printf("[ERROR] initial snapshot %s: %v", slug, err)
				}
			}
			roadmaps.ClearCache()
		}()
	}

	// HTTP server
	gin.SetMode(cfg.Server.Mode)
	handler := api.NewHandler(roadmaps, st, api.Limits{
		DefaultWindow: cfg.Analysis.DefaultWindow,
		MinWindow:     cfg.Analysis.MinWindow,
		MaxWindow:     cfg.Analysis.MaxWindow,
		DefaultShift:  cfg.Analysis.DefaultShift,
		MaxShift:      cfg.Analysis.MaxShift,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[INFO] HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	log.Println("[INFO] CrashRadar is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	cancel()
	log.Println("[INFO] CrashRadar stopped")
}
