package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"CrashRadar/internal/collector"
	"CrashRadar/internal/model"
	"CrashRadar/internal/notifier"
	"CrashRadar/internal/roadmap"
	"CrashRadar/internal/store"

	"github.com/robfig/cron/v3"
)

// cacheCleanupCron evicts expired roadmaps at the top of every hour.
const cacheCleanupCron = "0 0 * * * *"

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron         *cron.Cron
	Collector    *collector.Collector
	Roadmaps     *roadmap.Service
	Store        store.Store
	Notifier     *notifier.TelegramNotifier
	DigestCrisis string
	DigestWindow int
	DigestShift  int
	Ctx          context.Context
}

// NewScheduler creates a new Scheduler. tn may be nil when Telegram is not configured.
func NewScheduler(ctx context.Context, col *collector.Collector, roadmaps *roadmap.Service, st store.Store, tn *notifier.TelegramNotifier) *Scheduler {
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Collector:    col,
		Roadmaps:     roadmaps,
		Store:        st,
		Notifier:     tn,
		DigestWindow: 120,
		DigestShift:  36,
		Ctx:          ctx,
	}
}

// RegisterAll registers the series update and cache cleanup tasks.
func (s *Scheduler) RegisterAll(updateCron string) error {
	if _, err := s.Cron.AddFunc(updateCron, func() { s.RunUpdateNow() }); err != nil {
		return fmt.Errorf("register update task: %w", err)
	}
	if _, err := s.Cron.AddFunc(cacheCleanupCron, s.Roadmaps.Cleanup); err != nil {
		return fmt.Errorf("register cache cleanup: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunUpdateNow updates every series, drops stale roadmaps and reports the result.
func (s *Scheduler) RunUpdateNow() collector.UpdateSummary {
	log.Println("[INFO] running scheduled update")
	summary := s.Collector.UpdateAll(s.Ctx)

	// Stored series changed, cached roadmaps may be stale.
	s.Roadmaps.ClearCache()

	if !s.Notifier.Enabled() {
		return summary
	}
	s.trySend(notifier.FormatUpdateSummary(summary.Runs, summary.Skipped))
	if summary.Succeeded() > 0 && s.DigestCrisis != "" {
		if digest, err := s.digest(s.Ctx, s.DigestCrisis, model.MetricPrice); err != nil {
			log.Printf("[WARN] roadmap digest: %v", err)
		} else {
			s.trySend(digest)
		}
	}
	return summary
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText()
	}
	switch fields[0] {
	case "/status":
		return s.status(ctx)
	case "/update":
		summary := s.RunUpdateNow()
		if s.Notifier.Enabled() {
			// The summary was already sent by RunUpdateNow.
			return ""
		}
		return notifier.FormatUpdateSummary(summary.Runs, summary.Skipped)
	case "/roadmap":
		crisis := s.DigestCrisis
		metric := model.MetricPrice
		if len(fields) > 1 {
			crisis = fields[1]
		}
		if len(fields) > 2 {
			metric = model.Metric(fields[2])
		}
		digest, err := s.digest(ctx, crisis, metric)
		if err != nil {
			return "❌ " + err.Error()
		}
		return digest
	default:
		return helpText()
	}
}

func (s *Scheduler) digest(ctx context.Context, crisis string, metric model.Metric) (string, error) {
	r, err := s.Roadmaps.GetRoadmap(ctx, roadmap.Request{
		Metric:         metric,
		CrisisID:       crisis,
		WindowMonths:   s.DigestWindow,
		MaxShiftMonths: s.DigestShift,
	})
	if err != nil {
		return "", err
	}
	return notifier.FormatRoadmapDigest(r), nil
}

func (s *Scheduler) status(ctx context.Context) string {
	series, err := s.Store.ListSeries(ctx)
	if err != nil {
		return "❌ " + err.Error()
	}
	stats := make(map[string]model.PointStats, len(series))
	for _, info := range series {
		st, err := s.Store.Stats(ctx, info.Slug)
		if err != nil {
			log.Printf("[WARN] stats %s: %v", info.Slug, err)
			continue
		}
		stats[info.Slug] = st
	}
	return notifier.FormatSeriesStatus(series, stats)
}

func helpText() string {
	return "Available commands:\n" +
		"• /status - stored series coverage\n" +
		"• /update - fetch new months now\n" +
		"• /roadmap [crisis] [price|pe] - compare with a crisis (" + strings.Join(roadmap.CrisisIDs(), ", ") + ")"
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
