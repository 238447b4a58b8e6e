package roadmap

import (
	"context"
	"log"
	"time"

	"CrashRadar/internal/cache"
	"CrashRadar/internal/model"
)

// DefaultCacheTTL is how long a computed roadmap is served from memory.
const DefaultCacheTTL = 5 * time.Minute

// Computer produces roadmaps. *Engine implements it.
type Computer interface {
	Compute(ctx context.Context, req Request) (*model.Roadmap, error)
}

// Service memoizes roadmaps by request parameters in front of a Computer.
type Service struct {
	engine Computer
	cache  *cache.Memo[*model.Roadmap]
}

// NewService wraps engine with a result cache of the given TTL.
func NewService(engine Computer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{engine: engine, cache: cache.New[*model.Roadmap](ttl)}
}

// GetRoadmap returns a cached roadmap for req or computes a fresh one.
// Concurrent identical requests share one computation, which therefore runs
// detached from the cancellation of whichever caller started it.
func (s *Service) GetRoadmap(ctx context.Context, req Request) (*model.Roadmap, error) {
	key := cache.Key(req.Metric, req.CrisisID, req.WindowMonths, req.MaxShiftMonths)
	shared := context.WithoutCancel(ctx)
	return s.cache.Get(key, func() (*model.Roadmap, error) {
		return s.engine.Compute(shared, req)
	})
}

// ClearCache drops every cached roadmap.
func (s *Service) ClearCache() {
	n := s.cache.Clear()
	log.Printf("[INFO] roadmap cache cleared (%d entries)", n)
}

// ClearCacheForMetric drops cached roadmaps of one metric.
func (s *Service) ClearCacheForMetric(metric model.Metric) int {
	n := s.cache.ClearPrefix(cache.Prefix(metric))
	log.Printf("[INFO] cleared %d cache entries for metric: %s", n, metric)
	return n
}

// Cleanup evicts expired roadmaps.
func (s *Service) Cleanup() { s.cache.Cleanup() }
