package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"CrashRadar/internal/model"
	"CrashRadar/internal/roadmap"
	"CrashRadar/internal/store"

	"github.com/gin-gonic/gin"
)

// Limits bounds the roadmap query parameters.
type Limits struct {
	DefaultWindow int
	MinWindow     int
	MaxWindow     int
	DefaultShift  int
	MaxShift      int
}

// DefaultLimits are the bounds used when no configuration is given.
var DefaultLimits = Limits{DefaultWindow: 120, MinWindow: 12, MaxWindow: 180, DefaultShift: 36, MaxShift: 48}

// Handler serves the roadmap and series endpoints.
type Handler struct {
	roadmaps *roadmap.Service
	store    store.Store
	limits   Limits
	now      func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(roadmaps *roadmap.Service, st store.Store, limits Limits) *Handler {
	return &Handler{roadmaps: roadmaps, store: st, limits: limits, now: time.Now}
}

// NewRouter builds the gin engine with logging, recovery, CORS and all routes.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), CORS())

	r.GET("/health", h.Health)
	SetupRoutes(r.Group("/api"), h)
	return r
}

// SetupRoutes registers the API routes on r.
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	analysis := r.Group("/analysis")
	{
		analysis.GET("/crises", h.ListCrises)
		analysis.GET("/bubble-roadmap", h.GetBubbleRoadmap)
		analysis.POST("/bubble-roadmap/cache/clear", h.ClearRoadmapCache)
	}
	r.GET("/series/:slug", h.GetSeries)
}

// CORS allows browser dashboards on other origins to call the API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (h *Handler) ListCrises(c *gin.Context) {
	crises := roadmap.AvailableCrises()
	out := make([]crisisDTO, len(crises))
	for i, cr := range crises {
		out[i] = newCrisisDTO(cr)
	}
	c.JSON(http.StatusOK, gin.H{"crises": out})
}

func (h *Handler) GetBubbleRoadmap(c *gin.Context) {
	metric := model.Metric(c.Query("metric"))
	if c.Query("clear_cache") == "true" {
		if metric.Valid() {
			h.roadmaps.ClearCacheForMetric(metric)
		} else {
			h.roadmaps.ClearCache()
		}
	}

	if !metric.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid or missing metric parameter. Must be "price" or "pe"`})
		return
	}
	crisis := c.Query("crisis")
	if crisis == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing crisis parameter. Must be one of: " + joinIDs()})
		return
	}

	window, ok := intParam(c, "window", h.limits.DefaultWindow, h.limits.MinWindow, h.limits.MaxWindow)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid window parameter. Must be between %d and %d", h.limits.MinWindow, h.limits.MaxWindow),
		})
		return
	}
	shift, ok := intParam(c, "shift", h.limits.DefaultShift, 0, h.limits.MaxShift)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid shift parameter. Must be between 0 and %d", h.limits.MaxShift),
		})
		return
	}

	result, err := h.roadmaps.GetRoadmap(c.Request.Context(), roadmap.Request{
		Metric:         metric,
		CrisisID:       crisis,
		WindowMonths:   window,
		MaxShiftMonths: shift,
	})
	if err != nil {
		writeRoadmapError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRoadmapDTO(result))
}

func (h *Handler) ClearRoadmapCache(c *gin.Context) {
	raw := c.Query("metric")
	if raw == "" {
		h.roadmaps.ClearCache()
		c.JSON(http.StatusOK, gin.H{"message": "All cache cleared"})
		return
	}
	metric := model.Metric(raw)
	if !metric.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": `Invalid metric parameter. Must be "price" or "pe"`})
		return
	}
	n := h.roadmaps.ClearCacheForMetric(metric)
	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared for metric: " + raw, "cleared": n})
}

func (h *Handler) GetSeries(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")

	info, err := h.store.GetSeries(ctx, slug)
	if errors.Is(err, store.ErrSeriesNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Series not found"})
		return
	}
	if err != nil {
		internalError(c, "get series", err)
		return
	}

	var from, to time.Time
	if v := c.Query("from"); v != "" {
		if from, err = model.ParsePeriod(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from parameter. Use YYYY-MM"})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = model.ParsePeriod(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to parameter. Use YYYY-MM"})
			return
		}
	}

	points, err := h.store.PointsInRange(ctx, slug, from, to)
	if err != nil {
		internalError(c, "query points", err)
		return
	}
	stats, err := h.store.Stats(ctx, slug)
	if err != nil {
		internalError(c, "series stats", err)
		return
	}
	c.JSON(http.StatusOK, newSeriesDTO(info, points, stats))
}

func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.store.Ping(ctx); err != nil {
		log.Printf("[ERROR] health check: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "database": "disconnected", "error": err.Error()})
		return
	}

	series, err := h.store.ListSeries(ctx)
	if err != nil {
		log.Printf("[ERROR] health check: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "database": "error", "error": err.Error()})
		return
	}
	active := 0
	var lastUpdate *string
	var latest time.Time
	for i := range series {
		if !series[i].Active() {
			continue
		}
		active++
		if series[i].LastSuccessAt.After(latest) {
			latest = series[i].LastSuccessAt
		}
	}
	if !latest.IsZero() {
		s := latest.UTC().Format(time.RFC3339)
		lastUpdate = &s
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"database":     "connected",
		"series_count": active,
		"last_update":  lastUpdate,
		"timestamp":    h.now().UTC().Format(time.RFC3339),
	})
}

// writeRoadmapError maps engine failures to HTTP statuses.
func writeRoadmapError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, roadmap.ErrInvalidCrisis), errors.Is(err, roadmap.ErrInvalidMetric):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, roadmap.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		internalError(c, "compute roadmap", err)
	}
}

func internalError(c *gin.Context, what string, err error) {
	log.Printf("[ERROR] %s: %v", what, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
}

func intParam(c *gin.Context, name string, def, lo, hi int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		return 0, false
	}
	return v, true
}

func joinIDs() string {
	return strings.Join(roadmap.CrisisIDs(), ", ")
}
