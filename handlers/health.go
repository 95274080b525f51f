package handlers

import (
	"context"
	"net/http"
	"time"

	"belgian-housing-api/services"
	"belgian-housing-api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	APIName    = "Belgian Housing API"
	APIVersion = "1.0.0"
)

type HealthHandler struct {
	store *store.Store
	cache *services.CacheService
	log   *zap.Logger
}

func NewHealthHandler(st *store.Store, cache *services.CacheService, log *zap.Logger) *HealthHandler {
	return &HealthHandler{store: st, cache: cache, log: log}
}

// Health reports 503 when the database is unreachable. Redis is optional and
// only reported.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus, code := "healthy", "connected", http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("database ping failed", zap.Error(err))
		status, dbStatus, code = "unhealthy", "unreachable", http.StatusServiceUnavailable
	}

	redisStatus := "disabled"
	if h.cache.Available() {
		redisStatus = "connected"
		if err := h.cache.Ping(ctx); err != nil {
			redisStatus = "unreachable"
		}
	}

	snap := h.store.Snapshot()
	c.JSON(code, gin.H{
		"success":              code == http.StatusOK,
		"status":               status,
		"database":             dbStatus,
		"redis":                redisStatus,
		"municipalities_count": snap.Len(),
		"snapshot_version":     snap.Version(),
		"loaded_at":            snap.LoadedAt(),
		"timestamp":            time.Now().UTC(),
	})
}

func Index(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"name":    APIName,
		"version": APIVersion,
		"endpoints": gin.H{
			"health":         "GET /api/health",
			"municipalities": "GET /api/municipalities?limit&offset&sort=code|population",
			"municipality":   "GET /api/municipalities/:code",
			"prediction":     "GET /api/predictions/:code",
			"search":         "GET /api/search?q&limit",
			"stats":          "GET /api/stats",
			"login":          "POST /api/admin/login",
			"refresh":        "POST /api/admin/refresh",
			"events":         "GET /api/ws/events?token",
			"metrics":        "GET /metrics",
		},
	})
}
