package handlers

import (
	"context"
	"net/http"
	"time"

	"belgian-housing-api/models"
	"belgian-housing-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const statsCacheTTL = time.Hour

type StatsHandler struct {
	source services.SnapshotSource
	agg    *services.AggregationService
	cache  *services.CacheService
	log    *zap.Logger
}

func NewStatsHandler(source services.SnapshotSource, agg *services.AggregationService, cache *services.CacheService, log *zap.Logger) *StatsHandler {
	return &StatsHandler{source: source, agg: agg, cache: cache, log: log}
}

// GetStats serves the aggregate summary, shared across API instances through
// Redis under a key bound to the dataset id and snapshot version.
func (h *StatsHandler) GetStats(c *gin.Context) {
	snap := h.source.Snapshot()

	var stats models.Stats
	found, err := h.cache.Get(c.Request.Context(), services.StatsKey(snap.DatasetID(), snap.Version()), &stats)
	if err != nil {
		h.log.Warn("stats cache read failed", zap.Error(err))
	}
	if !found {
		stats = h.agg.Stats()
		key := services.StatsKey(snap.DatasetID(), stats.SnapshotVersion)
		go func() {
			if err := h.cache.Set(context.Background(), key, stats, statsCacheTTL); err != nil {
				h.log.Warn("failed to cache stats", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	respond(c, http.StatusOK, gin.H{"data": stats, "cached": found})
}
