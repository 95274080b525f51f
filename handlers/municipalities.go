package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"belgian-housing-api/models"
	"belgian-housing-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const listCacheTTL = 10 * time.Minute

type MunicipalityHandler struct {
	search *services.SearchService
	scorer *services.Scorer
	cache  *services.CacheService
	log    *zap.Logger
}

func NewMunicipalityHandler(search *services.SearchService, scorer *services.Scorer, cache *services.CacheService, log *zap.Logger) *MunicipalityHandler {
	return &MunicipalityHandler{search: search, scorer: scorer, cache: cache, log: log}
}

func (h *MunicipalityHandler) List(c *gin.Context) {
	var p ListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		bindError(c, err)
		return
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	order, err := services.ParseListOrder(p.Sort)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	all, snap := h.search.ListVersioned(order)
	version := snap.Version()
	cacheKey := services.ListKey(snap.DatasetID(), version, order, p.Limit, p.Offset)

	var cached ListResponse
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found {
		c.JSON(http.StatusOK, cached)
		return
	}

	rows := page(all, p.Limit, p.Offset)
	data := make([]models.MunicipalitySummary, len(rows))
	for i, m := range rows {
		data[i] = m.Summary()
	}
	resp := ListResponse{
		Success: true,
		Data:    data,
		Total:   len(all),
		Count:   len(data),
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(data) < len(all),
		Version: version,
	}
	go func() {
		if err := h.cache.Set(context.Background(), cacheKey, resp, listCacheTTL); err != nil {
			h.log.Warn("failed to cache municipality list", zap.String("key", cacheKey), zap.Error(err))
		}
	}()

	c.JSON(http.StatusOK, resp)
}

// Get returns the full record and its prediction, which is null when the
// record lacks population or area.
func (h *MunicipalityHandler) Get(c *gin.Context) {
	m, err := h.search.FindByCode(c.Param("code"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	var prediction *models.PredictionResult
	p, err := h.scorer.Predict(m)
	switch {
	case err == nil:
		prediction = &p
	case !models.IsInsufficientData(err):
		writeError(c, h.log, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"data": m, "prediction": prediction})
}

func (h *MunicipalityHandler) Search(c *gin.Context) {
	var p SearchParams
	if err := c.ShouldBindQuery(&p); err != nil {
		bindError(c, err)
		return
	}
	if p.Limit == 0 {
		p.Limit = DefaultSearchLimit
	}

	results, err := h.search.Search(p.Query)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	rows := page(results, p.Limit, 0)
	data := make([]models.MunicipalitySummary, len(rows))
	for i, m := range rows {
		data[i] = m.Summary()
	}
	respond(c, http.StatusOK, gin.H{
		"query": strings.TrimSpace(p.Query),
		"data":  data,
		"count": len(data),
		"total": len(results),
	})
}
