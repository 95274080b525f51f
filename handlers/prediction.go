package handlers

import (
	"net/http"

	"belgian-housing-api/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PredictionHandler struct {
	search *services.SearchService
	scorer *services.Scorer
	log    *zap.Logger
}

func NewPredictionHandler(search *services.SearchService, scorer *services.Scorer, log *zap.Logger) *PredictionHandler {
	return &PredictionHandler{search: search, scorer: scorer, log: log}
}

// GetPrediction scores one municipality on demand. Predictions are never stored.
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	m, err := h.search.FindByCode(c.Param("code"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	p, err := h.scorer.Predict(m)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"data": p})
}
