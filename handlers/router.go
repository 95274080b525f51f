package handlers

import (
	"net/http"

	"belgian-housing-api/config"
	"belgian-housing-api/middleware"
	"belgian-housing-api/services"
	"belgian-housing-api/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Store       *store.Store
	Search      *services.SearchService
	Scorer      *services.Scorer
	Aggregation *services.AggregationService
	Cache       *services.CacheService
	Events      *services.EventBus
	Auth        *services.AuthService
	Log         *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(d.Log),
		middleware.RequestID(),
		middleware.Logger(d.Log),
		middleware.Metrics(),
		middleware.SetupCORS(d.Config.CORS),
	)

	municipalities := NewMunicipalityHandler(d.Search, d.Scorer, d.Cache, d.Log)
	predictions := NewPredictionHandler(d.Search, d.Scorer, d.Log)
	stats := NewStatsHandler(d.Store, d.Aggregation, d.Cache, d.Log)
	health := NewHealthHandler(d.Store, d.Cache, d.Log)
	admin := NewAdminHandler(d.Auth, d.Store, d.Cache, d.Events, d.Config.Dataset, d.Log)

	r.GET("/", Index)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", health.Health)
		api.GET("/municipalities", municipalities.List)
		api.GET("/municipalities/:code", municipalities.Get)
		api.GET("/predictions/:code", predictions.GetPrediction)
		api.GET("/search", municipalities.Search)
		api.GET("/stats", stats.GetStats)
		api.GET("/ws/events", DatasetEvents(d.Events, d.Auth, d.Log))

		adminGroup := api.Group("/admin")
		adminGroup.POST("/login", admin.Login)
		adminGroup.POST("/refresh", middleware.RequireAdmin(d.Auth), admin.Refresh)
	}

	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, codeNotFound, "route not found")
	})

	return r
}
