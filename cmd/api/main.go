package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"belgian-housing-api/config"
	"belgian-housing-api/handlers"
	"belgian-housing-api/ingest"
	"belgian-housing-api/logger"
	"belgian-housing-api/models"
	"belgian-housing-api/services"
	"belgian-housing-api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log, "housing-api")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := store.Connect(cfg.Database, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	st, err := store.Open(db)
	if err != nil {
		zl.Fatal("failed to open dataset store", zap.Error(err))
	}
	if cfg.Dataset.SeedIfEmpty && st.Count() == 0 {
		seedStore(ctx, st, cfg.Dataset, zl)
	}

	scorer, err := services.NewScorer(cfg.Scoring)
	if err != nil {
		zl.Fatal("invalid scoring weights", zap.Error(err))
	}

	cache, err := services.NewCacheService(cfg.Redis, zl)
	if err != nil {
		zl.Warn("continuing without redis", zap.Error(err))
	}
	defer func() { _ = cache.Close() }()
	bus := services.NewEventBus(cache, zl)

	go followRefreshes(ctx, bus, st, cache, zl)

	gin.SetMode(cfg.Server.Mode)
	router := handlers.NewRouter(handlers.Deps{
		Config:      cfg,
		Store:       st,
		Search:      services.NewSearchService(st),
		Scorer:      scorer,
		Aggregation: services.NewAggregationService(st, scorer),
		Cache:       cache,
		Events:      bus,
		Auth:        services.NewAuthService(cfg.JWT, cfg.Admin),
		Log:         zl,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Int("municipalities", st.Count()),
			zap.Uint64("snapshot_version", st.Version()),
			zap.String("model_version", scorer.ModelVersion()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
}

// seedStore loads the configured source into an empty database and falls
// back to the embedded seed when that source cannot be loaded.
func seedStore(ctx context.Context, st *store.Store, cfg config.DatasetConfig, zl *zap.Logger) {
	src := ingest.New(cfg.Source, cfg.FetchTimeout, cfg.FetchRetries)
	n, err := st.Refresh(ctx, src)
	if err == nil {
		zl.Info("dataset seeded", zap.String("source", src.Name()), zap.Int("loaded", n))
		return
	}
	if src.Name() == ingest.SeedSource().Name() {
		zl.Fatal("failed to load embedded seed", zap.Error(err))
	}

	zl.Warn("configured source failed, using embedded seed", zap.String("source", src.Name()), zap.Error(err))
	if n, err = st.Refresh(ctx, ingest.SeedSource()); err != nil {
		zl.Fatal("failed to load embedded seed", zap.Error(err))
	}
	zl.Info("dataset seeded", zap.String("source", "seed"), zap.Int("loaded", n))
}

// followRefreshes reloads the snapshot whenever another process replaced the
// dataset.
func followRefreshes(ctx context.Context, bus *services.EventBus, st *store.Store, cache *services.CacheService, zl *zap.Logger) {
	sub, err := bus.SubscribeRefresh(ctx, false)
	if err != nil {
		zl.Warn("not following dataset refreshes", zap.Error(err))
		return
	}
	if sub == nil {
		return
	}
	defer func() { _ = sub.Close() }()

	sub.Run(ctx, func(event models.RefreshEvent) {
		prev := st.Snapshot()
		if event.Version <= prev.Version() {
			return
		}
		if err := st.Reload(ctx); err != nil {
			zl.Error("reload after refresh event failed", zap.Uint64("snapshot_version", event.Version), zap.Error(err))
			return
		}
		zl.Info("snapshot reloaded",
			zap.String("from_instance", event.InstanceID),
			zap.String("source", event.Source),
			zap.Uint64("snapshot_version", st.Version()),
		)
		if err := cache.Delete(ctx, handlers.StaleCacheKeys(prev)...); err != nil {
			zl.Warn("failed to drop stale cache entries", zap.Error(err))
		}
	})
}
