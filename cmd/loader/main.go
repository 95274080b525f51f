// Command loader refreshes the municipality dataset out of band, once or on
// an interval, and announces each new snapshot to the API instances.
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
	"belgian-housing-api/ingest"
	"belgian-housing-api/logger"
	"belgian-housing-api/services"
	"belgian-housing-api/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housing_loader_cycles_total",
		Help: "Total number of refresh cycles run.",
	})
	cyclesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housing_loader_cycles_failed_total",
		Help: "Total number of refresh cycles that did not replace the dataset.",
	})
	recordsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "housing_loader_records_loaded",
		Help: "Records in the last successfully loaded dataset.",
	})
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "housing_loader_events_published_total",
		Help: "Total number of refresh events published to Redis.",
	})
	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "housing_loader_cycle_duration_seconds",
		Help:    "Duration of a full refresh cycle.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	})
)

type refresher interface {
	Refresh(ctx context.Context, src ingest.Source) (int, error)
	Version() uint64
}

type publisher interface {
	PublishRefresh(ctx context.Context, version uint64, count int, source string) error
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Log, "housing-loader")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Connect(cfg.Database, zl)
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	st, err := store.Open(db)
	if err != nil {
		zl.Fatal("failed to open dataset store", zap.Error(err))
	}

	cache, err := services.NewCacheService(cfg.Redis, zl)
	if err != nil {
		zl.Warn("refresh events disabled", zap.Error(err))
	}
	defer func() { _ = cache.Close() }()
	bus := services.NewEventBus(cache, zl)

	src := ingest.New(cfg.Dataset.Source, cfg.Dataset.FetchTimeout, cfg.Dataset.FetchRetries)

	if cfg.Loader.Interval <= 0 {
		if err := runCycle(ctx, st, bus, src, zl); err != nil {
			zl.Fatal("refresh failed", zap.Error(err))
		}
		return
	}

	go serveHTTP(cfg.Loader.MetricsAddr, zl)

	zl.Info("loader running", zap.Duration("interval", cfg.Loader.Interval), zap.String("source", src.Name()))

	// Run first cycle immediately
	_ = runCycle(ctx, st, bus, src, zl)

	ticker := time.NewTicker(cfg.Loader.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = runCycle(ctx, st, bus, src, zl)
		case <-ctx.Done():
			zl.Info("loader shutting down")
			return
		}
	}
}

// runCycle replaces the dataset from src. A failed load leaves the stored
// dataset untouched and publishes nothing.
func runCycle(ctx context.Context, st refresher, bus publisher, src ingest.Source, zl *zap.Logger) error {
	start := time.Now()
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
	}()
	cyclesTotal.Inc()

	n, err := st.Refresh(ctx, src)
	if err != nil {
		cyclesFailed.Inc()
		zl.Error("refresh cycle failed", zap.String("source", src.Name()), zap.Error(err))
		return fmt.Errorf("refresh from %s: %w", src.Name(), err)
	}
	recordsLoaded.Set(float64(n))

	version := st.Version()
	if err := bus.PublishRefresh(ctx, version, n, src.Name()); err != nil {
		zl.Warn("failed to publish refresh event", zap.Error(err))
	} else {
		eventsPublished.Inc()
	}

	zl.Info("refresh cycle completed",
		zap.String("source", src.Name()),
		zap.Int("loaded", n),
		zap.Uint64("snapshot_version", version),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func serveHTTP(addr string, zl *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	zl.Info("metrics server listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zl.Fatal("metrics server failed", zap.Error(err))
	}
}
