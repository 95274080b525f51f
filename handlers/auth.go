package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"belgian-housing-api/config"
	"belgian-housing-api/ingest"
	"belgian-housing-api/middleware"
	"belgian-housing-api/models"
	"belgian-housing-api/services"
	"belgian-housing-api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxUploadBytes = 32 << 20

type AdminHandler struct {
	auth    *services.AuthService
	store   *store.Store
	cache   *services.CacheService
	bus     *services.EventBus
	dataset config.DatasetConfig
	log     *zap.Logger
}

func NewAdminHandler(auth *services.AuthService, st *store.Store, cache *services.CacheService, bus *services.EventBus, dataset config.DatasetConfig, log *zap.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, store: st, cache: cache, bus: bus, dataset: dataset, log: log}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshRequest optionally overrides the configured source with a path,
// an http(s) URL or "seed".
type RefreshRequest struct {
	Source string `json:"source" binding:"omitempty,max=2048"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, expires, err := h.auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, codeUnauthorized, "invalid credentials")
		return
	case errors.Is(err, services.ErrLoginDisabled):
		fail(c, http.StatusUnauthorized, codeUnauthorized, err.Error())
		return
	case err != nil:
		writeError(c, h.log, err)
		return
	}

	h.log.Info("admin logged in", zap.String("username", req.Username), zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, ExpiresAt: expires})
}

// Refresh replaces the dataset. The source is an uploaded multipart "file",
// the "source" of a JSON body, or the configured DATASET_SOURCE.
func (h *AdminHandler) Refresh(c *gin.Context) {
	src, ok := h.resolveSource(c)
	if !ok {
		return
	}

	prev := h.store.Snapshot()
	n, err := h.store.Refresh(c.Request.Context(), src)
	if err != nil {
		if models.IsLoadError(err) {
			h.log.Warn("refresh rejected", zap.String("source", src.Name()), zap.Error(err))
		}
		writeError(c, h.log, err)
		return
	}

	snap := h.store.Snapshot()
	h.log.Info("dataset refreshed",
		zap.String("source", src.Name()),
		zap.Int("loaded", n),
		zap.Uint64("snapshot_version", snap.Version()),
		zap.String("by", usernameOf(c)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.cache.Delete(ctx, StaleCacheKeys(prev)...); err != nil {
		h.log.Warn("failed to drop stale cache entries", zap.Error(err))
	}
	if err := h.bus.PublishRefresh(ctx, snap.Version(), n, src.Name()); err != nil {
		h.log.Warn("failed to publish refresh event", zap.Error(err))
	}

	respond(c, http.StatusOK, gin.H{
		"loaded":           n,
		"snapshot_version": snap.Version(),
		"source":           src.Name(),
	})
}

func (h *AdminHandler) resolveSource(c *gin.Context) (ingest.Source, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
		fh, err := c.FormFile("file")
		if err != nil {
			fail(c, http.StatusBadRequest, codeBadRequest, "multipart body needs a \"file\" field")
			return nil, false
		}
		format, ok := ingest.FormatFromPath(fh.Filename)
		if !ok {
			fail(c, http.StatusBadRequest, codeBadRequest, "file must be .csv, .xlsx or .json")
			return nil, false
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, h.log, err)
			return nil, false
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			writeError(c, h.log, err)
			return nil, false
		}
		return ingest.ReaderSource{Label: "upload:" + filepath.Base(fh.Filename), Format: format, Data: data}, true
	}

	location := h.dataset.Source
	if c.Request.ContentLength > 0 {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return nil, false
		}
		if req.Source != "" {
			location = req.Source
		}
	}
	return ingest.New(location, h.dataset.FetchTimeout, h.dataset.FetchRetries), true
}

// StaleCacheKeys lists the entries of snap that every refresh leaves behind:
// the stats summary and the unpaged lists. Other pages expire on their TTL.
func StaleCacheKeys(snap *store.Snapshot) []string {
	dataset, version := snap.DatasetID(), snap.Version()
	return []string{
		services.StatsKey(dataset, version),
		services.ListKey(dataset, version, services.OrderByCode, DefaultLimit, 0),
		services.ListKey(dataset, version, services.OrderByPopulation, DefaultLimit, 0),
	}
}

func usernameOf(c *gin.Context) string {
	if claims := middleware.GetClaims(c); claims != nil {
		return claims.Username
	}
	return ""
}
