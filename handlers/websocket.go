package handlers

import (
	"context"
	"net/http"

	"belgian-housing-api/models"
	"belgian-housing-api/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DatasetEvents relays refresh events to dashboards. Browsers cannot set
// headers on a websocket handshake, so the token comes in the query string.
func DatasetEvents(bus *services.EventBus, authService *services.AuthService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			fail(c, http.StatusUnauthorized, codeUnauthorized, "missing token query parameter")
			return
		}
		if _, err := authService.ValidateToken(tokenStr); err != nil {
			fail(c, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token")
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		sub, err := bus.SubscribeRefresh(ctx, true)
		if err != nil {
			writeError(c, log, err)
			return
		}
		if sub == nil {
			fail(c, http.StatusServiceUnavailable, codeUnavailable, "live events need redis")
			return
		}
		defer sub.Close()

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		// Read pump: detect client disconnect
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		sub.Run(ctx, func(event models.RefreshEvent) {
			if err := conn.WriteJSON(gin.H{"type": "dataset_refreshed", "data": event}); err != nil {
				log.Debug("ws write error", zap.Error(err))
				cancel()
			}
		})
	}
}
