// Package server wires the HTTP surface: health check, room-code generation
// and the websocket upgrade.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/room"
	"github.com/Ajaxkicker/WatchTogether/internal/signaling"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg *config.Server, registry *room.Registry, hub *signaling.Hub, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(cfg.AllowedOrigin))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/create-room", func(c *gin.Context) {
		code, err := registry.GenerateCode()
		if err != nil {
			log.Error("generate room code", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "room code space exhausted"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"roomCode": code})
	})

	r.GET("/ws", serveWs(hub, cfg.AllowedOrigin, log))
	return r
}

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// serveWs upgrades the request and hands the connection to the hub.
func serveWs(hub *signaling.Hub, allowedOrigin string, log *zap.Logger) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "*" || allowedOrigin == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin header.
			return origin == "" || origin == allowedOrigin
		},
	}
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		hub.HandleConnection(conn)
	}
}
