// The WatchTogether signaling server: room coordination, chat relay and
// WebRTC signal forwarding for screen-share rooms.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/logging"
	"github.com/Ajaxkicker/WatchTogether/internal/room"
	"github.com/Ajaxkicker/WatchTogether/internal/server"
	"github.com/Ajaxkicker/WatchTogether/internal/signaling"
)

func main() {
	logger := logging.New()
	defer logger.Sync()

	cfg := config.LoadServer()

	registry := room.NewRegistry()
	hub := signaling.NewHub(registry, logger)
	router := server.NewRouter(cfg, registry, hub, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("origin", cfg.AllowedOrigin))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
