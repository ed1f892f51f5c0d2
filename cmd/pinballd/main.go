// Command pinballd is the authoritative deep-space server: it owns the tick
// loop, accepts WebSocket sessions, and serves a liveness endpoint.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andersfylling/pinball-deepspace/internal/config"
	"github.com/andersfylling/pinball-deepspace/internal/server"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "dev"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}

	dsCfg := config.DefaultDeepSpaceConfig()
	if err := dsCfg.Validate(); err != nil {
		logger.Fatal("invalid deep-space configuration", zap.Error(err))
	}

	srv := server.New(cfg, dsCfg, logger)
	server.ServerVersion = Version

	go srv.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWebSocket)
	mux.HandleFunc("/healthz", healthzHandler(srv))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown did not complete cleanly", zap.Error(err))
		}
		srv.Stop()
	}()

	logger.Info("pinballd starting",
		zap.String("version", Version),
		zap.String("listenAddr", cfg.ListenAddr),
		zap.Int("tickRateHz", cfg.TickRateHz),
		zap.Int("botCount", cfg.BotCount),
	)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("http server stopped unexpectedly", zap.Error(err))
	}

	logger.Info("pinballd stopped")
}

func healthzHandler(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"tick":    srv.Tick(),
			"players": srv.PlayerCount(),
		})
	}
}
