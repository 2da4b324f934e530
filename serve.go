package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/config"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/handlers"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/logger"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/metrics"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/sse"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/redisstore"
)

// runServe hosts the document server until ctx ends
func runServe(ctx context.Context, args []string) error {
	loader, err := setup(flag.NewFlagSet("serve", flag.ContinueOnError), args)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	log := logger.WithModule("server")

	connect, rooms, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	reader := connect()
	defer reader.Close()

	m := metrics.New()
	hctx := &handlers.Context{
		Connect: connect,
		Reader:  reader,
		Hub:     sse.NewHub(reader, nil, logger.WithModule("sse")),
		Metrics: m,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		Rooms: rooms,
		Log:   logger.WithModule("handlers"),
	}
	hctx.SetRateLimit(cfg.Security.RateLimit)

	loader.Watch(func(next *config.Config) {
		logger.SetLevel(next.Log.Level)
		hctx.SetRateLimit(next.Security.RateLimit)
		log.Info("config reloaded",
			zap.String("level", next.Log.Level),
			zap.Bool("rateLimit", next.Security.RateLimit.Enabled),
		)
	}, func(err error) {
		log.Warn("config reload rejected", zap.Error(err))
	})

	if cfg.Monitor.Enabled {
		go m.Run(ctx, cfg.Monitor.MetricsInterval, rooms, logger.WithModule("metrics"))
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      hctx.Router(cfg.Server.CORSOrigins, cfg.WebSocket.Path),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("document server listening", zap.String("addr", srv.Addr), zap.String("ws", cfg.WebSocket.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openBackend returns a connector for the configured backend plus an optional room counter
func openBackend(ctx context.Context, cfg *config.Config) (handlers.Connector, func() int, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		mem := store.NewMemory(logger.WithModule("store"))
		rooms := func() int {
			all, _ := mem.Read(models.RoomsRoot).(map[string]any)
			return len(all)
		}
		return func() store.Store { return mem.Connect() }, rooms, func() {}, nil
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		backend, err := redisstore.New(dialCtx, cfg.Redis, logger.WithModule("store"))
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := backend.Close(); err != nil {
				logger.Get().Warn("redis close", zap.Error(err))
			}
		}
		return func() store.Store { return backend.Connect() }, nil, closeFn, nil
	default:
		return nil, nil, nil, fmt.Errorf("serve cannot host the %q backend", cfg.Store.Backend)
	}
}
