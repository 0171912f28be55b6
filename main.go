package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/bellanda/local-cameras-view/internal/config"
	"github.com/bellanda/local-cameras-view/internal/httpapi"
	"github.com/bellanda/local-cameras-view/internal/inventory"
	"github.com/bellanda/local-cameras-view/internal/logging"
	"github.com/bellanda/local-cameras-view/internal/manager"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cameras, err := inventory.Load()
	if err != nil {
		logger.Fatal("failed to load camera inventory", zap.Error(err))
	}
	if len(cameras) == 0 {
		logger.Warn("no cameras configured; set CAMERAS=name=source;... (e.g. desk=0 or porch=rtsp://...)")
	}

	mgr := manager.New(cfg.Stream, logger)
	for _, cam := range cameras {
		if err := mgr.Add(cam.Name, cam.Source); err != nil {
			logger.Error("failed to register camera", zap.String("camera", cam.Name), zap.Error(err))
			continue
		}
		logger.Info("camera registered", zap.String("camera", cam.Name), zap.String("source", cam.Source.String()))
	}

	api := httpapi.New(mgr, cfg.Stream, logger)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.Handler(),
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownBound(cfg, len(cameras)))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server did not shut down cleanly", zap.Error(err))
	}

	mgr.StopAll()
	logger.Info("all camera streams stopped, exiting")
}

// shutdownBound scales the HTTP server's graceful-shutdown deadline with the
// number of registered cameras: SHUTDOWN_SECONDS plus one second per camera.
// It bounds srv.Shutdown only; the StopAll call that follows is bounded by
// each stream's own join bound.
func shutdownBound(cfg *config.Config, cameraCount int) time.Duration {
	base := time.Duration(cfg.Server.ShutdownSeconds) * time.Second
	return base + time.Duration(cameraCount)*time.Second
}
