// Command server runs the voxqueue API: a durable task queue for
// speech-to-text and text-risk-classification jobs with real-time
// lifecycle events over websockets.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxhollow/voxqueue-api/internal/config"
	"github.com/voxhollow/voxqueue-api/internal/engine"
	"github.com/voxhollow/voxqueue-api/internal/events"
	"github.com/voxhollow/voxqueue-api/internal/platform/logger"
	"github.com/voxhollow/voxqueue-api/internal/platform/redisdb"
	"github.com/voxhollow/voxqueue-api/internal/store"
	"github.com/voxhollow/voxqueue-api/internal/task"
)

// shutdownTimeout bounds how long the HTTP server may take to drain
// in-flight requests during shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := redisdb.New(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}()

	st := store.NewRedisStore(client)
	broadcaster := events.NewBroadcaster(log)

	transcriber := engine.NewHTTPTranscriber(cfg.Engine.TranscriberURL, log)
	analyzer := engine.NewLLMRiskAnalyzer(
		cfg.Engine.LLMBaseURL,
		cfg.Engine.LLMModel,
		cfg.Engine.LLMAPIKey,
		log,
	)

	var notifier engine.Notifier = engine.NopNotifier{}
	if cfg.Notify.WebhookURL != "" {
		notifier = engine.NewWebhookNotifier(cfg.Notify.WebhookURL, log)
	}

	queue, err := task.New(ctx, st, broadcaster, transcriber, analyzer, notifier,
		queueConfig(cfg.Queue), log)
	if err != nil {
		return err
	}

	queue.Start()
	defer queue.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(queue, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown did not finish cleanly", "error", err)
	}

	return nil
}

// queueConfig fills queue defaults for any interval left unset.
func queueConfig(cfg config.Queue) task.Config {
	out := task.DefaultConfig()
	if cfg.IdleInterval > 0 {
		out.IdleInterval = cfg.IdleInterval
	}
	if cfg.ErrorBackoff > 0 {
		out.ErrorBackoff = cfg.ErrorBackoff
	}
	if cfg.ReapInterval > 0 {
		out.ReapInterval = cfg.ReapInterval
	}
	if cfg.StaleAfter > 0 {
		out.StaleAfter = cfg.StaleAfter
	}
	if cfg.ProgressInterval > 0 {
		out.ProgressInterval = cfg.ProgressInterval
	}
	if cfg.BaseTimeout > 0 {
		out.BaseTimeout = cfg.BaseTimeout
	}
	if cfg.MaxTimeout > 0 {
		out.MaxTimeout = cfg.MaxTimeout
	}
	return out
}
