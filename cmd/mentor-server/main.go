// Command mentor-server runs the voicecode mentor backend: context sync,
// text chat and the voice relay.
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

	"github.com/voicecode-ai/mentor/internal/dotenv"
	"github.com/voicecode-ai/mentor/pkg/server"
	"github.com/voicecode-ai/mentor/pkg/server/config"
	"github.com/voicecode-ai/mentor/pkg/server/handlers"
	"github.com/voicecode-ai/mentor/pkg/server/mentor"
	"github.com/voicecode-ai/mentor/pkg/server/metrics"
	"github.com/voicecode-ai/mentor/pkg/server/session"
)

const cleanupInterval = time.Hour

func buildLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(cfg.SessionMaxHistory), nil
	}
	store, err := session.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.SessionMaxHistory)
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	logger.Info("using postgres session store")
	return store, nil
}

func buildMentor(ctx context.Context, cfg config.Config, logger *slog.Logger) (handlers.MentorService, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, chat endpoint disabled")
		return nil, nil
	}
	svc, err := mentor.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("mentor service: %w", err)
	}
	logger.Info("chat mentor enabled", "model", cfg.GeminiModel)
	return svc, nil
}

func run(ctx context.Context) error {
	if _, err := dotenv.Load(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	mentorSvc, err := buildMentor(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger, store, mentorSvc, metrics.New())
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Expired sessions are swept in the background.
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.Cleanup(ctx, cfg.SessionTTL)
				if err != nil {
					logger.Warn("session cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
			}
		}
	}()

	logger.Info("starting mentor server", "addr", cfg.Addr)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("mentor server stopped")
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "mentor-server: %v\n", err)
		os.Exit(1)
	}
}
