package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/aip-chat/internal/api"
	"github.com/RichardoC/aip-chat/internal/config"
	"github.com/RichardoC/aip-chat/internal/db"
	"github.com/RichardoC/aip-chat/internal/llm"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) (err error) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database %q: %w", cfg.DBPath, err)
	}
	defer func() { err = multierr.Append(err, database.Close()) }()

	responder, err := newResponder(cfg, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(database, responder, api.NewTokenIssuer(cfg.JWTSecret), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := handler.SeedUsers(ctx, cfg.SeedUsers); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("addr", server.Addr),
			zap.Strings("seed_users", cfg.SeedUsers))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newResponder uses the configured LLM, answering from the canned pool when
// none is configured or it fails.
func newResponder(cfg *config.Config, logger *zap.Logger) (llm.Responder, error) {
	if cfg.LLMBaseURL == "" {
		logger.Info("No LLM configured, using canned replies")
		return llm.Canned{}, nil
	}

	service, err := llm.New(cfg.LLMBaseURL, cfg.LLMToken, cfg.LLMModel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	logger.Info("Using LLM",
		zap.String("base_url", cfg.LLMBaseURL),
		zap.String("model", cfg.LLMModel))
	return llm.Fallback{Primary: service, Logger: logger}, nil
}
