package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"effectlab/internal/effects"
	"effectlab/internal/http/handlers"
	"effectlab/internal/http/httpapi"
	"effectlab/internal/infra"
	"effectlab/internal/jobs"
	"effectlab/internal/providers/genai"
	"effectlab/internal/store"
	"effectlab/internal/transform"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	imageStore, err := store.New(storagePath, cfg.BlobTTL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	registry := effects.NewRegistry()

	geminiClient := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: cfg.GenerateTimeout},
		Logger:     &logger,
	})
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Str("model", geminiClient.Model()).Msg("gemini api key missing, all jobs will use the deterministic fallback")
	}

	executor := transform.NewExecutor(imageStore, registry, geminiClient, cfg.GenerateTimeout, cfg.FallbackEnabled, logger)
	manager := jobs.NewManager(imageStore, registry, executor, logger)

	app := handlers.NewApp(imageStore, registry, manager, logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	if cfg.BlobTTL > 0 {
		go imageStore.StartSweeper(ctx, cfg.SweepInterval)
	}

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
