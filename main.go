package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mailsort/server/internal/classifier/catalog"
	"github.com/mailsort/server/internal/classifier/invoke"
	"github.com/mailsort/server/internal/classifier/model"
	"github.com/mailsort/server/internal/classifier/observers"
	"github.com/mailsort/server/internal/classifier/session"
	"github.com/mailsort/server/internal/classifier/state"
	"github.com/mailsort/server/internal/core"
	"github.com/mailsort/server/internal/pdftext"
	"github.com/mailsort/server/internal/server"
	logx "github.com/mailsort/server/pkg/logger"
	pkgredis "github.com/mailsort/server/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

// AppConfig defines all configurable parameters of the service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	HTTP  server.Config
	Redis pkgredis.Config

	// LLM provider
	Provider model.ProviderConfig
	Slot     model.SlotConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	// Load structured config from env
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	env := core.ParseEnvironment(cfg.Env)
	logx.Init(logx.LoggerOpts{Environment: env})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slot, closeSlot := newSlot(ctx, cfg)
	defer closeSlot()

	callbacks := observers.NewAllCallbacks()
	gen, err := invoke.NewGeminiGenerator(ctx, invoke.GeminiConfig{
		Provider:   cfg.Provider,
		Callbacks:  callbacks,
		HTTPClient: &http.Client{Timeout: model.AttemptTimeout + 5*time.Second},
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Gemini generator")
	}

	resolver := catalog.NewResolver(catalog.NewGenaiLister(gen.Client(model.APIVersionPrimary)), catalog.DefaultPolicy())
	engine := invoke.NewEngine(gen)
	classifier := session.New(slot, resolver, engine, session.WithCallbacks(callbacks))

	app := server.New(cfg.HTTP, server.Deps{
		Environment: env,
		Classifier:  classifier,
		ExtractText: pdftext.Extract,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	logx.Info().Str("env", env.String()).Str("port", cfg.HTTP.Port).Msg("mailsort listening")
	if err := app.Listen(":" + cfg.HTTP.Port); err != nil {
		logx.Fatal().Err(err).Msg("Server stopped")
	}
}

// newSlot prefers the shared Redis slot and falls back to process memory.
func newSlot(ctx context.Context, cfg AppConfig) (model.ModelSlot, func()) {
	if !cfg.Redis.Enabled() {
		return state.NewMemorySlot(cfg.Slot.TTL), func() {}
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("Redis unavailable, keeping the active model in memory")
		return state.NewMemorySlot(cfg.Slot.TTL), func() {}
	}
	logx.Info().Str("key", cfg.Slot.Key).Msg("Connected to Redis, sharing the active model")
	return state.NewRedisSlot(rdb, cfg.Slot.Key, cfg.Slot.TTL), func() { _ = rdb.Close() }
}
