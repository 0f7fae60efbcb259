package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/defi-rag-assistant/server/internal/agent/graph"
	"github.com/defi-rag-assistant/server/internal/agent/graph/conversations"
	"github.com/defi-rag-assistant/server/internal/agent/model"
	"github.com/defi-rag-assistant/server/internal/agent/repo"
	"github.com/defi-rag-assistant/server/internal/api"
	"github.com/defi-rag-assistant/server/internal/core"
	"github.com/defi-rag-assistant/server/internal/marketdata/defillama"
	pkgredis "github.com/defi-rag-assistant/server/pkg/redis"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// AppConfig defines all configurable parameters of the server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP
	Port            string        `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	CORSOrigins     []string      `envconfig:"HTTP_CORS_ORIGINS" default:"*"`

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Extractor model.ExtractorModelConfig
	Answer    model.AnswerModelConfig
	Memory    model.MemoryConfig

	// Infrastructure
	DefiLlama defillama.Config
	Redis     pkgredis.Config `envconfig:"REDIS"`
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

	if err := run(cfg); err != nil {
		logx.Fatal().Err(err).Msg("Server exited")
	}
}

func run(cfg AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newMemoryStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore.Close(); err != nil {
			logx.Warn().Err(err).Msg("Failed to close memory store")
		}
	}()

	memory := conversations.NewMemoryManager(store, cfg.Answer.HistoryMaxTurns)

	runner, err := graph.BuildResponseGraph(ctx, graph.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		ExtractorModel: cfg.Extractor,
		AnswerModel:    cfg.Answer,
		MarketData:     defillama.NewClient(cfg.DefiLlama),
		Memory:         memory,
	})
	if err != nil {
		return fmt.Errorf("build graph: %w", err)
	}

	router := api.NewRouter(api.RouterConfig{CORSOrigins: cfg.CORSOrigins}, api.NewChatHandler(runner, memory))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Environment.String()).
			Str("memory_backend", cfg.Memory.Backend).
			Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	logx.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logx.Info().Msg("Server stopped")
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newMemoryStore selects the session memory backend. REDIS_URL is only
// required when the redis backend is chosen.
func newMemoryStore(ctx context.Context, cfg AppConfig) (model.MemoryStore, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch strings.ToLower(strings.TrimSpace(cfg.Memory.Backend)) {
	case model.MemoryBackendRedis:
		if strings.TrimSpace(cfg.Redis.URL) == "" {
			return nil, nil, fmt.Errorf("REDIS_URL is required when MEMORY_BACKEND=%s", model.MemoryBackendRedis)
		}
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("initialise redis client: %w", err)
		}
		logx.Info().Msg("Connected to Redis successfully")
		return repo.NewRedisMemoryStore(rdb, cfg.Memory.TTL), rdb, nil

	case model.MemoryBackendSQLite:
		store, err := repo.NewSQLiteMemoryStore(ctx, cfg.Memory.SQLitePath, cfg.Memory.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite memory: %w", err)
		}
		return store, store, nil

	case model.MemoryBackendInMemory:
		return repo.NewInMemoryStore(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown MEMORY_BACKEND %q", cfg.Memory.Backend)
	}
}
