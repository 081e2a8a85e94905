// Package main implements the faultscope API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/faultscope/faultscope/engine/analyze"
	"github.com/faultscope/faultscope/engine/canvas"
	"github.com/faultscope/faultscope/engine/faultcode"
	"github.com/faultscope/faultscope/engine/generative"
	"github.com/faultscope/faultscope/engine/iplog"
	"github.com/faultscope/faultscope/engine/scraper"
	"github.com/faultscope/faultscope/pkg/metrics"
	"github.com/faultscope/faultscope/pkg/natsutil"
	"github.com/faultscope/faultscope/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Host       string
	Port       string
	CORSOrigin string

	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAIMaxTokens   int
	OpenAITemperature float64

	OllamaURL   string
	OllamaModel string

	AdminUser string
	AdminPass string

	TablePath       string
	ProcessingDelay time.Duration
	SearchURL       string

	CanvasSize    int
	PixelCooldown time.Duration
	MaxIPLogs     int

	NATSURL string
}

func loadConfig() Config {
	return Config{
		Host:              envOr("HOST", "0.0.0.0"),
		Port:              envOr("PORT", "10000"),
		CORSOrigin:        envOr("CORS_ORIGIN", "*"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       envOr("OPENAI_MODEL", generative.DefaultModel),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIMaxTokens:   envInt("OPENAI_MAX_TOKENS", 1000),
		OpenAITemperature: envFloat("OPENAI_TEMPERATURE", 0.7),
		OllamaURL:         os.Getenv("OLLAMA_URL"),
		OllamaModel:       envOr("OLLAMA_MODEL", ollama.DefaultModel),
		AdminUser:         envOr("ADMIN_USERNAME", "Admin"),
		AdminPass:         envOr("ADMIN_PASSWORD", "Root64"),
		TablePath:         os.Getenv("FAULTCODE_TABLE"),
		ProcessingDelay:   envDuration("PROCESSING_DELAY", 2*time.Second),
		SearchURL:         os.Getenv("SEARCH_URL"),
		CanvasSize:        envInt("PIXEL_CANVAS_SIZE", 100),
		PixelCooldown:     envDuration("PIXEL_COOLDOWN", 0),
		MaxIPLogs:         envInt("MAX_IP_LOGS", 1000),
		NATSURL:           os.Getenv("NATS_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

// envDuration accepts Go durations ("1500ms") or whole seconds ("3").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	table, err := faultcode.Load(cfg.TablePath)
	if err != nil {
		return fmt.Errorf("load fault code table: %w", err)
	}
	logger.Info("fault code table loaded", "codes", table.Len(), "path", cfg.TablePath)

	// --- Events (optional) ---
	var events *natsutil.Publisher
	if cfg.NATSURL != "" {
		nc, err := natsutil.Connect(cfg.NATSURL, "faultscope-api")
		if err != nil {
			logger.Warn("nats unavailable, events disabled", "url", cfg.NATSURL, "err", err)
		} else {
			defer nc.Drain()
			events = natsutil.NewPublisher(nc, logger)
		}
	}
	if events == nil {
		events = natsutil.NewPublisher(nil, logger)
	}

	m := metrics.New()

	resolver := scraper.New(scraper.Config{
		Search:   scraper.SearchConfig{URL: cfg.SearchURL},
		Observer: m,
		Logger:   logger,
	})
	svc := newAnalyzer(cfg, table, resolver, m, events, logger)

	srv := &server{
		cfg:      cfg,
		analyzer: svc,
		canvas:   canvas.NewStore(cfg.CanvasSize, cfg.PixelCooldown),
		ipLog:    iplog.New(cfg.MaxIPLogs),
		metrics:  m,
		events:   events,
		log:      logger,
	}

	httpSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg, resolver.Budget()),
		IdleTimeout:  120 * time.Second,
	}

	// --- Serve until ctx is cancelled ---
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server starting", "addr", httpSrv.Addr, "generative", cfg.OpenAIKey != "", "events", events.Enabled())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutCtx)
	})
	return g.Wait()
}

const (
	openAITimeout = 30 * time.Second
	ollamaTimeout = 60 * time.Second
	// writeSlack covers formatting and the simulated answer after the last
	// upstream stage gives up.
	writeSlack = 10 * time.Second
)

// writeTimeout bounds a response by the worst-case analyze chain so the
// simulated answer is still written when every upstream stage times out.
func writeTimeout(cfg Config, scrapeBudget time.Duration) time.Duration {
	var gen time.Duration
	switch {
	case cfg.OpenAIKey != "":
		gen = openAITimeout
	case cfg.OllamaURL != "":
		gen = ollamaTimeout
	}
	return cfg.ProcessingDelay + scrapeBudget + gen + writeSlack
}

func newAnalyzer(cfg Config, table *faultcode.Table, resolver *scraper.Resolver, m *metrics.Metrics, events *natsutil.Publisher, logger *slog.Logger) *analyze.Service {
	return analyze.NewService(analyze.Config{
		Table:    table,
		Scraper:  resolver,
		Provider: newProvider(cfg, logger),
		Delay:    cfg.ProcessingDelay,
		Emitter:  events,
		Observer: m,
		Logger:   logger,
	})
}

// newProvider picks the generative backend: OpenAI when a key is set, else a
// local Ollama server when its URL is set, else none.
func newProvider(cfg Config, logger *slog.Logger) generative.Provider {
	switch {
	case cfg.OpenAIKey != "":
		logger.Info("generative provider", "backend", "openai", "model", cfg.OpenAIModel)
		return generative.NewOpenAIProvider(
			generative.WithAPIKey(cfg.OpenAIKey),
			generative.WithModel(cfg.OpenAIModel),
			generative.WithBaseURL(cfg.OpenAIBaseURL),
			generative.WithMaxTokens(cfg.OpenAIMaxTokens),
			generative.WithTemperature(cfg.OpenAITemperature),
			generative.WithTimeout(openAITimeout),
		)
	case cfg.OllamaURL != "":
		logger.Info("generative provider", "backend", "ollama", "model", cfg.OllamaModel)
		return ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel, ollamaTimeout)
	default:
		logger.Info("generative provider disabled")
		return nil
	}
}
