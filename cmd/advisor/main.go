// Command advisor serves the Mental Health Counselor Assistant web front end
// and its JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/config"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/frontend"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/provider"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/rag"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/semantic"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/fn"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/metrics"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/mid"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/resilience"
)

const maxBody = 64 << 10

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "optional YAML config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	if err := config.LoadEnvFiles(*envFile); err != nil {
		logger.Error("load env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Clients ---
	embed, err := provider.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	chat, closeChat, err := provider.NewChat(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChat()
	store, err := semantic.New(cfg.VectorStore())
	if err != nil {
		return err
	}
	defer store.Close()

	// A missing collection means nothing was ever upserted; refuse to start.
	if err := semantic.RequireCollection(ctx, store, startupRetry(logger)); err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			return fmt.Errorf("collection %q not found; run the upsert pipeline first: %w", store.Collection(), err)
		}
		return err
	}
	logger.Info("connected to Qdrant", "collection", store.Collection())

	// --- Query service ---
	reg := metrics.New()
	svc := newService(cfg, embed, chat, store, reg, logger)

	var advisor rag.Querier = svc
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		advisor = rag.NewCached(svc, rag.NewRedisAnswerCache(rdb, cfg.Redis.TTL), logger)
		logger.Info("answer cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	// --- HTTP ---
	h, err := frontend.NewHandler(&meteredAdvisor{next: advisor, reg: reg}, healthCheck(store), logger)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("GET /metrics", reg.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newHandler(mux, cfg.Server.CORSOrigin, reg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Query.GenerateTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("advisor server starting", "port", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func startupRetry(logger *slog.Logger) fn.RetryOpts {
	opts := fn.ExponentialRetry(5, 500*time.Millisecond, 8*time.Second)
	opts.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("qdrant not reachable yet", "attempt", attempt, "retry_in", wait, "err", err)
	}
	return opts
}

func newService(cfg *config.Config, embed rag.Embedder, chat provider.Chat, search rag.Searcher, reg *metrics.Registry, logger *slog.Logger) *rag.Service {
	breakerOpen := reg.Gauge("advisor_chat_breaker_open", "1 while the chat-completion breaker rejects calls")
	br := resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.Query.BreakerThreshold,
		Cooldown:      cfg.Query.BreakerCooldown,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn("chat breaker state changed", "from", from.String(), "to", to.String())
			if to == resilience.StateOpen {
				breakerOpen.Set(1)
			} else {
				breakerOpen.Set(0)
			}
		},
	})
	return rag.New(embed, search, chat, rag.Options{
		TopK:             cfg.Query.TopK,
		SearchTimeout:    cfg.Query.SearchTimeout,
		GenerateTimeout:  cfg.Query.GenerateTimeout,
		MaxContextTokens: cfg.Query.MaxContextTokens,
		Model:            chat.ChatModel(),
	}, logger, rag.WithBreaker(br))
}

func newHandler(mux *http.ServeMux, corsOrigin string, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	// Metrics reads the mux pattern off the request, so nothing between it
	// and the mux may replace the *http.Request.
	return mid.Chain(mux,
		mid.OTel("advisor"),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.CORS(corsOrigin),
		mid.MaxBody(maxBody),
	)
}

func healthCheck(ex semantic.Exister) frontend.HealthFunc {
	return func(ctx context.Context) error {
		ok, err := ex.Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrIndexNotFound
		}
		return nil
	}
}

// meteredAdvisor counts queries by outcome and records their latency.
type meteredAdvisor struct {
	next frontend.Advisor
	reg  *metrics.Registry
}

func (m *meteredAdvisor) Query(ctx context.Context, q string) rag.Answer {
	start := time.Now()
	ans := m.next.Query(ctx, q)
	m.reg.Counter("advisor_queries_total", "Queries by outcome", "outcome", string(ans.Outcome)).Inc()
	if ans.Cached {
		m.reg.Counter("advisor_cache_hits_total", "Queries served from the answer cache").Inc()
	}
	m.reg.Histogram("advisor_query_duration_seconds", "End-to-end query latency", nil).ObserveSince(start)
	return ans
}
