// Command advisor-tui is a terminal front end over the same query service as
// the web advisor.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/config"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/frontend/tui"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/provider"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/rag"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/semantic"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/fn"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	logPath := flag.String("log", "", "write logs to this file (default: discard)")
	flag.Parse()

	logger, closeLog, err := openLog(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "advisor-tui:", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(*configPath, *envFile, logger); err != nil {
		fmt.Fprintln(os.Stderr, "advisor-tui:", err)
		closeLog()
		os.Exit(1)
	}
}

// openLog keeps slog output off the terminal the UI is drawing on.
func openLog(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }, nil
}

func run(configPath, envFile string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFiles(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

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

	if err := semantic.RequireCollection(ctx, store, fn.ExponentialRetry(3, 500*time.Millisecond, 4*time.Second)); err != nil {
		return fmt.Errorf("collection %q: %w", store.Collection(), err)
	}

	svc := rag.New(embed, store, chat, rag.Options{
		TopK:             cfg.Query.TopK,
		SearchTimeout:    cfg.Query.SearchTimeout,
		GenerateTimeout:  cfg.Query.GenerateTimeout,
		MaxContextTokens: cfg.Query.MaxContextTokens,
		Model:            chat.ChatModel(),
	}, logger, rag.WithBreaker(resilience.NewBreaker(resilience.BreakerOpts{
		FailThreshold: cfg.Query.BreakerThreshold,
		Cooldown:      cfg.Query.BreakerCooldown,
	})))

	_, err = tea.NewProgram(tui.New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
