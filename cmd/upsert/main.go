// Command upsert embeds the normalized Context column and upserts each row,
// with its Response as metadata, into the Qdrant collection. Rows the run
// gives up on land in a SQLite dead-letter ledger (and on NATS when
// configured); -retry-failed re-runs only those rows, and -collect gathers
// dead letters published by other hosts into this host's ledger. -dry-run
// embeds into an in-memory index and leaves Qdrant and the ledger alone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/config"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/dataset"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/ingest"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/provider"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/semantic"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/natsutil"
)

type options struct {
	configPath  string
	envFile     string
	input       string
	workers     int
	retryFailed bool
	collect     bool
	dryRun      bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("upsert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "optional YAML config file")
	fs.StringVar(&o.envFile, "env", ".env", "dotenv file loaded before the environment is read")
	fs.StringVar(&o.input, "in", "", "normalized input file (default from config)")
	fs.IntVar(&o.workers, "workers", 0, "batches in flight (default from config)")
	fs.BoolVar(&o.retryFailed, "retry-failed", false, "only upsert rows recorded in the dead-letter ledger")
	fs.BoolVar(&o.collect, "collect", false, "record dead letters published on NATS into the ledger until interrupted")
	fs.BoolVar(&o.dryRun, "dry-run", false, "embed rows into an in-memory index instead of Qdrant")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.workers < 0 {
		return o, errors.New("-workers must be >= 0")
	}
	if o.collect && o.retryFailed {
		return o, errors.New("-collect and -retry-failed are exclusive")
	}
	if o.dryRun && (o.collect || o.retryFailed) {
		return o, errors.New("-dry-run cannot be combined with -collect or -retry-failed")
	}
	return o, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	if err := run(opts, logger); err != nil {
		logger.Error("upsert failed", "err", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFiles(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.input != "" {
		cfg.Upsert.Input = opts.input
	}
	if opts.workers > 0 {
		cfg.Upsert.Workers = opts.workers
	}

	if opts.collect {
		return collect(ctx, cfg, logger)
	}

	embedder, err := provider.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	if opts.dryRun {
		_, err := dryRun(ctx, cfg, embedder, logger)
		return err
	}

	store, err := semantic.New(cfg.VectorStore())
	if err != nil {
		return err
	}
	defer store.Close()

	ledger, err := ingest.OpenSQLite(cfg.Upsert.DeadLetterDB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	sinks := ingest.MultiSink{ledger}
	if cfg.NATS.URL != "" {
		nc, err := natsutil.Connect(cfg.NATS.URL, "advisor-upsert", logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		sinks = append(sinks, ingest.NewNATSDeadLetters(nc, cfg.Upsert.DeadLetterSubject))
	}

	records, err := selectRecords(ctx, cfg.Upsert.Input, opts.retryFailed, ledger, logger)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		logger.Info("nothing to upsert", "input", cfg.Upsert.Input, "retry_failed", opts.retryFailed)
		return nil
	}

	pipeline := ingest.New(embedder, store, pipelineOptions(cfg), logger, ingest.WithDeadLetters(sinks))
	rep, err := pipeline.Run(ctx, records)
	if err != nil {
		return err
	}
	if rep.Abandoned > 0 || len(rep.Failed) > 0 {
		logger.Warn("some rows were not upserted; rerun with -retry-failed",
			"failed_rows", len(rep.Failed), "ledger", cfg.Upsert.DeadLetterDB)
	}
	logger.Info("data upserted to collection", "collection", store.Collection(), "upserted", rep.Upserted, "rows", rep.Rows)
	return nil
}

// dryRun runs the pipeline against a MemoryIndex so embedding problems show
// up without touching the collection or the ledger.
func dryRun(ctx context.Context, cfg *config.Config, embedder ingest.Embedder, logger *slog.Logger) (ingest.Report, error) {
	records, err := dataset.ReadRecords(cfg.Upsert.Input)
	if err != nil {
		return ingest.Report{}, err
	}
	idx := semantic.NewMemoryIndex()
	rep, err := ingest.New(embedder, idx, pipelineOptions(cfg), logger).Run(ctx, records)
	if err != nil {
		return rep, err
	}
	n, _ := idx.Count(ctx)
	logger.Info("dry run finished", "rows", rep.Rows, "embedded", n, "failed_rows", len(rep.Failed))
	return rep, nil
}

// collect runs until ctx ends, writing every dead-letter event from NATS into
// the local ledger.
func collect(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.NATS.URL == "" {
		return errors.New("-collect needs NATS_URL")
	}
	ledger, err := ingest.OpenSQLite(cfg.Upsert.DeadLetterDB)
	if err != nil {
		return err
	}
	defer ledger.Close()

	nc, err := natsutil.Connect(cfg.NATS.URL, "advisor-dlq-collector", logger)
	if err != nil {
		return err
	}
	if _, err := ingest.CollectDeadLetters(nc, cfg.Upsert.DeadLetterSubject, ledger, logger); err != nil {
		nc.Close()
		return fmt.Errorf("subscribe %s: %w", cfg.Upsert.DeadLetterSubject, err)
	}
	logger.Info("collecting dead letters", "subject", cfg.Upsert.DeadLetterSubject, "ledger", cfg.Upsert.DeadLetterDB)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	// Drain returns at once; handlers still writing to the ledger finish
	// before the connection reports closed.
	if err := nc.Drain(); err != nil {
		return err
	}
	for deadline := time.Now().Add(5 * time.Second); !nc.IsClosed() && time.Now().Before(deadline); {
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

func pipelineOptions(cfg *config.Config) ingest.Options {
	return ingest.Options{
		BatchSize:     cfg.Upsert.BatchSize,
		MaxAttempts:   cfg.Upsert.MaxAttempts,
		RetryWait:     cfg.Upsert.RetryWait,
		UpsertTimeout: cfg.Upsert.UpsertTimeout,
		Workers:       cfg.Upsert.Workers,
		Dimension:     cfg.OpenAI.Dimension,
	}
}

// pendingLister is the part of the ledger selectRecords needs.
type pendingLister interface {
	Pending(ctx context.Context) ([]ingest.DeadLetter, error)
}

// selectRecords reads the input and, when retrying, narrows it to the rows
// still in the ledger.
func selectRecords(ctx context.Context, input string, retryFailed bool, ledger pendingLister, logger *slog.Logger) ([]domain.Record, error) {
	records, err := dataset.ReadRecords(input)
	if err != nil {
		return nil, err
	}
	if !retryFailed {
		return records, nil
	}
	pending, err := ledger.Pending(ctx)
	if err != nil {
		return nil, err
	}
	selected := ingest.SelectPending(records, pending)
	if len(selected) < len(pending) {
		logger.Warn("ledger rows missing from input", "pending", len(pending), "found", len(selected))
	}
	logger.Info("retrying dead-lettered rows", "rows", len(selected))
	return selected, nil
}

