// Package ingest embeds normalized records and upserts them into the vector
// index in fixed-size batches. A batch whose upsert keeps failing is
// abandoned after a bounded number of attempts and its rows are handed to a
// dead-letter sink; the run carries on with the next batch.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/fn"
)

// Failure stages recorded on dead-lettered rows.
const (
	StageEmbed  = "embed"
	StageUpsert = "upsert"
)

// DLQSubject is the default NATS subject for dead-letter notifications.
const DLQSubject = "advisor.upsert.dlq"

const deadLetterTimeout = 10 * time.Second

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the write side of the vector index.
type Store interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, entries []domain.StoredEntry) error
}

// Options configures a Pipeline.
type Options struct {
	BatchSize     int
	MaxAttempts   int
	RetryWait     time.Duration
	UpsertTimeout time.Duration
	Workers       int
	Dimension     int
}

// DefaultOptions returns 25-row batches, 3 attempts 2s apart and one worker.
func DefaultOptions() Options {
	return Options{
		BatchSize:     25,
		MaxAttempts:   3,
		RetryWait:     2 * time.Second,
		UpsertTimeout: 30 * time.Second,
		Workers:       1,
		Dimension:     domain.EmbeddingDimension,
	}
}

// Progress is reported after every batch that was upserted.
type Progress struct {
	Batch    int // 1-based
	Batches  int
	Rows     int // rows written by this batch
	Upserted int // rows written so far in the run
}

// Report summarises a run.
type Report struct {
	RunID     string
	Rows      int
	Batches   int
	Completed int // batches upserted
	Abandoned int // batches that wrote nothing: upsert gave up after MaxAttempts or no row embedded
	Skipped   int // batches never started because the context ended
	Upserted  int // rows written
	Failed    []FailedRow
}

// Pipeline runs the batched upsert.
type Pipeline struct {
	embed      Embedder
	store      Store
	deadLetter DeadLetterSink
	opts       Options
	logger     *slog.Logger
	onProgress func(Progress)
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithDeadLetters sends failed rows to sink.
func WithDeadLetters(sink DeadLetterSink) Option {
	return func(p *Pipeline) { p.deadLetter = sink }
}

// WithProgress registers a callback invoked after each completed batch.
// Calls are serialized.
func WithProgress(f func(Progress)) Option {
	return func(p *Pipeline) { p.onProgress = f }
}

// New creates a Pipeline. Zero option fields take their defaults.
func New(embed Embedder, store Store, opts Options, logger *slog.Logger, extra ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = def.RetryWait
	}
	if opts.UpsertTimeout <= 0 {
		opts.UpsertTimeout = def.UpsertTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Dimension <= 0 {
		opts.Dimension = def.Dimension
	}
	p := &Pipeline{embed: embed, store: store, opts: opts, logger: logger}
	for _, o := range extra {
		o(p)
	}
	return p
}

type batch struct {
	n    int // 1-based
	rows []domain.Record
}

type outcome struct {
	upserted  []string
	failed    []FailedRow
	abandoned bool
	skipped   bool
}

// Run processes records in batches. It only returns an error when the
// collection cannot be prepared or ctx ends; per-row and per-batch failures
// are reported in the Report and sent to the dead-letter sink.
func (p *Pipeline) Run(ctx context.Context, records []domain.Record) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Rows: len(records)}
	log := p.logger.With("run_id", rep.RunID)

	if err := p.store.EnsureCollection(ctx, p.opts.Dimension); err != nil {
		return rep, fmt.Errorf("ingest: ensure collection: %w", err)
	}

	chunks := fn.Chunk(records, p.opts.BatchSize)
	batches := make([]batch, len(chunks))
	for i, c := range chunks {
		batches[i] = batch{n: i + 1, rows: c}
	}
	rep.Batches = len(batches)
	log.Info("upsert started", "rows", rep.Rows, "batches", rep.Batches, "workers", p.opts.Workers)

	var mu sync.Mutex
	written := 0
	report := func(b batch, o outcome) {
		if o.skipped || o.abandoned || len(o.upserted) == 0 {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		written += len(o.upserted)
		log.Info("batch upserted", "batch", b.n, "batches", rep.Batches, "rows", len(o.upserted))
		if p.onProgress != nil {
			p.onProgress(Progress{Batch: b.n, Batches: rep.Batches, Rows: len(o.upserted), Upserted: written})
		}
	}
	run := func(b batch) outcome {
		o := p.processBatch(ctx, b, log)
		report(b, o)
		return o
	}

	var outcomes []outcome
	if p.opts.Workers <= 1 {
		outcomes = make([]outcome, 0, len(batches))
		for _, b := range batches {
			outcomes = append(outcomes, run(b))
		}
	} else {
		outcomes = fn.ParMap(batches, p.opts.Workers, run)
	}

	var resolved []string
	for _, o := range outcomes {
		switch {
		case o.skipped:
			rep.Skipped++
		case o.abandoned:
			rep.Abandoned++
		default:
			rep.Completed++
		}
		rep.Upserted += len(o.upserted)
		rep.Failed = append(rep.Failed, o.failed...)
		resolved = append(resolved, o.upserted...)
	}

	p.settleDeadLetters(ctx, log, rep.RunID, rep.Failed, resolved)

	log.Info("upsert finished",
		"rows", rep.Rows,
		"upserted", rep.Upserted,
		"completed_batches", rep.Completed,
		"abandoned_batches", rep.Abandoned,
		"skipped_batches", rep.Skipped,
		"failed_rows", len(rep.Failed),
	)
	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("ingest: run interrupted: %w", err)
	}
	return rep, nil
}

// embedded is the output of the embed stage for one batch.
type embedded struct {
	entries []domain.StoredEntry
	failed  []FailedRow
}

// embedStage embeds each row on its own so one bad row does not sink its
// batch. It only fails when ctx ends.
func (p *Pipeline) embedStage() fn.Stage[[]domain.Record, embedded] {
	return fn.TracedStage("ingest.embed", fn.Stage[[]domain.Record, embedded](func(ctx context.Context, rows []domain.Record) fn.Result[embedded] {
		var out embedded
		for _, r := range rows {
			if err := ctx.Err(); err != nil {
				return fn.Err[embedded](err)
			}
			vec, err := p.embed.Embed(ctx, r.Context)
			if err == nil {
				err = domain.ValidateVector(vec, p.opts.Dimension)
			}
			if err != nil {
				if ctx.Err() != nil {
					return fn.Err[embedded](ctx.Err())
				}
				out.failed = append(out.failed, FailedRow{RowID: r.ID(), Index: r.Index, Stage: StageEmbed, Reason: err.Error()})
				continue
			}
			out.entries = append(out.entries, domain.NewStoredEntry(r, vec))
		}
		return fn.Ok(out)
	}))
}

// upsertStage writes entries, retrying with a fixed wait between attempts.
func (p *Pipeline) upsertStage(log *slog.Logger) fn.Stage[[]domain.StoredEntry, int] {
	retry := fn.FixedRetry(p.opts.MaxAttempts, p.opts.RetryWait)
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("upsert attempt failed", "attempt", attempt, "max_attempts", p.opts.MaxAttempts, "retry_in", wait, "err", err)
	}
	return fn.TracedStage("ingest.upsert", fn.Stage[[]domain.StoredEntry, int](func(ctx context.Context, entries []domain.StoredEntry) fn.Result[int] {
		err := fn.RetryErr(ctx, retry, func(ctx context.Context) error {
			actx, cancel := context.WithTimeout(ctx, p.opts.UpsertTimeout)
			defer cancel()
			return p.store.Upsert(actx, entries)
		})
		if err != nil {
			return fn.Err[int](err)
		}
		return fn.Ok(len(entries))
	}))
}

// processBatch embeds every row of b and upserts the rows that embedded.
func (p *Pipeline) processBatch(ctx context.Context, b batch, log *slog.Logger) outcome {
	if ctx.Err() != nil {
		return outcome{skipped: true}
	}
	log = log.With("batch", b.n)

	emb, err := p.embedStage()(ctx, b.rows).Unwrap()
	if err != nil {
		return outcome{skipped: true}
	}
	o := outcome{failed: emb.failed}
	for _, f := range emb.failed {
		log.Warn("embedding failed", "row_id", f.RowID, "err", f.Reason)
	}
	if len(emb.entries) == 0 {
		if len(emb.failed) > 0 {
			log.Error("batch abandoned", "reason", "no row embedded", "rows", len(emb.failed))
			o.abandoned = true
		}
		return o
	}

	if err := p.upsertStage(log)(ctx, emb.entries).Error(); err != nil {
		if ctx.Err() != nil {
			// Interrupted mid-batch. The rows are unfinished rather than dead.
			o.skipped = true
			return o
		}
		reason := fmt.Errorf("%w after %d attempts: %v", domain.ErrBatchAbandoned, p.opts.MaxAttempts, err).Error()
		log.Error("batch abandoned", "attempts", p.opts.MaxAttempts, "rows", len(emb.entries), "err", err)
		o.abandoned = true
		for _, e := range emb.entries {
			idx, _ := domain.ParseRowID(e.ID)
			o.failed = append(o.failed, FailedRow{RowID: e.ID, Index: idx, Stage: StageUpsert, Reason: reason})
		}
		return o
	}
	for _, e := range emb.entries {
		o.upserted = append(o.upserted, e.ID)
	}
	return o
}

// settleDeadLetters records failures and clears rows that have now been
// written. It runs detached from ctx so an interrupted run still leaves an
// accurate ledger.
func (p *Pipeline) settleDeadLetters(ctx context.Context, log *slog.Logger, runID string, failed []FailedRow, resolved []string) {
	if p.deadLetter == nil {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deadLetterTimeout)
	defer cancel()
	if len(resolved) > 0 {
		if err := p.deadLetter.Resolve(dctx, resolved); err != nil {
			log.Error("resolve dead letters", "rows", len(resolved), "err", err)
		}
	}
	if len(failed) > 0 {
		if err := p.deadLetter.Record(dctx, runID, failed); err != nil {
			log.Error("record dead letters", "rows", len(failed), "err", err)
		}
	}
}
