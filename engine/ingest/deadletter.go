package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/natsutil"
)

// FailedRow is a row that could not be written during a run.
type FailedRow struct {
	RowID  string `json:"row_id"`
	Index  int    `json:"index"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// DeadLetterSink receives rows a run gave up on, and is told when a later run
// writes them after all.
type DeadLetterSink interface {
	Record(ctx context.Context, runID string, rows []FailedRow) error
	Resolve(ctx context.Context, rowIDs []string) error
}

// MultiSink fans out to every sink and joins their errors.
type MultiSink []DeadLetterSink

func (m MultiSink) Record(ctx context.Context, runID string, rows []FailedRow) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Record(ctx, runID, rows))
	}
	return errors.Join(errs...)
}

func (m MultiSink) Resolve(ctx context.Context, rowIDs []string) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Resolve(ctx, rowIDs))
	}
	return errors.Join(errs...)
}

// DeadLetterEvent is published once per failed row.
type DeadLetterEvent struct {
	RunID    string    `json:"run_id"`
	FailedAt time.Time `json:"failed_at"`
	FailedRow
}

// NATSDeadLetters publishes failed rows so operators can alert on them.
type NATSDeadLetters struct {
	nc      *nats.Conn
	subject string
}

// NewNATSDeadLetters publishes on subject, or DLQSubject when empty.
func NewNATSDeadLetters(nc *nats.Conn, subject string) *NATSDeadLetters {
	if subject == "" {
		subject = DLQSubject
	}
	return &NATSDeadLetters{nc: nc, subject: subject}
}

func (n *NATSDeadLetters) Record(ctx context.Context, runID string, rows []FailedRow) error {
	now := time.Now().UTC()
	var errs []error
	for _, r := range rows {
		ev := DeadLetterEvent{RunID: runID, FailedAt: now, FailedRow: r}
		errs = append(errs, natsutil.Publish(ctx, n.nc, n.subject, ev))
	}
	return errors.Join(errs...)
}

// Resolve is a no-op; subscribers only see failures.
func (n *NATSDeadLetters) Resolve(context.Context, []string) error { return nil }

// CollectDeadLetters records every event published on subject into sink, so
// several upsert hosts can share one ledger. Stop it by unsubscribing or
// draining the connection.
func CollectDeadLetters(nc *nats.Conn, subject string, sink DeadLetterSink, logger *slog.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = DLQSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return natsutil.Subscribe(nc, subject, func(ctx context.Context, ev DeadLetterEvent) {
		ctx, cancel := context.WithTimeout(ctx, deadLetterTimeout)
		defer cancel()
		if err := sink.Record(ctx, ev.RunID, []FailedRow{ev.FailedRow}); err != nil {
			logger.Error("dead letter not recorded", "run_id", ev.RunID, "row_id", ev.RowID, "err", err)
			return
		}
		logger.Info("dead letter collected", "run_id", ev.RunID, "row_id", ev.RowID, "stage", ev.Stage)
	})
}
