package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/natsutil"
)

func TestSQLiteDeadLetters_RecordTwiceBumpsAttempts(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "dead_letters.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	rows := []FailedRow{
		{RowID: "row-7", Index: 7, Stage: StageUpsert, Reason: "timeout"},
		{RowID: "row-2", Index: 2, Stage: StageEmbed, Reason: "rate limited"},
	}
	if err := s.Record(ctx, "run-1", rows); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, "run-2", rows[:1]); err != nil {
		t.Fatal(err)
	}

	got, err := s.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("pending = %d, want 2", len(got))
	}
	if got[0].RowID != "row-2" || got[0].Attempts != 1 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].RowID != "row-7" || got[1].Attempts != 2 || got[1].RunID != "run-2" {
		t.Fatalf("second = %+v", got[1])
	}
	if got[1].FailedAt.IsZero() {
		t.Fatal("failed_at not parsed")
	}

	if err := s.Resolve(ctx, []string{"row-7", "row-99"}); err != nil {
		t.Fatal(err)
	}
	if got, _ = s.Pending(ctx); len(got) != 1 || got[0].RowID != "row-2" {
		t.Fatalf("after resolve = %+v", got)
	}
}

func TestNATSDeadLetters_Publishes(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	got := make(chan DeadLetterEvent, 2)
	sub, err := natsutil.Subscribe(nc, DLQSubject, func(_ context.Context, ev DeadLetterEvent) { got <- ev })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	sink := NewNATSDeadLetters(nc, "")
	if err := sink.Record(context.Background(), "run-9", []FailedRow{{RowID: "row-1", Index: 1, Stage: StageEmbed, Reason: "boom"}}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-got:
		if ev.RunID != "run-9" || ev.RowID != "row-1" || ev.Stage != StageEmbed {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dead-letter event received")
	}
	if err := sink.Resolve(context.Background(), []string{"row-1"}); err != nil {
		t.Fatal(err)
	}
}

func TestCollectDeadLetters(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	ledger, err := OpenSQLite(filepath.Join(t.TempDir(), "central.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	sub, err := CollectDeadLetters(nc, "", ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	rows := []FailedRow{
		{RowID: "row-4", Index: 4, Stage: StageUpsert, Reason: "batch abandoned"},
		{RowID: "row-5", Index: 5, Stage: StageUpsert, Reason: "batch abandoned"},
	}
	if err := NewNATSDeadLetters(nc, "").Record(context.Background(), "run-remote", rows); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := ledger.Pending(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 2 {
			if got[0].RowID != "row-4" || got[0].RunID != "run-remote" {
				t.Fatalf("pending = %+v", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("collected %d of 2 dead letters", len(got))
		}
		time.Sleep(20 * time.Millisecond)
	}
}

type errSink struct{ err error }

func (e errSink) Record(context.Context, string, []FailedRow) error { return e.err }
func (e errSink) Resolve(context.Context, []string) error           { return e.err }

func TestMultiSink_JoinsErrors(t *testing.T) {
	a, b := errors.New("a"), errors.New("b")
	m := MultiSink{errSink{a}, &memSink{}, errSink{b}}
	err := m.Record(context.Background(), "run", []FailedRow{{RowID: "row-0"}})
	if !errors.Is(err, a) || !errors.Is(err, b) {
		t.Fatalf("err = %v", err)
	}
	if err := (MultiSink{&memSink{}}).Resolve(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}
