package rag

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	data    map[string]string
	ttl     time.Duration
	getErr  error
	setErr  error
	setKeys []string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = string(value.([]byte))
	f.ttl = exp
	f.setKeys = append(f.setKeys, key)
	return redis.NewStatusResult("OK", nil)
}

type countingQuerier struct {
	answer Answer
	calls  int
}

func (c *countingQuerier) Query(_ context.Context, q string) Answer {
	c.calls++
	a := c.answer
	a.Query = q
	return a
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCacheKey(t *testing.T) {
	a := CacheKey("Provide advice for treating Anxiety")
	if a != CacheKey("  provide advice for treating anxiety ") {
		t.Fatal("case and surrounding space should not change the key")
	}
	if a == CacheKey("Provide advice for treating PTSD") {
		t.Fatal("different queries share a key")
	}
}

func TestCachedService_HitAfterAnswer(t *testing.T) {
	rdb := newFakeRedis()
	next := &countingQuerier{answer: Answer{Text: "breathe", Outcome: OutcomeAnswered, Sources: []Source{{ID: "row-1", Response: "breathe"}}}}
	svc := NewCached(next, NewRedisAnswerCache(rdb, time.Hour), quietLogger())

	first := svc.Query(context.Background(), "Provide advice for treating Anxiety")
	if first.Cached || next.calls != 1 {
		t.Fatalf("first = %+v, calls = %d", first, next.calls)
	}
	if rdb.ttl != time.Hour {
		t.Fatalf("ttl = %v", rdb.ttl)
	}

	second := svc.Query(context.Background(), "provide advice for treating anxiety")
	if !second.Cached || next.calls != 1 {
		t.Fatalf("second = %+v, calls = %d", second, next.calls)
	}
	if second.Text != "breathe" || len(second.Sources) != 1 || second.Query != "provide advice for treating anxiety" {
		t.Fatalf("second = %+v", second)
	}
}

func TestCachedService_FailuresNotStored(t *testing.T) {
	rdb := newFakeRedis()
	next := &countingQuerier{answer: Answer{Text: MsgGenerateFailed, Outcome: OutcomeGenerateFailed}}
	svc := NewCached(next, NewRedisAnswerCache(rdb, 0), quietLogger())

	svc.Query(context.Background(), "q")
	svc.Query(context.Background(), "q")
	if next.calls != 2 || len(rdb.setKeys) != 0 {
		t.Fatalf("calls = %d, stored = %v", next.calls, rdb.setKeys)
	}
}

func TestCachedService_CacheErrorsFallThrough(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	rdb.setErr = errors.New("connection refused")
	next := &countingQuerier{answer: Answer{Text: "ok", Outcome: OutcomeAnswered}}
	svc := NewCached(next, NewRedisAnswerCache(rdb, 0), quietLogger())

	a := svc.Query(context.Background(), "q")
	if !a.OK() || a.Cached || next.calls != 1 {
		t.Fatalf("answer = %+v, calls = %d", a, next.calls)
	}
}

func TestRedisAnswerCache_BadPayload(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["k"] = "{not json"
	if _, ok, err := NewRedisAnswerCache(rdb, 0).Get(context.Background(), "k"); err == nil || ok {
		t.Fatalf("ok = %v, err = %v", ok, err)
	}
}
