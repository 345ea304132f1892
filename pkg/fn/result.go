// Package fn holds the small generic helpers the ingest and query pipelines
// share: a Result type for traced stages, retry with backoff, a bounded
// worker pool and slice chunking.
package fn

import (
	"errors"
	"fmt"
)

var errMissing = errors.New("fn: failed result without error")

// Result carries either a value or an error. The zero Result is a success
// holding the zero value.
type Result[T any] struct {
	val T
	err error
}

// Ok wraps v.
func Ok[T any](v T) Result[T] { return Result[T]{val: v} }

// Err wraps err. A nil err still yields a failure.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = errMissing
	}
	return Result[T]{err: err}
}

// Errf is Err(fmt.Errorf(format, args...)).
func Errf[T any](format string, args ...any) Result[T] {
	return Err[T](fmt.Errorf(format, args...))
}

// FromPair adapts the usual (value, error) return.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// IsOk reports success.
func (r Result[T]) IsOk() bool { return r.err == nil }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// Error returns the failure, or nil.
func (r Result[T]) Error() error { return r.err }
