package semantic

import (
	"context"
	"fmt"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
	"github.com/ckulkarni13/Mental-Health-Advisor-App/pkg/fn"
)

// Exister reports whether the configured collection is present.
type Exister interface {
	Exists(ctx context.Context) (bool, error)
}

// RequireCollection waits for the index to answer, retrying errors per opts,
// and fails with domain.ErrIndexNotFound when it answers that the collection
// is missing. A missing collection is not retried.
func RequireCollection(ctx context.Context, ex Exister, opts fn.RetryOpts) error {
	found, err := fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[bool] {
		ok, err := ex.Exists(ctx)
		return fn.FromPair(ok, err)
	}).Unwrap()
	if err != nil {
		return fmt.Errorf("semantic: check collection: %w", err)
	}
	if !found {
		return domain.ErrIndexNotFound
	}
	return nil
}
