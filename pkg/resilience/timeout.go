package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/showsearch/showsearch/pkg/errors"
)

// WithTimeout runs fn under a deadline of timeout. If fn has not returned
// by then, WithTimeout returns an error wrapping apperrors.ErrTimeout without
// waiting for fn; fn sees its context cancelled. timeout <= 0 disables the
// deadline.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	select {
	case err := <-done:
		return err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s exceeded %v: %w", name, timeout, apperrors.ErrTimeout)
	}
}
