package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/movie-recommender/pkg/errors"
)

// WithTimeout returns once fn finishes or timeout elapses, whichever comes
// first. On timeout the error matches both apperrors.ErrTimeout and
// context.DeadlineExceeded; fn keeps running until it observes its context
// and its result is dropped. A non-positive timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, apperrors.ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cause := context.Cause(ctx)
		if errors.Is(cause, apperrors.ErrTimeout) {
			return fmt.Errorf("%s exceeded %v: %w", name, timeout, errors.Join(apperrors.ErrTimeout, context.DeadlineExceeded))
		}
		return fmt.Errorf("%s: %w", name, cause)
	}
}
