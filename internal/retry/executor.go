package retry

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// Executor runs an operation until it succeeds, fails fatally, or runs out of retries.
// It is safe for concurrent use; the With* methods return modified copies.
type Executor struct {
	classifier csvingest.ErrorClassifier
	strategy   csvingest.BackoffStrategy
	clock      clockwork.Clock
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor creates a retry executor.
// Panics if classifier or strategy is nil.
func NewExecutor(classifier csvingest.ErrorClassifier, strategy csvingest.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
		clock:      clockwork.NewRealClock(),
	}
}

// NewDefaultExecutor retries transient PostgreSQL failures with the package defaults.
func NewDefaultExecutor() *Executor {
	return NewExecutor(
		NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(csvingest.DefaultRetryMaxAttempts,
			WithInitialDelay(csvingest.DefaultRetryInitialDelay),
			WithMaxDelay(csvingest.DefaultRetryMaxDelay),
		),
	)
}

// WithOnRetry returns a copy that calls callback before each wait.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// WithClock returns a copy that waits on the given clock.
func (e *Executor) WithClock(clock clockwork.Clock) *Executor {
	clone := *e
	clone.clock = clock
	return &clone
}

// Execute runs operation, retrying transient failures.
// The error of the last attempt is returned, or ctx.Err() if the context ends while waiting.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	err := operation(ctx)
	maxAttempts := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err); attempt++ {
		if maxAttempts >= 0 && attempt >= maxAttempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := e.strategy.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(delay):
		}

		err = operation(ctx)
	}
	return err
}
