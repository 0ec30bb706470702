// Package retry re-runs operations that fail with transient errors,
// waiting with exponential backoff between attempts.
//
//	executor := retry.NewExecutor(
//	    retry.NewPostgreSQLErrorClassifier(),
//	    retry.NewExponentialBackoff(3),
//	)
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// Waiting goes through a clockwork.Clock so tests can drive time explicitly.
package retry
