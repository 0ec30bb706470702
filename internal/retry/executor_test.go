package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyOperation fails with err for the first failures invocations.
type flakyOperation struct {
	calls    int
	failures int
	err      error
}

func (f *flakyOperation) run(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func newTestExecutor(maxAttempts int) *Executor {
	return NewExecutor(
		NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(maxAttempts, WithInitialDelay(time.Millisecond), WithJitter(0)),
	)
}

func TestExecutor_SucceedsFirstTry(t *testing.T) {
	op := &flakyOperation{}
	require.NoError(t, newTestExecutor(3).Execute(context.Background(), op.run))
	assert.Equal(t, 1, op.calls)
}

func TestExecutor_RetriesTransient(t *testing.T) {
	op := &flakyOperation{failures: 2, err: &pgconn.PgError{Code: "08006"}}

	var retries []int
	executor := newTestExecutor(5).WithOnRetry(func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	})

	require.NoError(t, executor.Execute(context.Background(), op.run))
	assert.Equal(t, 3, op.calls)
	assert.Equal(t, []int{0, 1}, retries)
}

func TestExecutor_StopsOnFatal(t *testing.T) {
	fatal := &pgconn.PgError{Code: "28P01", Message: "password authentication failed"}
	op := &flakyOperation{failures: 10, err: fatal}

	err := newTestExecutor(5).Execute(context.Background(), op.run)
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, op.calls)
}

func TestExecutor_ExhaustsAttempts(t *testing.T) {
	transient := &pgconn.PgError{Code: "53300"}
	op := &flakyOperation{failures: 10, err: transient}

	err := newTestExecutor(2).Execute(context.Background(), op.run)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, op.calls, "first attempt plus two retries")
}

func TestExecutor_ZeroAttemptsMeansNoRetry(t *testing.T) {
	op := &flakyOperation{failures: 10, err: errors.New("connection refused")}
	_ = newTestExecutor(0).Execute(context.Background(), op.run)
	assert.Equal(t, 1, op.calls)
}

func TestExecutor_ContextCancelledWhileWaiting(t *testing.T) {
	op := &flakyOperation{failures: 10, err: &pgconn.PgError{Code: "08006"}}
	executor := NewExecutor(
		NewPostgreSQLErrorClassifier(),
		NewExponentialBackoff(5, WithInitialDelay(time.Hour), WithJitter(0)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	executor = executor.WithOnRetry(func(int, error, time.Duration) { cancel() })

	err := executor.Execute(ctx, op.run)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, op.calls)
}

func TestNewExecutor_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewExecutor(nil, NewExponentialBackoff(1)) })
	assert.Panics(t, func() { NewExecutor(NewPostgreSQLErrorClassifier(), nil) })
}
