package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	crederrors "github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
)

func newTestExecutor(policy Policy, sleeps *[]time.Duration) *Executor {
	logger := logging.New(false, true)
	sleep := func(d time.Duration) {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
	}
	// Deterministic jitter: always half the jitter range.
	return NewExecutorWithSleep(policy, logger, sleep, func() float64 { return 0.5 })
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	executor := newTestExecutor(DefaultPolicy(), nil)
	calls := 0

	err := executor.Execute("op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteRetryBound(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRetries = 3
	executor := newTestExecutor(policy, nil)
	calls := 0

	err := executor.Execute("op", func() error {
		calls++
		return crederrors.Connection("op", "unreachable", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls, "always-failing retryable op runs max_retries+1 times")
}

func TestExecuteNonRetryableShortCircuit(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "authentication", err: crederrors.FromStatus("op", 401)},
		{name: "permission", err: crederrors.FromStatus("op", 403)},
		{name: "not_found", err: crederrors.FromStatus("op", 404)},
		{name: "precondition", err: crederrors.Precondition("field", "bad")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := newTestExecutor(DefaultPolicy(), nil)
			calls := 0

			err := executor.Execute("op", func() error {
				calls++
				return tt.err
			})

			require.Error(t, err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.err, err, "domain errors propagate unwrapped")
		})
	}
}

func TestExecuteEventualSuccess(t *testing.T) {
	policy := DefaultPolicy()
	executor := newTestExecutor(policy, nil)
	calls := 0

	err := executor.Execute("op", func() error {
		calls++
		if calls < 3 {
			return crederrors.Connection("op", "flaky", nil)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteBackoffProgression(t *testing.T) {
	policy := Policy{
		MaxRetries:    3,
		BackoffFactor: 1.0,
		JitterFactor:  0.1,
		RetryableKinds: map[crederrors.Kind]bool{
			crederrors.KindConnection: true,
		},
	}
	var sleeps []time.Duration
	executor := newTestExecutor(policy, &sleeps)

	_ = executor.Execute("op", func() error {
		return crederrors.Connection("op", "unreachable", nil)
	})

	require.Len(t, sleeps, 3)
	// base = factor * 2^attempt, jitter fixed at half the 10% range.
	assert.InDelta(t, 1.05, sleeps[0].Seconds(), 0.001)
	assert.InDelta(t, 2.10, sleeps[1].Seconds(), 0.001)
	assert.InDelta(t, 4.20, sleeps[2].Seconds(), 0.001)
}

func TestExecuteWrapsUnclassifiedError(t *testing.T) {
	executor := newTestExecutor(DefaultPolicy(), nil)
	cause := errors.New("boom")

	err := executor.Execute("op", func() error {
		return cause
	})

	require.Error(t, err)
	var opErr *crederrors.OperationFailedError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, 1, opErr.Attempts)
	assert.ErrorIs(t, err, cause)
}

func TestExecuteExhaustionKeepsDomainError(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRetries = 1
	executor := newTestExecutor(policy, nil)
	last := crederrors.Connection("op", "down", nil)

	err := executor.Execute("op", func() error {
		return last
	})

	assert.Equal(t, last, err)
}

func TestExecuteConcurrentCallsIndependent(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxRetries = 2
	executor := newTestExecutor(policy, nil)

	done := make(chan int, 8)
	for i := 0; i < 8; i++ {
		go func() {
			calls := 0
			_ = executor.Execute("op", func() error {
				calls++
				return crederrors.Connection("op", "down", nil)
			})
			done <- calls
		}()
	}

	for i := 0; i < 8; i++ {
		assert.Equal(t, 3, <-done, "each call owns its own attempt counter")
	}
}
