package retry

import (
	"math"
	"math/rand"
	"time"

	crederrors "github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
)

// Policy describes a bounded-retry, exponential-backoff-with-jitter
// execution policy. A Policy is immutable once constructed and may be
// shared read-only across concurrent calls.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so an
	// operation runs at most MaxRetries+1 times.
	MaxRetries int

	// BackoffFactor scales the exponential delay: the wait before retry
	// n is BackoffFactor * 2^n seconds, plus jitter.
	BackoffFactor float64

	// JitterFactor bounds the uniform jitter added to each delay as a
	// fraction of the base delay.
	JitterFactor float64

	// RetryableKinds is the set of error classifications worth retrying.
	RetryableKinds map[crederrors.Kind]bool
}

// DefaultPolicy matches the production defaults: three retries with a
// one-second backoff factor and 10% jitter, retrying connection failures.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:    3,
		BackoffFactor: 1.0,
		JitterFactor:  0.1,
		RetryableKinds: map[crederrors.Kind]bool{
			crederrors.KindConnection: true,
		},
	}
}

// Executor runs operations under a Policy. Each call owns its own
// attempt counter; an Executor is safe for concurrent use.
type Executor struct {
	policy Policy
	logger *logging.Logger

	// sleep is swapped out in tests to avoid wall-clock waits.
	sleep func(time.Duration)
	// randFloat returns a uniform value in [0, 1).
	randFloat func() float64
}

// NewExecutor creates an executor for the given policy.
func NewExecutor(policy Policy, logger *logging.Logger) *Executor {
	return &Executor{
		policy:    policy,
		logger:    logger,
		sleep:     time.Sleep,
		randFloat: rand.Float64,
	}
}

// NewExecutorWithSleep creates an executor with injected sleep and jitter
// functions for deterministic tests.
func NewExecutorWithSleep(policy Policy, logger *logging.Logger, sleep func(time.Duration), randFloat func() float64) *Executor {
	return &Executor{
		policy:    policy,
		logger:    logger,
		sleep:     sleep,
		randFloat: randFloat,
	}
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// exhausts the retry budget. The backoff before retry n is
//
//	BackoffFactor * 2^n + uniform(0, BackoffFactor * 2^n * JitterFactor)
//
// seconds. A classified domain error propagates as-is; anything else is
// wrapped into an OperationFailedError carrying the attempt count.
func (e *Executor) Execute(name string, op func() error) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		attempts++
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		kind := crederrors.KindOf(lastErr)
		if !e.policy.RetryableKinds[kind] {
			break
		}
		if attempt == e.policy.MaxRetries {
			break
		}

		delay := e.backoff(attempt)
		e.logger.Warn("%s failed (%s), retry %d/%d in %.2fs",
			name, kind, attempt+1, e.policy.MaxRetries, delay.Seconds())
		e.sleep(delay)
	}

	if crederrors.IsDomain(lastErr) {
		return lastErr
	}
	return &crederrors.OperationFailedError{
		Op:       name,
		Attempts: attempts,
		Err:      lastErr,
	}
}

func (e *Executor) backoff(attempt int) time.Duration {
	base := e.policy.BackoffFactor * math.Pow(2, float64(attempt))
	jitter := e.randFloat() * base * e.policy.JitterFactor
	return time.Duration((base + jitter) * float64(time.Second))
}
