package rotation

import (
	"context"
	"math/rand"
	"time"

	"github.com/systmms/credops/internal/logging"
)

// quiescentTicks is the number of consecutive not-in-use samples that
// end the transition period early.
const quiescentTicks = 3

// UsageSignal reports whether the old credential is still being
// exercised. Production deployments back this with access logs or
// metrics; the default is a decaying-probability placeholder.
type UsageSignal interface {
	InUse(ctx context.Context, clientID string, elapsed, total time.Duration) bool
}

// DecayingUsageSignal simulates traffic draining off the old credential:
// the probability of observing usage starts high and decays toward a
// floor as the transition period elapses.
type DecayingUsageSignal struct {
	Initial float64
	Floor   float64

	randFloat func() float64
}

// NewDecayingUsageSignal creates the placeholder signal with a 90%
// initial usage probability decaying to a 5% floor.
func NewDecayingUsageSignal() *DecayingUsageSignal {
	return &DecayingUsageSignal{
		Initial:   0.9,
		Floor:     0.05,
		randFloat: rand.Float64,
	}
}

// InUse samples the decaying probability.
func (s *DecayingUsageSignal) InUse(_ context.Context, _ string, elapsed, total time.Duration) bool {
	fraction := 0.0
	if total > 0 {
		fraction = float64(elapsed) / float64(total)
		if fraction > 1 {
			fraction = 1
		}
	}
	probability := s.Initial - (s.Initial-s.Floor)*fraction
	return s.randFloat() < probability
}

// Monitor samples a UsageSignal during the dual-validity window and
// decides when the transition period may end. It blocks the calling
// goroutine between ticks; callers wanting concurrent rotations run
// separate invocations themselves.
type Monitor struct {
	signal UsageSignal
	logger *logging.Logger

	sleep func(time.Duration)
	now   func() time.Time
}

// NewMonitor creates a monitor over the given signal.
func NewMonitor(signal UsageSignal, logger *logging.Logger) *Monitor {
	return &Monitor{
		signal: signal,
		logger: logger,
		sleep:  time.Sleep,
		now:    time.Now,
	}
}

// NewMonitorWithClock creates a monitor with injected clock and sleep
// functions so tests avoid wall-clock waits.
func NewMonitorWithClock(signal UsageSignal, logger *logging.Logger, now func() time.Time, sleep func(time.Duration)) *Monitor {
	return &Monitor{
		signal: signal,
		logger: logger,
		sleep:  sleep,
		now:    now,
	}
}

// AwaitTransition loops on the monitoring interval until the transition
// period elapses or the old credential has been quiescent for three
// consecutive ticks. It returns true when the transition may end, which
// is every outcome except context cancellation; the monitor never blocks
// rotation indefinitely.
func (m *Monitor) AwaitTransition(ctx context.Context, clientID string, config Config) bool {
	start := m.now()
	deadline := start.Add(config.TransitionPeriod)
	consecutive := 0

	for m.now().Before(deadline) {
		if ctx.Err() != nil {
			m.logger.Warn("transition monitoring for %s cancelled", clientID)
			return false
		}

		elapsed := m.now().Sub(start)
		if m.signal.InUse(ctx, clientID, elapsed, config.TransitionPeriod) {
			consecutive = 0
			m.logger.Debug("old credential for %s still in use after %v", clientID, elapsed)
		} else {
			consecutive++
			m.logger.Debug("old credential for %s quiescent (%d/%d ticks)", clientID, consecutive, quiescentTicks)
			if consecutive >= quiescentTicks {
				m.logger.Info("old credential for %s quiescent, ending transition early after %v", clientID, elapsed)
				return true
			}
		}

		m.sleep(config.MonitoringInterval)
	}

	m.logger.Info("transition period for %s elapsed", clientID)
	return true
}
