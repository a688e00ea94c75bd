package rotation

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/credops/internal/credential"
	crederrors "github.com/systmms/credops/internal/errors"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/retry"
)

const (
	// DefaultTransitionPeriod is the dual-validity window length.
	DefaultTransitionPeriod = 86400 * time.Second
	// DefaultMonitoringInterval is the usage sampling period.
	DefaultMonitoringInterval = 300 * time.Second
)

// Config holds the timing parameters of one rotation. It is validated
// before any vault call is made.
type Config struct {
	TransitionPeriod   time.Duration `yaml:"transition_period" json:"transition_period"`
	MonitoringInterval time.Duration `yaml:"monitoring_interval" json:"monitoring_interval"`
}

// DefaultConfig returns the production defaults: a 24h transition window
// sampled every five minutes.
func DefaultConfig() Config {
	return Config{
		TransitionPeriod:   DefaultTransitionPeriod,
		MonitoringInterval: DefaultMonitoringInterval,
	}
}

// Validate checks the timing parameters. Invalid configuration is a
// precondition failure; no vault call happens afterwards.
func (c Config) Validate() error {
	if c.TransitionPeriod <= 0 {
		return crederrors.Precondition("transition_period",
			fmt.Sprintf("must be positive, got %v", c.TransitionPeriod))
	}
	if c.MonitoringInterval <= 0 {
		return crederrors.Precondition("monitoring_interval",
			fmt.Sprintf("must be positive, got %v", c.MonitoringInterval))
	}
	if c.MonitoringInterval >= c.TransitionPeriod {
		return crederrors.Precondition("monitoring_interval",
			fmt.Sprintf("%v must be shorter than transition period %v", c.MonitoringInterval, c.TransitionPeriod))
	}
	return nil
}

// Result describes the outcome of one rotation. State always carries
// the highest state successfully persisted; a failure before the first
// persisted state reports StateFailed. Results are safe to log: the
// error message never contains secret material.
type Result struct {
	ClientID     string     `json:"client_id"`
	Success      bool       `json:"success"`
	State        State      `json:"state"`
	ErrorMessage string     `json:"error_message,omitempty"`
	OldVersion   string     `json:"old_version,omitempty"`
	NewVersion   string     `json:"new_version,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Orchestrator drives a client's credential through the rotation state
// machine. A rotation runs synchronously on the calling goroutine; for
// concurrent rotations of different clients, run separate invocations.
// Two concurrent rotations of the same client race on the vault record
// and are not supported.
type Orchestrator struct {
	store     *credential.Store
	generator *credential.Generator
	monitor   *Monitor
	executor  *retry.Executor
	metrics   *Metrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewOrchestrator creates a rotation orchestrator.
func NewOrchestrator(store *credential.Store, generator *credential.Generator, monitor *Monitor, executor *retry.Executor, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		generator: generator,
		monitor:   monitor,
		executor:  executor,
		metrics:   NewMetrics(),
		logger:    logger,
		now:       time.Now,
	}
}

// Rotate runs one rotation and returns its structured result. Rotation
// is designed to be inspectable rather than to crash a scheduler:
// failures surface in the result, never as a panic.
func (o *Orchestrator) Rotate(ctx context.Context, clientID string, config Config) Result {
	result, _ := o.rotate(ctx, clientID, config)
	return result
}

// RotateWithRetry runs the whole rotation sequence under the retry
// policy. A final failure after exhausting retries still returns a
// structured result so callers can inspect State and ErrorMessage.
func (o *Orchestrator) RotateWithRetry(ctx context.Context, clientID string, config Config) Result {
	var result Result
	err := o.executor.Execute("rotate credential", func() error {
		var opErr error
		result, opErr = o.rotate(ctx, clientID, config)
		return opErr
	})
	if err != nil && result.ErrorMessage == "" {
		result.ErrorMessage = err.Error()
	}
	return result
}

func (o *Orchestrator) rotate(ctx context.Context, clientID string, config Config) (Result, error) {
	started := o.now().UTC()
	result := Result{ClientID: clientID, State: StateFailed, StartedAt: started}

	if err := config.Validate(); err != nil {
		result.ErrorMessage = err.Error()
		return result, fmt.Errorf("invalid rotation config: %w", err)
	}

	o.metrics.RecordStarted(clientID)
	o.logger.Info("starting rotation for %s (transition %v, monitoring every %v)",
		clientID, config.TransitionPeriod, config.MonitoringInterval)

	existing, err := o.store.RetrieveWithRetry(ctx, clientID)
	if err != nil {
		return o.fail(result, clientID, started, err), err
	}
	result.OldVersion = existing.Version

	meta := &credential.RotationMetadata{
		State:                   string(StateInitiated),
		OldVersion:              existing.Version,
		StartedAt:               &started,
		TransitionPeriodSeconds: int(config.TransitionPeriod / time.Second),
	}

	// Read-modify-write: the rotation metadata rides inside the
	// credential record, so one write covers secret and state.
	existing.Rotation = meta
	if err := o.persist(ctx, existing, "", StateInitiated); err != nil {
		return o.fail(result, clientID, started, err), err
	}
	result.State = StateInitiated

	newCred, err := o.generator.Generate(clientID)
	if err != nil {
		return o.fail(result, clientID, started, err), err
	}
	newCred.Rotation = &credential.RotationMetadata{
		State:                   string(StateDualActive),
		OldVersion:              existing.Version,
		StartedAt:               &started,
		TransitionPeriodSeconds: int(config.TransitionPeriod / time.Second),
	}

	// This single write activates the new secret and opens the
	// dual-validity window. The vault holds one live secret; dual
	// validity is a logical contract advertised through the metadata.
	if err := o.persist(ctx, newCred, StateInitiated, StateDualActive); err != nil {
		return o.fail(result, clientID, started, err), err
	}
	result.State = StateDualActive
	result.NewVersion = newCred.Version

	clean := o.monitor.AwaitTransition(ctx, clientID, config)

	newCred.Rotation.State = string(StateOldDeprecated)
	if err := o.persist(ctx, newCred, StateDualActive, StateOldDeprecated); err != nil {
		return o.fail(result, clientID, started, err), err
	}
	result.State = StateOldDeprecated

	if !clean {
		err := fmt.Errorf("transition monitoring for %s cancelled before completion", clientID)
		return o.fail(result, clientID, started, err), err
	}

	completed := o.now().UTC()
	newCred.Rotation.State = string(StateNewActive)
	newCred.Rotation.CompletedAt = &completed
	if err := o.persist(ctx, newCred, StateOldDeprecated, StateNewActive); err != nil {
		return o.fail(result, clientID, started, err), err
	}
	result.State = StateNewActive
	result.Success = true
	result.CompletedAt = &completed

	// Force subsequent readers to fetch the now-authoritative secret.
	o.store.Invalidate(clientID)

	o.metrics.RecordCompleted(clientID, "success", o.now().Sub(started).Seconds())
	o.logger.Info("rotation for %s completed, new version %s", clientID, newCred.Version)
	return result, nil
}

// persist writes a record carrying a state change, enforcing the
// transition table at the single write point. An empty from state marks
// the entry write of a fresh rotation.
func (o *Orchestrator) persist(ctx context.Context, cred credential.Credential, from, to State) error {
	if from != "" {
		if err := checkTransition(from, to); err != nil {
			return err
		}
	}
	now := o.now().UTC()
	cred.UpdatedAt = &now

	ok, err := o.store.StoreRecord(ctx, cred)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("vault declined credential write for %s in state %s", cred.ClientID, to)
	}
	o.logger.Debug("persisted rotation state %s for %s", to, cred.ClientID)
	return nil
}

func (o *Orchestrator) fail(result Result, clientID string, started time.Time, err error) Result {
	result.Success = false
	result.ErrorMessage = err.Error()
	o.metrics.RecordCompleted(clientID, "failure", o.now().Sub(started).Seconds())
	o.logger.Error("rotation for %s failed in state %s: %v", clientID, result.State, err)
	return result
}
