package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/credops/internal/cache"
	"github.com/systmms/credops/internal/credential"
	"github.com/systmms/credops/internal/logging"
	"github.com/systmms/credops/internal/retry"
	"github.com/systmms/credops/internal/vault"
)

// rotationVault serves the handshake and one credential record, and
// records every write so tests can replay the persisted state sequence.
// failOnWrite makes the Nth write (1-based) fail with failCode.
type rotationVault struct {
	mu          sync.Mutex
	record      string
	writes      []credential.Credential
	getCalls    int
	failOnWrite int
	failCode    int
}

func (v *rotationVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch {
	case strings.HasSuffix(r.URL.Path, "/login"):
		fmt.Fprint(w, "api-key")
	case strings.HasSuffix(r.URL.Path, "/authenticate"):
		fmt.Fprint(w, "raw-token")
	case strings.Contains(r.URL.Path, "/secrets/"):
		if r.Method == http.MethodGet {
			v.getCalls++
			if v.record == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, v.record)
			return
		}
		if v.failOnWrite == len(v.writes)+1 {
			w.WriteHeader(v.failCode)
			return
		}
		payload, _ := io.ReadAll(r.Body)
		var cred credential.Credential
		if err := json.Unmarshal(payload, &cred); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		v.writes = append(v.writes, cred)
		v.record = string(payload)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (v *rotationVault) writtenStates() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	states := make([]string, 0, len(v.writes))
	for _, cred := range v.writes {
		if cred.Rotation != nil {
			states = append(states, cred.Rotation.State)
		}
	}
	return states
}

type rotationHarness struct {
	orchestrator *Orchestrator
	creds        *cache.TTL[string, credential.Credential]
}

func newRotationHarness(t *testing.T, url string) *rotationHarness {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, false, true)
	config := vault.Config{URL: url, Account: "acme", AuthnLogin: "host/payment-svc"}
	client, err := vault.NewClient(config, logger)
	require.NoError(t, err)

	executor := retry.NewExecutorWithSleep(retry.DefaultPolicy(), logger,
		func(time.Duration) {}, func() float64 { return 0 })
	auth := vault.NewAuthenticator(client, cache.New[vault.TokenKey, string](), executor, logger)
	creds := cache.New[string, credential.Credential]()
	store := credential.NewStore(client, auth, creds, executor, logger)

	// Always-quiescent signal over a manual clock: the dual-validity
	// window closes after three ticks without any wall-clock wait.
	monitor := newMonitorHarness(&scriptedSignal{samples: []bool{false}})

	orchestrator := NewOrchestrator(store, credential.NewGenerator(0), monitor, executor, logger)
	return &rotationHarness{orchestrator: orchestrator, creds: creds}
}

func testRotationConfig() Config {
	return Config{TransitionPeriod: time.Hour, MonitoringInterval: time.Minute}
}

func existingRecord() string {
	return `{"client_id":"client-1","client_secret":"Old$Secret123456","version":"v1","status":"active"}`
}

func TestRotateHappyPath(t *testing.T) {
	fake := &rotationVault{record: existingRecord()}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	result := h.orchestrator.Rotate(context.Background(), "client-1", testRotationConfig())

	assert.True(t, result.Success)
	assert.Equal(t, StateNewActive, result.State)
	assert.Equal(t, "client-1", result.ClientID)
	assert.Equal(t, "v1", result.OldVersion)
	assert.NotEmpty(t, result.NewVersion)
	assert.NotEqual(t, result.OldVersion, result.NewVersion)
	assert.Empty(t, result.ErrorMessage)
	require.NotNil(t, result.CompletedAt)

	assert.Equal(t, []string{"initiated", "dual_active", "old_deprecated", "new_active"}, fake.writtenStates())
	assert.Equal(t, 0, h.creds.Len(), "completion invalidates the cached record")
}

func TestRotateNewSecretDiffersFromOld(t *testing.T) {
	fake := &rotationVault{record: existingRecord()}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	result := h.orchestrator.Rotate(context.Background(), "client-1", testRotationConfig())
	require.True(t, result.Success)

	final := fake.writes[len(fake.writes)-1]
	assert.NotEqual(t, "Old$Secret123456", final.ClientSecret)
	assert.NoError(t, credential.ValidateSecret(final.ClientSecret))
	require.NotNil(t, final.Rotation)
	assert.Equal(t, "v1", final.Rotation.OldVersion)
	assert.NotNil(t, final.Rotation.CompletedAt)
	assert.Equal(t, 3600, final.Rotation.TransitionPeriodSeconds)
}

func TestRotateInvalidConfig(t *testing.T) {
	fake := &rotationVault{record: existingRecord()}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	tests := []struct {
		name   string
		config Config
	}{
		{name: "zero_transition_period", config: Config{TransitionPeriod: 0, MonitoringInterval: time.Minute}},
		{name: "zero_monitoring_interval", config: Config{TransitionPeriod: time.Hour, MonitoringInterval: 0}},
		{name: "interval_not_shorter_than_period", config: Config{TransitionPeriod: time.Minute, MonitoringInterval: time.Minute}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.orchestrator.Rotate(context.Background(), "client-1", tt.config)

			assert.False(t, result.Success)
			assert.Equal(t, StateFailed, result.State)
			assert.NotEmpty(t, result.ErrorMessage)
		})
	}

	assert.Equal(t, 0, fake.getCalls, "invalid config never reaches the vault")
}

func TestRotateMissingCredential(t *testing.T) {
	fake := &rotationVault{}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	result := h.orchestrator.Rotate(context.Background(), "client-1", testRotationConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StateFailed, result.State, "failure before any persisted state")
	assert.NotEmpty(t, result.ErrorMessage)
	assert.Empty(t, fake.writtenStates())
}

func TestRotateFailureKeepsHighestState(t *testing.T) {
	// The second write opens the dual-validity window; rejecting it
	// leaves the rotation stuck at the last persisted state.
	fake := &rotationVault{
		record:      existingRecord(),
		failOnWrite: 2,
		failCode:    http.StatusUnprocessableEntity,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	result := h.orchestrator.Rotate(context.Background(), "client-1", testRotationConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StateInitiated, result.State)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.Empty(t, result.NewVersion)
	assert.Equal(t, []string{"initiated"}, fake.writtenStates())
}

func TestRotateFinalWriteFailure(t *testing.T) {
	fake := &rotationVault{
		record:      existingRecord(),
		failOnWrite: 4,
		failCode:    http.StatusUnprocessableEntity,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	result := h.orchestrator.Rotate(context.Background(), "client-1", testRotationConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StateOldDeprecated, result.State)
	assert.Nil(t, result.CompletedAt)
	assert.Equal(t, []string{"initiated", "dual_active", "old_deprecated"}, fake.writtenStates())
}

func TestRotateWithRetrySurfacesError(t *testing.T) {
	fake := &rotationVault{
		record:      existingRecord(),
		failOnWrite: 1,
		failCode:    http.StatusUnprocessableEntity,
	}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	result := h.orchestrator.RotateWithRetry(context.Background(), "client-1", testRotationConfig())

	assert.False(t, result.Success)
	assert.Equal(t, StateFailed, result.State)
	assert.Contains(t, result.ErrorMessage, "declined")
}

func TestRotateCancelledMonitoring(t *testing.T) {
	fake := &rotationVault{record: existingRecord()}
	server := httptest.NewServer(fake)
	defer server.Close()

	h := newRotationHarness(t, server.URL)

	// Cancel the context partway through the dual-validity window. The
	// monitor reports an unclean exit; the rotation still deprecates the
	// old credential but refuses to activate the new one.
	ctx, cancel := context.WithCancel(context.Background())
	h.orchestrator.monitor.signal = cancellingSignal{cancel: cancel}

	result := h.orchestrator.Rotate(ctx, "client-1", testRotationConfig())

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.NotEqual(t, StateNewActive, result.State)
}

// cancellingSignal cancels the rotation context on its first sample.
type cancellingSignal struct {
	cancel context.CancelFunc
}

func (s cancellingSignal) InUse(context.Context, string, time.Duration, time.Duration) bool {
	s.cancel()
	return true
}
