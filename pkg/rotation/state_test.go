package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		to    State
		legal bool
	}{
		{name: "initiated_to_dual_active", from: StateInitiated, to: StateDualActive, legal: true},
		{name: "dual_active_to_old_deprecated", from: StateDualActive, to: StateOldDeprecated, legal: true},
		{name: "old_deprecated_to_new_active", from: StateOldDeprecated, to: StateNewActive, legal: true},
		{name: "initiated_to_failed", from: StateInitiated, to: StateFailed, legal: true},
		{name: "dual_active_to_failed", from: StateDualActive, to: StateFailed, legal: true},
		{name: "old_deprecated_to_failed", from: StateOldDeprecated, to: StateFailed, legal: true},
		{name: "no_skipping_dual_active", from: StateInitiated, to: StateOldDeprecated, legal: false},
		{name: "no_skipping_old_deprecated", from: StateDualActive, to: StateNewActive, legal: false},
		{name: "no_backwards_moves", from: StateOldDeprecated, to: StateDualActive, legal: false},
		{name: "new_active_is_final", from: StateNewActive, to: StateFailed, legal: false},
		{name: "failed_is_final", from: StateFailed, to: StateInitiated, legal: false},
		{name: "unknown_state", from: State("limbo"), to: StateDualActive, legal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.legal, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateNewActive.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateInitiated.IsTerminal())
	assert.False(t, StateDualActive.IsTerminal())
	assert.False(t, StateOldDeprecated.IsTerminal())
}

func TestCheckTransitionError(t *testing.T) {
	assert.NoError(t, checkTransition(StateInitiated, StateDualActive))

	err := checkTransition(StateNewActive, StateDualActive)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "new_active -> dual_active")
}
