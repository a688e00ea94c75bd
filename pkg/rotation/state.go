package rotation

import "fmt"

// State is the closed set of rotation lifecycle states. Transitions are
// strictly forward; Failed is reachable from any non-terminal state and
// is terminal, NewActive is the only success terminal.
type State string

const (
	// StateInitiated marks rotation metadata written to the existing record.
	StateInitiated State = "initiated"
	// StateDualActive marks the window where old and new credentials are
	// both logically valid. Dual validity is a contract advertised to the
	// authentication layer upstream; this engine tracks it, it does not
	// enforce acceptance.
	StateDualActive State = "dual_active"
	// StateOldDeprecated marks the end of the transition window.
	StateOldDeprecated State = "old_deprecated"
	// StateNewActive marks the new credential as sole authoritative.
	StateNewActive State = "new_active"
	// StateFailed is the terminal failure state.
	StateFailed State = "failed"
)

// transitions is the single point where legal forward moves are defined.
var transitions = map[State][]State{
	StateInitiated:     {StateDualActive, StateFailed},
	StateDualActive:    {StateOldDeprecated, StateFailed},
	StateOldDeprecated: {StateNewActive, StateFailed},
	StateNewActive:     {},
	StateFailed:        {},
}

// CanTransition reports whether moving from one state to the next is legal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions leave the state.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// checkTransition returns an error describing an illegal move.
func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal rotation state transition %s -> %s", from, to)
	}
	return nil
}
