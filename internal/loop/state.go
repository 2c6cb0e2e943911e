// Package loop implements the turn loop state machine: one inference call,
// its tool-call dispatch, and the transitions back to inference or to a
// terminal state.
package loop

import "fmt"

// State is one of the turn loop's discrete run states.
type State string

const (
	StateIdle      State = "idle"
	StateTurn      State = "turn"
	StateToolPhase State = "toolPhase"
	StateTerminal  State = "terminal"
)

var validTransitions = map[State]map[State]bool{
	StateIdle:      {StateTurn: true},
	StateTurn:      {StateToolPhase: true, StateTurn: true, StateTerminal: true},
	StateToolPhase: {StateTurn: true, StateTerminal: true},
	StateTerminal:  {},
}

// machine tracks the current state and rejects illegal transitions.
type machine struct {
	current State
}

func newMachine() *machine { return &machine{current: StateIdle} }

func (m *machine) transition(to State) error {
	allowed, ok := validTransitions[m.current]
	if !ok || !allowed[to] {
		return fmt.Errorf("illegal transition %s -> %s", m.current, to)
	}
	m.current = to
	return nil
}
