package agent

import "fmt"

// State defines the agent lifecycle state.
type State string

const (
	StateIdle     State = "idle"     // Ready to run
	StateRunning  State = "running"  // Executing the step loop
	StateFinished State = "finished" // A special tool ended the run
	StateError    State = "error"    // A step failed fatally
)

// validTransitions defines the legal state transitions. Finished and
// error both return through idle; only the run loop mutates state.
var validTransitions = map[State][]State{
	StateIdle:     {StateRunning},
	StateRunning:  {StateIdle, StateFinished, StateError},
	StateFinished: {StateIdle},
	StateError:    {StateIdle},
}

// CanTransition checks whether a state transition is legal.
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition reports an illegal state transition, naming the
// state the agent was in.
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
