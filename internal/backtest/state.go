package backtest

import "fmt"

// RaceState is the stage a run has reached with the current race
type RaceState int

const (
	StateIdle RaceState = iota
	StateLoading
	StateComposing
	StatePredicting
	StateDeciding
	StateSettling
	StateDone
)

func (s RaceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateComposing:
		return "composing"
	case StatePredicting:
		return "predicting"
	case StateDeciding:
		return "deciding"
	case StateSettling:
		return "settling"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// next lists the forward step out of each state. Any state but Done may
// also fall back to Idle when a race is skipped.
var next = map[RaceState]RaceState{
	StateLoading:    StateComposing,
	StateComposing:  StatePredicting,
	StatePredicting: StateDeciding,
	StateDeciding:   StateSettling,
	StateSettling:   StateIdle,
}

func validTransition(from, to RaceState) bool {
	switch {
	case from == StateDone:
		return false
	case from == StateIdle:
		return to == StateLoading || to == StateDone
	case to == StateIdle:
		return true
	}
	return next[from] == to
}

// TransitionHook observes every state change of a run
type TransitionHook func(raceID string, from, to RaceState)

// machine tracks the state of a single run
type machine struct {
	state RaceState
	race  string
	hook  TransitionHook
}

func (m *machine) to(s RaceState) error {
	if !validTransition(m.state, s) {
		return fmt.Errorf("invalid transition %s -> %s for race %s", m.state, s, m.race)
	}
	from := m.state
	m.state = s
	if m.hook != nil {
		m.hook(m.race, from, s)
	}
	return nil
}
