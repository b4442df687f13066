package chathub

import "fmt"

// turnState is the lifecycle of a single exchange.
type turnState int

const (
	stateAwaitingOpen turnState = iota
	stateAwaitingTerminal
	stateDone
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingOpen:
		return "awaiting-open"
	case stateAwaitingTerminal:
		return "awaiting-terminal-frame"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("turnState(%d)", int(s))
	}
}

// turn tracks one exchange. It only moves forward and resolves exactly once.
type turn struct {
	state      turnState
	frames     int
	keepalives int
}

// advance moves the turn to the next state. Skipping or going back is a bug.
func (t *turn) advance(next turnState) error {
	if next != t.state+1 {
		return fmt.Errorf("invalid turn transition %s -> %s", t.state, next)
	}
	t.state = next
	return nil
}

// done reports whether the turn has resolved.
func (t *turn) done() bool {
	return t.state == stateDone
}
