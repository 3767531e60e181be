package tinode

import "sync"

// ConnState is one of the four connection lifecycle states.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnectedUnauth
	StateConnectedAuth
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnectedUnauth:
		return "connected-unauth"
	case StateConnectedAuth:
		return "connected-auth"
	default:
		return "unknown"
	}
}

// connStateMachine tracks the current ConnState and guards transitions with
// a single mutex; the Session drives actual side effects (sending hi,
// chaining login, purging futures) from the call sites in session.go that
// invoke these transitions
type connStateMachine struct {
	mu    sync.Mutex
	state ConnState
}

func (m *connStateMachine) get() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to next and returns the previous state, so callers can
// decide which side effects apply (e.g. only fire onDisconnect if we were
// not already Disconnected).
func (m *connStateMachine) transition(next ConnState) ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state
	m.state = next
	return prev
}
