package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"social-server/core"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connection is the server-side view of one live transport session.
// Room membership is deliberately absent: the transport tracks it.
type Connection struct {
	id core.ConnID

	mu     sync.RWMutex
	state  State
	userID core.UserID

	listenersRegistered atomic.Bool

	// inbound serializes event handling for this connection so each event is
	// persisted and routed before the next one starts.
	inbound sync.Mutex
}

func newConnection(id core.ConnID) *Connection {
	return &Connection{id: id, state: StateConnecting}
}

func (c *Connection) ID() core.ConnID { return c.id }

func (c *Connection) UserID() core.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ListenersRegistered reports whether business listeners were attached.
func (c *Connection) ListenersRegistered() bool {
	return c.listenersRegistered.Load()
}

func (c *Connection) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", ErrInvalidTransition, from, to, c.state)
	}
	c.state = to
	return nil
}

// bindUser attaches the verified identity. The user id is immutable once set.
func (c *Connection) bindUser(userID core.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticating {
		return fmt.Errorf("%w: bind user while %s", ErrInvalidTransition, c.state)
	}
	if c.userID != "" && c.userID != userID {
		return fmt.Errorf("%w: user already bound", ErrInvalidTransition)
	}
	c.userID = userID
	return nil
}

// close moves the connection to Disconnected and returns the state it left.
func (c *Connection) close() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = StateDisconnected
	return prev
}

// claimListeners returns true exactly once per connection.
func (c *Connection) claimListeners() bool {
	return c.listenersRegistered.CompareAndSwap(false, true)
}
