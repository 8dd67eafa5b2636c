package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"social-server/core"

	"github.com/sirupsen/logrus"
)

// Lifecycle drives each connection through
// Connecting -> Authenticating -> Active -> Disconnected
// and owns the listeners attached to active connections.
type Lifecycle struct {
	ctx      context.Context
	registry *Registry
	router   *Router
	verifier core.IdentityVerifier
	messages core.MessageStore
	groups   core.GroupStore

	mu    sync.RWMutex
	conns map[core.ConnID]*Connection
}

// NewLifecycle wires the session state machine. ctx bounds the persistence
// calls made while handling inbound events.
func NewLifecycle(
	ctx context.Context,
	registry *Registry,
	router *Router,
	verifier core.IdentityVerifier,
	messages core.MessageStore,
	groups core.GroupStore,
) *Lifecycle {
	return &Lifecycle{
		ctx:      ctx,
		registry: registry,
		router:   router,
		verifier: verifier,
		messages: messages,
		groups:   groups,
		conns:    make(map[core.ConnID]*Connection),
	}
}

// Authenticate runs the handshake step: it creates the connection, verifies
// token and binds the resulting user. The connection is not tracked until
// Attach, so a handshake the transport abandons leaves nothing behind. On
// failure the transport must reject the connection.
func (l *Lifecycle) Authenticate(ctx context.Context, connID core.ConnID, token string) (*Connection, error) {
	log := logrus.WithField("conn_id", connID)

	conn := newConnection(connID)
	if err := conn.transition(StateConnecting, StateAuthenticating); err != nil {
		conn.close()
		return nil, err
	}

	if token == "" {
		conn.close()
		log.Warn("Connection rejected: missing token")
		return nil, ErrMissingToken
	}

	userID, err := l.verifier.Verify(ctx, token)
	if err == nil && userID == "" {
		err = fmt.Errorf("empty user id")
	}
	if err != nil {
		conn.close()
		log.WithError(err).Warn("Connection rejected: token verification failed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := conn.bindUser(userID); err != nil {
		conn.close()
		return nil, err
	}

	log.WithField("user_id", userID).Debug("Connection authenticated")
	return conn, nil
}

// Attach runs when the transport reports conn established on sock. It
// activates the connection, attaches the listeners and registers its user.
// Repeated calls for the same connection attach nothing new.
func (l *Lifecycle) Attach(sock Socket, conn *Connection) error {
	if conn == nil || conn.ID() != sock.ID() {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, sock.ID())
	}
	connID := conn.ID()
	userID := conn.UserID()
	log := logrus.WithFields(logrus.Fields{
		"conn_id": connID,
		"user_id": userID,
	})

	l.mu.Lock()
	if tracked, ok := l.conns[connID]; ok && tracked != conn {
		l.mu.Unlock()
		return fmt.Errorf("%w: connection %s already attached", ErrInvalidTransition, connID)
	}
	l.conns[connID] = conn
	l.mu.Unlock()

	switch conn.State() {
	case StateAuthenticating:
		if err := conn.transition(StateAuthenticating, StateActive); err != nil {
			l.forget(conn)
			return err
		}
	case StateActive:
	default:
		l.forget(conn)
		return fmt.Errorf("%w: attach while %s", ErrInvalidTransition, conn.State())
	}

	if !conn.claimListeners() {
		log.Warn("Listeners already registered for connection")
		return nil
	}

	// disconnect goes first so a close from here on always reaches Disconnect.
	sock.On(EventDisconnect, func(args ...any) error {
		l.Disconnect(connID)
		return nil
	})
	sock.On(EventJoinRoom, l.guard(conn, EventJoinRoom, func(args ...any) error {
		return l.joinRoom(conn, sock, args)
	}))
	sock.On(EventJoinStream, l.guard(conn, EventJoinStream, func(args ...any) error {
		return l.joinRoom(conn, sock, args)
	}))
	sock.On(EventSendMessage, l.guard(conn, EventSendMessage, func(args ...any) error {
		return l.sendMessage(conn, args)
	}))
	for _, event := range []string{EventOffer, EventAnswer, EventICECandidate} {
		sock.On(event, l.guard(conn, event, l.relaySignal(sock, event)))
	}
	for event, field := range screenShareFields {
		sock.On(event, l.guard(conn, event, l.relayScreenShare(sock, event, field)))
	}

	l.registry.Register(userID, connID)
	// A Disconnect that ran before Register released nothing; undo it here.
	if conn.State() != StateActive {
		l.registry.Release(userID, connID)
		return nil
	}
	// The socket closed before its disconnect listener existed.
	if !sock.Connected() {
		l.Disconnect(connID)
		return nil
	}
	log.Info("User connected")
	return nil
}

// Disconnect ends the connection and frees its registry slot. Safe to call
// more than once.
func (l *Lifecycle) Disconnect(connID core.ConnID) {
	l.mu.Lock()
	conn, ok := l.conns[connID]
	delete(l.conns, connID)
	l.mu.Unlock()
	if !ok {
		return
	}

	prev := conn.close()
	userID := conn.UserID()
	released := false
	if userID != "" {
		released = l.registry.Release(userID, connID)
	}
	logrus.WithFields(logrus.Fields{
		"conn_id":  connID,
		"user_id":  userID,
		"from":     prev.String(),
		"released": released,
	}).Info("User disconnected")
}

func (l *Lifecycle) Connection(connID core.ConnID) (*Connection, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	conn, ok := l.conns[connID]
	return conn, ok
}

// Active returns the number of connections in the Active state.
func (l *Lifecycle) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, conn := range l.conns {
		if conn.State() == StateActive {
			n++
		}
	}
	return n
}

func (l *Lifecycle) forget(conn *Connection) {
	conn.close()
	l.mu.Lock()
	if l.conns[conn.ID()] == conn {
		delete(l.conns, conn.ID())
	}
	l.mu.Unlock()
}

// guard serializes handling per connection, refuses events on inactive
// connections and turns failures (panics included) into logged errors.
func (l *Lifecycle) guard(conn *Connection, event string, h Handler) Handler {
	return func(args ...any) (err error) {
		conn.inbound.Lock()
		defer conn.inbound.Unlock()

		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%s handler panic: %v", event, rec)
			}
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"conn_id": conn.ID(),
					"user_id": conn.UserID(),
					"event":   event,
				}).Warn("Inbound event failed")
			}
		}()

		if conn.State() != StateActive {
			return ErrNotActive
		}
		return h(args...)
	}
}

func (l *Lifecycle) sendMessage(conn *Connection, args []any) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: message body is required", ErrBadPayload)
	}
	var p SendMessagePayload
	if err := decodeArg(args[0], &p); err != nil {
		return err
	}

	senderID := conn.UserID()
	if p.SenderID != "" && p.SenderID != senderID {
		logrus.WithFields(logrus.Fields{
			"conn_id":        conn.ID(),
			"user_id":        senderID,
			"claimed_sender": p.SenderID,
		}).Warn("Ignoring sender id that does not match the connection")
	}

	msg := &core.Message{
		SenderID:       senderID,
		Content:        p.Content,
		IsGroupMessage: p.isGroup(),
		CreatedAt:      time.Now().UTC(),
	}
	if msg.IsGroupMessage {
		msg.GroupID = p.GroupID
	} else {
		msg.ReceiverID = p.ReceiverID
	}

	ctx := l.ctx
	var group *core.Group
	if msg.IsGroupMessage {
		var err error
		group, err = l.groups.FindGroup(ctx, msg.GroupID)
		if err != nil {
			return fmt.Errorf("load group %s: %w", msg.GroupID, err)
		}
	}

	id, err := l.messages.SaveMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	msg.ID = id

	if group != nil {
		l.router.AnnounceMessage(msg, group.Members, group.Name)
	} else {
		l.router.AnnounceMessage(msg, []core.UserID{msg.ReceiverID}, "")
	}
	return nil
}
