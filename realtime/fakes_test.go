package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"social-server/core"
)

type emitted struct {
	target string
	event  string
	args   []any
}

type fakeTransport struct {
	mu      sync.Mutex
	emits   []emitted
	failFor map[core.ConnID]error
	panicOn map[core.ConnID]bool
	rooms   map[core.RoomID][]core.ConnID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failFor: map[core.ConnID]error{},
		panicOn: map[core.ConnID]bool{},
		rooms:   map[core.RoomID][]core.ConnID{},
	}
}

func (t *fakeTransport) EmitTo(conn core.ConnID, event string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.panicOn[conn] {
		panic("transport exploded")
	}
	if err := t.failFor[conn]; err != nil {
		return err
	}
	t.emits = append(t.emits, emitted{target: string(conn), event: event, args: args})
	return nil
}

func (t *fakeTransport) EmitToRoom(room core.RoomID, event string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emits = append(t.emits, emitted{target: "room:" + string(room), event: event, args: args})
	for _, conn := range t.rooms[room] {
		t.emits = append(t.emits, emitted{target: string(conn), event: event, args: args})
	}
	return nil
}

func (t *fakeTransport) join(conn core.ConnID, room core.RoomID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rooms[room] = append(t.rooms[room], conn)
}

func (t *fakeTransport) to(target string) []emitted {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []emitted
	for _, e := range t.emits {
		if e.target == target {
			out = append(out, e)
		}
	}
	return out
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.emits)
}

type relayed struct {
	room  core.RoomID
	event string
	args  []any
}

type fakeSocket struct {
	id  core.ConnID
	hub *fakeTransport

	mu       sync.Mutex
	closed   bool
	rooms    []core.RoomID
	relays   []relayed
	handlers map[string][]Handler
	// onListen runs after each On call, outside the lock.
	onListen func(event string)
}

func newFakeSocket(id core.ConnID) *fakeSocket {
	return &fakeSocket{id: id, handlers: map[string][]Handler{}}
}

func (s *fakeSocket) ID() core.ConnID { return s.id }

func (s *fakeSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// close marks the socket closed and fires disconnect to whatever listeners
// exist at that moment, which may be none.
func (s *fakeSocket) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.trigger(EventDisconnect, "transport close")
}

func (s *fakeSocket) Join(room core.RoomID) {
	s.mu.Lock()
	s.rooms = append(s.rooms, room)
	s.mu.Unlock()
	if s.hub != nil {
		s.hub.join(s.id, room)
	}
}

func (s *fakeSocket) Relay(room core.RoomID, event string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relays = append(s.relays, relayed{room: room, event: event, args: args})
	return nil
}

func (s *fakeSocket) On(event string, handler Handler) {
	s.mu.Lock()
	s.handlers[event] = append(s.handlers[event], handler)
	s.mu.Unlock()
	if s.onListen != nil {
		s.onListen(event)
	}
}

// trigger runs every handler registered for event, as the transport would.
func (s *fakeSocket) trigger(event string, args ...any) error {
	s.mu.Lock()
	hs := append([]Handler(nil), s.handlers[event]...)
	s.mu.Unlock()
	var errs []error
	for _, h := range hs {
		errs = append(errs, h(args...))
	}
	return errors.Join(errs...)
}

func (s *fakeSocket) listenerCount(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers[event])
}

// fakeVerifier accepts tokens of the form "token-<userID>".
type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, token string) (core.UserID, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", errors.New("bad signature")
	}
	return core.UserID(token[len(prefix):]), nil
}

type fakeMessageStore struct {
	mu      sync.Mutex
	saved   []core.Message
	saveErr error
}

func (s *fakeMessageStore) SaveMessage(_ context.Context, m *core.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	id := fmt.Sprintf("msg-%d", len(s.saved)+1)
	stored := *m
	stored.ID = id
	s.saved = append(s.saved, stored)
	return id, nil
}

func (s *fakeMessageStore) FindMessage(_ context.Context, id string) (*core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.saved {
		if m.ID == id {
			found := m
			return &found, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *fakeMessageStore) DeleteMessage(context.Context, string) error { return nil }

func (s *fakeMessageStore) ListConversation(context.Context, core.UserID, core.UserID) ([]core.Message, error) {
	return nil, nil
}

func (s *fakeMessageStore) ListGroupMessages(context.Context, core.GroupID) ([]core.Message, error) {
	return nil, nil
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakeGroupStore map[core.GroupID]*core.Group

func (s fakeGroupStore) SaveGroup(_ context.Context, g *core.Group) (core.GroupID, error) {
	s[g.ID] = g
	return g.ID, nil
}

func (s fakeGroupStore) FindGroup(_ context.Context, id core.GroupID) (*core.Group, error) {
	g, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, core.ErrNotFound)
	}
	return g, nil
}

func (f *fixture) tracked() int {
	f.lifecycle.mu.RLock()
	defer f.lifecycle.mu.RUnlock()
	return len(f.lifecycle.conns)
}

type fixture struct {
	registry  *Registry
	transport *fakeTransport
	router    *Router
	messages  *fakeMessageStore
	groups    fakeGroupStore
	lifecycle *Lifecycle
}

func newFixture() *fixture {
	f := &fixture{
		registry:  NewRegistry(),
		transport: newFakeTransport(),
		messages:  &fakeMessageStore{},
		groups:    fakeGroupStore{},
	}
	f.router = NewRouter(f.registry, f.transport)
	f.lifecycle = NewLifecycle(context.Background(), f.registry, f.router, fakeVerifier{}, f.messages, f.groups)
	return f
}

// connect authenticates and attaches a socket for userID.
func (f *fixture) connect(connID core.ConnID, userID core.UserID) (*fakeSocket, error) {
	conn, err := f.lifecycle.Authenticate(context.Background(), connID, "token-"+string(userID))
	if err != nil {
		return nil, err
	}
	sock := newFakeSocket(connID)
	sock.hub = f.transport
	return sock, f.lifecycle.Attach(sock, conn)
}
