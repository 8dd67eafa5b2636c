package websocket

import (
	"context"
	"strings"

	"social-server/config"
	"social-server/core"
	"social-server/realtime"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// SetupSocketIO builds the socket.io server. Nothing is accepted until
// BindLifecycle installs the handshake and connection handlers.
func SetupSocketIO(cfg *config.Config) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(cfg.MaxHTTPBufferSize)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetPingInterval(cfg.PingInterval)
	opts.SetPingTimeout(cfg.PingTimeout)
	opts.SetCors(&types.Cors{
		Origin:      corsOrigin(cfg.AllowedOrigins),
		Credentials: true,
	})
	return socketio.NewServer(nil, opts)
}

// NewTransport is what the router emits through.
func NewTransport(srv *socketio.Server) realtime.Transport {
	return &serverTransport{srv: srv}
}

// BindLifecycle hands handshake and connection events to lifecycle.
func BindLifecycle(srv *socketio.Server, lifecycle *realtime.Lifecycle) {
	srv.Use(func(socket *socketio.Socket, next func(*socketio.ExtendedError)) {
		connID := core.ConnID(socket.Id())
		token := tokenFromAuth(any(socket.Handshake().Auth))
		conn, err := lifecycle.Authenticate(context.Background(), connID, token)
		if err != nil {
			next(socketio.NewExtendedError(err.Error(), nil))
			return
		}
		socket.SetData(conn)
		next(nil)
	})

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		utils.Log().Printf("socket %v connected\n", socket.Id())

		conn, _ := socket.Data().(*realtime.Connection)
		if err := lifecycle.Attach(&socketAdapter{socket: socket}, conn); err != nil {
			logrus.WithError(err).WithField("conn_id", socket.Id()).Warn("Dropping unattached socket")
			socket.Disconnect(true)
		}
	})
}

func corsOrigin(origins []string) any {
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		return true
	}
	allowed := make([]any, 0, len(origins))
	for _, origin := range origins {
		allowed = append(allowed, origin)
	}
	return allowed
}

// tokenFromAuth reads the credential from the handshake auth object.
func tokenFromAuth(auth any) string {
	var token string
	switch a := auth.(type) {
	case map[string]any:
		token, _ = a["token"].(string)
	case map[string]string:
		token = a["token"]
	case string:
		token = a
	}
	return strings.TrimSpace(token)
}

// socketAdapter exposes one socket.io socket to the realtime package.
type socketAdapter struct {
	socket *socketio.Socket
}

func (s *socketAdapter) ID() core.ConnID { return core.ConnID(s.socket.Id()) }

func (s *socketAdapter) Connected() bool { return s.socket.Connected() }

func (s *socketAdapter) Join(room core.RoomID) {
	s.socket.Join(socketio.Room(room))
	utils.Log().Printf("socket %v has joined %v\n", s.socket.Id(), room)
}

func (s *socketAdapter) Relay(room core.RoomID, event string, args ...any) error {
	return s.socket.Broadcast().To(socketio.Room(room)).Emit(event, args...)
}

func (s *socketAdapter) On(event string, handler realtime.Handler) {
	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	s.socket.On(event, func(datas ...any) {
		ack, args := extractAck(datas)
		err := handler(args...)
		if ack != nil {
			ack(err, ackPayload(err))
		}
	})
}

// serverTransport emits through the server. Every socket sits in a room named
// after its own id, so a single connection is addressed as a room.
type serverTransport struct {
	srv *socketio.Server
}

func (t *serverTransport) EmitTo(conn core.ConnID, event string, args ...any) error {
	return t.srv.To(socketio.Room(conn)).Emit(event, args...)
}

func (t *serverTransport) EmitToRoom(room core.RoomID, event string, args ...any) error {
	return t.srv.To(socketio.Room(room)).Emit(event, args...)
}
