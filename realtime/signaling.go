package realtime

import (
	"fmt"

	"social-server/core"

	"github.com/sirupsen/logrus"
)

// screenShareFields maps each screen-share event to the payload field it carries.
var screenShareFields = map[string]string{
	EventScreenShareOffer:        "offer",
	EventScreenShareAnswer:       "answer",
	EventScreenShareICECandidate: "candidate",
}

// joinRoom adds the socket to a transport room. There is no authorization
// check; membership lives in the transport.
func (l *Lifecycle) joinRoom(conn *Connection, sock Socket, args []any) error {
	roomID, err := stringArg(args, 0, "room id")
	if err != nil {
		return err
	}
	sock.Join(core.RoomID(roomID))
	logrus.WithFields(logrus.Fields{
		"conn_id": conn.ID(),
		"user_id": conn.UserID(),
		"room_id": roomID,
	}).Debug("Joined room")
	return nil
}

// relaySignal forwards a (streamId, payload) signaling event, untouched, to
// the other sockets of the stream room.
func (l *Lifecycle) relaySignal(sock Socket, event string) Handler {
	return func(args ...any) error {
		streamID, err := stringArg(args, 0, "stream id")
		if err != nil {
			return err
		}
		if len(args) < 2 {
			return fmt.Errorf("%w: %s payload is required", ErrBadPayload, event)
		}
		return sock.Relay(core.RoomID(streamID), event, args[1])
	}
}

// relayScreenShare forwards {streamId, <field>} as {senderSocketId, <field>}.
func (l *Lifecycle) relayScreenShare(sock Socket, event, field string) Handler {
	return func(args ...any) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: %s payload is required", ErrBadPayload, event)
		}
		var p ScreenSharePayload
		if err := decodeArg(args[0], &p); err != nil {
			return err
		}

		var value any
		switch field {
		case "offer":
			value = p.Offer
		case "answer":
			value = p.Answer
		default:
			value = p.Candidate
		}
		return sock.Relay(p.StreamID, event, map[string]any{
			"senderSocketId": sock.ID(),
			field:            value,
		})
	}
}
