package realtime

import (
	"errors"

	"social-server/core"
)

// Inbound events, emitted by clients.
const (
	EventJoinRoom                = "join-room"
	EventJoinStream              = "join-stream"
	EventSendMessage             = "send-message"
	EventOffer                   = "offer"
	EventAnswer                  = "answer"
	EventICECandidate            = "ice-candidate"
	EventScreenShareOffer        = "screen-share-offer"
	EventScreenShareAnswer       = "screen-share-answer"
	EventScreenShareICECandidate = "screen-share-ice-candidate"
	EventDisconnect              = "disconnect"
)

// Outbound events, emitted by the server.
const (
	EventReceiveMessage   = "receive-message"
	EventNewNotification  = "new-notification"
	EventMessageDeleted   = "message-deleted"
	EventStartScreenShare = "start-screen-share"
	EventStopScreenShare  = "stop-screen-share"
)

const (
	NotificationTypeMessage      = "message"
	NotificationTypeGroupMessage = "group-message"
)

var (
	ErrMissingToken      = errors.New("authentication token is required")
	ErrInvalidToken      = errors.New("invalid authentication token")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrInvalidTransition = errors.New("invalid connection state transition")
	ErrNotActive         = errors.New("connection is not active")
	ErrBadPayload        = errors.New("malformed event payload")
)

type (
	// Handler processes one inbound event. A returned error is reported to the
	// client's ack, if any, and never closes the connection.
	Handler func(args ...any) error

	// Socket is the per-connection surface of the transport.
	Socket interface {
		ID() core.ConnID
		Join(room core.RoomID)
		// Relay emits to every socket in room except this one.
		Relay(room core.RoomID, event string, args ...any) error
		On(event string, handler Handler)
		// Connected is false once the transport has closed the socket.
		Connected() bool
	}

	// Transport is the server-wide emit surface of the transport.
	Transport interface {
		EmitTo(conn core.ConnID, event string, args ...any) error
		EmitToRoom(room core.RoomID, event string, args ...any) error
	}
)

type (
	SendMessagePayload struct {
		SenderID       core.UserID  `json:"senderId"`
		ReceiverID     core.UserID  `json:"receiverId" validate:"required_without=GroupID"`
		GroupID        core.GroupID `json:"groupId" validate:"required_if=IsGroupMessage true"`
		IsGroupMessage bool         `json:"isGroupMessage"`
		Content        string       `json:"content" validate:"required,max=5000"`
	}

	ScreenSharePayload struct {
		StreamID  core.RoomID `json:"streamId" validate:"required"`
		Offer     any         `json:"offer"`
		Answer    any         `json:"answer"`
		Candidate any         `json:"candidate"`
	}

	DeletedPayload struct {
		MessageID string `json:"messageId"`
	}

	NotificationPayload struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Data    any    `json:"data,omitempty"`
	}

	ScreenShareState struct {
		StreamID core.RoomID `json:"streamId"`
		UserID   core.UserID `json:"userId"`
	}
)

func (p SendMessagePayload) isGroup() bool {
	return p.IsGroupMessage || p.GroupID != ""
}

// DeletionScope names who saw the retracted item: one recipient, or the
// members of a group.
type DeletionScope struct {
	RecipientID core.UserID
	GroupID     core.GroupID
	MemberIDs   []core.UserID
}

func (s DeletionScope) IsGroup() bool { return s.GroupID != "" }

// OutboundEvent is one of DirectMessage, GroupMessage, RoomBroadcast,
// Notification or Deletion.
type OutboundEvent interface {
	outbound()
}

type (
	DirectMessage struct {
		RecipientID core.UserID
		Payload     any
	}

	GroupMessage struct {
		GroupID   core.GroupID
		MemberIDs []core.UserID
		Payload   any
	}

	RoomBroadcast struct {
		RoomID  core.RoomID
		Event   string
		Payload any
	}

	Notification struct {
		RecipientID core.UserID
		Payload     any
	}

	Deletion struct {
		TargetID string
		Scope    DeletionScope
	}
)

func (DirectMessage) outbound() {}
func (GroupMessage) outbound()  {}
func (RoomBroadcast) outbound() {}
func (Notification) outbound()  {}
func (Deletion) outbound()      {}
