package core

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
)

// ErrNotFound is wrapped by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type (
	UserID  string
	ConnID  string
	RoomID  string
	GroupID string

	Message struct {
		ID             string    `json:"id"`
		SenderID       UserID    `json:"sender"`
		ReceiverID     UserID    `json:"receiver,omitempty"`
		GroupID        GroupID   `json:"groupId,omitempty"`
		IsGroupMessage bool      `json:"isGroupMessage"`
		Content        string    `json:"content"`
		FilePath       string    `json:"filePath,omitempty"`
		FileType       string    `json:"fileType,omitempty"`
		IsRead         bool      `json:"isRead"`
		CreatedAt      time.Time `json:"createdAt"`
	}

	Group struct {
		ID      GroupID  `json:"id"`
		Name    string   `json:"name"`
		Members []UserID `json:"members"`
	}

	Notification struct {
		ID          string    `json:"id"`
		RecipientID UserID    `json:"recipient"`
		SenderID    UserID    `json:"sender,omitempty"`
		Type        string    `json:"type"`
		Message     string    `json:"message"`
		IsRead      bool      `json:"isRead"`
		Data        any       `json:"data,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	MessageStore interface {
		SaveMessage(ctx context.Context, message *Message) (string, error)
		FindMessage(ctx context.Context, id string) (*Message, error)
		DeleteMessage(ctx context.Context, id string) error
		ListConversation(ctx context.Context, a, b UserID) ([]Message, error)
		ListGroupMessages(ctx context.Context, groupID GroupID) ([]Message, error)
	}

	GroupStore interface {
		SaveGroup(ctx context.Context, group *Group) (GroupID, error)
		FindGroup(ctx context.Context, id GroupID) (*Group, error)
	}

	NotificationStore interface {
		SaveNotification(ctx context.Context, notification *Notification) (string, error)
	}

	// IdentityVerifier turns a bearer credential into a trusted user id.
	IdentityVerifier interface {
		Verify(ctx context.Context, token string) (UserID, error)
	}
)

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID UserID) bool {
	return lo.Contains(g.Members, userID)
}
