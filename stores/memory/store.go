package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"social-server/core"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type store struct {
	mu            sync.RWMutex
	messages      map[string]core.Message
	groups        map[core.GroupID]core.Group
	notifications map[string]core.Notification
}

func NewStore() *store {
	return &store{
		messages:      make(map[string]core.Message),
		groups:        make(map[core.GroupID]core.Group),
		notifications: make(map[string]core.Notification),
	}
}

func (s *store) SaveMessage(ctx context.Context, message *core.Message) (string, error) {
	id := message.ID
	if id == "" {
		id = ulid.Make().String()
	}
	stored := *message
	stored.ID = id

	s.mu.Lock()
	s.messages[id] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"message_id": id,
		"user_id":    message.SenderID,
	}).Debug("Message saved")
	return id, nil
}

func (s *store) FindMessage(ctx context.Context, id string) (*core.Message, error) {
	s.mu.RLock()
	msg, ok := s.messages[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	return &msg, nil
}

func (s *store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return fmt.Errorf("message %s: %w", id, core.ErrNotFound)
	}
	delete(s.messages, id)
	return nil
}

func (s *store) ListConversation(ctx context.Context, a, b core.UserID) ([]core.Message, error) {
	return s.listMessages(func(m core.Message) bool {
		return !m.IsGroupMessage &&
			((m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a))
	}), nil
}

func (s *store) ListGroupMessages(ctx context.Context, groupID core.GroupID) ([]core.Message, error) {
	return s.listMessages(func(m core.Message) bool {
		return m.IsGroupMessage && m.GroupID == groupID
	}), nil
}

// listMessages returns the matching messages, oldest first.
func (s *store) listMessages(match func(core.Message) bool) []core.Message {
	s.mu.RLock()
	messages := lo.Filter(lo.Values(s.messages), func(m core.Message, _ int) bool {
		return match(m)
	})
	s.mu.RUnlock()

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages
}

func (s *store) SaveGroup(ctx context.Context, group *core.Group) (core.GroupID, error) {
	if group.Name == "" {
		return "", fmt.Errorf("group name is required")
	}
	id := group.ID
	if id == "" {
		id = core.GroupID(ulid.Make().String())
	}
	stored := core.Group{
		ID:      id,
		Name:    group.Name,
		Members: lo.Uniq(group.Members),
	}

	s.mu.Lock()
	s.groups[id] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"group_id": id,
		"members":  len(stored.Members),
	}).Debug("Group saved")
	return id, nil
}

func (s *store) FindGroup(ctx context.Context, id core.GroupID) (*core.Group, error) {
	s.mu.RLock()
	group, ok := s.groups[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, core.ErrNotFound)
	}
	group.Members = append([]core.UserID(nil), group.Members...)
	return &group, nil
}

func (s *store) SaveNotification(ctx context.Context, notification *core.Notification) (string, error) {
	id := notification.ID
	if id == "" {
		id = ulid.Make().String()
	}
	stored := *notification
	stored.ID = id

	s.mu.Lock()
	s.notifications[id] = stored
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"notification_id": id,
		"user_id":         notification.RecipientID,
	}).Debug("Notification saved")
	return id, nil
}
