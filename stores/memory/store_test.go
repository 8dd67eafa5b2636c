package memory

import (
	"context"
	"testing"

	"social-server/core"
	"social-server/stores/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store {
		return NewStore()
	})
}

func TestSaveMessage_KeepsCallerCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	msg := &core.Message{SenderID: "alice", ReceiverID: "bob", Content: "hello"}
	id, err := store.SaveMessage(ctx, msg)
	if err != nil {
		t.Fatalf("SaveMessage() failed: %v", err)
	}
	if msg.ID != "" {
		t.Errorf("SaveMessage() modified the caller's message: ID = %q", msg.ID)
	}

	msg.Content = "edited"
	got, err := store.FindMessage(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "hello" {
		t.Errorf("stored content = %q, want hello", got.Content)
	}
}

func TestSaveNotification_Stored(t *testing.T) {
	store := NewStore()
	id, err := store.SaveNotification(context.Background(), &core.Notification{RecipientID: "bob", Type: "message"})
	if err != nil {
		t.Fatal(err)
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	if n, ok := store.notifications[id]; !ok || n.RecipientID != "bob" {
		t.Errorf("notification %s not stored: %+v", id, n)
	}
}
