// Package storetest holds the behavior every store backend must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"social-server/core"
)

type Store interface {
	core.MessageStore
	core.GroupStore
	core.NotificationStore
}

// Run exercises newStore against the store contract. Each subtest gets a
// fresh store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndFindMessage", func(t *testing.T) { testSaveAndFindMessage(t, newStore(t)) })
	t.Run("DeleteMessage", func(t *testing.T) { testDeleteMessage(t, newStore(t)) })
	t.Run("ListConversation", func(t *testing.T) { testListConversation(t, newStore(t)) })
	t.Run("ListGroupMessages", func(t *testing.T) { testListGroupMessages(t, newStore(t)) })
	t.Run("Groups", func(t *testing.T) { testGroups(t, newStore(t)) })
	t.Run("SaveNotification", func(t *testing.T) { testSaveNotification(t, newStore(t)) })
	t.Run("ConcurrentSaves", func(t *testing.T) { testConcurrentSaves(t, newStore(t)) })
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func direct(from, to core.UserID, content string, offset time.Duration) *core.Message {
	return &core.Message{
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		CreatedAt:  base.Add(offset),
	}
}

func testSaveAndFindMessage(t *testing.T, s Store) {
	ctx := context.Background()
	msg := direct("alice", "bob", "hello", 0)
	msg.FilePath = "/uploads/cat.png"
	msg.FileType = "image/png"

	id, err := s.SaveMessage(ctx, msg)
	if err != nil {
		t.Fatalf("SaveMessage() error = %v", err)
	}
	if len(id) != 26 {
		t.Errorf("SaveMessage() returned invalid ID length: got %d, want 26", len(id))
	}

	got, err := s.FindMessage(ctx, id)
	if err != nil {
		t.Fatalf("FindMessage() error = %v", err)
	}
	if !got.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("FindMessage() CreatedAt = %v, want %v", got.CreatedAt, msg.CreatedAt)
	}
	want := *msg
	want.ID = id
	want.CreatedAt = time.Time{}
	found := *got
	found.CreatedAt = time.Time{}
	if !reflect.DeepEqual(found, want) {
		t.Errorf("FindMessage() = %+v, want %+v", found, want)
	}

	if _, err := s.FindMessage(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindMessage(missing) error = %v, want ErrNotFound", err)
	}
}

func testDeleteMessage(t *testing.T, s Store) {
	ctx := context.Background()
	id, err := s.SaveMessage(ctx, direct("alice", "bob", "oops", 0))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteMessage(ctx, id); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if _, err := s.FindMessage(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindMessage() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteMessage(ctx, id); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second DeleteMessage() error = %v, want ErrNotFound", err)
	}
}

func testListConversation(t *testing.T, s Store) {
	ctx := context.Background()
	for _, m := range []*core.Message{
		direct("bob", "alice", "second", 2*time.Second),
		direct("alice", "bob", "first", time.Second),
		direct("alice", "carol", "elsewhere", 0),
		direct("alice", "bob", "third", 3*time.Second),
	} {
		if _, err := s.SaveMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	for _, pair := range [][2]core.UserID{{"alice", "bob"}, {"bob", "alice"}} {
		got, err := s.ListConversation(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("ListConversation() error = %v", err)
		}
		var contents []string
		for _, m := range got {
			contents = append(contents, m.Content)
		}
		if want := []string{"first", "second", "third"}; !reflect.DeepEqual(contents, want) {
			t.Errorf("ListConversation(%s, %s) = %v, want %v", pair[0], pair[1], contents, want)
		}
	}

	got, err := s.ListConversation(ctx, "bob", "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("ListConversation(bob, carol) = %d messages, want 0", len(got))
	}
}

func testListGroupMessages(t *testing.T, s Store) {
	ctx := context.Background()
	for i, groupID := range []core.GroupID{"g1", "g2", "g1"} {
		_, err := s.SaveMessage(ctx, &core.Message{
			SenderID:       "alice",
			GroupID:        groupID,
			IsGroupMessage: true,
			Content:        fmt.Sprintf("m%d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListGroupMessages(ctx, "g1")
	if err != nil {
		t.Fatalf("ListGroupMessages() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "m0" || got[1].Content != "m2" {
		t.Errorf("ListGroupMessages(g1) = %+v", got)
	}
}

func testGroups(t *testing.T, s Store) {
	ctx := context.Background()

	id, err := s.SaveGroup(ctx, &core.Group{Name: "climbers", Members: []core.UserID{"alice", "bob", "alice"}})
	if err != nil {
		t.Fatalf("SaveGroup() error = %v", err)
	}
	if id == "" {
		t.Fatal("SaveGroup() returned empty ID")
	}

	got, err := s.FindGroup(ctx, id)
	if err != nil {
		t.Fatalf("FindGroup() error = %v", err)
	}
	want := core.Group{ID: id, Name: "climbers", Members: []core.UserID{"alice", "bob"}}
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("FindGroup() = %+v, want %+v", *got, want)
	}

	// Callers may not mutate the stored member list.
	got.Members[0] = "mallory"
	again, err := s.FindGroup(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if again.Members[0] != "alice" {
		t.Errorf("stored members changed through returned group: %v", again.Members)
	}

	if _, err := s.FindGroup(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindGroup(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.SaveGroup(ctx, &core.Group{Members: []core.UserID{"alice"}}); err == nil {
		t.Error("SaveGroup() without a name succeeded")
	}
}

func testSaveNotification(t *testing.T, s Store) {
	ctx := context.Background()
	id, err := s.SaveNotification(ctx, &core.Notification{
		RecipientID: "bob",
		SenderID:    "alice",
		Type:        "message",
		Message:     "New message from alice",
		Data:        map[string]any{"messageId": "m1"},
		CreatedAt:   base,
	})
	if err != nil {
		t.Fatalf("SaveNotification() error = %v", err)
	}
	if id == "" {
		t.Error("SaveNotification() returned empty ID")
	}
}

func testConcurrentSaves(t *testing.T, s Store) {
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.SaveMessage(ctx, direct("alice", "bob", fmt.Sprintf("m%d", i), time.Duration(i)*time.Millisecond))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent SaveMessage() error = %v", err)
		}
	}
	got, err := s.ListConversation(ctx, "alice", "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != n {
		t.Errorf("ListConversation() = %d messages, want %d", len(got), n)
	}
}
