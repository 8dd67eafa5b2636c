package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"social-server/core"
	"social-server/middleware"
	"social-server/realtime"
)

type mockNotificationStore struct {
	saved   []core.Notification
	saveErr error
}

func (m *mockNotificationStore) SaveNotification(_ context.Context, n *core.Notification) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.saved = append(m.saved, *n)
	return "n-" + string(n.RecipientID), nil
}

type mockNotifier struct {
	pushed map[core.UserID]any
}

func (m *mockNotifier) DeliverNotification(recipientID core.UserID, notification any) realtime.Report {
	m.pushed[recipientID] = notification
	return realtime.Report{Targets: 1}
}

func post(h http.HandlerFunc, user core.UserID, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/notifications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), user))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleCreate(t *testing.T) {
	store := &mockNotificationStore{}
	notifier := &mockNotifier{pushed: map[core.UserID]any{}}
	h := HandleCreate(store, notifier)

	rr := post(h, "admin", `{"recipients":["bob","carol","bob"],"type":"system","message":"Maintenance at 22:00","data":{"window":"1h"}}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if len(store.saved) != 2 {
		t.Fatalf("saved %d notifications, want 2", len(store.saved))
	}
	for _, n := range store.saved {
		if n.SenderID != "admin" || n.Type != "system" || n.CreatedAt.IsZero() {
			t.Errorf("saved notification = %+v", n)
		}
	}

	pushed, ok := notifier.pushed["bob"].(core.Notification)
	if !ok {
		t.Fatalf("bob was not notified: %+v", notifier.pushed)
	}
	if pushed.ID != "n-bob" || pushed.Message != "Maintenance at 22:00" {
		t.Errorf("pushed = %+v", pushed)
	}

	var resp CreateNotificationResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Notifications) != 2 {
		t.Errorf("response notifications = %d, want 2", len(resp.Notifications))
	}
}

func TestHandleCreate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		user core.UserID
		body string
		want int
	}{
		{"no identity", "", `{"recipients":["bob"],"type":"system","message":"hi"}`, http.StatusUnauthorized},
		{"no recipients", "admin", `{"recipients":[],"type":"system","message":"hi"}`, http.StatusBadRequest},
		{"blank recipient", "admin", `{"recipients":[""],"type":"system","message":"hi"}`, http.StatusBadRequest},
		{"no message", "admin", `{"recipients":["bob"],"type":"system"}`, http.StatusBadRequest},
		{"broken json", "admin", `{"recipients":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &mockNotifier{pushed: map[core.UserID]any{}}
			rr := post(HandleCreate(&mockNotificationStore{}, notifier), tt.user, tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if len(notifier.pushed) != 0 {
				t.Errorf("pushed %d notifications on a rejected request", len(notifier.pushed))
			}
		})
	}
}

func TestHandleCreate_StoreFailure(t *testing.T) {
	notifier := &mockNotifier{pushed: map[core.UserID]any{}}
	h := HandleCreate(&mockNotificationStore{saveErr: errors.New("disk full")}, notifier)

	rr := post(h, "admin", `{"recipients":["bob"],"type":"system","message":"hi"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	if len(notifier.pushed) != 0 {
		t.Error("notification pushed although it was not stored")
	}
}
