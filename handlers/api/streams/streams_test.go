package streams

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"social-server/core"
	"social-server/middleware"
	"social-server/realtime"

	"github.com/go-chi/chi/v5"
)

type broadcast struct {
	room    core.RoomID
	event   string
	payload any
}

type mockBroadcaster struct {
	sent []broadcast
}

func (m *mockBroadcaster) DeliverToRoom(roomID core.RoomID, event string, payload any) realtime.Report {
	m.sent = append(m.sent, broadcast{room: roomID, event: event, payload: payload})
	return realtime.Report{Targets: 1, Attempted: 1}
}

func TestHandleScreenShare(t *testing.T) {
	b := &mockBroadcaster{}
	r := chi.NewRouter()
	r.Post("/streams/{streamId}/screen-share", HandleScreenShare(b))

	tests := []struct {
		name      string
		user      core.UserID
		body      string
		wantCode  int
		wantEvent string
	}{
		{"start", "alice", `{"active":true}`, http.StatusAccepted, realtime.EventStartScreenShare},
		{"stop", "alice", `{"active":false}`, http.StatusAccepted, realtime.EventStopScreenShare},
		{"missing flag", "alice", `{}`, http.StatusBadRequest, ""},
		{"no identity", "", `{"active":true}`, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.sent = nil
			req := httptest.NewRequest(http.MethodPost, "/streams/s1/screen-share", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.user != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), tt.user))
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantEvent == "" {
				if len(b.sent) != 0 {
					t.Errorf("broadcast sent on rejected request: %+v", b.sent)
				}
				return
			}
			if len(b.sent) != 1 {
				t.Fatalf("broadcasts = %d, want 1", len(b.sent))
			}
			got := b.sent[0]
			want := realtime.ScreenShareState{StreamID: "s1", UserID: "alice"}
			if got.room != "s1" || got.event != tt.wantEvent || got.payload != want {
				t.Errorf("broadcast = %+v", got)
			}
		})
	}
}
