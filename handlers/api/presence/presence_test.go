package presence

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"social-server/core"
	"social-server/realtime"

	"github.com/go-chi/chi/v5"
)

func TestPresence(t *testing.T) {
	registry := realtime.NewRegistry()
	registry.Register("bob", "c2")
	registry.Register("alice", "c1")

	r := chi.NewRouter()
	r.Get("/presence", HandleList(registry))
	r.Get("/presence/{userId}", HandleGet(registry))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/presence", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var list OnlineResponse
	if err := json.NewDecoder(rr.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 2 || !reflect.DeepEqual(list.Users, []core.UserID{"alice", "bob"}) {
		t.Errorf("online = %+v", list)
	}

	for userID, want := range map[core.UserID]bool{"alice": true, "carol": false} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/presence/"+string(userID), nil))
		var got UserPresence
		if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got != (UserPresence{UserID: userID, Online: want}) {
			t.Errorf("presence(%s) = %+v, want online=%v", userID, got, want)
		}
	}
}
