package presence

import (
	"net/http"

	"social-server/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type (
	Directory interface {
		Resolve(userID core.UserID) (core.ConnID, bool)
		Online() []core.UserID
	}

	UserPresence struct {
		UserID core.UserID `json:"userId"`
		Online bool        `json:"online"`
	}

	OnlineResponse struct {
		Users []core.UserID `json:"users"`
		Count int           `json:"count"`
	}
)

func HandleList(directory Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := directory.Online()
		render.JSON(w, r, OnlineResponse{Users: users, Count: len(users)})
	}
}

func HandleGet(directory Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := core.UserID(chi.URLParam(r, "userId"))
		_, online := directory.Resolve(userID)
		render.JSON(w, r, UserPresence{UserID: userID, Online: online})
	}
}
