package streams

import (
	"net/http"

	"social-server/core"
	"social-server/middleware"
	"social-server/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	ScreenShareRequest struct {
		Active *bool `json:"active"`
	}

	Broadcaster interface {
		DeliverToRoom(roomID core.RoomID, event string, payload any) realtime.Report
	}
)

// HandleScreenShare announces that the caller started or stopped sharing
// their screen to everyone joined to the stream room.
func HandleScreenShare(broadcaster Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Not authenticated"})
			return
		}
		streamID := core.RoomID(chi.URLParam(r, "streamId"))

		var req ScreenShareRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil || req.Active == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "active is required"})
			return
		}

		event := realtime.EventStopScreenShare
		if *req.Active {
			event = realtime.EventStartScreenShare
		}
		report := broadcaster.DeliverToRoom(streamID, event, realtime.ScreenShareState{
			StreamID: streamID,
			UserID:   userID,
		})
		logrus.WithFields(logrus.Fields{
			"room_id": streamID,
			"user_id": userID,
			"event":   event,
			"failed":  report.Failed,
		}).Debug("Screen share state broadcast")

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]any{"streamId": streamID, "event": event})
	}
}
