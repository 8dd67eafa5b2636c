package notifications

import (
	"net/http"
	"time"

	"social-server/core"
	"social-server/middleware"
	"social-server/realtime"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type (
	CreateNotificationRequest struct {
		Recipients []core.UserID `json:"recipients" validate:"required,min=1,dive,required"`
		Type       string        `json:"type" validate:"required,max=64"`
		Message    string        `json:"message" validate:"required,max=1000"`
		Data       any           `json:"data"`
	}

	CreateNotificationResponse struct {
		Notifications []core.Notification `json:"notifications"`
	}

	Notifier interface {
		DeliverNotification(recipientID core.UserID, notification any) realtime.Report
	}
)

// HandleCreate stores one notification per recipient and pushes each to its
// recipient if they are online.
func HandleCreate(store core.NotificationStore, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Not authenticated"})
			return
		}

		var req CreateNotificationRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		now := time.Now().UTC()
		created := make([]core.Notification, 0, len(req.Recipients))
		for _, recipientID := range lo.Uniq(req.Recipients) {
			notification := core.Notification{
				RecipientID: recipientID,
				SenderID:    senderID,
				Type:        req.Type,
				Message:     req.Message,
				Data:        req.Data,
				CreatedAt:   now,
			}
			id, err := store.SaveNotification(r.Context(), &notification)
			if err != nil {
				logrus.WithError(err).WithField("user_id", recipientID).Error("Failed to save notification")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to create notifications"})
				return
			}
			notification.ID = id
			created = append(created, notification)
		}

		// Everything is stored before anything is pushed.
		for _, notification := range created {
			notifier.DeliverNotification(notification.RecipientID, notification)
		}

		logrus.WithFields(logrus.Fields{
			"user_id":    senderID,
			"recipients": len(created),
			"type":       req.Type,
		}).Info("Notifications created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateNotificationResponse{Notifications: created})
	}
}
