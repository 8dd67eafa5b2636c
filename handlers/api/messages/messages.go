package messages

import (
	"errors"
	"net/http"
	"time"

	"social-server/core"
	"social-server/middleware"
	"social-server/realtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type (
	SendMessageRequest struct {
		ReceiverID core.UserID  `json:"receiverId" validate:"required_without=GroupID"`
		GroupID    core.GroupID `json:"groupId"`
		Content    string       `json:"content" validate:"required_without=FilePath,max=5000"`
		FilePath   string       `json:"filePath"`
		FileType   string       `json:"fileType"`
	}

	MessageResponse struct {
		Message *core.Message `json:"message"`
	}

	MessagesResponse struct {
		Messages []core.Message `json:"messages"`
	}

	// Router is the part of the event router these handlers push through.
	Router interface {
		DeliverDirect(recipientID core.UserID, payload any) realtime.Report
		AnnounceMessage(msg *core.Message, recipients []core.UserID, groupName string) realtime.Report
		DeliverDeletionNotice(targetID string, scope realtime.DeletionScope) realtime.Report
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}

// HandleSend persists a message, then routes it to the live recipients. The
// sender gets a receive-message echo when they are not a recipient already.
func HandleSend(messages core.MessageStore, groups core.GroupStore, router Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		senderID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}

		var req SendMessageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			renderError(w, r, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		msg := &core.Message{
			SenderID:  senderID,
			Content:   req.Content,
			FilePath:  req.FilePath,
			FileType:  req.FileType,
			CreatedAt: time.Now().UTC(),
		}
		recipients := []core.UserID{req.ReceiverID}
		groupName := ""
		if req.GroupID != "" {
			group, err := groups.FindGroup(r.Context(), req.GroupID)
			if errors.Is(err, core.ErrNotFound) {
				renderError(w, r, http.StatusNotFound, "Group not found")
				return
			}
			if err != nil {
				logrus.WithError(err).WithField("group_id", req.GroupID).Error("Failed to load group")
				renderError(w, r, http.StatusInternalServerError, "Failed to send message")
				return
			}
			if !group.HasMember(senderID) {
				renderError(w, r, http.StatusForbidden, "Not a member of this group")
				return
			}
			msg.GroupID = group.ID
			msg.IsGroupMessage = true
			recipients = group.Members
			groupName = group.Name
		} else {
			msg.ReceiverID = req.ReceiverID
		}

		id, err := messages.SaveMessage(r.Context(), msg)
		if err != nil {
			logrus.WithError(err).WithField("user_id", senderID).Error("Failed to save message")
			renderError(w, r, http.StatusInternalServerError, "Failed to send message")
			return
		}
		msg.ID = id

		if !lo.Contains(recipients, senderID) {
			router.DeliverDirect(senderID, msg)
		}
		router.AnnounceMessage(msg, recipients, groupName)

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, MessageResponse{Message: msg})
	}
}

// HandleDelete removes a message its caller sent and tells everyone who
// could have seen it.
func HandleDelete(messages core.MessageStore, groups core.GroupStore, router Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}
		messageID := chi.URLParam(r, "messageId")
		log := logrus.WithFields(logrus.Fields{
			"message_id": messageID,
			"user_id":    userID,
		})

		msg, err := messages.FindMessage(r.Context(), messageID)
		if errors.Is(err, core.ErrNotFound) {
			renderError(w, r, http.StatusNotFound, "Message not found")
			return
		}
		if err != nil {
			log.WithError(err).Error("Failed to load message")
			renderError(w, r, http.StatusInternalServerError, "Failed to delete message")
			return
		}
		if msg.SenderID != userID {
			renderError(w, r, http.StatusForbidden, "Only the sender can delete this message")
			return
		}

		if err := messages.DeleteMessage(r.Context(), messageID); err != nil && !errors.Is(err, core.ErrNotFound) {
			log.WithError(err).Error("Failed to delete message")
			renderError(w, r, http.StatusInternalServerError, "Failed to delete message")
			return
		}

		scope := realtime.DeletionScope{RecipientID: msg.ReceiverID}
		if msg.IsGroupMessage {
			scope = realtime.DeletionScope{GroupID: msg.GroupID}
			group, err := groups.FindGroup(r.Context(), msg.GroupID)
			if err != nil {
				log.WithError(err).Warn("Group of deleted message not found, skipping notice")
			} else {
				scope.MemberIDs = group.Members
			}
		}
		router.DeliverDeletionNotice(messageID, scope)

		render.JSON(w, r, map[string]string{"id": messageID, "status": "deleted"})
	}
}

// HandleConversation returns the direct messages between the caller and peerId.
func HandleConversation(messages core.MessageStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}
		peerID := core.UserID(chi.URLParam(r, "peerId"))

		list, err := messages.ListConversation(r.Context(), userID, peerID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to list conversation")
			renderError(w, r, http.StatusInternalServerError, "Failed to get messages")
			return
		}
		render.JSON(w, r, MessagesResponse{Messages: list})
	}
}

// HandleGroupHistory returns the messages of a group the caller belongs to.
func HandleGroupHistory(messages core.MessageStore, groups core.GroupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			renderError(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}
		groupID := core.GroupID(chi.URLParam(r, "groupId"))

		group, err := groups.FindGroup(r.Context(), groupID)
		if errors.Is(err, core.ErrNotFound) {
			renderError(w, r, http.StatusNotFound, "Group not found")
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("group_id", groupID).Error("Failed to load group")
			renderError(w, r, http.StatusInternalServerError, "Failed to get group messages")
			return
		}
		if !group.HasMember(userID) {
			renderError(w, r, http.StatusForbidden, "Not a member of this group")
			return
		}

		list, err := messages.ListGroupMessages(r.Context(), groupID)
		if err != nil {
			logrus.WithError(err).WithField("group_id", groupID).Error("Failed to list group messages")
			renderError(w, r, http.StatusInternalServerError, "Failed to get group messages")
			return
		}
		render.JSON(w, r, MessagesResponse{Messages: list})
	}
}
