package groups

import (
	"errors"
	"net/http"

	"social-server/core"
	"social-server/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type (
	CreateGroupRequest struct {
		Name    string        `json:"name" validate:"required,max=100"`
		Members []core.UserID `json:"members" validate:"dive,required"`
	}

	GroupResponse struct {
		Group *core.Group `json:"group"`
	}
)

// HandleCreate creates a group. The caller is always a member.
func HandleCreate(store core.GroupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Not authenticated"})
			return
		}

		var req CreateGroupRequest
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

		group := &core.Group{
			Name:    req.Name,
			Members: lo.Uniq(append([]core.UserID{userID}, req.Members...)),
		}
		id, err := store.SaveGroup(r.Context(), group)
		if err != nil {
			logrus.WithError(err).WithField("user_id", userID).Error("Failed to create group")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create group"})
			return
		}
		group.ID = id

		logrus.WithFields(logrus.Fields{
			"group_id": id,
			"members":  len(group.Members),
		}).Info("Group created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, GroupResponse{Group: group})
	}
}

// HandleGet returns a group to one of its members.
func HandleGet(store core.GroupStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Not authenticated"})
			return
		}
		groupID := core.GroupID(chi.URLParam(r, "groupId"))

		group, err := store.FindGroup(r.Context(), groupID)
		if errors.Is(err, core.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Group not found"})
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("group_id", groupID).Error("Failed to load group")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get group"})
			return
		}
		if !group.HasMember(userID) {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "Not a member of this group"})
			return
		}

		render.JSON(w, r, GroupResponse{Group: group})
	}
}
