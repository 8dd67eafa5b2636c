package realtime

import (
	"fmt"

	"social-server/core"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Report summarizes one routing attempt. It is informational only: delivery
// is best-effort and callers never act on it.
type Report struct {
	// Targets is the number of distinct users (or rooms) considered.
	Targets int
	// Attempted counts emits handed to the transport.
	Attempted int
	// Failed counts emits the transport rejected.
	Failed int
}

func (r Report) Delivered() int { return r.Attempted - r.Failed }

func (r Report) add(o Report) Report {
	return Report{
		Targets:   r.Targets + o.Targets,
		Attempted: r.Attempted + o.Attempted,
		Failed:    r.Failed + o.Failed,
	}
}

// Router resolves outbound events to live connections and emits them.
// Offline targets are skipped; nothing is queued or retried.
type Router struct {
	registry  *Registry
	transport Transport
}

func NewRouter(registry *Registry, transport Transport) *Router {
	return &Router{registry: registry, transport: transport}
}

func (r *Router) DeliverDirect(recipientID core.UserID, payload any) Report {
	return r.deliverToUser(recipientID, EventReceiveMessage, payload)
}

// DeliverToGroup pushes payload to every currently connected member. memberIDs
// comes from the persisted group; no membership check happens here.
func (r *Router) DeliverToGroup(groupID core.GroupID, memberIDs []core.UserID, payload any) Report {
	var report Report
	for _, memberID := range lo.Uniq(memberIDs) {
		report = report.add(r.deliverToUser(memberID, EventReceiveMessage, payload))
	}
	logrus.WithFields(logrus.Fields{
		"group_id":  groupID,
		"members":   report.Targets,
		"attempted": report.Attempted,
		"failed":    report.Failed,
	}).Debug("Group message routed")
	return report
}

// DeliverToRoom broadcasts through the transport's room primitive to every
// connection joined to roomID, independent of registry state.
func (r *Router) DeliverToRoom(roomID core.RoomID, event string, payload any) Report {
	report := Report{Targets: 1, Attempted: 1}
	if err := r.safeEmit(func() error { return r.transport.EmitToRoom(roomID, event, payload) }); err != nil {
		report.Failed = 1
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"event":   event,
		}).Warn("Room broadcast failed")
	}
	return report
}

func (r *Router) DeliverNotification(recipientID core.UserID, notification any) Report {
	return r.deliverToUser(recipientID, EventNewNotification, notification)
}

// DeliverDeletionNotice tells live connections that targetID was retracted.
func (r *Router) DeliverDeletionNotice(targetID string, scope DeletionScope) Report {
	payload := DeletedPayload{MessageID: targetID}
	if !scope.IsGroup() {
		return r.deliverToUser(scope.RecipientID, EventMessageDeleted, payload)
	}

	var report Report
	for _, memberID := range lo.Uniq(scope.MemberIDs) {
		report = report.add(r.deliverToUser(memberID, EventMessageDeleted, payload))
	}
	return report
}

// AnnounceMessage pushes a persisted chat message to its live recipients,
// each getting receive-message followed by a new-notification about it.
// groupName is only used for group messages.
func (r *Router) AnnounceMessage(msg *core.Message, recipients []core.UserID, groupName string) Report {
	notice := NotificationPayload{
		Message: fmt.Sprintf("New message from %s", msg.SenderID),
		Type:    NotificationTypeMessage,
		Data:    msg,
	}
	if msg.IsGroupMessage {
		notice.Message = fmt.Sprintf("New message in group %s", groupName)
		notice.Type = NotificationTypeGroupMessage
	}

	var report Report
	for _, recipientID := range lo.Uniq(recipients) {
		report.Targets++
		connID, ok := r.registry.Resolve(recipientID)
		if !ok {
			continue
		}
		for _, emit := range []struct {
			event   string
			payload any
		}{
			{EventReceiveMessage, msg},
			{EventNewNotification, notice},
		} {
			report.Attempted++
			if err := r.emit(connID, recipientID, emit.event, emit.payload); err != nil {
				report.Failed++
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"group_id":   msg.GroupID,
		"recipients": report.Targets,
		"attempted":  report.Attempted,
		"failed":     report.Failed,
	}).Debug("Message announced")
	return report
}

// Deliver routes any OutboundEvent.
func (r *Router) Deliver(evt OutboundEvent) Report {
	switch e := evt.(type) {
	case DirectMessage:
		return r.DeliverDirect(e.RecipientID, e.Payload)
	case GroupMessage:
		return r.DeliverToGroup(e.GroupID, e.MemberIDs, e.Payload)
	case RoomBroadcast:
		return r.DeliverToRoom(e.RoomID, e.Event, e.Payload)
	case Notification:
		return r.DeliverNotification(e.RecipientID, e.Payload)
	case Deletion:
		return r.DeliverDeletionNotice(e.TargetID, e.Scope)
	default:
		logrus.WithField("event_type", fmt.Sprintf("%T", evt)).Warn("Unroutable outbound event")
		return Report{}
	}
}

func (r *Router) deliverToUser(userID core.UserID, event string, payload any) Report {
	report := Report{Targets: 1}
	connID, ok := r.registry.Resolve(userID)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"event":   event,
		}).Debug("Recipient offline, event dropped")
		return report
	}
	report.Attempted = 1
	if err := r.emit(connID, userID, event, payload); err != nil {
		report.Failed = 1
	}
	return report
}

func (r *Router) emit(connID core.ConnID, userID core.UserID, event string, payload any) error {
	err := r.safeEmit(func() error { return r.transport.EmitTo(connID, event, payload) })
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"conn_id": connID,
			"event":   event,
		}).Warn("Delivery failed")
	}
	return err
}

// safeEmit converts a transport panic into an error.
func (r *Router) safeEmit(emit func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transport panic: %v", rec)
		}
	}()
	return emit()
}
