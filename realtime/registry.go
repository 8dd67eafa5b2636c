package realtime

import (
	"sort"
	"sync"

	"social-server/core"

	"github.com/sirupsen/logrus"
)

// Registry maps each online user to the connection that currently represents
// them. A user has at most one slot; a newer connection replaces the older one.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.UserID]core.ConnID
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[core.UserID]core.ConnID),
	}
}

// Register binds userID to connID and returns the connection it replaced, if any.
func (r *Registry) Register(userID core.UserID, connID core.ConnID) (core.ConnID, bool) {
	r.mu.Lock()
	previous, replaced := r.conns[userID]
	r.conns[userID] = connID
	r.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"conn_id": connID,
	})
	if replaced && previous != connID {
		log.WithField("previous_conn_id", previous).Info("User connection replaced")
	} else {
		log.Debug("User connection registered")
	}
	return previous, replaced
}

// Unregister removes the user's entry. Removing an absent user is a no-op.
func (r *Registry) Unregister(userID core.UserID) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()

	logrus.WithField("user_id", userID).Debug("User connection unregistered")
}

// Release removes the user's entry only while it still points at connID, so a
// connection that lost its slot to a newer one cannot evict its successor.
func (r *Registry) Release(userID core.UserID, connID core.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != connID {
		return false
	}
	delete(r.conns, userID)
	return true
}

func (r *Registry) Resolve(userID core.UserID) (core.ConnID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.conns[userID]
	return connID, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Online returns a sorted snapshot of every registered user.
func (r *Registry) Online() []core.UserID {
	r.mu.RLock()
	users := make([]core.UserID, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
