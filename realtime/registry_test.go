package realtime

import (
	"fmt"
	"sync"
	"testing"

	"social-server/core"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterThenUnregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given a registered user
	_, replaced := registry.Register("alice", "c1")
	req.False(replaced)

	// When the user is unregistered
	registry.Unregister("alice")

	// Then nothing resolves
	_, ok := registry.Resolve("alice")
	req.False(ok)
	req.Zero(registry.Len())
}

func TestRegistry_UnregisterAbsentUser(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("bob", "c2")

	registry.Unregister("alice")

	connID, ok := registry.Resolve("bob")
	req.True(ok)
	req.Equal(core.ConnID("c2"), connID)
}

func TestRegistry_LastWriterWins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given a user connected from a first device
	registry.Register("alice", "c1")

	// When the same user connects from a second device
	previous, replaced := registry.Register("alice", "c2")

	// Then the newer connection owns the slot
	req.True(replaced)
	req.Equal(core.ConnID("c1"), previous)
	connID, ok := registry.Resolve("alice")
	req.True(ok)
	req.Equal(core.ConnID("c2"), connID)
	req.Equal(1, registry.Len())
}

func TestRegistry_ReleaseKeepsNewerConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given c2 replaced c1
	registry.Register("alice", "c1")
	registry.Register("alice", "c2")

	// When the stale connection is released
	released := registry.Release("alice", "c1")

	// Then c2 still resolves
	req.False(released)
	connID, ok := registry.Resolve("alice")
	req.True(ok)
	req.Equal(core.ConnID("c2"), connID)

	// And releasing the current connection frees the slot
	req.True(registry.Release("alice", "c2"))
	_, ok = registry.Resolve("alice")
	req.False(ok)
}

func TestRegistry_OnlineIsSorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register("carol", "c3")
	registry.Register("alice", "c1")
	registry.Register("bob", "c2")

	req.Equal([]core.UserID{"alice", "bob", "carol"}, registry.Online())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := core.UserID(fmt.Sprintf("user-%d", i%10))
			connID := core.ConnID(fmt.Sprintf("conn-%d", i))
			registry.Register(userID, connID)
			registry.Resolve(userID)
			registry.Online()
			registry.Release(userID, connID)
		}(i)
	}
	wg.Wait()

	// Then the last registration of each user was released by its own owner
	req.Zero(registry.Len())
}
