package runtime

import (
	"chat-relay/errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestSession(id string) *Session {
	return NewSession(id, newPipeTransport(id+":addr"), time.Now().UTC())
}

func TestRegistry_Register_And_Get(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()

	// Given no session is connected
	req.Zero(registry.Len())

	// When a session registers
	s := newTestSession(sessionID)
	req.NoError(registry.Register(s))

	// Then it can be found under its id
	req.Equal(1, registry.Len())
	got, ok := registry.Get(sessionID)
	req.True(ok)
	req.Same(s, got)
}

func TestRegistry_Register_Duplicate_Identity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given alice is connected
	first := newTestSession("alice")
	req.NoError(registry.Register(first))

	// When another session claims the same id
	err := registry.Register(newTestSession("alice"))

	// Then it is refused and the first one is kept
	req.ErrorIs(err, errors.ErrDuplicateIdentity)
	got, _ := registry.Get("alice")
	req.Same(first, got)
	req.Equal(1, registry.Len())
}

func TestRegistry_Register_Capacity(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry().WithLimit(2)

	req.NoError(registry.Register(newTestSession("a")))
	req.NoError(registry.Register(newTestSession("b")))

	// When the limit is reached
	err := registry.Register(newTestSession("c"))

	// Then new sessions are refused
	req.ErrorIs(err, errors.ErrCapacityReached)

	// And accepted again once one leaves
	registry.Deregister("a")
	req.NoError(registry.Register(newTestSession("c")))
}

func TestRegistry_Deregister_Unknown_Is_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	req.NoError(registry.Register(newTestSession("alice")))

	// When an unknown id is removed, twice
	registry.Deregister("bob")
	registry.Deregister("bob")

	// Then nothing changes
	req.Equal(1, registry.Len())

	registry.Deregister("alice")
	registry.Deregister("alice")
	req.Zero(registry.Len())
}

func TestRegistry_Remove_Only_Same_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given alice left and a new alice took the id
	old := newTestSession("alice")
	req.NoError(registry.Register(old))
	req.True(registry.remove(old))
	current := newTestSession("alice")
	req.NoError(registry.Register(current))

	// When the late teardown of the old one runs
	removed := registry.remove(old)

	// Then the new session stays registered
	req.False(removed)
	got, ok := registry.Get("alice")
	req.True(ok)
	req.Same(current, got)
}

func TestRegistry_Snapshot_Registration_Order(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	ids := []string{"zoe", "alice", "mike", "bob"}
	for _, id := range ids {
		req.NoError(registry.Register(newTestSession(id)))
	}

	// Then the snapshot follows join order, not id order
	req.Equal(ids, sessionIDs(registry.Snapshot()))

	// And is a copy the caller may modify
	snapshot := registry.Snapshot()
	snapshot[0] = nil
	req.Equal(ids, sessionIDs(registry.Snapshot()))
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	workers := 32

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			_ = registry.Register(newTestSession(id))
			_ = registry.Snapshot()
			if i%2 == 0 {
				registry.Deregister(id)
			}
		}(i)
	}
	wg.Wait()

	// Then only the odd sessions are left, each once
	req.Equal(workers/2, registry.Len())
	for _, s := range registry.Snapshot() {
		_, ok := registry.Get(s.ID)
		req.True(ok)
	}
}
