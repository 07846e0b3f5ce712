package runtime

import (
	"chat-relay/errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// Registry tracks every active session. It is the only shared mutable
// structure of the relay; all access goes through its lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // map session id -> Session
	nextSeq  uint64
	limit    int
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// WithLimit caps the number of live sessions. Zero or less means unbounded.
func (r *Registry) WithLimit(limit int) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
	return r
}

// Register adds a session under its id.
// It fails with ErrDuplicateIdentity when the id is already live,
// and with ErrCapacityReached when the limit is hit.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", errors.ErrDuplicateIdentity, s.ID)
	}
	if r.limit > 0 && len(r.sessions) >= r.limit {
		return fmt.Errorf("%w: %d", errors.ErrCapacityReached, r.limit)
	}
	r.nextSeq++
	s.seq = r.nextSeq
	r.sessions[s.ID] = s
	return nil
}

// Deregister removes the session registered under id.
// Removing an unknown id is not an error: concurrent teardown paths may race here.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// remove deregisters s only if it is still the session registered under its id,
// so a late teardown never evicts a newer session that reused the identity.
func (r *Registry) remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[s.ID]; ok && current == s {
		delete(r.sessions, s.ID)
		return true
	}
	return false
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a point-in-time copy of the registered sessions in registration order.
// Callers may iterate it while sessions register or leave concurrently.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	sessions := lo.Values(r.sessions)
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].seq < sessions[j].seq
	})
	return sessions
}
