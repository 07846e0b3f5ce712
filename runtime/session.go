package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Session is the server side record of one connected client.
// It exclusively owns its transport and releases it exactly once.
type Session struct {
	ID       string
	JoinedAt time.Time

	transport contract.Transport
	state     atomic.Int32
	seq       uint64 // registration order, set by the registry

	// writeSlot serializes writes; a channel so waiting honors the context deadline
	writeSlot chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func NewSession(id string, transport contract.Transport, joinedAt time.Time) *Session {
	s := &Session{
		ID:        id,
		JoinedAt:  joinedAt,
		transport: transport,
		writeSlot: make(chan struct{}, 1),
	}
	s.state.Store(int32(domain.StateConnecting))
	return s
}

func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

func (s *Session) RemoteAddr() string {
	return s.transport.RemoteAddr()
}

// transition moves the session forward, refusing moves the state machine forbids.
func (s *Session) transition(next domain.SessionState) bool {
	for {
		current := s.State()
		if !current.CanTransition(next) {
			return false
		}
		if s.state.CompareAndSwap(int32(current), int32(next)) {
			return true
		}
	}
}

// Write sends one encoded frame. Writing to a closing or closed session is a no-op
// reported as ErrSessionClosed.
func (s *Session) Write(ctx context.Context, frame []byte) error {
	if st := s.State(); st == domain.StateClosing || st == domain.StateClosed {
		return errors.ErrSessionClosed
	}
	select {
	case s.writeSlot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrTransport, ctx.Err())
	}
	defer func() { <-s.writeSlot }()

	if err := s.transport.WriteFrame(ctx, frame); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	return nil
}

// reserve takes the write slot before the session is visible to the bus, so the frame
// passed to writeReserved is the first one the peer receives.
func (s *Session) reserve() {
	s.writeSlot <- struct{}{}
}

func (s *Session) unreserve() {
	<-s.writeSlot
}

// writeReserved writes with the slot taken by reserve and gives it back.
func (s *Session) writeReserved(ctx context.Context, frame []byte) error {
	defer s.unreserve()
	if err := s.transport.WriteFrame(ctx, frame); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	return nil
}

func (s *Session) read(ctx context.Context) ([]byte, error) {
	return s.transport.ReadFrame(ctx)
}

// release closes the transport handle. Only the first call reaches the transport.
func (s *Session) release() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}
