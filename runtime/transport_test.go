package runtime

import (
	"chat-relay/domain"
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// pipeTransport is an in-memory transport: the test plays the remote peer.
type pipeTransport struct {
	addr      string
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	hangUp    sync.Once
}

func newPipeTransport(addr string) *pipeTransport {
	return &pipeTransport{
		addr:   addr,
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (p *pipeTransport) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case raw, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		return raw, nil
	case <-p.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeTransport) WriteFrame(ctx context.Context, frame []byte) error {
	select {
	case <-p.closed:
		return net.ErrClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.closed:
		return net.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) RemoteAddr() string { return p.addr }

// send plays the peer writing a raw frame.
func (p *pipeTransport) send(t *testing.T, raw string) {
	t.Helper()
	select {
	case p.in <- []byte(raw):
	case <-time.After(time.Second):
		t.Fatal("peer could not write")
	}
}

// disconnect plays the peer going away without a close handshake.
func (p *pipeTransport) disconnect() {
	p.hangUp.Do(func() { close(p.in) })
}

func (p *pipeTransport) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// nextFrame waits for the next frame written to the peer.
func (p *pipeTransport) nextFrame(t *testing.T) domain.Frame {
	t.Helper()
	select {
	case raw := <-p.out:
		var frame domain.Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame received by %s", p.addr)
		return domain.Frame{}
	}
}

// noFrame asserts nothing is written to the peer for a short while.
func (p *pipeTransport) noFrame(t *testing.T) {
	t.Helper()
	select {
	case raw := <-p.out:
		t.Fatalf("unexpected frame for %s: %s", p.addr, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func sessionIDs(sessions []*Session) []string {
	return lo.Map(sessions, func(s *Session, _ int) string { return s.ID })
}
