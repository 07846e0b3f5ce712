// Package websocket carries relay sessions over gorilla websocket connections.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultPingInterval = 25 * time.Second
	DefaultPongTimeout  = 60 * time.Second
	closeGracePeriod    = time.Second
)

type KeepAlive struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// Transport adapts a websocket connection to one framed, context aware endpoint.
// It has a single reader; writes are serialized by the session that owns it.
type Transport struct {
	conn      *websocket.Conn
	log       *slog.Logger
	keepAlive KeepAlive
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewTransport takes ownership of conn and starts its keep-alive loop.
// A peer that stops answering pings is detected after PongTimeout.
func NewTransport(log *slog.Logger, conn *websocket.Conn, keepAlive KeepAlive, readLimit int64) *Transport {
	if keepAlive.PingInterval <= 0 {
		keepAlive.PingInterval = DefaultPingInterval
	}
	if keepAlive.PongTimeout <= 0 {
		keepAlive.PongTimeout = DefaultPongTimeout
	}
	t := &Transport{
		conn:      conn,
		log:       log,
		keepAlive: keepAlive,
		done:      make(chan struct{}),
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	_ = conn.SetReadDeadline(time.Now().Add(keepAlive.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.keepAlive.PongTimeout))
	})
	go t.pingLoop()
	return t
}

func (t *Transport) ReadFrame(ctx context.Context) ([]byte, error) {
	// Unblocks ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(t.keepAlive.PongTimeout))
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *Transport) WriteFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetWriteDeadline(time.Now())
	})
	defer stop()
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a normal close frame, best effort, and releases the connection.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod),
		)
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *Transport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *Transport) pingLoop() {
	ticker := time.NewTicker(t.keepAlive.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(closeGracePeriod))
			if err != nil {
				t.log.Debug("Ping failed", "remote_addr", t.RemoteAddr(), "error", err)
				return
			}
		case <-t.done:
			return
		}
	}
}
