package websocket_test

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"
	relayws "chat-relay/transport/websocket"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) (*runtime.Relay, string) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	messages := runtime.NewFeed[domain.ChatMessage]()
	statuses := runtime.NewFeed[event.StatusEvent]()
	bus := runtime.NewMessageBus(log, registry, runtime.NewClock(nil), messages, time.Second)
	relay := runtime.NewRelay(log, registry, bus, messages, statuses, nil, runtime.Options{
		MaxContentBytes: 64,
		WriteTimeout:    time.Second,
	})

	handler := relayws.NewHandler(log, relay, relayws.HandlerConfig{
		HandshakeTimeout: time.Second,
		KeepAlive:        relayws.KeepAlive{PingInterval: 50 * time.Millisecond, PongTimeout: 5 * time.Second},
		ReadLimit:        64 * 1024,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = relay.Shutdown(ctx)
		server.Close()
	})
	return relay, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame domain.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHandler_Chat_Over_Websocket(t *testing.T) {
	req := require.New(t)
	relay, url := startRelay(t)

	// Given alice and bob connected over websocket
	alice := dial(t, url+"?user_id=alice")
	status := readFrame(t, alice)
	req.Equal(domain.StatusEstablished, status.Status.Code)
	req.Equal("alice", status.SessionID)

	bob := dial(t, url)
	status = readFrame(t, bob)
	req.Equal(domain.StatusEstablished, status.Status.Code)
	req.NotEmpty(status.SessionID)

	// When alice sends a message
	req.NoError(alice.WriteJSON(domain.InboundMessage{Content: "hello bob"}))

	// Then both receive it with alice's identity and a server timestamp
	for _, conn := range []*websocket.Conn{alice, bob} {
		frame := readFrame(t, conn)
		req.Equal(domain.FrameMessage, frame.Type)
		req.Equal("alice", frame.Message.UserID)
		req.Equal("hello bob", frame.Message.Content)
	}
	req.Equal(2, readFrame(t, alice).Ack.Delivered)

	// When bob drops the connection
	req.NoError(bob.Close())

	// Then the relay forgets him
	req.Eventually(func() bool { return relay.Sessions() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_Duplicate_Identity_Is_Refused(t *testing.T) {
	req := require.New(t)
	_, url := startRelay(t)

	first := dial(t, url+"?user_id=alice")
	req.Equal(domain.StatusEstablished, readFrame(t, first).Status.Code)

	// When a second connection claims alice
	second := dial(t, url+"?user_id=alice")

	// Then it is told the server is unreachable and closed
	req.Equal(domain.StatusUnreachable, readFrame(t, second).Status.Code)
	req.NoError(second.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := second.ReadMessage()
	req.Error(err)
}

func TestHandler_Shutdown_Notifies_Clients(t *testing.T) {
	req := require.New(t)
	relay, url := startRelay(t)

	conn := dial(t, url)
	req.Equal(domain.StatusEstablished, readFrame(t, conn).Status.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req.NoError(relay.Shutdown(ctx))

	req.Equal(domain.StatusUnreachable, readFrame(t, conn).Status.Code)
	req.Zero(relay.Sessions())
}

func TestHandler_Plain_HTTP_Is_Rejected(t *testing.T) {
	req := require.New(t)
	_, url := startRelay(t)

	resp, err := http.Get(strings.Replace(url, "ws", "http", 1))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusBadRequest, resp.StatusCode)
}
