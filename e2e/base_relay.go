package e2e

import (
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BaseRelaySuite talks to a relay started outside of the test process.
type BaseRelaySuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayURL == "" {
		s.T().Skip("E2E_RELAY_URL not set, no relay to test against")
	}
}

// Header prints a colorized step header in the test logs.
func (s *BaseRelaySuite) Header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Join opens a session, optionally asking for an identity, and returns it with its first frame.
func (s *BaseRelaySuite) Join(t *testing.T, userID string) (*websocket.Conn, domain.Frame) {
	s.Header(t, "Joining as "+userID)
	target, err := url.Parse(s.Config.RelayURL)
	s.Require().NoError(err)
	if userID != "" {
		q := target.Query()
		q.Set("user_id", userID)
		target.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(target.String(), nil)
	s.Require().NoError(err, "Failed to connect to relay at "+target.String())
	t.Cleanup(func() { _ = conn.Close() })
	return conn, s.Next(t, conn)
}

// Next reads one frame, logging it when E2E_DEBUG_JSON is enabled.
func (s *BaseRelaySuite) Next(t *testing.T, conn *websocket.Conn) domain.Frame {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, raw, err := conn.ReadMessage()
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		t.Logf("FRAME %s", raw)
	}
	var frame domain.Frame
	s.Require().NoError(json.Unmarshal(raw, &frame))
	return frame
}

// WithHealth provides a gRPC health client within a contextual test step
func (s *BaseRelaySuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	s.Header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
