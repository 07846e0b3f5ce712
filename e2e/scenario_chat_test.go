package e2e

import (
	"chat-relay/domain"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testChatSuite struct {
	BaseRelaySuite
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, &testChatSuite{})
}

func (s *testChatSuite) TestTwoUsersChat() {
	t := s.T()
	alice := "alice-" + uuid.NewString()[:8]
	bob := "bob-" + uuid.NewString()[:8]

	s.Run("Step 0: Relay reports serving", func() {
		s.WithHealth("Checking relay health", func(ctx context.Context, client healthpb.HealthClient) {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
			s.Require().NoError(err)
			s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
		})
	})

	aliceConn, status := s.Join(t, alice)
	s.Require().Equal(domain.StatusEstablished, status.Status.Code)
	s.Require().Equal(alice, status.SessionID)
	bobConn, status := s.Join(t, bob)
	s.Require().Equal(domain.StatusEstablished, status.Status.Code)

	s.Run("Step 1: A message reaches both users in the same shape", func() {
		s.Require().NoError(aliceConn.WriteJSON(domain.InboundMessage{Content: "hello " + bob}))

		seenByAlice := s.nextMessage(t, aliceConn)
		seenByBob := s.nextMessage(t, bobConn)
		s.Require().Equal(seenByAlice, seenByBob)
		s.Require().Equal(alice, seenByBob.UserID)
		s.Require().Equal("hello "+bob, seenByBob.Content)
	})

	s.Run("Step 2: The same identity cannot join twice", func() {
		_, status := s.Join(t, alice)
		s.Require().Equal(domain.StatusUnreachable, status.Status.Code)
	})

	s.Run("Step 3: Oversized content is refused to the sender only", func() {
		content := strings.Repeat("x", domain.DefaultMaxContentBytes+1)
		s.Require().NoError(bobConn.WriteJSON(domain.InboundMessage{Content: content}))
		frame := s.Next(t, bobConn)
		s.Require().Equal(domain.FrameError, frame.Type)
	})
}

// nextMessage skips acks and returns the next relayed message.
func (s *testChatSuite) nextMessage(t *testing.T, conn *websocket.Conn) domain.ChatMessage {
	for {
		frame := s.Next(t, conn)
		if frame.Type == domain.FrameMessage {
			return *frame.Message
		}
	}
}
