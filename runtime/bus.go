package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds a single per-session write during fan-out.
const DefaultWriteTimeout = 5 * time.Second

// DeliveryReport describes the outcome of one publish.
type DeliveryReport struct {
	Message   domain.ChatMessage
	Delivered int
	Failed    []string // ids of sessions whose write failed, in snapshot order
}

// FailureHandler is told about every session whose write failed during fan-out.
type FailureHandler func(s *Session, err error)

// MessageBus fans a message out to every registered session.
//
// Publishes are serialized: the timestamp is assigned and the fan-out completes
// before the next message is accepted, so every session sees messages in publish
// order. Within one publish, writes run concurrently and each is bounded by the
// write timeout, so one stuck peer costs at most one timeout.
//
// Delivery is best-effort: no retry and no persistence.
type MessageBus struct {
	mu           sync.Mutex
	log          *slog.Logger
	registry     *Registry
	clock        *Clock
	feed         *Feed[domain.ChatMessage]
	writeTimeout time.Duration
	onFailure    FailureHandler
}

func NewMessageBus(log *slog.Logger, registry *Registry, clock *Clock,
	feed *Feed[domain.ChatMessage], writeTimeout time.Duration) *MessageBus {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &MessageBus{
		log:          log,
		registry:     registry,
		clock:        clock,
		feed:         feed,
		writeTimeout: writeTimeout,
	}
}

// OnFailure sets the handler turning a failed write into a deregistration.
func (b *MessageBus) OnFailure(handler FailureHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFailure = handler
}

// Publish stamps the message and writes it to every session of a registry snapshot.
// The command must already be validated.
func (b *MessageBus) Publish(ctx context.Context, cmd domain.SendMessageCommand) (DeliveryReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	message := domain.NewChatMessage(cmd, b.clock.Next())
	frame, err := EncodeFrame(domain.MessageFrame(message))
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	observability.MessagesPublished.Inc()

	start := time.Now()
	sessions := b.registry.Snapshot()
	results := b.fanout(ctx, sessions, frame)
	observability.FanoutDuration.Observe(time.Since(start).Seconds())

	report := DeliveryReport{Message: message}
	for i, s := range sessions {
		switch err := results[i]; {
		case err == nil:
			report.Delivered++
			observability.DeliveriesTotal.WithLabelValues("delivered").Inc()
		case errors.Is(err, errors.ErrSessionClosed):
			// Left between snapshot and write, nothing to clean up.
			observability.DeliveriesTotal.WithLabelValues("skipped").Inc()
		default:
			report.Failed = append(report.Failed, s.ID)
			observability.DeliveriesTotal.WithLabelValues("failed").Inc()
			b.log.Warn("Delivery failed, dropping session",
				"session_id", s.ID,
				"error", err)
			if b.onFailure != nil {
				b.onFailure(s, err)
			}
		}
	}

	b.feed.Publish(message)
	b.log.Debug("Message published",
		"user_id", message.UserID,
		"delivered", report.Delivered,
		"failed", len(report.Failed))
	return report, nil
}

// fanout writes frame to every session and returns the errors indexed like sessions.
// Writes are detached from the caller's cancellation: the sender leaving must not
// abort delivery to the others.
func (b *MessageBus) fanout(ctx context.Context, sessions []*Session, frame []byte) []error {
	results := make([]error, len(sessions))
	base := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s *Session) {
			defer wg.Done()
			writeCtx, cancel := context.WithTimeout(base, b.writeTimeout)
			defer cancel()
			results[i] = s.Write(writeCtx, frame)
		}(i, s)
	}
	wg.Wait()
	return results
}
