// Package runtime accepts sessions, relays their messages and reports their status.
// It owns every session lifecycle; transports are handed to it by the transport layer.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// statusWriteTimeout bounds best-effort status writes during rejection and shutdown.
const statusWriteTimeout = time.Second

type Options struct {
	MaxContentBytes int
	WriteTimeout    time.Duration
}

// Relay drives the per-session state machine Connecting -> Active -> Closing -> Closed.
type Relay struct {
	log        *slog.Logger
	registry   *Registry
	bus        *MessageBus
	messages   *Feed[domain.ChatMessage]
	statuses   *Feed[event.StatusEvent]
	filter     contract.ContentFilter
	opts       Options
	newID      func() string
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	closed     bool
	sessionsWG sync.WaitGroup
}

// NewRelay wires the relay to its registry and bus. The filter may be nil.
func NewRelay(log *slog.Logger, registry *Registry, bus *MessageBus,
	messages *Feed[domain.ChatMessage], statuses *Feed[event.StatusEvent],
	filter contract.ContentFilter, opts Options) *Relay {
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = domain.DefaultMaxContentBytes
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		log:      log,
		registry: registry,
		bus:      bus,
		messages: messages,
		statuses: statuses,
		filter:   filter,
		opts:     opts,
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
	}
	bus.OnFailure(func(s *Session, err error) {
		r.teardown(s, err)
	})
	return r
}

// Serve runs the whole lifecycle of the session carried by transport and blocks
// until it is closed. requestedID may be empty, in which case an id is assigned.
// Errors are confined to this session and only returned for logging.
func (r *Relay) Serve(ctx context.Context, transport contract.Transport, requestedID string) error {
	session := NewSession(r.assignID(requestedID), transport, time.Now().UTC())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.reject(session, errors.ErrRelayClosed)
		return errors.ErrRelayClosed
	}
	r.sessionsWG.Add(1)
	r.mu.Unlock()
	defer r.sessionsWG.Done()

	// Connecting
	session.reserve()
	if err := r.registry.Register(session); err != nil {
		session.unreserve()
		r.reject(session, err)
		return err
	}
	if !session.transition(domain.StateActive) {
		session.unreserve()
		r.teardown(session, errors.ErrSessionClosed)
		return errors.ErrSessionClosed
	}
	observability.ActiveSessions.Inc()
	observability.SessionsTotal.Inc()
	r.log.Info("Session established",
		"session_id", session.ID,
		"remote_addr", session.RemoteAddr())

	established := domain.NewConnectionStatus(domain.StatusEstablished)
	if err := r.writeEstablished(ctx, session, established); err != nil {
		r.teardown(session, err)
		return err
	}
	r.publishStatus(session, established)

	// Active
	sessionCtx, cancel := context.WithCancel(r.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := r.readLoop(sessionCtx, session)

	// Closing
	r.teardown(session, err)
	if err != nil && !errors.Is(err, errors.ErrSessionClosed) {
		return err
	}
	return nil
}

// SendMessage is the inbound command: it validates content and sender,
// then publishes on the bus. Rejected content never reaches the bus.
func (r *Relay) SendMessage(ctx context.Context, senderID, content string) (DeliveryReport, error) {
	session, ok := r.registry.Get(senderID)
	if !ok || session.State() != domain.StateActive {
		return DeliveryReport{}, fmt.Errorf("%w: %s", errors.ErrUnknownSender, senderID)
	}
	cmd := domain.SendMessageCommand{SenderID: senderID, Content: content}
	if err := cmd.Validate(r.opts.MaxContentBytes); err != nil {
		return DeliveryReport{}, err
	}
	if r.filter != nil {
		cmd.Content = r.filter.Filter(cmd.Content)
		// A multi-byte replacement rune can grow the content past the limit.
		if err := cmd.Validate(r.opts.MaxContentBytes); err != nil {
			return DeliveryReport{}, fmt.Errorf("filtered content: %w", err)
		}
	}
	return r.bus.Publish(ctx, cmd)
}

// SubscribeMessages streams every published message from now on.
func (r *Relay) SubscribeMessages(buffer int) *Subscription[domain.ChatMessage] {
	return r.messages.Subscribe(buffer)
}

// SubscribeStatus streams every session status and lifecycle change from now on.
func (r *Relay) SubscribeStatus(buffer int) *Subscription[event.StatusEvent] {
	return r.statuses.Subscribe(buffer)
}

// Sessions returns the number of registered sessions.
func (r *Relay) Sessions() int {
	return r.registry.Len()
}

// Shutdown refuses new sessions, tells live sessions the server is going away,
// releases every transport and waits for every session loop to return.
// No session is left registered once it returns without error.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.log.Info("Relay shutting down", "sessions", r.registry.Len())
	unreachable := domain.NewConnectionStatus(domain.StatusUnreachable)
	var notified sync.WaitGroup
	for _, s := range r.registry.Snapshot() {
		notified.Add(1)
		go func(s *Session) {
			defer notified.Done()
			r.notifyClosing(ctx, s, unreachable)
		}(s)
	}
	if err := waitGroup(ctx, &notified); err != nil {
		r.cancel()
		return fmt.Errorf("relay shutdown: %w", err)
	}
	r.cancel()

	if err := waitGroup(ctx, &r.sessionsWG); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}

	r.messages.Close()
	r.statuses.Close()
	r.log.Info("Relay stopped")
	return nil
}

// readLoop consumes inbound frames until the transport fails or the session is cancelled.
// A panic is contained here and reported to this session only.
func (r *Relay) readLoop(ctx context.Context, s *Session) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Session loop panicked",
				"session_id", s.ID,
				"panic", rec)
			internal := domain.NewConnectionStatus(domain.StatusInternalError)
			_ = r.writeFrame(context.Background(), s, domain.StatusFrame(s.ID, internal))
			r.publishStatus(s, internal)
			err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, rec)
		}
	}()

	for {
		raw, readErr := s.read(ctx)
		if readErr != nil {
			if ctx.Err() != nil || s.State() != domain.StateActive {
				return nil
			}
			return fmt.Errorf("%w: %v", errors.ErrTransport, readErr)
		}
		observability.MessagesReceived.Inc()
		r.handleFrame(ctx, s, raw)
	}
}

// handleFrame turns one inbound frame into a publish. Bad input is answered with an
// error frame to the sender and never ends the session.
func (r *Relay) handleFrame(ctx context.Context, s *Session, raw []byte) {
	inbound, err := DecodeInbound(raw)
	if err == nil && inbound.UserID != "" && inbound.UserID != s.ID {
		err = fmt.Errorf("%w: user_id %q does not match session %q",
			errors.ErrUnknownSender, inbound.UserID, s.ID)
	}
	var report DeliveryReport
	if err == nil {
		report, err = r.SendMessage(ctx, s.ID, inbound.Content)
	}
	if err != nil {
		observability.MessagesRejected.WithLabelValues(rejectReason(err)).Inc()
		r.log.Debug("Inbound message dropped",
			"session_id", s.ID,
			"error", err)
		_ = r.writeFrame(ctx, s, domain.ErrorFrame(err))
		return
	}
	_ = r.writeFrame(ctx, s, domain.AckFrame(domain.Ack{
		Timestamp: report.Message.Timestamp,
		Delivered: report.Delivered,
	}))
}

// teardown moves a session through Closing to Closed: it is deregistered before its
// transport is released. Every teardown path may call it, only the first one acts.
func (r *Relay) teardown(s *Session, cause error) {
	wasActive := s.State() == domain.StateActive
	if !s.transition(domain.StateClosing) {
		return
	}
	if r.registry.remove(s) && wasActive {
		observability.ActiveSessions.Dec()
	}
	if err := s.release(); err != nil {
		r.log.Debug("Transport close failed", "session_id", s.ID, "error", err)
	}
	s.transition(domain.StateClosed)

	r.log.Info("Session closed",
		"session_id", s.ID,
		"cause", causeString(cause))
	r.statuses.Publish(event.StatusEvent{
		SessionID:  s.ID,
		RemoteAddr: s.RemoteAddr(),
		State:      domain.StateClosed,
		Status:     domain.NewConnectionStatus(statusForCause(cause)),
		At:         time.Now().UTC(),
	})
}

// reject ends a session that never got registered.
func (r *Relay) reject(s *Session, cause error) {
	observability.SessionsRejected.WithLabelValues(rejectReason(cause)).Inc()
	r.log.Warn("Session rejected",
		"session_id", s.ID,
		"remote_addr", s.RemoteAddr(),
		"error", cause)

	unreachable := domain.NewConnectionStatus(domain.StatusUnreachable)
	_ = r.writeFrame(context.Background(), s, domain.StatusFrame(s.ID, unreachable))
	r.publishStatus(s, unreachable)
	_ = s.release()
	s.transition(domain.StateClosed)
}

// notifyClosing sends the going-away status within the shutdown deadline, then tears
// the session down whether or not the peer took the notice.
func (r *Relay) notifyClosing(ctx context.Context, s *Session, status domain.ConnectionStatus) {
	if raw, err := EncodeFrame(domain.StatusFrame(s.ID, status)); err == nil {
		writeCtx, cancel := context.WithTimeout(ctx, statusWriteTimeout)
		if err := s.Write(writeCtx, raw); err != nil {
			r.log.Debug("Shutdown notice not delivered", "session_id", s.ID, "error", err)
		}
		cancel()
	}
	r.publishStatus(s, status)
	r.teardown(s, errors.ErrRelayClosed)
}

// writeEstablished writes the first frame of a session through its reserved write slot.
func (r *Relay) writeEstablished(ctx context.Context, s *Session, status domain.ConnectionStatus) error {
	raw, err := EncodeFrame(domain.StatusFrame(s.ID, status))
	if err != nil {
		s.unreserve()
		return err
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.statusTimeout())
	defer cancel()
	return s.writeReserved(writeCtx, raw)
}

func (r *Relay) statusTimeout() time.Duration {
	return min(r.opts.WriteTimeout, statusWriteTimeout)
}

func (r *Relay) writeFrame(ctx context.Context, s *Session, frame domain.Frame) error {
	raw, err := EncodeFrame(frame)
	if err != nil {
		return err
	}
	timeout := r.opts.WriteTimeout
	if frame.Type == domain.FrameStatus {
		timeout = r.statusTimeout()
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.Write(writeCtx, raw)
}

func (r *Relay) publishStatus(s *Session, status domain.ConnectionStatus) {
	r.statuses.Publish(event.StatusEvent{
		SessionID:  s.ID,
		RemoteAddr: s.RemoteAddr(),
		State:      s.State(),
		Status:     status,
		At:         time.Now().UTC(),
	})
}

// assignID keeps a well-formed requested identity and otherwise generates one.
// Whether the identity is free is only known at registration.
func (r *Relay) assignID(requested string) string {
	if requested == "" {
		return r.newID()
	}
	if err := domain.ValidateSessionID(requested); err != nil {
		r.log.Debug("Ignoring requested identity", "error", err)
		return r.newID()
	}
	return requested
}

// waitGroup waits for wg unless ctx ends first.
func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusForCause(cause error) domain.StatusCode {
	switch {
	case cause == nil,
		errors.Is(cause, errors.ErrTransport),
		errors.Is(cause, errors.ErrSessionClosed),
		errors.Is(cause, errors.ErrRelayClosed):
		return domain.StatusUnreachable
	default:
		return domain.StatusInternalError
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, errors.ErrCapacityReached):
		return "capacity"
	case errors.Is(err, errors.ErrRelayClosed):
		return "shutting_down"
	case errors.Is(err, errors.ErrMessageTooLarge):
		return "too_large"
	case errors.Is(err, errors.ErrEmptyContent):
		return "empty"
	case errors.Is(err, errors.ErrUnknownSender):
		return "unknown_sender"
	case errors.Is(err, errors.ErrMalformedMessage):
		return "malformed"
	default:
		return "other"
	}
}

func causeString(err error) string {
	if err == nil {
		return "disconnected"
	}
	return err.Error()
}
