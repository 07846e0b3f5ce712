package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

const DefaultSinkTimeout = 2 * time.Second

// EventFanout hands session status events to every in-process sink.
//
// It provides best-effort fan-out with no guarantees regarding delivery
// or retries. It is intended for side effects such as the journal,
// never for the relay semantics themselves.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.StatusEvent
	sinks       []contract.EventSink[event.StatusEvent]
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.StatusEvent, sinkTimeout time.Duration,
	sinks ...contract.EventSink[event.StatusEvent]) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	return &EventFanout{log: log, events: events, sinks: sinks, sinkTimeout: sinkTimeout}
}

// Run returns nil once the event stream is closed.
func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Status stream closed, stopping fanout")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout one sink after the other, each bounded by the sink timeout.
func (w *EventFanout) Fanout(ctx context.Context, evt event.StatusEvent) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed to consume status event",
				"session_id", evt.SessionID,
				"error", err)
		}
		cancel()
	}
}
