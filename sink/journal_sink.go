package sink

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/storage"
	"context"
	"log/slog"
)

// JournalSink records every session status event in the journal.
type JournalSink struct {
	repository storage.IJournalRepository
	log        *slog.Logger
}

func NewJournalSink(repository storage.IJournalRepository, log *slog.Logger) *JournalSink {
	return &JournalSink{repository: repository, log: log}
}

// Consume implements the EventSink interface.
func (j *JournalSink) Consume(ctx context.Context, e event.StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry := domain.JournalEntry{
		SessionID:  e.SessionID,
		RemoteAddr: e.RemoteAddr,
		State:      e.State,
		Code:       e.Status.Code,
		At:         e.At,
	}
	if err := j.repository.Record(entry); err != nil {
		j.log.Error("Journal write failed", "session_id", e.SessionID, "error", err)
		return err
	}
	return nil
}
