package journal

import (
	"bytes"
	"chat-relay/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrintEntries(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	PrintEntries(&out, []domain.JournalEntry{{
		SessionID:  "alice",
		RemoteAddr: "127.0.0.1:5000",
		State:      domain.StateActive,
		Code:       domain.StatusEstablished,
		At:         time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}})

	req.Contains(out.String(), "alice")
	req.Contains(out.String(), "active")
	req.Contains(out.String(), "Connection established")
}
