package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// EncodeFrame serializes a frame for the wire.
func EncodeFrame(frame domain.Frame) ([]byte, error) {
	return json.Marshal(frame)
}

// DecodeInbound parses what a client wrote on its transport.
// Binary payloads that are not text are refused before JSON decoding.
func DecodeInbound(raw []byte) (domain.InboundMessage, error) {
	if len(raw) == 0 {
		return domain.InboundMessage{}, errors.ErrEmptyContent
	}
	if !isText(raw) {
		return domain.InboundMessage{}, fmt.Errorf("%w: payload detected as %s",
			errors.ErrMalformedMessage, mimetype.Detect(raw).String())
	}
	var msg domain.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.InboundMessage{}, fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	return msg, nil
}

func isText(raw []byte) bool {
	for m := mimetype.Detect(raw); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
