package domain

import (
	"chat-relay/errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendMessageCommand is the inbound intent of a session to broadcast content.
type SendMessageCommand struct {
	SenderID string `validate:"required"`
	Content  string `validate:"required"`
}

// Validate rejects empty, oversized or non UTF-8 content.
// Oversized content is never truncated.
func (c SendMessageCommand) Validate(maxContentBytes int) error {
	if maxContentBytes <= 0 {
		maxContentBytes = DefaultMaxContentBytes
	}
	if err := validate.Struct(c); err != nil {
		if c.Content == "" {
			return errors.ErrEmptyContent
		}
		return fmt.Errorf("%w: %v", errors.ErrMalformedMessage, err)
	}
	if len(c.Content) > maxContentBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d",
			errors.ErrMessageTooLarge, len(c.Content), maxContentBytes)
	}
	if !utf8.ValidString(c.Content) {
		return fmt.Errorf("%w: content is not valid UTF-8", errors.ErrMalformedMessage)
	}
	return nil
}

// ValidateSessionID checks an identity requested by a client at connect time.
func ValidateSessionID(id string) error {
	if err := validate.Var(id, "required,max=64,printascii,excludesall= /?#"); err != nil {
		return fmt.Errorf("%w: invalid session id %q", errors.ErrMalformedMessage, id)
	}
	return nil
}
