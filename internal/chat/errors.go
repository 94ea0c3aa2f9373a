package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vedran77/blink/pkg/validator"
)

var (
	ErrInvalidIdentifier  = errors.New("invalid identifier: must be a UUID")
	ErrNoCurrentUser      = errors.New("chat engine has no current user")
	ErrEmptyMessage       = errors.New("message content is empty")
	ErrBlockedRecipient   = errors.New("cannot send message to blocked user")
	ErrBlockedByRecipient = errors.New("you are blocked by this user")
)

func invalidIdentifier(id string) error {
	return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
}

// normalizeID validates id and lowercases it, matching how Postgres renders UUIDs.
func normalizeID(id string) (string, error) {
	if !validator.IsUUID(id) {
		return "", invalidIdentifier(id)
	}
	return strings.ToLower(id), nil
}
