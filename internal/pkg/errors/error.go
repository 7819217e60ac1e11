// internal/pkg/errors/error.go
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinels shared by stores, services and the HTTP layer.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternal       = errors.New("internal server error")
	ErrRateLimited    = errors.New("too many requests")
	ErrSessionExpired = errors.New("session expired or invalid")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrCorruptRecord  = errors.New("stored record is corrupt")
)

var known = []error{
	ErrNotFound,
	ErrUnauthorized,
	ErrForbidden,
	ErrInvalidInput,
	ErrRateLimited,
	ErrSessionExpired,
	ErrDuplicateEntry,
	ErrCorruptRecord,
}

// Wrap prefixes err with message, keeping it matchable with Is.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Public returns a message safe to show clients: the text of the sentinel err
// wraps, or ErrInternal's text when it wraps none.
func Public(err error) string {
	if err == nil {
		return ""
	}
	for _, s := range known {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return ErrInternal.Error()
}
