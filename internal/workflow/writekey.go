package workflow

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidWriteKey is wrapped by every write key validation failure.
var ErrInvalidWriteKey = errors.New("invalid write key")

var hexOnly = regexp.MustCompile(`^[a-f0-9]+$`)

const writeKeyLen = 32

// ValidateWriteKey checks that key is a 32 character lowercase hex string.
// Bad characters and bad length are reported separately so the message
// tells the user what to fix.
func ValidateWriteKey(key string) error {
	if !hexOnly.MatchString(key) {
		return fmt.Errorf("%w: Write Key %s contains unexpected characters - it should be a %d character hexadecimal string. Please try again", ErrInvalidWriteKey, key, writeKeyLen)
	}
	if len(key) != writeKeyLen {
		return fmt.Errorf("%w: Write Key %s is not the expected length - it should be a %d character hexadecimal string. Please try again", ErrInvalidWriteKey, key, writeKeyLen)
	}
	return nil
}
