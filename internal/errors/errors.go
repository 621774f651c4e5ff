package errors

import (
	"errors"
	"fmt"
)

// Errors shared by the token store, the bridge and the identity provider.
var (
	ErrMissingAccessToken = errors.New("missing access token")

	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidNonce  = errors.New("invalid nonce")
	ErrMissingClient = errors.New("missing client id")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
