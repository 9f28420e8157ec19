package trader

import "errors"

// Error kinds callers can match with errors.Is.
var (
	ErrUserNotFound      = errors.New("user not configured")
	ErrPairNotConfigured = errors.New("pair not configured")
)
