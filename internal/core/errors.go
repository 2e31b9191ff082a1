package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeUnauthenticated  = "unauthenticated"
	ErrCodeAlreadySignedIn  = "already_signed_in"
	ErrCodeWrongPassword    = "wrong_password"
	ErrCodeLoginInUse       = "login_in_use"
	ErrCodeAlreadyInChannel = "already_in_channel"
	ErrCodeUnknownChannel   = "unknown_channel"
	ErrCodeChannelFull      = "channel_full"
	ErrCodeNotInChannel     = "not_in_channel"
	ErrCodeMalformedCommand = "malformed_command"
	ErrCodeRestoreFailed    = "restore_failed"
	ErrCodeInternal         = "internal"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ErrorCode extracts the CoreError code from err, or "" if err is not a CoreError.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
