package core

import "errors"

// Error codes for notices sent to clients.
const (
	ErrCodeRegisterFailed = "register_failed"
	ErrCodeAudioFailed    = "audio_failed"
	ErrCodeRateLimited    = "rate_limited"
)

var (
	// ErrStoreUnavailable wraps failures of the message, identity or attachment store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidState is returned for requests the connection is not ready for.
	ErrInvalidState     = errors.New("invalid state")
	// ErrMalformedPayload is returned for requests missing required fields.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrRateLimited is returned when a connection exceeds its inbound message rate.
	ErrRateLimited      = errors.New("rate limited")
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
