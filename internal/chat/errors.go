package chat

// Error codes for domain errors visible on the wire.
const (
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeBadRequest       = "bad_request"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeRateLimited      = "rate_limited"
)

// Error wraps a code and human-readable message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func chatError(code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}
