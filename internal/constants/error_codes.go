package constants

const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenMissing    = "TOKEN_MISSING"
	ErrCodeTokenInvalid    = "TOKEN_INVALID"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeTokenStale      = "TOKEN_STALE"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeSessionExpired  = "SESSION_EXPIRED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)
