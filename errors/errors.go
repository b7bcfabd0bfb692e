package errors

import "fmt"

var (
	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrNotAMember         = fmt.Errorf("not a member of the chat")
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrChatAlreadyExists  = fmt.Errorf("chat already exists")
	ErrAlreadyMember      = fmt.Errorf("user already in group")
	ErrInvalidOperation   = fmt.Errorf("operation not valid for this chat kind")
	ErrTooManyConnections = fmt.Errorf("too many live connections for user")
	ErrDeliveryFailed     = fmt.Errorf("delivery failed")
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
