package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus translates domain sentinels into HTTP status codes at
// the transport edge. Unknown errors stay internal.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrChatNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrChatAlreadyExists), errors.Is(err, ErrUserAlreadyExists), errors.Is(err, ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidOperation), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyConnections):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
