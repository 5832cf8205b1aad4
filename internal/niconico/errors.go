package niconico

import (
	"errors"
	"fmt"
)

// ErrTokenExpired signals that the comment server rejected the pagination
// token. The caller should request a fresh thread key and retry the same
// cursor.
var ErrTokenExpired = errors.New("niconico: comment token expired")

// ErrLoginFailed signals that neither the saved session nor the credentials
// were accepted.
var ErrLoginFailed = errors.New("niconico: login failed")

// APIError is a non-retryable API-level failure.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("niconico: api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("niconico: api error %d: %s", e.StatusCode, e.Message)
}
