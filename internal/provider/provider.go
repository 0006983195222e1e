package provider

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNetworkFailure     = errors.New("network failure")
	ErrRefreshExhausted   = errors.New("refresh failed")
	ErrMalformedResponse  = errors.New("malformed response")
)

const (
	DefaultLoginMessage   = "Invalid credentials"
	DefaultNetworkMessage = "Network error occurred"
)

// LoginError carries the message to show the user next to the error kind.
type LoginError struct {
	Message string
	Status  int
	Err     error
}

func (e *LoginError) Error() string {
	return e.Message
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
