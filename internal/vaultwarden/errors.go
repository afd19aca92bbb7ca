package vaultwarden

import (
	"errors"
	"fmt"
)

// ErrMissingSessionToken is the reason carried by an AuthError when the login
// response was accepted but did not set the admin session cookie.
var ErrMissingSessionToken = errors.New("missing expected session token")

// ConfigError reports required configuration that is not set.
// It is returned before any network call and repeats until the
// configuration changes.
type ConfigError struct {
	Key string // Environment variable that must be set
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing admin secret: %s not configured", e.Key)
}

// AuthError reports a rejected or malformed admin login.
type AuthError struct {
	StatusCode int   // HTTP status of the login response, 0 on transport failure
	Err        error // Underlying cause, if any
}

func (e *AuthError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("admin login failed with status %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("admin login failed with status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("admin login failed: %v", e.Err)
	default:
		return "admin login failed"
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// FetchError reports a failed upstream data request made with a valid credential.
type FetchError struct {
	Op         string // Upstream operation, e.g. "list users"
	StatusCode int    // HTTP status, 0 on transport or decode failure
	Err        error  // Underlying cause, if any
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("failed to %s: upstream returned status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	default:
		return "failed to " + e.Op
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
