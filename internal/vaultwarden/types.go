package vaultwarden

import (
	"fmt"
	"time"
)

// SessionCookieName is the cookie Vaultwarden sets after a successful admin login.
const SessionCookieName = "VW_ADMIN"

// Credential is an authenticated admin session.
type Credential struct {
	Name      string    // Cookie name
	Value     string    // Cookie value, never logged
	ExpiresAt time.Time // Local expiry, independent of the cookie's own attributes
}

// ValidAt reports whether the credential can still be used at the given time.
func (c *Credential) ValidAt(now time.Time) bool {
	return c != nil && now.Before(c.ExpiresAt)
}

// String implements fmt.Stringer without revealing the session value.
func (c *Credential) String() string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s=<redacted> (expires %s)", c.Name, c.ExpiresAt.Format(time.RFC3339))
}

// UserRecord is one decoded entry from the admin user list.
// The upstream schema varies between releases, so fields are read by name.
type UserRecord map[string]any

// Lookup returns the raw value stored under key.
func (r UserRecord) Lookup(key string) (any, bool) {
	v, ok := r[key]
	return v, ok
}

// ID returns the best available identifier for log and warning output.
func (r UserRecord) ID() string {
	for _, key := range []string{"email", "Email", "id", "Id"} {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
