// Package session caches the Vaultwarden admin session so that statistics
// refreshes do not log in on every request.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/vaultstats/internal/vaultwarden"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TTL is how long an acquired credential is reused before logging in again.
const TTL = time.Hour

// Authenticator performs an admin login.
type Authenticator interface {
	Authenticate(ctx context.Context, secret string) (*vaultwarden.Credential, error)
}

// Cache holds at most one live credential and refreshes it on expiry.
// Concurrent callers that miss share a single login.
type Cache struct {
	auth    Authenticator
	secret  string
	clock   clockwork.Clock
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	cred  *vaultwarden.Credential
	group singleflight.Group
}

// NewCache creates an empty session cache. A zero timeout leaves login
// bounded only by the caller's context and the client's own timeout.
func NewCache(
	auth Authenticator, secret string, clock clockwork.Clock, timeout time.Duration, logger *zap.Logger,
) *Cache {
	return &Cache{
		auth:    auth,
		secret:  secret,
		clock:   clock,
		timeout: timeout,
		logger:  logger.Named("session"),
	}
}

// GetCredential returns the cached credential, logging in if there is none
// or it has expired. Errors are never cached.
func (c *Cache) GetCredential(ctx context.Context) (*vaultwarden.Credential, error) {
	if cred := c.cached(); cred != nil {
		return cred, nil
	}

	// The flight outlives a cancelled caller so other waiters still get a result
	result, err, shared := c.group.Do("login", func() (any, error) {
		if cred := c.cached(); cred != nil {
			return cred, nil
		}

		flightCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			flightCtx, cancel = context.WithTimeout(flightCtx, c.timeout)
			defer cancel()
		}

		cred, err := c.auth.Authenticate(flightCtx, c.secret)
		if err != nil {
			c.logger.Error("Failed to authenticate to admin interface", zap.Error(err))
			return nil, err
		}

		cred.ExpiresAt = c.clock.Now().Add(TTL)

		c.mu.Lock()
		c.cred = cred
		c.mu.Unlock()

		c.logger.Info("Acquired admin session", zap.Time("expiresAt", cred.ExpiresAt))
		return cred, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("Shared in-flight admin login")
	}

	return result.(*vaultwarden.Credential), nil
}

// cached returns the stored credential if it is still valid.
func (c *Cache) cached() *vaultwarden.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cred.ValidAt(c.clock.Now()) {
		return c.cred
	}
	return nil
}
