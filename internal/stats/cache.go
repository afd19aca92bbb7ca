package stats

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robalyx/vaultstats/internal/vaultwarden"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CredentialSource provides an authenticated admin session.
type CredentialSource interface {
	GetCredential(ctx context.Context) (*vaultwarden.Credential, error)
}

// UserLister fetches the raw user list.
type UserLister interface {
	ListUsers(ctx context.Context, cred *vaultwarden.Credential) ([]vaultwarden.UserRecord, error)
}

// DiagnosticsFetcher fetches optional server diagnostics.
type DiagnosticsFetcher interface {
	Diagnostics(ctx context.Context, cred *vaultwarden.Credential) (map[string]any, error)
}

// Options configures a Cache.
type Options struct {
	TTL            time.Duration      // Snapshot validity window, 0 refetches on every call
	RequestTimeout time.Duration      // Bound for each upstream call, 0 for none
	Diagnostics    DiagnosticsFetcher // Optional best-effort diagnostics source
}

// Cache holds the latest statistics snapshot and recomputes it when stale.
// Concurrent callers that miss share a single upstream fetch. Diagnostics run
// in the background after the snapshot is stored.
type Cache struct {
	sessions CredentialSource
	users    UserLister
	diag     DiagnosticsFetcher
	clock    clockwork.Clock
	ttl      time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
	group    singleflight.Group
	bg       conc.WaitGroup
}

// NewCache creates an empty statistics cache.
func NewCache(
	sessions CredentialSource, users UserLister, clock clockwork.Clock, opts Options, logger *zap.Logger,
) *Cache {
	return &Cache{
		sessions: sessions,
		users:    users,
		diag:     opts.Diagnostics,
		clock:    clock,
		ttl:      max(opts.TTL, 0),
		timeout:  opts.RequestTimeout,
		logger:   logger.Named("stats"),
	}
}

// GetStats returns the cached snapshot, or fetches and derives a fresh one.
// A failed refresh returns the error; an expired snapshot is never served.
func (c *Cache) GetStats(ctx context.Context) (*Snapshot, error) {
	if snapshot := c.cached(); snapshot != nil {
		c.logger.Debug("Returning cached stats", zap.Time("fetchedAt", snapshot.FetchedAt))
		return snapshot, nil
	}

	result, err, _ := c.group.Do("stats", func() (any, error) {
		if snapshot := c.cached(); snapshot != nil {
			return snapshot, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}

	return result.(*Snapshot), nil
}

// refresh fetches the user list, derives a snapshot and stores it.
func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	cred, err := c.sessions.GetCredential(ctx)
	if err != nil {
		return nil, err
	}

	listCtx, cancel := c.withTimeout(ctx)
	records, err := c.users.ListUsers(listCtx, cred)
	cancel()
	if err != nil {
		c.logger.Error("Failed to fetch user list", zap.Error(err))
		return nil, err
	}

	now := c.clock.Now()
	snapshot, warnings := Derive(records, now)
	for _, w := range warnings {
		c.logger.Debug("Skipped unusable user field", zap.Stringer("warning", w))
	}

	c.mu.Lock()
	c.snapshot = &snapshot
	c.mu.Unlock()

	if c.diag != nil {
		c.bg.Go(func() { c.fetchDiagnostics(ctx, cred) })
	}

	c.logger.Info("Fetched stats",
		zap.Int("totalUsers", snapshot.TotalUsers),
		zap.Int("activeUsers", snapshot.ActiveUsers),
		zap.Bool("hasItemCounts", snapshot.TotalItems != nil),
		zap.Int("warnings", len(warnings)))

	return &snapshot, nil
}

// Wait blocks until background diagnostics fetches have finished.
func (c *Cache) Wait() {
	c.bg.Wait()
}

// fetchDiagnostics queries the optional diagnostics endpoint. Nothing it does
// can fail the refresh.
func (c *Cache) fetchDiagnostics(ctx context.Context, cred *vaultwarden.Credential) {
	recovered := panics.Try(func() {
		diagCtx, cancel := c.withTimeout(ctx)
		defer cancel()

		diag, err := c.diag.Diagnostics(diagCtx, cred)
		if err != nil {
			c.logger.Debug("Could not fetch diagnostics", zap.Error(err))
			return
		}

		keys := make([]string, 0, len(diag))
		for k := range diag {
			keys = append(keys, k)
		}
		c.logger.Debug("Diagnostics data available", zap.Strings("keys", keys))
	})
	if recovered != nil {
		c.logger.Debug("Diagnostics fetch panicked", zap.String("panic", recovered.String()))
	}
}

// cached returns the stored snapshot if it is still within its window.
func (c *Cache) cached() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || c.clock.Since(c.snapshot.FetchedAt) >= c.ttl {
		return nil
	}
	return c.snapshot
}

func (c *Cache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
