package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// CacheConfig holds snapshot cache configuration.
type CacheConfig struct {
	TTL         time.Duration // 0 disables staleness-driven refresh
	RejectEmpty bool          // keep the previous snapshot when a rebuild comes back empty
}

// SnapshotCache holds the current snapshot behind an atomic pointer.
// Readers always see a complete snapshot; a rebuild prepares the new one
// off to the side and swaps it in whole. Concurrent refreshes collapse
// into a single build.
type SnapshotCache struct {
	current atomic.Pointer[cacheEntry]

	builder     SnapshotBuilder
	ttl         time.Duration
	rejectEmpty bool
	group       singleflight.Group
	metrics     output.MetricsCollector
	logger      *slog.Logger
}

type cacheEntry struct {
	snap     *domain.Snapshot
	loadedAt time.Time
}

// NewSnapshotCache creates a new snapshot cache.
func NewSnapshotCache(builder SnapshotBuilder, metrics output.MetricsCollector, logger *slog.Logger, cfg CacheConfig) *SnapshotCache {
	return &SnapshotCache{
		builder:     builder,
		ttl:         cfg.TTL,
		rejectEmpty: cfg.RejectEmpty,
		metrics:     metrics,
		logger:      logger,
	}
}

// Current returns the loaded snapshot, or false when nothing has been
// loaded yet.
func (c *SnapshotCache) Current() (*domain.Snapshot, bool) {
	entry := c.current.Load()
	if entry == nil {
		return nil, false
	}
	return entry.snap, true
}

// LoadedAt returns when the current snapshot was installed.
func (c *SnapshotCache) LoadedAt() (time.Time, bool) {
	entry := c.current.Load()
	if entry == nil {
		return time.Time{}, false
	}
	return entry.loadedAt, true
}

// Age returns the age of the current snapshot, zero when none is loaded.
func (c *SnapshotCache) Age(now time.Time) time.Duration {
	loadedAt, ok := c.LoadedAt()
	if !ok {
		return 0
	}
	return now.Sub(loadedAt)
}

// ShouldRefresh reports whether the snapshot is stale under the TTL.
// A cache that never loaded always wants a refresh.
func (c *SnapshotCache) ShouldRefresh(now time.Time) bool {
	loadedAt, ok := c.LoadedAt()
	if !ok {
		return true
	}
	if c.ttl <= 0 {
		return false
	}
	return now.Sub(loadedAt) > c.ttl
}

// Install swaps in a snapshot directly, bypassing the builder. Used when
// loading a persisted index at startup.
func (c *SnapshotCache) Install(snap *domain.Snapshot, now time.Time) {
	c.current.Store(&cacheEntry{snap: snap, loadedAt: now})
	c.metrics.SetSnapshotItems(snap.ItemCount())
	c.metrics.SetSnapshotCollections(snap.CollectionCount())
}

// Refresh rebuilds the snapshot from the source and installs the result.
// Overlapping callers share one build. An empty rebuild replaces a
// non-empty snapshot only when the reject-empty policy is off.
func (c *SnapshotCache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		snap, report, err := c.builder.Build(ctx)
		if err != nil && !errors.Is(err, domain.ErrEmptyCatalog) {
			return nil, err
		}

		if errors.Is(err, domain.ErrEmptyCatalog) && c.rejectEmpty {
			if prev, ok := c.Current(); ok && !prev.IsEmpty() {
				c.logger.Warn("rebuild returned an empty catalog, keeping previous snapshot",
					"previous_items", prev.ItemCount(),
					"previous_collections", prev.CollectionCount(),
				)
				return report, nil
			}
		}

		c.Install(snap, time.Now())
		return report, nil
	})
	return err
}

// RefreshIfStale refreshes only when the TTL says the snapshot is stale.
func (c *SnapshotCache) RefreshIfStale(ctx context.Context, now time.Time) error {
	if !c.ShouldRefresh(now) {
		return nil
	}
	return c.Refresh(ctx)
}
