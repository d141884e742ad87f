package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when the refresh API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// RefreshResult contains the result of a refresh operation.
type RefreshResult struct {
	Items           int       `json:"items"`
	Collections     int       `json:"collections"`
	RefreshedAt     time.Time `json:"refreshed_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// Refresher rebuilds the snapshot on a fixed interval and on demand.
type Refresher struct {
	cache    *SnapshotCache
	interval time.Duration
	logger   *slog.Logger

	// Lifecycle management
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for API triggers
	lastAPIRefresh time.Time
	apiMutex       sync.Mutex

	// Track next scheduled refresh for reporting
	nextRefresh time.Time
	nextMu      sync.RWMutex
}

// NewRefresher creates a new refresher.
func NewRefresher(cache *SnapshotCache, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		cache:    cache,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		// Initialize to past time to allow immediate first API call
		lastAPIRefresh: time.Now().Add(-31 * time.Second),
	}
}

// Start begins the periodic refresh scheduler.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("starting refresher", "interval", r.interval)

	r.wg.Add(1)
	go r.run(ctx)
}

// run is the main refresh loop.
func (r *Refresher) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.setNextRefresh(time.Now().Add(r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped: context canceled")
			return
		case <-r.stopCh:
			r.logger.Info("refresher stopped")
			return
		case <-ticker.C:
			r.logger.Debug("scheduled refresh triggered")
			if err := r.cache.Refresh(ctx); err != nil {
				r.logger.Error("scheduled refresh failed", "error", err)
			}
			r.setNextRefresh(time.Now().Add(r.interval))
		}
	}
}

// Stop gracefully stops the refresher.
func (r *Refresher) Stop() {
	r.logger.Info("stopping refresher")
	close(r.stopCh)
	r.wg.Wait()
}

// TriggerRefresh manually triggers a refresh with rate limiting.
// Returns ErrRateLimited if called more than 2 times per minute.
func (r *Refresher) TriggerRefresh(ctx context.Context) (RefreshResult, error) {
	r.apiMutex.Lock()
	defer r.apiMutex.Unlock()

	// Rate limit: 30 seconds cooldown (allows ~2 requests per minute)
	if time.Since(r.lastAPIRefresh) < 30*time.Second {
		return RefreshResult{}, ErrRateLimited
	}
	r.lastAPIRefresh = time.Now()

	if err := r.cache.Refresh(ctx); err != nil {
		return RefreshResult{}, err
	}

	result := RefreshResult{
		RefreshedAt:     time.Now(),
		NextScheduledAt: r.getNextRefresh(),
	}
	if snap, ok := r.cache.Current(); ok {
		result.Items = snap.ItemCount()
		result.Collections = snap.CollectionCount()
	}
	return result, nil
}

func (r *Refresher) setNextRefresh(t time.Time) {
	r.nextMu.Lock()
	defer r.nextMu.Unlock()
	r.nextRefresh = t
}

func (r *Refresher) getNextRefresh() time.Time {
	r.nextMu.RLock()
	defer r.nextMu.RUnlock()
	return r.nextRefresh
}

// Interval returns the refresh interval.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}
