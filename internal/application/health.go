package application

import (
	"context"
	"time"

	"github.com/jobrunner/stratum/internal/ports/input"
)

// HealthService provides health check functionality. The detailed check
// doubles as the lazy refresh hook: a stale snapshot is rebuilt before
// reporting.
type HealthService struct {
	cache *SnapshotCache
}

// NewHealthService creates a new health service.
func NewHealthService(cache *SnapshotCache) *HealthService {
	return &HealthService{
		cache: cache,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(ctx context.Context) bool {
	return true // Basic health check
}

// IsReady returns true if the service is ready to accept requests.
func (s *HealthService) IsReady(ctx context.Context) bool {
	_, ok := s.cache.Current()
	return ok
}

// GetHealthDetails returns detailed health information, refreshing a
// stale snapshot first.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	now := time.Now()
	if s.cache.ShouldRefresh(now) {
		// A failed lazy refresh leaves the previous snapshot serving.
		_ = s.cache.RefreshIfStale(ctx, now)
	}

	details := input.HealthDetails{
		Healthy: s.IsHealthy(ctx),
		Ready:   s.IsReady(ctx),
		Components: map[string]string{
			"index": "ok",
		},
	}

	snap, ok := s.cache.Current()
	if !ok {
		details.Components["index"] = "empty"
		return details
	}

	details.Items = snap.ItemCount()
	details.Collections = snap.CollectionCount()
	details.CacheAge = s.cache.Age(time.Now()).Seconds()
	return details
}
