package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobrunner/stratum/internal/crs"
	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// SearchConfig holds search service configuration.
type SearchConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// SearchService runs filtered item searches over the current snapshot.
type SearchService struct {
	cache        *SnapshotCache
	metrics      output.MetricsCollector
	logger       *slog.Logger
	defaultLimit int
	maxLimit     int
}

// NewSearchService creates a new search service.
func NewSearchService(cache *SnapshotCache, metrics output.MetricsCollector, logger *slog.Logger, cfg SearchConfig) *SearchService {
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit == 0 {
		cfg.MaxLimit = 100
	}

	return &SearchService{
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
}

// DefaultLimit returns the default page size.
func (s *SearchService) DefaultLimit() int { return s.defaultLimit }

// MaxLimit returns the page size cap.
func (s *SearchService) MaxLimit() int { return s.maxLimit }

// Search runs a filtered item search across the current snapshot. Filters
// apply in a fixed order: collections, ids, bbox, datetime, then the limit.
// NumberMatched counts rows passing all filters before the limit cut.
func (s *SearchService) Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	start := time.Now()

	result, err := s.search(ctx, query)
	s.metrics.IncSearchCount(err == nil)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSearchDuration(time.Since(start))
	return result, nil
}

// ItemsInCollection runs a search scoped to one collection. The collection
// must exist even when it has no items.
func (s *SearchService) ItemsInCollection(ctx context.Context, collectionID string, query domain.SearchQuery) (*domain.SearchResult, error) {
	snap, ok := s.cache.Current()
	if !ok {
		return nil, domain.ErrSourceUnavailable
	}
	if _, found := snap.Collection(collectionID); !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collectionID)
	}

	query.Collections = []string{collectionID}
	return s.Search(ctx, query)
}

func (s *SearchService) search(_ context.Context, query domain.SearchQuery) (*domain.SearchResult, error) {
	snap, ok := s.cache.Current()
	if !ok {
		return nil, domain.ErrSourceUnavailable
	}

	if err := query.Validate(s.maxLimit); err != nil {
		return nil, err
	}
	limit := s.defaultLimit
	if query.Limit != nil {
		limit = *query.Limit
	}

	dtRange, err := domain.ParseDatetimeRange(query.Datetime)
	if err != nil {
		return nil, err
	}

	queryBBox, err := s.storageBBox(query.BBox, query.BBoxCRS)
	if err != nil {
		return nil, err
	}

	collectionSet := toSet(query.Collections)
	idSet := toSet(query.IDs)

	result := &domain.SearchResult{}
	for i := range snap.Items {
		row := &snap.Items[i]

		if collectionSet != nil && !collectionSet[row.CollectionID] {
			continue
		}
		if idSet != nil && !idSet[row.ID] {
			continue
		}
		if queryBBox != nil && !rowIntersects(row, queryBBox) {
			continue
		}
		if !dtRange.IsZero() {
			if row.Datetime == nil || !dtRange.Contains(*row.Datetime) {
				continue
			}
		}

		result.NumberMatched++
		if len(result.Items) < limit {
			result.Items = append(result.Items, *row)
		}
	}

	result.NumberReturned = len(result.Items)
	return result, nil
}

// storageBBox converts the query bbox to the WGS84 storage CRS.
func (s *SearchService) storageBBox(bbox []float64, identifier string) ([]float64, error) {
	if len(bbox) == 0 {
		return nil, nil
	}
	if identifier == "" {
		return bbox, nil
	}
	if _, err := crs.Resolve(identifier); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCRS, err)
	}
	if crs.IsWGS84(identifier) {
		return bbox, nil
	}
	converted, err := crs.TransformBBox(bbox, identifier, domain.WGS84Identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBBox, err)
	}
	return converted, nil
}

// rowIntersects applies the permissive spatial filter: rows without any
// spatial information are retained. The stored geometry decides when
// present; the item bbox is only a fallback, since an envelope can cover
// area the geometry does not.
func rowIntersects(row *domain.ItemRow, queryBBox []float64) bool {
	if hit, ok := row.GeometryIntersects(queryBBox); ok {
		return hit
	}
	if len(row.BBox) > 0 {
		return domain.BBoxIntersects(row.BBox, queryBBox)
	}
	return true
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
