package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// CatalogService serves catalog, collection and item reads from the
// current snapshot.
type CatalogService struct {
	cache       *SnapshotCache
	storageType output.StorageType
	logger      *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(cache *SnapshotCache, storageType output.StorageType, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		cache:       cache,
		storageType: storageType,
		logger:      logger,
	}
}

// Catalog returns the catalog metadata of the current snapshot.
func (s *CatalogService) Catalog(_ context.Context) (domain.CatalogMetadata, error) {
	snap, ok := s.cache.Current()
	if !ok {
		return domain.CatalogMetadata{}, domain.ErrSourceUnavailable
	}
	return snap.Catalog, nil
}

// ListCollections returns all collections in the current snapshot.
func (s *CatalogService) ListCollections(_ context.Context) ([]domain.RawDocument, error) {
	snap, ok := s.cache.Current()
	if !ok {
		return nil, domain.ErrSourceUnavailable
	}

	docs := make([]domain.RawDocument, 0, len(snap.Collections))
	for i := range snap.Collections {
		doc, err := snap.Collections[i].Document()
		if err != nil {
			s.logger.Warn("skipping unreconstructable collection", "id", snap.Collections[i].ID, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// GetCollection returns one collection document by id.
func (s *CatalogService) GetCollection(_ context.Context, id string) (domain.RawDocument, error) {
	snap, ok := s.cache.Current()
	if !ok {
		return nil, domain.ErrSourceUnavailable
	}

	row, found := snap.Collection(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, id)
	}
	return row.Document()
}

// GetItem returns one item document by collection and item id. A missing
// collection and a missing item are distinguished.
func (s *CatalogService) GetItem(_ context.Context, collectionID, itemID string) (domain.RawDocument, error) {
	snap, ok := s.cache.Current()
	if !ok {
		return nil, domain.ErrSourceUnavailable
	}

	if _, found := snap.Collection(collectionID); !found {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collectionID)
	}
	row, found := snap.Item(collectionID, itemID)
	if !found {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrItemNotFound, collectionID, itemID)
	}
	return row.Document()
}

// Refresh rebuilds the snapshot from the configured source.
func (s *CatalogService) Refresh(ctx context.Context) error {
	return s.cache.Refresh(ctx)
}

// CanRefresh reports whether a remote source is configured.
func (s *CatalogService) CanRefresh() bool {
	return s.storageType.IsRemote()
}
