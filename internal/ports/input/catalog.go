// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/stratum/internal/domain"
)

// SearchService defines the primary port for item search.
type SearchService interface {
	// Search runs a filtered item search across the current snapshot.
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResult, error)

	// ItemsInCollection runs a search scoped to one collection.
	ItemsInCollection(ctx context.Context, collectionID string, query domain.SearchQuery) (*domain.SearchResult, error)
}

// CatalogService defines the primary port for catalog and collection reads.
type CatalogService interface {
	// Catalog returns the catalog metadata of the current snapshot.
	Catalog(ctx context.Context) (domain.CatalogMetadata, error)

	// ListCollections returns all collections in the current snapshot.
	ListCollections(ctx context.Context) ([]domain.RawDocument, error)

	// GetCollection returns one collection document by id.
	GetCollection(ctx context.Context, id string) (domain.RawDocument, error)

	// GetItem returns one item document by collection and item id.
	GetItem(ctx context.Context, collectionID, itemID string) (domain.RawDocument, error)

	// Refresh rebuilds the snapshot from the configured source.
	Refresh(ctx context.Context) error

	// CanRefresh reports whether a remote source is configured for
	// on-demand refresh.
	CanRefresh() bool
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information. When the
	// loaded snapshot is older than the configured TTL this triggers a
	// refresh before reporting.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy     bool              // Overall health status
	Ready       bool              // Ready to accept requests
	Items       int               // Number of indexed items
	Collections int               // Number of indexed collections
	CacheAge    float64           // Seconds since the snapshot was loaded
	Components  map[string]string // Component statuses
}
