package output

import (
	"context"

	"github.com/jobrunner/stratum/internal/domain"
)

// IndexStore defines the secondary port for persisted index files. A
// persisted index is a directory holding items.parquet, collections.parquet
// and catalog_metadata.json.
type IndexStore interface {
	// Write persists a snapshot to the given directory.
	Write(ctx context.Context, dir string, snap *domain.Snapshot) error

	// Read loads a snapshot from the given directory.
	Read(ctx context.Context, dir string) (*domain.Snapshot, error)

	// Fetch downloads a prebuilt index from an object storage prefix
	// into the given directory, ready for Read.
	Fetch(ctx context.Context, src ObjectStorage, prefix, dir string) error
}
