// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// SkippedDocument records one document excluded from a build.
type SkippedDocument struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// BuildReport summarizes one index build.
type BuildReport struct {
	Documents   int               `json:"documents"`
	Items       int               `json:"items"`
	Collections int               `json:"collections"`
	Skipped     []SkippedDocument `json:"skipped,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

// SnapshotBuilder produces a fresh snapshot from the configured source.
type SnapshotBuilder interface {
	Build(ctx context.Context) (*domain.Snapshot, *BuildReport, error)
}

// Builder scans a document source and builds snapshots from it.
type Builder struct {
	storage output.ObjectStorage
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// NewBuilder creates a new snapshot builder.
func NewBuilder(storage output.ObjectStorage, metrics output.MetricsCollector, logger *slog.Logger) *Builder {
	return &Builder{
		storage: storage,
		metrics: metrics,
		logger:  logger,
	}
}

// Build lists the source, classifies and flattens every document, and
// returns a sorted snapshot. Malformed documents are skipped and reported,
// never fatal. A build that yields zero rows returns the empty snapshot
// together with domain.ErrEmptyCatalog so callers can decide whether to
// install it.
func (b *Builder) Build(ctx context.Context) (*domain.Snapshot, *BuildReport, error) {
	start := time.Now()
	b.logger.Info("building snapshot")

	objects, err := b.storage.List(ctx)
	if err != nil {
		b.metrics.IncIndexBuilds(false)
		b.metrics.IncStorageOperations("list", false)
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	b.metrics.IncStorageOperations("list", true)

	snap := &domain.Snapshot{Catalog: domain.DefaultCatalogMetadata()}
	report := &BuildReport{Documents: len(objects)}
	catalogSeen := false

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			b.metrics.IncIndexBuilds(false)
			return nil, nil, err
		}

		raw, err := b.fetch(ctx, obj.Key)
		if err != nil {
			b.logger.Warn("skipping unreadable document", "key", obj.Key, "error", err)
			report.Skipped = append(report.Skipped, SkippedDocument{Key: obj.Key, Reason: err.Error()})
			continue
		}

		doc, err := domain.Classify(raw)
		if err != nil {
			b.logger.Warn("skipping malformed document", "key", obj.Key, "error", err)
			report.Skipped = append(report.Skipped, SkippedDocument{Key: obj.Key, Reason: err.Error()})
			continue
		}

		switch doc.Kind {
		case domain.KindItem:
			row, err := domain.FlattenItem(doc, obj.Key)
			if err != nil {
				report.Skipped = append(report.Skipped, SkippedDocument{Key: obj.Key, Reason: err.Error()})
				continue
			}
			snap.Items = append(snap.Items, row)

		case domain.KindCollection:
			row, err := domain.FlattenCollection(doc, obj.Key)
			if err != nil {
				report.Skipped = append(report.Skipped, SkippedDocument{Key: obj.Key, Reason: err.Error()})
				continue
			}
			snap.Collections = append(snap.Collections, row)

		case domain.KindCatalog:
			// The first root catalog wins.
			if !catalogSeen {
				snap.Catalog = domain.CatalogMetadata{
					ID:          doc.Catalog.ID,
					Title:       doc.Catalog.Title,
					Description: doc.Catalog.Description,
					StacVersion: doc.Catalog.StacVersion,
				}
				if snap.Catalog.StacVersion == "" {
					snap.Catalog.StacVersion = domain.DefaultStacVersion
				}
				catalogSeen = true
			}
		}
	}

	snap.SortItems()
	snap.Catalog.BuiltAt = time.Now().UTC()

	report.Items = len(snap.Items)
	report.Collections = len(snap.Collections)
	report.Duration = time.Since(start)

	b.metrics.IncIndexBuilds(true)
	b.metrics.ObserveIndexBuildDuration(report.Duration)
	b.logger.Info("snapshot built",
		"items", report.Items,
		"collections", report.Collections,
		"skipped", len(report.Skipped),
		"duration", report.Duration,
	)

	if snap.IsEmpty() {
		return snap, report, domain.ErrEmptyCatalog
	}
	return snap, report, nil
}

func (b *Builder) fetch(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	r, err := b.storage.GetReader(ctx, key)
	if err != nil {
		b.metrics.IncStorageOperations("get", false)
		return nil, &domain.SourceError{Operation: "get", Key: key, Err: err}
	}
	defer func() { _ = r.Close() }()

	raw, err := io.ReadAll(r)
	if err != nil {
		b.metrics.IncStorageOperations("get", false)
		return nil, &domain.SourceError{Operation: "read", Key: key, Err: err}
	}
	b.metrics.IncStorageOperations("get", true)
	b.metrics.ObserveStorageDuration("get", time.Since(start))
	return raw, nil
}
