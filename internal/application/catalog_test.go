package application

import (
	"context"
	"errors"
	"testing"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

func catalogFixture(storageType output.StorageType) *CatalogService {
	snap := &domain.Snapshot{
		Items: []domain.ItemRow{
			{
				ID: "scan-001", CollectionID: "scans",
				Payload: []byte(`{"type":"Feature","id":"scan-001","collection":"scans","properties":{"datetime":null}}`),
			},
		},
		Collections: []domain.CollectionRow{
			{
				ID:      "scans",
				Payload: []byte(`{"type":"Collection","id":"scans","description":"d","license":"MIT"}`),
			},
			{ID: "synthesized", Title: "No payload"},
		},
		Catalog: domain.CatalogMetadata{ID: "root", Title: "Root", Description: "test", StacVersion: "1.1.0"},
	}
	return NewCatalogService(testCache(snap), storageType, testLogger())
}

func TestCatalogMetadata(t *testing.T) {
	svc := catalogFixture(output.StorageTypeLocal)

	meta, err := svc.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog() error = %v", err)
	}
	if meta.ID != "root" || meta.Title != "Root" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestListCollections(t *testing.T) {
	svc := catalogFixture(output.StorageTypeLocal)

	docs, err := svc.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].ID() != "scans" || docs[1].ID() != "synthesized" {
		t.Errorf("ids = %q, %q", docs[0].ID(), docs[1].ID())
	}
}

func TestGetCollection(t *testing.T) {
	svc := catalogFixture(output.StorageTypeLocal)

	doc, err := svc.GetCollection(context.Background(), "scans")
	if err != nil {
		t.Fatalf("GetCollection() error = %v", err)
	}
	// Payload round-trips verbatim.
	if doc["license"] != "MIT" {
		t.Errorf("license = %v", doc["license"])
	}

	_, err = svc.GetCollection(context.Background(), "missing")
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestGetItem(t *testing.T) {
	svc := catalogFixture(output.StorageTypeLocal)

	doc, err := svc.GetItem(context.Background(), "scans", "scan-001")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if doc.ID() != "scan-001" {
		t.Errorf("id = %q", doc.ID())
	}

	// Missing collection and missing item are distinct failures.
	_, err = svc.GetItem(context.Background(), "missing", "scan-001")
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
	_, err = svc.GetItem(context.Background(), "scans", "missing")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Errorf("error = %v, want ErrItemNotFound", err)
	}
}

func TestCanRefresh(t *testing.T) {
	tests := []struct {
		storageType output.StorageType
		want        bool
	}{
		{output.StorageTypeS3, true},
		{output.StorageTypeAzure, true},
		{output.StorageTypeHTTP, true},
		{output.StorageTypeLocal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.storageType), func(t *testing.T) {
			svc := catalogFixture(tt.storageType)
			if got := svc.CanRefresh(); got != tt.want {
				t.Errorf("CanRefresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCatalogWithoutSnapshot(t *testing.T) {
	cache := NewSnapshotCache(&mockBuilder{err: domain.ErrSourceUnavailable}, &output.NoOpMetrics{}, testLogger(), CacheConfig{})
	svc := NewCatalogService(cache, output.StorageTypeLocal, testLogger())

	if _, err := svc.Catalog(context.Background()); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("Catalog() error = %v", err)
	}
	if _, err := svc.ListCollections(context.Background()); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("ListCollections() error = %v", err)
	}
}
