package application

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

func itemJSON(id, collection, datetime string) string {
	return fmt.Sprintf(`{
		"type": "Feature",
		"id": %q,
		"collection": %q,
		"bbox": [139.0, 35.0, 139.1, 35.1],
		"properties": {"datetime": %q}
	}`, id, collection, datetime)
}

func TestBuilderBuild(t *testing.T) {
	storage := &mockStorage{documents: map[string]string{
		"catalog.json":              `{"type":"Catalog","id":"root","title":"Root","description":"test catalog"}`,
		"city-scans/collection.json": `{"type":"Collection","id":"city-scans","description":"d","license":"MIT"}`,
		"city-scans/scan-001.json":  itemJSON("scan-001", "city-scans", "2024-03-15T09:30:00Z"),
		"city-scans/scan-002.json":  itemJSON("scan-002", "city-scans", "2024-06-01T00:00:00Z"),
	}}
	builder := NewBuilder(storage, &output.NoOpMetrics{}, testLogger())

	snap, report, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if snap.ItemCount() != 2 || snap.CollectionCount() != 1 {
		t.Errorf("counts = %d/%d, want 2/1", snap.ItemCount(), snap.CollectionCount())
	}
	if snap.Catalog.ID != "root" || snap.Catalog.Title != "Root" {
		t.Errorf("catalog = %+v, want the root catalog document", snap.Catalog)
	}
	if snap.Catalog.BuiltAt.IsZero() {
		t.Error("BuiltAt should be set")
	}

	// Items come out sorted, newest first.
	if snap.Items[0].ID != "scan-002" || snap.Items[1].ID != "scan-001" {
		t.Errorf("order = %q, %q", snap.Items[0].ID, snap.Items[1].ID)
	}

	if report.Documents != 4 || report.Items != 2 || report.Collections != 1 || len(report.Skipped) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestBuilderSkipsMalformed(t *testing.T) {
	storage := &mockStorage{documents: map[string]string{
		"good-1.json":   itemJSON("good-1", "c", "2024-01-01T00:00:00Z"),
		"good-2.json":   itemJSON("good-2", "c", "2024-01-02T00:00:00Z"),
		"no-id.json":    `{"type":"Feature","properties":{}}`,
		"invalid.json":  `{not json`,
	}}
	builder := NewBuilder(storage, &output.NoOpMetrics{}, testLogger())

	snap, report, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if snap.ItemCount() != 2 {
		t.Errorf("ItemCount() = %d, want 2", snap.ItemCount())
	}
	if len(report.Skipped) != 2 {
		t.Errorf("Skipped = %v, want 2 entries", report.Skipped)
	}
	for _, skipped := range report.Skipped {
		if skipped.Key != "no-id.json" && skipped.Key != "invalid.json" {
			t.Errorf("unexpected skipped key %q", skipped.Key)
		}
		if skipped.Reason == "" {
			t.Error("skip reason should be recorded")
		}
	}
}

func TestBuilderEmptySource(t *testing.T) {
	storage := &mockStorage{documents: map[string]string{}}
	builder := NewBuilder(storage, &output.NoOpMetrics{}, testLogger())

	snap, report, err := builder.Build(context.Background())
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("Build() error = %v, want ErrEmptyCatalog", err)
	}
	// The snapshot and report are still delivered.
	if snap == nil || !snap.IsEmpty() {
		t.Errorf("snapshot = %v, want empty", snap)
	}
	if report == nil || report.Documents != 0 {
		t.Errorf("report = %v", report)
	}
	if snap.Catalog.ID != "stac-catalog" {
		t.Errorf("catalog id = %q, want default", snap.Catalog.ID)
	}
}

func TestBuilderListFailure(t *testing.T) {
	storage := &mockStorage{listErr: errors.New("connection refused")}
	builder := NewBuilder(storage, &output.NoOpMetrics{}, testLogger())

	_, _, err := builder.Build(context.Background())
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("Build() error = %v, want ErrSourceUnavailable", err)
	}
}

func TestBuilderUnreadableDocumentSkipped(t *testing.T) {
	// List succeeds but every read fails; the build completes empty rather
	// than failing.
	storage := &mockStorage{
		documents: map[string]string{"a.json": itemJSON("a", "c", "2024-01-01T00:00:00Z")},
		getErr:    errors.New("timeout"),
	}
	builder := NewBuilder(storage, &output.NoOpMetrics{}, testLogger())

	snap, report, err := builder.Build(context.Background())
	if !errors.Is(err, domain.ErrEmptyCatalog) {
		t.Fatalf("Build() error = %v, want ErrEmptyCatalog", err)
	}
	if snap.ItemCount() != 0 || len(report.Skipped) != 1 {
		t.Errorf("snapshot/report = %d items, %d skipped", snap.ItemCount(), len(report.Skipped))
	}
}
