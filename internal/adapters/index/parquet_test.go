package index

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jobrunner/stratum/internal/adapters/storage"
	"github.com/jobrunner/stratum/internal/domain"
)

func testSnapshot() *domain.Snapshot {
	dt := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	count := int64(184000000)
	pcType := "lidar"
	epsg := 6676
	start := "2023-01-01T00:00:00Z"

	return &domain.Snapshot{
		Items: []domain.ItemRow{
			{
				ID:           "scan-001",
				CollectionID: "city-scans",
				Title:        "Downtown scan",
				Datetime:     &dt,
				BBox:         []float64{139.0, 35.0, 139.1, 35.1},
				Geometry:     "POLYGON ((139 35, 139.1 35, 139.1 35.1, 139 35.1, 139 35))",
				CRSEPSG:      &epsg,
				PCCount:      &count,
				PCType:       &pcType,
				StacVersion:  "1.1.0",
				Links:        `[{"rel":"self","href":"x"}]`,
				Assets:       `{"data":{"href":"y"}}`,
				Payload:      []byte(`{"type":"Feature","id":"scan-001"}`),
				SourceKey:    "city-scans/scan-001.json",
			},
			{
				ID:           "scan-002",
				CollectionID: "city-scans",
				StacVersion:  "1.1.0",
				SourceKey:    "city-scans/scan-002.json",
			},
		},
		Collections: []domain.CollectionRow{
			{
				ID:             "city-scans",
				Title:          "City Scans",
				Description:    "Aerial scans",
				License:        "CC-BY-4.0",
				BBox:           []float64{138.9, 34.9, 139.2, 35.2},
				StartDatetime:  &start,
				Summaries:      `{"pc:type":["lidar"]}`,
				Providers:      `[{"name":"Example Org"}]`,
				StacExtensions: []string{"https://stac-extensions.github.io/pointcloud/v1.0.0/schema.json"},
				StacVersion:    "1.1.0",
				Payload:        []byte(`{"type":"Collection","id":"city-scans"}`),
				SourceKey:      "city-scans/collection.json",
			},
		},
		Catalog: domain.CatalogMetadata{
			ID:          "test-catalog",
			Title:       "Test Catalog",
			Description: "round trip",
			StacVersion: "1.1.0",
			BuiltAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	ctx := context.Background()

	want := testSnapshot()
	if err := store.Write(ctx, dir, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	for _, name := range []string{ItemsFile, CollectionsFile, MetadataFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}

	got, err := store.Read(ctx, dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.ItemCount() != 2 || got.CollectionCount() != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", got.ItemCount(), got.CollectionCount())
	}
	if !reflect.DeepEqual(got.Catalog, want.Catalog) {
		t.Errorf("catalog = %+v, want %+v", got.Catalog, want.Catalog)
	}

	gi, wi := got.Items[0], want.Items[0]
	if gi.ID != wi.ID || gi.CollectionID != wi.CollectionID || gi.Title != wi.Title {
		t.Errorf("item identity fields differ: %+v", gi)
	}
	if gi.Datetime == nil || !gi.Datetime.Equal(*wi.Datetime) {
		t.Errorf("datetime = %v, want %v", gi.Datetime, wi.Datetime)
	}
	if !reflect.DeepEqual(gi.BBox, wi.BBox) {
		t.Errorf("bbox = %v, want %v", gi.BBox, wi.BBox)
	}
	if gi.Geometry != wi.Geometry {
		t.Errorf("geometry = %q", gi.Geometry)
	}
	if gi.PCCount == nil || *gi.PCCount != *wi.PCCount {
		t.Errorf("pc_count = %v", gi.PCCount)
	}
	if gi.CRSEPSG == nil || *gi.CRSEPSG != *wi.CRSEPSG {
		t.Errorf("proj_epsg = %v", gi.CRSEPSG)
	}
	if string(gi.Payload) != string(wi.Payload) {
		t.Errorf("payload = %s", gi.Payload)
	}

	// Optional fields absent on the second item stay absent.
	g2 := got.Items[1]
	if g2.Datetime != nil || g2.PCCount != nil || g2.PCType != nil || g2.CRSEPSG != nil {
		t.Errorf("optional fields should stay nil: %+v", g2)
	}

	gc, wc := got.Collections[0], want.Collections[0]
	if gc.ID != wc.ID || gc.License != wc.License {
		t.Errorf("collection fields differ: %+v", gc)
	}
	if gc.StartDatetime == nil || *gc.StartDatetime != *wc.StartDatetime {
		t.Errorf("start_datetime = %v", gc.StartDatetime)
	}
	if gc.EndDatetime != nil {
		t.Errorf("end_datetime = %v, want nil", gc.EndDatetime)
	}
	if !reflect.DeepEqual(gc.StacExtensions, wc.StacExtensions) {
		t.Errorf("stac_extensions = %v", gc.StacExtensions)
	}
}

func TestStoreReadMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	ctx := context.Background()

	if err := store.Write(ctx, dir, testSnapshot()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := os.Remove(filepath.Join(dir, MetadataFile)); err != nil {
		t.Fatal(err)
	}

	got, err := store.Read(ctx, dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Catalog.ID != "stac-catalog" {
		t.Errorf("catalog id = %q, want default", got.Catalog.ID)
	}
}

func TestStoreReadMissingDir(t *testing.T) {
	store := NewStore()
	if _, err := store.Read(context.Background(), "/nonexistent/index"); err == nil {
		t.Error("Read() should error for a missing directory")
	}
}

func TestStoreWriteEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore()
	ctx := context.Background()

	empty := &domain.Snapshot{Catalog: domain.DefaultCatalogMetadata()}
	if err := store.Write(ctx, dir, empty); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read(ctx, dir)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !got.IsEmpty() {
		t.Error("expected an empty snapshot")
	}
}

func TestStoreFetch(t *testing.T) {
	remote := t.TempDir()
	local := t.TempDir()
	store := NewStore()
	ctx := context.Background()

	want := testSnapshot()
	if err := store.Write(ctx, remote, want); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	src := storage.NewLocalStorage(remote)
	if err := store.Fetch(ctx, src, "", local); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	got, err := store.Read(ctx, local)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.ItemCount() != want.ItemCount() || got.CollectionCount() != want.CollectionCount() {
		t.Errorf("fetched snapshot has %d items / %d collections, want %d / %d",
			got.ItemCount(), got.CollectionCount(), want.ItemCount(), want.CollectionCount())
	}
	if got.Catalog.ID != want.Catalog.ID {
		t.Errorf("catalog id = %q, want %q", got.Catalog.ID, want.Catalog.ID)
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		prefix string
		name   string
		want   string
	}{
		{"", ItemsFile, "items.parquet"},
		{"index", ItemsFile, "index/items.parquet"},
		{"index/", ItemsFile, "index/items.parquet"},
		{"a/b", MetadataFile, "a/b/catalog_metadata.json"},
	}

	for _, tt := range tests {
		if got := joinKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("joinKey(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}
