// Package index persists snapshots as parquet files plus a JSON metadata
// sidecar, and loads them back.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jobrunner/stratum/internal/domain"
	"github.com/jobrunner/stratum/internal/ports/output"
)

// Index file names inside an index directory.
const (
	ItemsFile       = "items.parquet"
	CollectionsFile = "collections.parquet"
	MetadataFile    = "catalog_metadata.json"
)

// Store reads and writes persisted index directories.
type Store struct{}

// NewStore creates a new index store.
func NewStore() *Store {
	return &Store{}
}

// itemRecord is the parquet row schema for items. Timestamps are stored as
// RFC3339 strings so the files stay readable by any parquet tooling.
type itemRecord struct {
	ID          string    `parquet:"id"`
	Collection  string    `parquet:"collection"`
	Title       string    `parquet:"title"`
	Datetime    *string   `parquet:"datetime,optional"`
	BBox        []float64 `parquet:"bbox,list"`
	GeometryWKT string    `parquet:"geometry_wkt"`
	StacVersion string    `parquet:"stac_version"`
	Links       string    `parquet:"links"`
	Assets      string    `parquet:"assets"`
	ItemJSON    []byte    `parquet:"item_json"`
	SourceKey   string    `parquet:"source_key"`
	PCCount     *int64    `parquet:"pc_count,optional"`
	PCType      *string   `parquet:"pc_type,optional"`
	PCEncoding  *string   `parquet:"pc_encoding,optional"`
	ProjEPSG    *int32    `parquet:"proj_epsg,optional"`
}

// collectionRecord is the parquet row schema for collections.
type collectionRecord struct {
	ID             string    `parquet:"id"`
	Title          string    `parquet:"title"`
	Description    string    `parquet:"description"`
	License        string    `parquet:"license"`
	BBox           []float64 `parquet:"bbox,list"`
	StartDatetime  *string   `parquet:"start_datetime,optional"`
	EndDatetime    *string   `parquet:"end_datetime,optional"`
	Summaries      string    `parquet:"summaries"`
	Providers      string    `parquet:"providers"`
	Links          string    `parquet:"links"`
	StacExtensions []string  `parquet:"stac_extensions,list"`
	StacVersion    string    `parquet:"stac_version"`
	CollectionJSON []byte    `parquet:"collection_json"`
	SourceKey      string    `parquet:"source_key"`
}

// catalogMetadataFile is the JSON sidecar schema.
type catalogMetadataFile struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StacVersion string    `json:"stac_version"`
	BuiltAt     time.Time `json:"built_at"`
}

// Write persists a snapshot to dir, creating it if needed.
func (s *Store) Write(ctx context.Context, dir string, snap *domain.Snapshot) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	items := make([]itemRecord, len(snap.Items))
	for i := range snap.Items {
		items[i] = toItemRecord(&snap.Items[i])
	}
	if err := parquet.WriteFile(filepath.Join(dir, ItemsFile), items); err != nil {
		return fmt.Errorf("writing %s: %w", ItemsFile, err)
	}

	collections := make([]collectionRecord, len(snap.Collections))
	for i := range snap.Collections {
		collections[i] = toCollectionRecord(&snap.Collections[i])
	}
	if err := parquet.WriteFile(filepath.Join(dir, CollectionsFile), collections); err != nil {
		return fmt.Errorf("writing %s: %w", CollectionsFile, err)
	}

	meta := catalogMetadataFile{
		ID:          snap.Catalog.ID,
		Title:       snap.Catalog.Title,
		Description: snap.Catalog.Description,
		StacVersion: snap.Catalog.StacVersion,
		BuiltAt:     snap.Catalog.BuiltAt,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", MetadataFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), data, 0640); err != nil {
		return fmt.Errorf("writing %s: %w", MetadataFile, err)
	}

	return nil
}

// Read loads a snapshot from dir.
func (s *Store) Read(ctx context.Context, dir string) (*domain.Snapshot, error) {
	items, err := parquet.ReadFile[itemRecord](filepath.Join(dir, ItemsFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ItemsFile, err)
	}

	collections, err := parquet.ReadFile[collectionRecord](filepath.Join(dir, CollectionsFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", CollectionsFile, err)
	}

	snap := &domain.Snapshot{
		Items:       make([]domain.ItemRow, len(items)),
		Collections: make([]domain.CollectionRow, len(collections)),
		Catalog:     domain.DefaultCatalogMetadata(),
	}
	for i := range items {
		snap.Items[i] = fromItemRecord(&items[i])
	}
	for i := range collections {
		snap.Collections[i] = fromCollectionRecord(&collections[i])
	}

	// A missing metadata sidecar is tolerated; defaults apply.
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err == nil {
		var meta catalogMetadataFile
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", MetadataFile, err)
		}
		snap.Catalog = domain.CatalogMetadata{
			ID:          meta.ID,
			Title:       meta.Title,
			Description: meta.Description,
			StacVersion: meta.StacVersion,
			BuiltAt:     meta.BuiltAt,
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", MetadataFile, err)
	}

	return snap, nil
}

// Fetch downloads a prebuilt index from an object storage prefix into dir,
// ready for Read. The metadata sidecar is optional at the remote end too.
func (s *Store) Fetch(ctx context.Context, src output.ObjectStorage, prefix, dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	for _, name := range []string{ItemsFile, CollectionsFile} {
		key := joinKey(prefix, name)
		if err := src.Download(ctx, key, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("downloading %s: %w", key, err)
		}
	}

	metaKey := joinKey(prefix, MetadataFile)
	if ok, err := src.Exists(ctx, metaKey); err == nil && ok {
		if err := src.Download(ctx, metaKey, filepath.Join(dir, MetadataFile)); err != nil {
			return fmt.Errorf("downloading %s: %w", metaKey, err)
		}
	}
	return nil
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}

func toItemRecord(row *domain.ItemRow) itemRecord {
	rec := itemRecord{
		ID:          row.ID,
		Collection:  row.CollectionID,
		Title:       row.Title,
		BBox:        row.BBox,
		GeometryWKT: row.Geometry,
		StacVersion: row.StacVersion,
		Links:       row.Links,
		Assets:      row.Assets,
		ItemJSON:    row.Payload,
		SourceKey:   row.SourceKey,
		PCCount:     row.PCCount,
		PCType:      row.PCType,
		PCEncoding:  row.PCEncoding,
	}
	if row.Datetime != nil {
		s := row.Datetime.UTC().Format(time.RFC3339)
		rec.Datetime = &s
	}
	if row.CRSEPSG != nil {
		epsg := int32(*row.CRSEPSG)
		rec.ProjEPSG = &epsg
	}
	return rec
}

func fromItemRecord(rec *itemRecord) domain.ItemRow {
	row := domain.ItemRow{
		ID:           rec.ID,
		CollectionID: rec.Collection,
		Title:        rec.Title,
		BBox:         rec.BBox,
		Geometry:     rec.GeometryWKT,
		StacVersion:  rec.StacVersion,
		Links:        rec.Links,
		Assets:       rec.Assets,
		Payload:      rec.ItemJSON,
		SourceKey:    rec.SourceKey,
		PCCount:      rec.PCCount,
		PCType:       rec.PCType,
		PCEncoding:   rec.PCEncoding,
	}
	if rec.Datetime != nil {
		if t, err := time.Parse(time.RFC3339, *rec.Datetime); err == nil {
			u := t.UTC()
			row.Datetime = &u
		}
	}
	if rec.ProjEPSG != nil {
		epsg := int(*rec.ProjEPSG)
		row.CRSEPSG = &epsg
	}
	return row
}

func toCollectionRecord(row *domain.CollectionRow) collectionRecord {
	return collectionRecord{
		ID:             row.ID,
		Title:          row.Title,
		Description:    row.Description,
		License:        row.License,
		BBox:           row.BBox,
		StartDatetime:  row.StartDatetime,
		EndDatetime:    row.EndDatetime,
		Summaries:      row.Summaries,
		Providers:      row.Providers,
		Links:          row.Links,
		StacExtensions: row.StacExtensions,
		StacVersion:    row.StacVersion,
		CollectionJSON: row.Payload,
		SourceKey:      row.SourceKey,
	}
}

func fromCollectionRecord(rec *collectionRecord) domain.CollectionRow {
	return domain.CollectionRow{
		ID:             rec.ID,
		Title:          rec.Title,
		Description:    rec.Description,
		License:        rec.License,
		BBox:           rec.BBox,
		StartDatetime:  rec.StartDatetime,
		EndDatetime:    rec.EndDatetime,
		Summaries:      rec.Summaries,
		Providers:      rec.Providers,
		Links:          rec.Links,
		StacExtensions: rec.StacExtensions,
		StacVersion:    rec.StacVersion,
		Payload:        rec.CollectionJSON,
		SourceKey:      rec.SourceKey,
	}
}
