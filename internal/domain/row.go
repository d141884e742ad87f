package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// ItemRow is the flattened, filter-optimized form of an Item document.
//
// Invariant: the flattened fields are a derived index. When Payload is
// present it is the ground truth on reconstruction and is never overridden
// by flattened values; the columns exist only so filters run without
// deserializing Payload.
type ItemRow struct {
	ID           string
	CollectionID string
	Title        string
	Datetime     *time.Time
	BBox         []float64 // 4 or 6 values, WGS84 storage CRS
	Geometry     string    // WKT, WGS84; empty when geometry was absent or unparseable
	CRSEPSG      *int      // native CRS of the source data (proj:epsg), not the storage CRS
	PCCount      *int64
	PCType       *string
	PCEncoding   *string
	StacVersion  string
	Links        string // JSON array, serialized verbatim
	Assets       string // JSON object, serialized verbatim
	Payload      []byte // canonical document bytes
	SourceKey    string
}

// CollectionRow is the flattened form of a Collection document.
type CollectionRow struct {
	ID             string
	Title          string
	Description    string
	License        string
	BBox           []float64 // WGS84
	StartDatetime  *string   // open-ended extents keep a nil side
	EndDatetime    *string
	Summaries      string // JSON object
	Providers      string // JSON array
	Links          string // JSON array
	StacExtensions []string
	StacVersion    string
	Payload        []byte
	SourceKey      string
}

// CatalogMetadata is catalog-level metadata carried by a Snapshot.
type CatalogMetadata struct {
	ID          string
	Title       string
	Description string
	StacVersion string
	BuiltAt     time.Time
}

// DefaultCatalogMetadata returns the metadata used when no root Catalog
// document exists in the source.
func DefaultCatalogMetadata() CatalogMetadata {
	return CatalogMetadata{
		ID:          "stac-catalog",
		Title:       "STAC Catalog",
		Description: "STAC API",
		StacVersion: DefaultStacVersion,
	}
}

// Snapshot is an immutable, fully-built index of all documents at one point
// in time. It is created whole, swapped whole, and never mutated; readers
// borrow it for the duration of one query.
type Snapshot struct {
	Items       []ItemRow
	Collections []CollectionRow
	Catalog     CatalogMetadata
}

// ItemCount returns the number of item rows.
func (s *Snapshot) ItemCount() int {
	return len(s.Items)
}

// CollectionCount returns the number of collection rows.
func (s *Snapshot) CollectionCount() int {
	return len(s.Collections)
}

// IsEmpty returns true if the snapshot holds no rows at all.
func (s *Snapshot) IsEmpty() bool {
	return len(s.Items) == 0 && len(s.Collections) == 0
}

// Collection returns the collection row with the given id.
func (s *Snapshot) Collection(id string) (*CollectionRow, bool) {
	for i := range s.Collections {
		if s.Collections[i].ID == id {
			return &s.Collections[i], true
		}
	}
	return nil, false
}

// Item returns the item with the given id inside one collection.
func (s *Snapshot) Item(collectionID, itemID string) (*ItemRow, bool) {
	for i := range s.Items {
		if s.Items[i].ID == itemID && s.Items[i].CollectionID == collectionID {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// ItemsInCollection returns the number of items referencing a collection.
func (s *Snapshot) ItemsInCollection(collectionID string) int {
	n := 0
	for i := range s.Items {
		if s.Items[i].CollectionID == collectionID {
			n++
		}
	}
	return n
}

// SortItems establishes the default presentation order: datetime descending,
// ties broken lexicographically by id. Undated items sort after dated ones,
// by id, so order is reproducible for identical input sets.
func (s *Snapshot) SortItems() {
	sort.SliceStable(s.Items, func(i, j int) bool {
		a, b := &s.Items[i], &s.Items[j]
		switch {
		case a.Datetime != nil && b.Datetime == nil:
			return true
		case a.Datetime == nil && b.Datetime != nil:
			return false
		case a.Datetime != nil && b.Datetime != nil && !a.Datetime.Equal(*b.Datetime):
			return a.Datetime.After(*b.Datetime)
		default:
			return a.ID < b.ID
		}
	})
}

// Document reconstructs the full Item document. A present, parseable
// Payload is returned verbatim; otherwise the document is synthesized
// field-by-field from the flattened row with absent optionals omitted.
func (r *ItemRow) Document() (RawDocument, error) {
	if len(r.Payload) > 0 {
		var doc RawDocument
		if err := json.Unmarshal(r.Payload, &doc); err == nil {
			return doc, nil
		}
	}

	version := r.StacVersion
	if version == "" {
		version = DefaultStacVersion
	}

	properties := map[string]interface{}{}
	if r.Datetime != nil {
		properties["datetime"] = r.Datetime.UTC().Format(time.RFC3339)
	} else {
		properties["datetime"] = nil
	}
	if r.Title != "" {
		properties["title"] = r.Title
	}
	if r.PCCount != nil {
		properties["pc:count"] = *r.PCCount
	}
	if r.PCType != nil {
		properties["pc:type"] = *r.PCType
	}
	if r.PCEncoding != nil {
		properties["pc:encoding"] = *r.PCEncoding
	}
	if r.CRSEPSG != nil {
		properties["proj:epsg"] = *r.CRSEPSG
	}

	doc := RawDocument{
		"type":         "Feature",
		"stac_version": version,
		"id":           r.ID,
		"properties":   properties,
	}

	if r.Geometry != "" {
		if geometry, err := WKTToGeoJSON(r.Geometry); err == nil {
			doc["geometry"] = geometry
		}
	}
	if len(r.BBox) > 0 {
		doc["bbox"] = r.BBox
	}
	if r.CollectionID != "" {
		doc["collection"] = r.CollectionID
	}
	doc["links"] = decodeJSONList(r.Links)
	doc["assets"] = decodeJSONObject(r.Assets)

	return doc, nil
}

// Document reconstructs the full Collection document, payload winning.
func (r *CollectionRow) Document() (RawDocument, error) {
	if len(r.Payload) > 0 {
		var doc RawDocument
		if err := json.Unmarshal(r.Payload, &doc); err == nil {
			return doc, nil
		}
	}

	version := r.StacVersion
	if version == "" {
		version = DefaultStacVersion
	}

	license := r.License
	if license == "" {
		license = "proprietary"
	}

	spatial := []interface{}{}
	if len(r.BBox) > 0 {
		spatial = append(spatial, r.BBox)
	}

	doc := RawDocument{
		"type":         "Collection",
		"stac_version": version,
		"id":           r.ID,
		"title":        r.Title,
		"description":  r.Description,
		"license":      license,
		"extent": RawDocument{
			"spatial": RawDocument{"bbox": spatial},
			"temporal": RawDocument{
				"interval": []interface{}{[]interface{}{stringOrNil(r.StartDatetime), stringOrNil(r.EndDatetime)}},
			},
		},
		"links": decodeJSONList(r.Links),
	}

	if r.Summaries != "" {
		doc["summaries"] = decodeJSONObject(r.Summaries)
	}
	if r.Providers != "" {
		doc["providers"] = decodeJSONList(r.Providers)
	}
	if len(r.StacExtensions) > 0 {
		doc["stac_extensions"] = r.StacExtensions
	}

	return doc, nil
}

func decodeJSONList(s string) interface{} {
	if s == "" {
		return []interface{}{}
	}
	var v []interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return []interface{}{}
	}
	return v
}

func decodeJSONObject(s string) interface{} {
	if s == "" {
		return map[string]interface{}{}
	}
	var v map[string]interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return map[string]interface{}{}
	}
	return v
}

func stringOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
