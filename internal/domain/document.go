// Package domain contains the core catalog entities and value objects.
package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultStacVersion is assumed when a document omits stac_version.
const DefaultStacVersion = "1.1.0"

// Kind identifies the document variant.
type Kind int

// Document variants.
const (
	KindCatalog Kind = iota
	KindCollection
	KindItem
)

// String returns the STAC type tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindCatalog:
		return "Catalog"
	case KindCollection:
		return "Collection"
	case KindItem:
		return "Feature"
	default:
		return "unknown"
	}
}

// RawDocument is a decoded catalog document. Reconstruction returns this
// form so a stored payload round-trips without loss.
type RawDocument map[string]interface{}

// SetLinks replaces the document's link list (handlers inject API links).
func (d RawDocument) SetLinks(links []Link) {
	d["links"] = links
}

// ID returns the document id, if present.
func (d RawDocument) ID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// Link is a STAC link object.
type Link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Type   string `json:"type,omitempty"`
	Title  string `json:"title,omitempty"`
	Method string `json:"method,omitempty"`
}

// ItemDoc is the parsed view of a Feature document. The authoritative bytes
// live in Document.Raw; this view exists to extract promoted fields.
type ItemDoc struct {
	StacVersion string                 `json:"stac_version"`
	ID          string                 `json:"id"`
	Collection  string                 `json:"collection"`
	Geometry    json.RawMessage        `json:"geometry"`
	BBox        []float64              `json:"bbox"`
	Properties  map[string]interface{} `json:"properties"`
	Links       json.RawMessage        `json:"links"`
	Assets      json.RawMessage        `json:"assets"`
}

// SpatialExtent holds a collection's spatial extent.
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent holds a collection's temporal extent.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// Extent holds a collection's spatial and temporal extents.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// CollectionDoc is the parsed view of a Collection document.
type CollectionDoc struct {
	StacVersion    string          `json:"stac_version"`
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	License        string          `json:"license"`
	Extent         Extent          `json:"extent"`
	Links          json.RawMessage `json:"links"`
	Summaries      json.RawMessage `json:"summaries"`
	Providers      json.RawMessage `json:"providers"`
	StacExtensions []string        `json:"stac_extensions"`
}

// CatalogDoc is the parsed view of a root Catalog document.
type CatalogDoc struct {
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Document is the closed variant over catalog entries. Exactly one of the
// view pointers matching Kind is non-nil.
type Document struct {
	Kind Kind
	Raw  json.RawMessage // canonical document bytes

	Item       *ItemDoc
	Collection *CollectionDoc
	Catalog    *CatalogDoc
}

// ID returns the document id.
func (d *Document) ID() string {
	switch d.Kind {
	case KindItem:
		return d.Item.ID
	case KindCollection:
		return d.Collection.ID
	case KindCatalog:
		return d.Catalog.ID
	default:
		return ""
	}
}

// Classify parses raw document bytes and returns the typed variant.
// Documents without a recognized "type" discriminator, or that fail to
// parse, are rejected with ErrMalformedDocument.
func Classify(raw []byte) (*Document, error) {
	var discriminator struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &discriminator); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	doc := &Document{Raw: raw}

	switch discriminator.Type {
	case "Feature":
		var item ItemDoc
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("%w: item: %v", ErrMalformedDocument, err)
		}
		if item.ID == "" {
			return nil, fmt.Errorf("%w: item has no id", ErrMalformedDocument)
		}
		doc.Kind = KindItem
		doc.Item = &item

	case "Collection":
		var coll CollectionDoc
		if err := json.Unmarshal(raw, &coll); err != nil {
			return nil, fmt.Errorf("%w: collection: %v", ErrMalformedDocument, err)
		}
		if coll.ID == "" {
			return nil, fmt.Errorf("%w: collection has no id", ErrMalformedDocument)
		}
		doc.Kind = KindCollection
		doc.Collection = &coll

	case "Catalog":
		var cat CatalogDoc
		if err := json.Unmarshal(raw, &cat); err != nil {
			return nil, fmt.Errorf("%w: catalog: %v", ErrMalformedDocument, err)
		}
		doc.Kind = KindCatalog
		doc.Catalog = &cat

	case "":
		return nil, fmt.Errorf("%w: missing type discriminator", ErrMalformedDocument)

	default:
		return nil, fmt.Errorf("%w: unrecognized type %q", ErrMalformedDocument, discriminator.Type)
	}

	return doc, nil
}
