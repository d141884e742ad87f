package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/jobrunner/stratum/internal/crs"
)

// WGS84Identifier is the storage CRS for all flattened geometry and bboxes.
const WGS84Identifier = "EPSG:4326"

// FlattenItem extracts the promoted fields of an Item document into a row.
// Geometry is normalized to WKT; a native-CRS bbox (proj:bbox + proj:epsg)
// is reprojected to WGS84 for storage when the document has no WGS84 bbox,
// while the native values remain reachable through the payload; failing
// both, the bbox derives from the geometry bounds. Geometry
// parse failures are tolerated: the row's Geometry stays empty and spatial
// filtering falls back to the bbox.
func FlattenItem(doc *Document, sourceKey string) (ItemRow, error) {
	if doc.Kind != KindItem {
		return ItemRow{}, fmt.Errorf("%w: flatten item on %s", ErrMalformedDocument, doc.Kind)
	}
	item := doc.Item

	row := ItemRow{
		ID:           item.ID,
		CollectionID: item.Collection,
		Title:        propString(item.Properties, "title"),
		StacVersion:  stacVersionOrDefault(item.StacVersion),
		Links:        rawOrEmpty(item.Links),
		Assets:       rawOrEmpty(item.Assets),
		Payload:      doc.Raw,
		SourceKey:    sourceKey,
	}

	if dt, ok := propTime(item.Properties, "datetime"); ok {
		row.Datetime = &dt
	}
	if count, ok := propInt64(item.Properties, "pc:count"); ok {
		row.PCCount = &count
	}
	if pcType, ok := propStringOK(item.Properties, "pc:type"); ok {
		row.PCType = &pcType
	}
	if encoding, ok := propStringOK(item.Properties, "pc:encoding"); ok {
		row.PCEncoding = &encoding
	}
	if epsg, ok := propInt(item.Properties, "proj:epsg"); ok {
		row.CRSEPSG = &epsg
	}

	if len(item.Geometry) > 0 {
		if w, err := GeoJSONToWKT(item.Geometry); err == nil {
			row.Geometry = w
		}
	}

	switch {
	case len(item.BBox) > 0:
		row.BBox = item.BBox
	case row.CRSEPSG != nil:
		if native, ok := propFloats(item.Properties, "proj:bbox"); ok {
			stored, err := crs.TransformBBox(native, fmt.Sprintf("EPSG:%d", *row.CRSEPSG), WGS84Identifier)
			if err == nil {
				row.BBox = stored
			}
			// Unresolvable native CRS degrades the row: no stored bbox,
			// payload keeps the native values.
		}
	case row.Geometry != "":
		if bounds, ok := row.GeometryBounds(); ok {
			row.BBox = bounds
		}
	}

	return row, nil
}

// FlattenCollection extracts the promoted fields of a Collection document.
func FlattenCollection(doc *Document, sourceKey string) (CollectionRow, error) {
	if doc.Kind != KindCollection {
		return CollectionRow{}, fmt.Errorf("%w: flatten collection on %s", ErrMalformedDocument, doc.Kind)
	}
	coll := doc.Collection

	row := CollectionRow{
		ID:             coll.ID,
		Title:          coll.Title,
		Description:    coll.Description,
		License:        coll.License,
		Summaries:      rawOrEmpty(coll.Summaries),
		Providers:      rawOrEmpty(coll.Providers),
		Links:          rawOrEmpty(coll.Links),
		StacExtensions: coll.StacExtensions,
		StacVersion:    stacVersionOrDefault(coll.StacVersion),
		Payload:        doc.Raw,
		SourceKey:      sourceKey,
	}

	if len(coll.Extent.Spatial.BBox) > 0 {
		row.BBox = coll.Extent.Spatial.BBox[0]
	}
	if len(coll.Extent.Temporal.Interval) > 0 {
		interval := coll.Extent.Temporal.Interval[0]
		if len(interval) > 0 {
			row.StartDatetime = interval[0]
		}
		if len(interval) > 1 {
			row.EndDatetime = interval[1]
		}
	}

	return row, nil
}

// GeometryBounds returns the 2D envelope of the row's stored geometry.
func (r *ItemRow) GeometryBounds() ([]float64, bool) {
	if r.Geometry == "" {
		return nil, false
	}
	g, err := wkt.Unmarshal(r.Geometry)
	if err != nil {
		return nil, false
	}
	b := g.Bounds()
	if b == nil {
		return nil, false
	}
	return []float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}, true
}

// GeoJSONToWKT converts a GeoJSON geometry object to its WKT form.
func GeoJSONToWKT(raw json.RawMessage) (string, error) {
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return "", err
	}
	if g == nil {
		return "", fmt.Errorf("null geometry")
	}
	return wkt.Marshal(g)
}

// WKTToGeoJSON converts a WKT geometry to a decoded GeoJSON object.
func WKTToGeoJSON(s string) (map[string]interface{}, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, err
	}
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, err
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func stacVersionOrDefault(v string) string {
	if v == "" {
		return DefaultStacVersion
	}
	return v
}

func rawOrEmpty(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}

func propString(props map[string]interface{}, key string) string {
	s, _ := propStringOK(props, key)
	return s
}

func propStringOK(props map[string]interface{}, key string) (string, bool) {
	if props == nil {
		return "", false
	}
	if s, ok := props[key].(string); ok {
		return s, true
	}
	return "", false
}

func propInt64(props map[string]interface{}, key string) (int64, bool) {
	if props == nil {
		return 0, false
	}
	switch v := props[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	}
	return 0, false
}

func propInt(props map[string]interface{}, key string) (int, bool) {
	n, ok := propInt64(props, key)
	return int(n), ok
}

func propTime(props map[string]interface{}, key string) (time.Time, bool) {
	s, ok := propStringOK(props, key)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func propFloats(props map[string]interface{}, key string) ([]float64, bool) {
	if props == nil {
		return nil, false
	}
	list, ok := props[key].([]interface{})
	if !ok || len(list) == 0 {
		return nil, false
	}
	out := make([]float64, len(list))
	for i, v := range list {
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
