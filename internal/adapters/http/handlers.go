package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/stratum/internal/application"
	"github.com/jobrunner/stratum/internal/crs"
	"github.com/jobrunner/stratum/internal/domain"
)

// conformanceClasses lists the conformance URIs the API implements.
var conformanceClasses = []string{
	"https://api.stacspec.org/v1.0.0/core",
	"https://api.stacspec.org/v1.0.0/collections",
	"https://api.stacspec.org/v1.0.0/ogcapi-features",
	"https://api.stacspec.org/v1.0.0/item-search",
	"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core",
	"http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson",
}

const geoJSONType = "application/geo+json"

// searchBody is the POST /search request payload. Limit is a pointer so
// an absent limit takes the default while an explicit 0 is rejected.
type searchBody struct {
	Collections []string  `json:"collections,omitempty"`
	IDs         []string  `json:"ids,omitempty"`
	BBox        []float64 `json:"bbox,omitempty"`
	BBoxCRS     string    `json:"bbox-crs,omitempty"`
	Datetime    string    `json:"datetime,omitempty"`
	Limit       *int      `json:"limit,omitempty"`
}

// handleLanding returns the landing page document.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	meta, err := s.catalog.Catalog(r.Context())
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	base := s.baseURL(r)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":         "Catalog",
		"stac_version": meta.StacVersion,
		"id":           meta.ID,
		"title":        meta.Title,
		"description":  meta.Description,
		"conformsTo":   conformanceClasses,
		"links": []domain.Link{
			{Rel: "self", Href: base + "/", Type: "application/json"},
			{Rel: "root", Href: base + "/", Type: "application/json"},
			{Rel: "conformance", Href: base + "/conformance", Type: "application/json"},
			{Rel: "data", Href: base + "/collections", Type: "application/json"},
			{Rel: "search", Href: base + "/search", Type: geoJSONType, Method: http.MethodGet},
			{Rel: "search", Href: base + "/search", Type: geoJSONType, Method: http.MethodPost},
			{Rel: "http://www.opengis.net/def/rel/ogc/1.0/queryables", Href: base + "/queryables", Type: "application/schema+json"},
		},
	})
}

// handleConformance returns the conformance declaration.
func (s *Server) handleConformance(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"conformsTo": conformanceClasses,
	})
}

// handleQueryables returns the searchable properties and supported CRS.
func (s *Server) handleQueryables(w http.ResponseWriter, r *http.Request) {
	supported := make([]string, 0, len(crs.Supported()))
	for _, code := range crs.Supported() {
		supported = append(supported, fmt.Sprintf("EPSG:%d", code))
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"$schema": "https://json-schema.org/draft/2019-09/schema",
		"$id":     s.baseURL(r) + "/queryables",
		"type":    "object",
		"title":   "Queryables",
		"properties": map[string]interface{}{
			"id":         map[string]interface{}{"type": "string"},
			"collection": map[string]interface{}{"type": "string"},
			"datetime": map[string]interface{}{
				"type":   "string",
				"format": "date-time",
			},
			"bbox": map[string]interface{}{
				"type":     "array",
				"minItems": 4,
				"maxItems": 6,
				"items":    map[string]interface{}{"type": "number"},
			},
			"bbox-crs": map[string]interface{}{
				"type": "string",
				"enum": supported,
			},
			"pc:count": map[string]interface{}{"type": "integer"},
			"pc:type":  map[string]interface{}{"type": "string"},
			"proj:epsg": map[string]interface{}{
				"type": "integer",
			},
		},
		"additionalProperties": true,
	})
}

// handleListCollections returns all collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.ListCollections(r.Context())
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	base := s.baseURL(r)
	collections := make([]domain.RawDocument, len(docs))
	for i, doc := range docs {
		collections[i] = s.withCollectionLinks(doc, base)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections": collections,
		"links": []domain.Link{
			{Rel: "self", Href: base + "/collections", Type: "application/json"},
			{Rel: "root", Href: base + "/", Type: "application/json"},
		},
	})
}

// handleGetCollection returns one collection.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	collectionID := mux.Vars(r)["collectionId"]

	doc, err := s.catalog.GetCollection(r.Context(), collectionID)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.withCollectionLinks(doc, s.baseURL(r)))
}

// handleCollectionItems returns the items of one collection as a
// FeatureCollection.
func (s *Server) handleCollectionItems(w http.ResponseWriter, r *http.Request) {
	collectionID := mux.Vars(r)["collectionId"]

	query, err := s.queryFromParams(r)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	result, err := s.search.ItemsInCollection(r.Context(), collectionID, query)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	base := s.baseURL(r)
	self := base + "/collections/" + collectionID + "/items"
	s.writeFeatureCollection(w, result, base, self)
}

// handleGetItem returns one item.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collectionID := vars["collectionId"]
	itemID := vars["itemId"]

	doc, err := s.catalog.GetItem(r.Context(), collectionID, itemID)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", geoJSONType)
	s.writeBody(w, http.StatusOK, s.withItemLinks(doc, s.baseURL(r)))
}

// handleSearchGet runs an item search from query parameters.
func (s *Server) handleSearchGet(w http.ResponseWriter, r *http.Request) {
	query, err := s.queryFromParams(r)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}
	query.Collections = splitParam(r.URL.Query().Get("collections"))
	query.IDs = splitParam(r.URL.Query().Get("ids"))

	s.runSearch(w, r, query)
}

// handleSearchPost runs an item search from a JSON body.
func (s *Server) handleSearchPost(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	query := domain.SearchQuery{
		Collections: body.Collections,
		IDs:         body.IDs,
		BBox:        body.BBox,
		BBoxCRS:     body.BBoxCRS,
		Datetime:    body.Datetime,
		Limit:       body.Limit,
	}
	s.runSearch(w, r, query)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, query domain.SearchQuery) {
	result, err := s.search.Search(r.Context(), query)
	if err != nil {
		s.handleServiceError(w, err)
		return
	}

	base := s.baseURL(r)
	s.writeFeatureCollection(w, result, base, base+"/search")
}

// handleRefreshIndex triggers an on-demand rebuild from the remote source.
func (s *Server) handleRefreshIndex(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil || !s.catalog.CanRefresh() {
		s.writeError(w, http.StatusBadRequest, "no remote source configured")
		return
	}

	result, err := s.refresher.TriggerRefresh(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			s.writeError(w, http.StatusTooManyRequests, "refresh rate limit exceeded, try again later")
			return
		}
		s.handleServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleHealth returns detailed health status. A stale snapshot is
// refreshed as a side effect of this check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":      boolToStatus(details.Healthy),
		"ready":       details.Ready,
		"items":       details.Items,
		"collections": details.Collections,
		"cache_age":   details.CacheAge,
		"components":  details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// queryFromParams parses the shared filter parameters.
func (s *Server) queryFromParams(r *http.Request) (domain.SearchQuery, error) {
	q := r.URL.Query()
	query := domain.SearchQuery{
		BBoxCRS:  q.Get("bbox-crs"),
		Datetime: q.Get("datetime"),
	}

	if raw := q.Get("bbox"); raw != "" {
		bbox, err := domain.ParseBBoxParam(raw)
		if err != nil {
			return domain.SearchQuery{}, err
		}
		query.BBox = bbox
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return domain.SearchQuery{}, fmt.Errorf("%w: %q", domain.ErrInvalidLimit, raw)
		}
		query.Limit = &limit
	}

	return query, nil
}

// writeFeatureCollection writes a search result as a GeoJSON
// FeatureCollection envelope.
func (s *Server) writeFeatureCollection(w http.ResponseWriter, result *domain.SearchResult, base, self string) {
	features := make([]domain.RawDocument, 0, len(result.Items))
	for i := range result.Items {
		doc, err := result.Items[i].Document()
		if err != nil {
			s.logger.Warn("skipping unreconstructable item", "id", result.Items[i].ID, "error", err)
			continue
		}
		features = append(features, s.withItemLinks(doc, base))
	}

	w.Header().Set("Content-Type", geoJSONType)
	s.writeBody(w, http.StatusOK, map[string]interface{}{
		"type":           "FeatureCollection",
		"features":       features,
		"numberMatched":  result.NumberMatched,
		"numberReturned": result.NumberReturned,
		"timeStamp":      time.Now().UTC().Format(time.RFC3339),
		"links": []domain.Link{
			{Rel: "self", Href: self, Type: geoJSONType},
			{Rel: "root", Href: base + "/", Type: "application/json"},
		},
	})
}

// withItemLinks replaces an item document's links with API navigation
// links.
func (s *Server) withItemLinks(doc domain.RawDocument, base string) domain.RawDocument {
	itemID := doc.ID()
	collectionID, _ := doc["collection"].(string)

	collectionHref := base + "/collections/" + collectionID
	doc.SetLinks([]domain.Link{
		{Rel: "self", Href: collectionHref + "/items/" + itemID, Type: geoJSONType},
		{Rel: "parent", Href: collectionHref, Type: "application/json"},
		{Rel: "collection", Href: collectionHref, Type: "application/json"},
		{Rel: "root", Href: base + "/", Type: "application/json"},
	})
	return doc
}

// withCollectionLinks replaces a collection document's links with API
// navigation links.
func (s *Server) withCollectionLinks(doc domain.RawDocument, base string) domain.RawDocument {
	href := base + "/collections/" + doc.ID()
	doc.SetLinks([]domain.Link{
		{Rel: "self", Href: href, Type: "application/json"},
		{Rel: "items", Href: href + "/items", Type: geoJSONType},
		{Rel: "parent", Href: base + "/", Type: "application/json"},
		{Rel: "root", Href: base + "/", Type: "application/json"},
	})
	return doc
}

// handleServiceError maps service errors to HTTP responses.
func (s *Server) handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		s.writeError(w, http.StatusBadRequest, validationErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, "catalog not loaded")
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// baseURL derives the externally visible base URL of the API.
func (s *Server) baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}
	return scheme + "://" + r.Host
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	s.writeBody(w, status, data)
}

func (s *Server) writeBody(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"detail":  message,
		"message": http.StatusText(status),
	})
}

func boolToStatus(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "unhealthy"
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
