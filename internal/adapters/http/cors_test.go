package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobrunner/stratum/internal/config"
)

func corsServer(origins ...string) *Server {
	return &Server{
		config: config.ServerConfig{
			CORS: config.CORSConfig{AllowedOrigins: origins},
		},
	}
}

func TestExtractHost(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"https://map.example.jp", "map.example.jp"},
		{"https://map.example.jp:8443", "map.example.jp"},
		{"http://map.example.jp", "map.example.jp"},
		{"https://map.example.jp/catalog/viewer", "map.example.jp"},
		{"https://map.example.jp:443/viewer", "map.example.jp"},
		{"https://staging.viewer.example.jp", "staging.viewer.example.jp"},
		{"http://localhost:3000", "localhost"},
		{"http://10.0.0.5:8080", "10.0.0.5"},
		{"map.example.jp", "map.example.jp"},
	}

	for _, tt := range tests {
		if got := extractHost(tt.origin); got != tt.want {
			t.Errorf("extractHost(%q) = %q; want %q", tt.origin, got, tt.want)
		}
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		pattern string
		want    bool
	}{
		{"exact", "https://map.example.jp", "https://map.example.jp", true},
		{"exact with port", "https://map.example.jp:8443", "https://map.example.jp:8443", true},
		{"scheme mismatch", "http://map.example.jp", "https://map.example.jp", false},
		{"host mismatch", "https://elsewhere.jp", "https://map.example.jp", false},
		{"port mismatch", "https://map.example.jp:8443", "https://map.example.jp:9443", false},

		{"wildcard subdomain", "https://viewer.example.jp", "*.example.jp", true},
		{"wildcard nested subdomain", "https://staging.viewer.example.jp", "*.example.jp", true},
		// "*.example.jp" must not cover the apex itself.
		{"wildcard excludes apex", "https://example.jp", "*.example.jp", false},
		{"wildcard other domain", "https://viewer.elsewhere.jp", "*.example.jp", false},
		// "notexample.jp" merely ends with "example.jp"; the dot matters.
		{"wildcard no suffix trick", "https://notexample.jp", "*.example.jp", false},
		{"wildcard deep pattern", "https://app.viewer.example.jp", "*.viewer.example.jp", true},
		{"wildcard localhost", "http://dev.localhost", "*.localhost", true},

		{"empty origin", "", "https://map.example.jp", false},
		{"empty pattern", "https://map.example.jp", "", false},
		{"localhost exact", "http://localhost:3000", "http://localhost:3000", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchOrigin(tt.origin, tt.pattern); got != tt.want {
				t.Errorf("matchOrigin(%q, %q) = %v; want %v", tt.origin, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		origin  string
		want    bool
	}{
		{"single exact", []string{"https://map.example.jp"}, "https://map.example.jp", true},
		{
			"one of several",
			[]string{"https://a.example.jp", "https://b.example.jp", "https://c.example.jp"},
			"https://b.example.jp",
			true,
		},
		{"wildcard entry", []string{"*.example.jp"}, "https://viewer.example.jp", true},
		{
			"mixed exact and wildcard",
			[]string{"https://map.example.jp", "*.partner.example"},
			"https://gis.partner.example",
			true,
		},
		{"no match", []string{"https://map.example.jp"}, "https://elsewhere.jp", false},
		{"empty list", []string{}, "https://map.example.jp", false},
		{"nil list", nil, "https://map.example.jp", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := corsServer(tt.origins...)
			if got := s.isOriginAllowed(tt.origin); got != tt.want {
				t.Errorf("isOriginAllowed(%q) with %v = %v; want %v", tt.origin, tt.origins, got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		method      string
		wantStatus  int
		wantOrigin  string // empty means no CORS headers expected
		wantHeaders bool
	}{
		{
			name:        "allowed origin on GET",
			origins:     []string{"https://map.example.jp"},
			origin:      "https://map.example.jp",
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://map.example.jp",
			wantHeaders: true,
		},
		{
			name:        "allowed origin on preflight",
			origins:     []string{"https://map.example.jp"},
			origin:      "https://map.example.jp",
			method:      http.MethodOptions,
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://map.example.jp",
			wantHeaders: true,
		},
		{
			name:        "wildcard origin echoed back",
			origins:     []string{"*.example.jp"},
			origin:      "https://viewer.example.jp",
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://viewer.example.jp",
			wantHeaders: true,
		},
		{
			name:       "unlisted origin gets no headers",
			origins:    []string{"https://map.example.jp"},
			origin:     "https://elsewhere.jp",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "no origin header",
			origins:    []string{"https://map.example.jp"},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "cors disabled",
			origins:    nil,
			origin:     "https://map.example.jp",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := corsServer(tt.origins...)
			handler := s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/search", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d; want %d", rr.Code, tt.wantStatus)
			}

			gotOrigin := rr.Header().Get("Access-Control-Allow-Origin")
			if !tt.wantHeaders {
				if gotOrigin != "" {
					t.Errorf("Access-Control-Allow-Origin = %q; want none", gotOrigin)
				}
				return
			}

			if gotOrigin != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q; want %q", gotOrigin, tt.wantOrigin)
			}
			for header, want := range map[string]string{
				"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers": "Accept, Content-Type, Authorization",
				"Access-Control-Max-Age":       "86400",
				"Vary":                         "Origin",
			} {
				if got := rr.Header().Get(header); got != want {
					t.Errorf("%s = %q; want %q", header, got, want)
				}
			}
		})
	}
}

func TestCORSMiddlewarePreflightShortCircuits(t *testing.T) {
	nextCalled := false
	s := corsServer("https://map.example.jp")
	handler := s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "https://map.example.jp")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if nextCalled {
		t.Error("preflight should not reach the next handler")
	}
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d; want %d", rr.Code, http.StatusNoContent)
	}
}

func TestCORSConfigEnabled(t *testing.T) {
	tests := []struct {
		name    string
		origins []string
		want    bool
	}{
		{"one origin", []string{"https://map.example.jp"}, true},
		{"several origins", []string{"https://map.example.jp", "*.partner.example"}, true},
		{"empty slice", []string{}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.CORSConfig{AllowedOrigins: tt.origins}
			if got := cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v; want %v", got, tt.want)
			}
		})
	}
}
