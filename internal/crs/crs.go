// Package crs provides pure coordinate reference system transformations.
//
// The package is deliberately dependency-free: callers hand in bounding boxes
// or points and get transformed values back, with no projection engine or
// database behind it. Supported systems are geographic WGS84/JGD2011, Web
// Mercator, and the nineteen JGD2011 Japan Plane Rectangular CS zones.
package crs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Common EPSG codes.
const (
	EPSGWGS84       = 4326 // WGS 84 geographic
	EPSGWebMercator = 3857 // Web Mercator
	EPSGJGD2011     = 6668 // JGD2011 geographic
	EPSGJGD2011Z1   = 6669 // JGD2011 / Japan Plane Rectangular CS I
	EPSGJGD2011Z8   = 6676 // JGD2011 / Japan Plane Rectangular CS VIII
	EPSGJGD2011Z9   = 6677 // JGD2011 / Japan Plane Rectangular CS IX
)

// ErrUnknownCRS is returned when a CRS identifier cannot be resolved.
var ErrUnknownCRS = errors.New("unknown crs")

// CRS describes one supported coordinate reference system.
type CRS struct {
	EPSG       int
	Name       string
	projection projection
}

// IsGeographic returns true if coordinates are longitude/latitude degrees.
func (c CRS) IsGeographic() bool {
	return c.projection == nil
}

// String returns the EPSG identifier, e.g. "EPSG:6676".
func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// projection converts between geographic (lon/lat degrees) and projected
// (easting/northing meters) coordinates.
type projection interface {
	forward(lon, lat float64) (x, y float64)
	inverse(x, y float64) (lon, lat float64)
}

// Japan Plane Rectangular CS zone origins (latitude, longitude in degrees).
// Zone N is EPSG 6668+N under JGD2011.
var planeRectangularOrigins = [19][2]float64{
	{33, 129.0 + 30.0/60.0},  // I
	{33, 131},                // II
	{36, 132.0 + 10.0/60.0},  // III
	{33, 133.0 + 30.0/60.0},  // IV
	{36, 134.0 + 20.0/60.0},  // V
	{36, 136},                // VI
	{36, 137.0 + 10.0/60.0},  // VII
	{36, 138.0 + 30.0/60.0},  // VIII
	{36, 139.0 + 50.0/60.0},  // IX
	{40, 140.0 + 50.0/60.0},  // X
	{44, 140.0 + 15.0/60.0},  // XI
	{44, 142.0 + 15.0/60.0},  // XII
	{44, 144.0 + 15.0/60.0},  // XIII
	{26, 142},                // XIV
	{26, 127.0 + 30.0/60.0},  // XV
	{26, 124},                // XVI
	{26, 131},                // XVII
	{20, 136},                // XVIII
	{26, 154},                // XIX
}

var registry = buildRegistry()

func buildRegistry() map[int]CRS {
	r := map[int]CRS{
		EPSGWGS84:       {EPSG: EPSGWGS84, Name: "WGS 84"},
		EPSGJGD2011:     {EPSG: EPSGJGD2011, Name: "JGD2011"},
		EPSGWebMercator: {EPSG: EPSGWebMercator, Name: "Web Mercator", projection: webMercator{}},
	}
	for i, origin := range planeRectangularOrigins {
		code := EPSGJGD2011Z1 + i
		r[code] = CRS{
			EPSG: code,
			Name: fmt.Sprintf("JGD2011 / Japan Plane Rectangular CS %s", romanZone(i+1)),
			projection: newTransverseMercator(origin[1], origin[0], 0.9999, 0, 0),
		}
	}
	return r
}

func romanZone(n int) string {
	numerals := []string{
		"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X",
		"XI", "XII", "XIII", "XIV", "XV", "XVI", "XVII", "XVIII", "XIX",
	}
	return numerals[n-1]
}

// Supported returns the EPSG codes of all registered systems in ascending
// order of code.
func Supported() []int {
	codes := make([]int, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	for i := 1; i < len(codes); i++ {
		for j := i; j > 0 && codes[j] < codes[j-1]; j-- {
			codes[j], codes[j-1] = codes[j-1], codes[j]
		}
	}
	return codes
}

// Resolve parses a CRS identifier and returns the matching system.
// Accepted forms: "EPSG:4326", bare "4326", "CRS84", OGC URNs like
// "urn:ogc:def:crs:OGC:1.3:CRS84", and OGC URIs like
// "http://www.opengis.net/def/crs/EPSG/0/6676".
func Resolve(identifier string) (CRS, error) {
	s := strings.TrimSpace(identifier)
	if s == "" {
		return CRS{}, fmt.Errorf("%w: empty identifier", ErrUnknownCRS)
	}

	upper := strings.ToUpper(s)
	if upper == "CRS84" || upper == "OGC:CRS84" || strings.HasSuffix(upper, ":CRS84") {
		return registry[EPSGWGS84], nil
	}

	// OGC URI form: take the trailing path segment as the code.
	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		s = parts[len(parts)-1]
		upper = strings.ToUpper(s)
	}

	upper = strings.TrimPrefix(upper, "EPSG:")
	code, err := strconv.Atoi(upper)
	if err != nil {
		return CRS{}, fmt.Errorf("%w: %q", ErrUnknownCRS, identifier)
	}

	c, ok := registry[code]
	if !ok {
		return CRS{}, fmt.Errorf("%w: EPSG:%d", ErrUnknownCRS, code)
	}
	return c, nil
}

// ByEPSG returns the registered system for an EPSG code.
func ByEPSG(code int) (CRS, error) {
	c, ok := registry[code]
	if !ok {
		return CRS{}, fmt.Errorf("%w: EPSG:%d", ErrUnknownCRS, code)
	}
	return c, nil
}

// IsWGS84 returns true if the identifier resolves to geographic WGS84/CRS84.
func IsWGS84(identifier string) bool {
	c, err := Resolve(identifier)
	return err == nil && c.EPSG == EPSGWGS84
}
