package crs

import (
	"fmt"
	"math"
)

// GRS80 ellipsoid, also used for WGS84 here; the JGD2011/WGS84 datum offset
// is below the precision of a bbox filter.
const (
	semiMajor  = 6378137.0
	flattening = 1.0 / 298.257222101
)

// TransformPoint converts a single coordinate pair from src to dst.
func TransformPoint(x, y float64, src, dst CRS) (float64, float64) {
	if src.EPSG == dst.EPSG {
		return x, y
	}

	lon, lat := x, y
	if src.projection != nil {
		lon, lat = src.projection.inverse(x, y)
	}
	if dst.projection != nil {
		return dst.projection.forward(lon, lat)
	}
	return lon, lat
}

// TransformBBox converts a 4- or 6-element bounding box from the source CRS
// to the target CRS.
//
// Only the two diagonal corners are transformed and the result is the
// min/max envelope over them. This matches the query filter path of the
// catalog and is cheap, but it is not conservative for CRS pairs with
// rotation or shear; callers needing exactness must transform a full
// polygon. For a 6-element box, Z passes through untouched. When source and
// target are the same system the input is returned as a copy.
func TransformBBox(bbox []float64, sourceCRS, targetCRS string) ([]float64, error) {
	if len(bbox) != 4 && len(bbox) != 6 {
		return nil, fmt.Errorf("bbox must have 4 or 6 elements, got %d", len(bbox))
	}

	src, err := Resolve(sourceCRS)
	if err != nil {
		return nil, err
	}
	dst, err := Resolve(targetCRS)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(bbox))
	copy(out, bbox)
	if src.EPSG == dst.EPSG {
		return out, nil
	}

	if len(bbox) == 4 {
		x1, y1 := TransformPoint(bbox[0], bbox[1], src, dst)
		x2, y2 := TransformPoint(bbox[2], bbox[3], src, dst)
		return []float64{
			math.Min(x1, x2), math.Min(y1, y2),
			math.Max(x1, x2), math.Max(y1, y2),
		}, nil
	}

	x1, y1 := TransformPoint(bbox[0], bbox[1], src, dst)
	x2, y2 := TransformPoint(bbox[3], bbox[4], src, dst)
	return []float64{
		math.Min(x1, x2), math.Min(y1, y2), bbox[2],
		math.Max(x1, x2), math.Max(y1, y2), bbox[5],
	}, nil
}

// webMercator implements the spherical Web Mercator projection (EPSG:3857).
type webMercator struct{}

func (webMercator) forward(lon, lat float64) (float64, float64) {
	x := semiMajor * lon * math.Pi / 180
	y := semiMajor * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y
}

func (webMercator) inverse(x, y float64) (float64, float64) {
	lon := x / semiMajor * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/semiMajor)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

// transverseMercator implements the ellipsoidal Gauss-Krueger projection
// using Snyder's series expansions (Map Projections: A Working Manual,
// eqs. 8-9..8-25), accurate to well under a millimeter within a zone.
type transverseMercator struct {
	lon0, lat0   float64 // natural origin, radians
	k0           float64 // scale factor at origin
	falseEasting float64
	falseNorth   float64
	e2, ep2      float64 // eccentricity squared, second eccentricity squared
	m0           float64 // meridional arc at lat0
}

func newTransverseMercator(lon0Deg, lat0Deg, k0, fe, fn float64) *transverseMercator {
	e2 := flattening * (2 - flattening)
	tm := &transverseMercator{
		lon0:         lon0Deg * math.Pi / 180,
		lat0:         lat0Deg * math.Pi / 180,
		k0:           k0,
		falseEasting: fe,
		falseNorth:   fn,
		e2:           e2,
		ep2:          e2 / (1 - e2),
	}
	tm.m0 = tm.meridionalArc(tm.lat0)
	return tm
}

// meridionalArc returns the distance along the meridian from the equator.
func (tm *transverseMercator) meridionalArc(lat float64) float64 {
	e2, e4, e6 := tm.e2, tm.e2*tm.e2, tm.e2*tm.e2*tm.e2
	return semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))
}

func (tm *transverseMercator) forward(lonDeg, latDeg float64) (float64, float64) {
	lon := lonDeg * math.Pi / 180
	lat := latDeg * math.Pi / 180

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	tanLat := sinLat / cosLat

	n := semiMajor / math.Sqrt(1-tm.e2*sinLat*sinLat)
	t := tanLat * tanLat
	c := tm.ep2 * cosLat * cosLat
	a := (lon - tm.lon0) * cosLat
	m := tm.meridionalArc(lat)

	a2, a3 := a*a, a*a*a
	a4, a5, a6 := a2*a2, a2*a3, a3*a3

	x := tm.falseEasting + tm.k0*n*(a+(1-t+c)*a3/6+
		(5-18*t+t*t+72*c-58*tm.ep2)*a5/120)
	y := tm.falseNorth + tm.k0*(m-tm.m0+n*tanLat*(a2/2+
		(5-t+9*c+4*c*c)*a4/24+
		(61-58*t+t*t+600*c-330*tm.ep2)*a6/720))
	return x, y
}

func (tm *transverseMercator) inverse(x, y float64) (float64, float64) {
	e2 := tm.e2
	m := tm.m0 + (y-tm.falseNorth)/tm.k0
	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	e1p2, e1p3, e1p4 := e1*e1, e1*e1*e1, e1*e1*e1*e1

	lat1 := mu + (3*e1/2-27*e1p3/32)*math.Sin(2*mu) +
		(21*e1p2/16-55*e1p4/32)*math.Sin(4*mu) +
		(151*e1p3/96)*math.Sin(6*mu) +
		(1097*e1p4/512)*math.Sin(8*mu)

	sinLat1, cosLat1 := math.Sin(lat1), math.Cos(lat1)
	tanLat1 := sinLat1 / cosLat1

	c1 := tm.ep2 * cosLat1 * cosLat1
	t1 := tanLat1 * tanLat1
	n1 := semiMajor / math.Sqrt(1-e2*sinLat1*sinLat1)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sinLat1*sinLat1, 1.5)
	d := (x - tm.falseEasting) / (n1 * tm.k0)

	d2, d3 := d*d, d*d*d
	d4, d5, d6 := d2*d2, d2*d3, d3*d3

	lat := lat1 - (n1*tanLat1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*tm.ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*tm.ep2-3*c1*c1)*d6/720)
	lon := tm.lon0 + (d-(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*tm.ep2+24*t1*t1)*d5/120)/cosLat1

	return lon * 180 / math.Pi, lat * 180 / math.Pi
}
