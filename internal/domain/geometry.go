package domain

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"
)

// GeometryIntersects reports whether the row's stored geometry intersects
// the query box. The second return is false when the row carries no
// parseable geometry, in which case the caller should fall back to the
// item bbox.
func (r *ItemRow) GeometryIntersects(queryBBox []float64) (intersects, ok bool) {
	if r.Geometry == "" {
		return false, false
	}
	g, err := wkt.Unmarshal(r.Geometry)
	if err != nil {
		return false, false
	}
	minX, minY, maxX, maxY, ok := bbox2D(queryBBox)
	if !ok {
		return false, false
	}
	return geometryIntersectsBox(g, minX, minY, maxX, maxY), true
}

// geometryIntersectsBox is an exact intersection test between a geometry
// and an axis-aligned box, not an envelope comparison. A polygon whose
// envelope overlaps the box can still miss it entirely.
func geometryIntersectsBox(g geom.T, minX, minY, maxX, maxY float64) bool {
	switch g := g.(type) {
	case *geom.Point:
		c := g.Coords()
		return pointInBox(c.X(), c.Y(), minX, minY, maxX, maxY)
	case *geom.MultiPoint:
		for i := 0; i < g.NumPoints(); i++ {
			if geometryIntersectsBox(g.Point(i), minX, minY, maxX, maxY) {
				return true
			}
		}
		return false
	case *geom.LineString:
		return pathIntersectsBox(g.Coords(), minX, minY, maxX, maxY)
	case *geom.MultiLineString:
		for i := 0; i < g.NumLineStrings(); i++ {
			if pathIntersectsBox(g.LineString(i).Coords(), minX, minY, maxX, maxY) {
				return true
			}
		}
		return false
	case *geom.Polygon:
		return polygonIntersectsBox(g, minX, minY, maxX, maxY)
	case *geom.MultiPolygon:
		for i := 0; i < g.NumPolygons(); i++ {
			if polygonIntersectsBox(g.Polygon(i), minX, minY, maxX, maxY) {
				return true
			}
		}
		return false
	case *geom.GeometryCollection:
		for _, sub := range g.Geoms() {
			if geometryIntersectsBox(sub, minX, minY, maxX, maxY) {
				return true
			}
		}
		return false
	}

	// Unknown geometry type, settle for the envelope.
	b := g.Bounds()
	if b == nil {
		return false
	}
	return b.Min(0) <= maxX && b.Max(0) >= minX && b.Min(1) <= maxY && b.Max(1) >= minY
}

// polygonIntersectsBox holds when a ring vertex lies inside the box, a box
// corner lies inside the polygon, or any ring edge crosses a box edge. The
// corner test accounts for holes: a corner inside a hole is outside the
// polygon.
func polygonIntersectsBox(p *geom.Polygon, minX, minY, maxX, maxY float64) bool {
	if p.NumLinearRings() == 0 {
		return false
	}

	for i := 0; i < p.NumLinearRings(); i++ {
		if pathIntersectsBox(p.LinearRing(i).Coords(), minX, minY, maxX, maxY) {
			return true
		}
	}

	layout := p.Layout()
	outer := p.LinearRing(0).FlatCoords()
	corners := [][2]float64{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
	for _, c := range corners {
		coord := geom.Coord{c[0], c[1]}
		if !xy.IsPointInRing(layout, coord, outer) {
			continue
		}
		inHole := false
		for i := 1; i < p.NumLinearRings(); i++ {
			if xy.IsPointInRing(layout, coord, p.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// pathIntersectsBox reports whether a coordinate path touches the box:
// a vertex inside it, or a segment crossing one of its edges.
func pathIntersectsBox(coords []geom.Coord, minX, minY, maxX, maxY float64) bool {
	for _, c := range coords {
		if pointInBox(c.X(), c.Y(), minX, minY, maxX, maxY) {
			return true
		}
	}
	for i := 1; i < len(coords); i++ {
		if segmentIntersectsBox(coords[i-1].X(), coords[i-1].Y(), coords[i].X(), coords[i].Y(),
			minX, minY, maxX, maxY) {
			return true
		}
	}
	return false
}

func pointInBox(x, y, minX, minY, maxX, maxY float64) bool {
	return x >= minX && x <= maxX && y >= minY && y <= maxY
}

func segmentIntersectsBox(x1, y1, x2, y2, minX, minY, maxX, maxY float64) bool {
	if pointInBox(x1, y1, minX, minY, maxX, maxY) || pointInBox(x2, y2, minX, minY, maxX, maxY) {
		return true
	}
	return segmentsIntersect(x1, y1, x2, y2, minX, minY, maxX, minY) ||
		segmentsIntersect(x1, y1, x2, y2, maxX, minY, maxX, maxY) ||
		segmentsIntersect(x1, y1, x2, y2, maxX, maxY, minX, maxY) ||
		segmentsIntersect(x1, y1, x2, y2, minX, maxY, minX, minY)
}

// segmentsIntersect is the standard orientation test, with the collinear
// overlap case resolved through projection bounds.
func segmentsIntersect(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	o1 := orientation(ax, ay, bx, by, cx, cy)
	o2 := orientation(ax, ay, bx, by, dx, dy)
	o3 := orientation(cx, cy, dx, dy, ax, ay)
	o4 := orientation(cx, cy, dx, dy, bx, by)

	if o1 != o2 && o3 != o4 {
		return true
	}

	switch {
	case o1 == 0 && onSegment(ax, ay, bx, by, cx, cy):
		return true
	case o2 == 0 && onSegment(ax, ay, bx, by, dx, dy):
		return true
	case o3 == 0 && onSegment(cx, cy, dx, dy, ax, ay):
		return true
	case o4 == 0 && onSegment(cx, cy, dx, dy, bx, by):
		return true
	}
	return false
}

// orientation returns the turn direction of p->q->r: 0 collinear,
// 1 clockwise, -1 counterclockwise.
func orientation(px, py, qx, qy, rx, ry float64) int {
	v := (qy-py)*(rx-qx) - (qx-px)*(ry-qy)
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// onSegment assumes p is collinear with the a-b segment and checks it
// falls within the segment's bounds.
func onSegment(ax, ay, bx, by, px, py float64) bool {
	return px >= min(ax, bx) && px <= max(ax, bx) && py >= min(ay, by) && py <= max(ay, by)
}
