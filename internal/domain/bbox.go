package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseBBoxParam parses the bbox query parameter grammar:
// comma-separated 4 or 6 floats, minX,minY[,minZ],maxX,maxY[,maxZ].
func ParseBBoxParam(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 6 {
		return nil, fmt.Errorf("%w: expected 4 or 6 values, got %d", ErrInvalidBBox, len(parts))
	}

	bbox := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidBBox, p)
		}
		bbox[i] = v
	}
	return bbox, nil
}

// ValidateBBox checks that a bbox has 4 or 6 elements.
func ValidateBBox(bbox []float64) error {
	if len(bbox) != 4 && len(bbox) != 6 {
		return fmt.Errorf("%w: expected 4 or 6 values, got %d", ErrInvalidBBox, len(bbox))
	}
	return nil
}

// bbox2D reduces a 4- or 6-element bbox to its 2D envelope.
func bbox2D(bbox []float64) (minX, minY, maxX, maxY float64, ok bool) {
	switch len(bbox) {
	case 4:
		return bbox[0], bbox[1], bbox[2], bbox[3], true
	case 6:
		return bbox[0], bbox[1], bbox[3], bbox[4], true
	default:
		return 0, 0, 0, 0, false
	}
}

// BBoxIntersects reports whether two bounding boxes overlap in 2D.
// 6-element boxes are reduced to their X/Y envelope first.
func BBoxIntersects(a, b []float64) bool {
	aMinX, aMinY, aMaxX, aMaxY, ok := bbox2D(a)
	if !ok {
		return false
	}
	bMinX, bMinY, bMaxX, bMaxY, ok := bbox2D(b)
	if !ok {
		return false
	}
	return aMinX <= bMaxX && aMaxX >= bMinX && aMinY <= bMaxY && aMaxY >= bMinY
}
