package domain

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// SearchQuery carries the filter parameters of an item search. Zero values
// mean "not filtered"; a nil Limit takes the service default, any explicit
// value must be at least 1.
type SearchQuery struct {
	Collections []string  // collection ids, OR-combined
	IDs         []string  // item ids, OR-combined
	BBox        []float64 // 4 or 6 values in BBoxCRS
	BBoxCRS     string    // CRS identifier of BBox, WGS84 when empty
	Datetime    string    // RFC3339 instant or "start/end" range, ".." opens an end
	Limit       *int
}

// Validate checks structural constraints against the configured limit cap.
// Semantic checks (CRS resolution, datetime parsing) happen at execution,
// where they produce the specific sentinel errors.
func (q SearchQuery) Validate(maxLimit int) error {
	err := validation.ValidateStruct(&q,
		validation.Field(&q.BBox, validation.By(validateBBoxLength)),
		validation.Field(&q.Limit, validation.By(validateLimit(maxLimit))),
	)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validation.Errors); ok {
		for field, fieldErr := range errs {
			return &ValidationError{
				Field:   field,
				Message: fieldErr.Error(),
			}
		}
	}
	return &ValidationError{Field: "query", Message: err.Error()}
}

// validateLimit checks an explicit limit. Threshold rules skip zero
// values, and an explicit 0 must be rejected rather than defaulted.
func validateLimit(maxLimit int) validation.RuleFunc {
	return func(value interface{}) error {
		limit, _ := value.(*int)
		if limit == nil {
			return nil
		}
		if *limit < 1 {
			return fmt.Errorf("must be no less than 1")
		}
		if *limit > maxLimit {
			return fmt.Errorf("must be no greater than %d", maxLimit)
		}
		return nil
	}
}

func validateBBoxLength(value interface{}) error {
	bbox, _ := value.([]float64)
	if len(bbox) == 0 {
		return nil
	}
	return ValidateBBox(bbox)
}

// SearchResult is the outcome of one search over a snapshot.
type SearchResult struct {
	Items          []ItemRow
	NumberMatched  int // rows passing all filters, before the limit
	NumberReturned int
}

// DatetimeRange is a closed temporal interval; a nil side is open.
type DatetimeRange struct {
	Start *time.Time
	End   *time.Time
}

// IsZero reports whether both sides are open, i.e. no temporal filter.
func (r DatetimeRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// Contains reports whether t falls inside the interval, bounds inclusive.
func (r DatetimeRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// ParseDatetimeRange parses a datetime filter value: a single RFC3339
// instant, or "start/end" where either side may be ".." for open-ended.
func ParseDatetimeRange(s string) (DatetimeRange, error) {
	if s == "" {
		return DatetimeRange{}, nil
	}

	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		t, err := parseInstant(parts[0])
		if err != nil {
			return DatetimeRange{}, err
		}
		return DatetimeRange{Start: t, End: t}, nil
	case 2:
		start, err := parseRangeSide(parts[0])
		if err != nil {
			return DatetimeRange{}, err
		}
		end, err := parseRangeSide(parts[1])
		if err != nil {
			return DatetimeRange{}, err
		}
		if start == nil && end == nil {
			// "../.." carries no constraint, same as omitting the filter.
			return DatetimeRange{}, nil
		}
		if start != nil && end != nil && end.Before(*start) {
			return DatetimeRange{}, fmt.Errorf("%w: range end before start", ErrInvalidDatetime)
		}
		return DatetimeRange{Start: start, End: end}, nil
	default:
		return DatetimeRange{}, fmt.Errorf("%w: %q", ErrInvalidDatetime, s)
	}
}

func parseRangeSide(s string) (*time.Time, error) {
	if s == ".." || s == "" {
		return nil, nil
	}
	return parseInstant(s)
}

func parseInstant(s string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDatetime, s)
	}
	u := t.UTC()
	return &u, nil
}
