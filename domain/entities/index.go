package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// IndexRange is a half-open slice-like range over event indices.
// Nil bounds are absent: a missing Start means 0, a missing Stop means
// unbounded, and a missing Step means every index.
type IndexRange struct {
	Start *int
	Stop  *int
	Step  *int
}

func intPtr(v int) *int { return &v }

// Every returns a range accepting every step-th index starting at 0.
func Every(step int) IndexRange {
	return IndexRange{Step: intPtr(step)}
}

// At returns a range accepting only index i.
func At(i int) IndexRange {
	return IndexRange{Start: intPtr(i), Stop: intPtr(i + 1)}
}

// From returns a range accepting every index >= start.
func From(start int) IndexRange {
	return IndexRange{Start: intPtr(start)}
}

// Slice returns the range start:stop:step.
func Slice(start, stop, step int) IndexRange {
	return IndexRange{Start: intPtr(start), Stop: intPtr(stop), Step: intPtr(step)}
}

// Accepts reports whether index i falls inside the range.
func (r IndexRange) Accepts(i int) bool {
	start := 0
	if r.Start != nil {
		start = *r.Start
		if i < start {
			return false
		}
	}
	if r.Stop != nil && i >= *r.Stop {
		return false
	}
	if r.Step != nil && *r.Step > 1 {
		return (i-start)%*r.Step == 0
	}
	return true
}

// Validate checks that the step, when present, is positive.
func (r IndexRange) Validate() error {
	if r.Step != nil && *r.Step < 1 {
		return fmt.Errorf("index step must be >= 1, got %d", *r.Step)
	}
	return nil
}

func (r IndexRange) String() string {
	part := func(p *int) string {
		if p == nil {
			return ""
		}
		return strconv.Itoa(*p)
	}
	s := part(r.Start) + ":" + part(r.Stop)
	if r.Step != nil {
		s += ":" + part(r.Step)
	}
	return s
}

// ParseRange parses slice notation: "5", "5:", ":50", "5:50", "5:50:10", "::2".
// A bare integer selects that single index.
func ParseRange(s string) (IndexRange, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return IndexRange{}, fmt.Errorf("invalid index range %q", s)
	}

	vals := make([]*int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return IndexRange{}, fmt.Errorf("invalid index range %q: %w", s, err)
		}
		vals[i] = intPtr(v)
	}

	if len(parts) == 1 {
		if vals[0] == nil {
			return IndexRange{}, fmt.Errorf("invalid index range %q", s)
		}
		return At(*vals[0]), nil
	}

	r := IndexRange{Start: vals[0], Stop: vals[1], Step: vals[2]}
	if err := r.Validate(); err != nil {
		return IndexRange{}, err
	}
	return r, nil
}

// IndexFilter is a union of ranges. An empty filter accepts every index.
type IndexFilter []IndexRange

// Accepts reports whether any range accepts i.
func (f IndexFilter) Accepts(i int) bool {
	if len(f) == 0 {
		return true
	}
	for _, r := range f {
		if r.Accepts(i) {
			return true
		}
	}
	return false
}

// Validate checks every range of the filter.
func (f IndexFilter) Validate() error {
	for _, r := range f {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f IndexFilter) String() string {
	if len(f) == 0 {
		return ":"
	}
	parts := make([]string, len(f))
	for i, r := range f {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// ParseFilter parses a comma separated list of ranges ("5:50:10,60:").
// The empty string yields the accept-all filter.
func ParseFilter(s string) (IndexFilter, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var f IndexFilter
	for _, part := range strings.Split(s, ",") {
		r, err := ParseRange(part)
		if err != nil {
			return nil, err
		}
		f = append(f, r)
	}
	return f, nil
}
