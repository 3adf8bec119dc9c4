// Package resolver turns raw run inputs into an analysis plan: the span,
// the livetime mask, and the resolved threshold list.
package resolver

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/detcharstack/dqflagger/internal/segments"
	"github.com/detcharstack/dqflagger/internal/utils"
)

// Threshold pairs a full-precision comparison value with its display label.
// Integral values carry integer labels; comparison always uses Value.
type Threshold struct {
	Value float64
	Label string
}

// NewThreshold derives the display label from the value.
func NewThreshold(value float64) Threshold {
	return Threshold{
		Value: value,
		Label: strconv.FormatFloat(value, 'f', -1, 64),
	}
}

// Sanitized returns the label with `.` folded to `_`, as embedded in flag
// names and report sections.
func (t Threshold) Sanitized() string {
	return strings.ReplaceAll(t.Label, ".", "_")
}

// ParseSpan builds the analysis span from GPS start/end strings.
func ParseSpan(startArg, endArg string) (segments.Span, error) {
	start, err := utils.ParseGPS(startArg)
	if err != nil {
		return segments.Span{}, fmt.Errorf("gps start: %w", err)
	}
	end, err := utils.ParseGPS(endArg)
	if err != nil {
		return segments.Span{}, fmt.Errorf("gps end: %w", err)
	}
	return segments.NewSpan(start, end)
}

// ParseThresholds resolves the threshold specification. A single value is
// parsed as a float and, failing that, treated as a path to a whitespace or
// line-delimited file of floats. Multiple values must each parse directly.
func ParseThresholds(values []string) ([]Threshold, error) {
	if len(values) == 0 {
		return []Threshold{NewThreshold(100)}, nil
	}

	if len(values) == 1 {
		if v, err := strconv.ParseFloat(values[0], 64); err == nil {
			return []Threshold{NewThreshold(v)}, nil
		}
		return loadThresholdFile(values[0])
	}

	out := make([]Threshold, 0, len(values))
	for _, raw := range values {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed threshold %q: %w", raw, err)
		}
		out = append(out, NewThreshold(v))
	}
	return out, nil
}

func loadThresholdFile(path string) ([]Threshold, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("threshold %q is neither a number nor a readable file: %w", path, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("threshold file %s is empty", path)
	}
	out := make([]Threshold, 0, len(fields))
	for _, raw := range fields {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("threshold file %s: malformed entry %q: %w", path, raw, err)
		}
		out = append(out, NewThreshold(v))
	}
	return out, nil
}

// SegmentClient is the segment-database surface the resolver needs.
type SegmentClient interface {
	ActiveSegments(ctx context.Context, flag string, span segments.Span) (segments.SegmentList, error)
}

// Livetime is the resolved analysis mask.
type Livetime struct {
	Mask    segments.SegmentList
	Seconds float64
}

// ResolveLivetime computes the livetime mask. With a state flag the segment
// database is queried for its active segments within the span (fatal on
// failure); without one the mask is the whole span.
func ResolveLivetime(ctx context.Context, client SegmentClient, span segments.Span, stateFlag string) (Livetime, error) {
	if stateFlag == "" {
		mask := segments.SegmentList{segments.Segment(span)}
		return Livetime{Mask: mask, Seconds: span.Duration()}, nil
	}

	if client == nil {
		return Livetime{}, fmt.Errorf("state flag %s requested but no segment database configured", stateFlag)
	}
	active, err := client.ActiveSegments(ctx, stateFlag, span)
	if err != nil {
		return Livetime{}, fmt.Errorf("resolve state flag %s: %w", stateFlag, err)
	}

	mask := clipToSpan(active, span)
	return Livetime{Mask: mask, Seconds: mask.Livetime()}, nil
}

func clipToSpan(list segments.SegmentList, span segments.Span) segments.SegmentList {
	var out segments.SegmentList
	for _, seg := range list {
		if seg.End <= span.Start || seg.Start >= span.End {
			continue
		}
		if seg.Start < span.Start {
			seg.Start = span.Start
		}
		if seg.End > span.End {
			seg.End = span.End
		}
		out = append(out, seg)
	}
	return out
}
