package segments

import (
	"fmt"
	"sort"
	"strings"
)

// Span is the outer analysis window [Start, End) in GPS seconds.
type Span struct {
	Start float64
	End   float64
}

// NewSpan validates and returns an analysis span.
func NewSpan(start, end float64) (Span, error) {
	if start >= end {
		return Span{}, fmt.Errorf("invalid span [%v, %v): start must precede end", start, end)
	}
	return Span{Start: start, End: end}, nil
}

// Duration returns the span length in seconds.
func (s Span) Duration() float64 {
	return s.End - s.Start
}

// Segment is a half-open interval [Start, End) in GPS seconds.
type Segment struct {
	Start float64
	End   float64
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// SegmentList is an ordered list of segments.
type SegmentList []Segment

// Coalesce merges overlapping and adjacent segments into a minimal set of
// maximal disjoint segments sorted ascending by start.
func (l SegmentList) Coalesce() SegmentList {
	if len(l) == 0 {
		return nil
	}
	sorted := make(SegmentList, len(l))
	copy(sorted, l)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := SegmentList{sorted[0]}
	for _, seg := range sorted[1:] {
		last := &merged[len(merged)-1]
		if seg.Start <= last.End {
			if seg.End > last.End {
				last.End = seg.End
			}
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// Pad widens each segment by startPad seconds before its start and endPad
// seconds after its end. Padding applies per segment after coalescing;
// segments that come to overlap through padding are intentionally left
// unmerged, matching the established flag-generation behaviour.
func (l SegmentList) Pad(startPad, endPad float64) SegmentList {
	if len(l) == 0 {
		return nil
	}
	padded := make(SegmentList, len(l))
	for i, seg := range l {
		padded[i] = Segment{Start: seg.Start - startPad, End: seg.End + endPad}
	}
	return padded
}

// Livetime returns the summed duration of all segments in seconds.
func (l SegmentList) Livetime() float64 {
	total := 0.0
	for _, seg := range l {
		total += seg.Duration()
	}
	return total
}

// FromTimestamps seeds a unit-length segment [t, t+1) from every active
// timestamp and coalesces the result.
func FromTimestamps(times []float64) SegmentList {
	if len(times) == 0 {
		return nil
	}
	list := make(SegmentList, 0, len(times))
	for _, t := range times {
		list = append(list, Segment{Start: t, End: t + 1})
	}
	return list.Coalesce()
}

// Flag is a named data-quality condition with its active and known segments.
// A Flag is constructed once per threshold and not mutated afterwards.
type Flag struct {
	Name   string
	Ifo    string
	Known  SegmentList
	Active SegmentList
}

// NewFlag builds a flag whose known extent is the full analysis span.
func NewFlag(name, ifo string, span Span, active SegmentList) Flag {
	return Flag{
		Name:   name,
		Ifo:    ifo,
		Known:  SegmentList{Segment(span)},
		Active: active,
	}
}

// ChannelTag returns the channel trailer (everything after the detector
// prefix) with `-` and `.` folded to `_`.
func ChannelTag(channel string) string {
	tag := channel
	if idx := strings.IndexByte(channel, ':'); idx >= 0 {
		tag = channel[idx+1:]
	}
	return strings.NewReplacer("-", "_", ".", "_").Replace(tag)
}

// FlagName formats the canonical flag name for a channel/threshold pair:
// {IFO}:DCH-{CHANNELTAG}_{THRESHOLD}:1, with the channel trailer and the
// threshold label sanitised for segment-database compatibility.
func FlagName(ifo, channel, threshold string) string {
	th := strings.ReplaceAll(threshold, ".", "_")
	return fmt.Sprintf("%s:DCH-%s_%s:1", ifo, ChannelTag(channel), th)
}

// Collection maps threshold values to flags, preserving insertion order.
type Collection struct {
	order []float64
	flags map[float64]Flag
}

// NewCollection returns an empty flag collection.
func NewCollection() *Collection {
	return &Collection{flags: make(map[float64]Flag)}
}

// Add inserts a finished flag for the given threshold value. A repeated
// threshold keeps its original position and takes the newer flag.
func (c *Collection) Add(threshold float64, flag Flag) {
	if _, ok := c.flags[threshold]; !ok {
		c.order = append(c.order, threshold)
	}
	c.flags[threshold] = flag
}

// Get returns the flag recorded for a threshold value.
func (c *Collection) Get(threshold float64) (Flag, bool) {
	flag, ok := c.flags[threshold]
	return flag, ok
}

// Thresholds returns threshold values in insertion order.
func (c *Collection) Thresholds() []float64 {
	out := make([]float64, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of flags in the collection.
func (c *Collection) Len() int {
	return len(c.order)
}
