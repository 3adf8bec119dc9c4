// Package scan turns fetched detector data into per-threshold sets of
// active sample timestamps. Each flag-generation method is a distinct
// Source variant with uniform scanning behaviour.
package scan

import (
	"context"
	"fmt"
	"math"

	"github.com/detcharstack/dqflagger/internal/dsp"
	"github.com/detcharstack/dqflagger/internal/repo"
	"github.com/detcharstack/dqflagger/internal/segments"
)

// Method selects how samples are derived from the main channel.
type Method string

const (
	MethodTimeSeries Method = "timeseries"
	MethodScattering Method = "scattering"
	MethodOmicron    Method = "omicron"
)

// ParseMethod validates a method string from the CLI.
func ParseMethod(value string) (Method, error) {
	switch Method(value) {
	case MethodTimeSeries, MethodScattering, MethodOmicron:
		return Method(value), nil
	}
	return "", fmt.Errorf("unknown flag method %q (want timeseries, scattering or omicron)", value)
}

// SeriesFetcher retrieves continuous channel data from the time-series store.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, channel string, span segments.Span, nproc int) (repo.TimeSeries, error)
}

// TriggerFetcher retrieves discrete trigger events for a channel and span.
type TriggerFetcher interface {
	Triggers(ctx context.Context, ifo, channel string, span segments.Span) ([]repo.TriggerEvent, error)
}

// Source yields the active sample timestamps for one threshold value. A
// source is built with a single fetch pass and scanned once per threshold.
type Source interface {
	Scan(threshold float64) []float64
	// SampleCount reports how many samples or events back the source.
	SampleCount() int
}

// Options carries the per-run sample-derivation parameters.
type Options struct {
	Ifo        string
	Channel    string
	Multiplier int
	Lowpass    float64
	Highpass   float64
	RMSWindow  float64
	Nproc      int
}

// TimeSeriesSource scans continuous (optionally band-limited and
// RMS-reduced) samples, one block per livetime sub-segment.
type TimeSeriesSource struct {
	blocks []repo.TimeSeries
	scale  float64
}

// NewTimeSeriesSource fetches the main channel over every livetime
// sub-segment and applies the configured band-limit and RMS reduction.
func NewTimeSeriesSource(ctx context.Context, fetcher SeriesFetcher, opts Options, mask segments.SegmentList) (*TimeSeriesSource, error) {
	blocks := make([]repo.TimeSeries, 0, len(mask))
	for _, seg := range mask {
		ts, err := fetcher.FetchSeries(ctx, opts.Channel, segments.Span(seg), opts.Nproc)
		if err != nil {
			return nil, err
		}
		ts, err = dsp.BandLimit(ts, opts.Lowpass, opts.Highpass)
		if err != nil {
			return nil, fmt.Errorf("band-limit %s: %w", opts.Channel, err)
		}
		if opts.RMSWindow > 0 {
			ts, err = dsp.RMS(ts, opts.RMSWindow)
			if err != nil {
				return nil, fmt.Errorf("rms-reduce %s: %w", opts.Channel, err)
			}
		}
		blocks = append(blocks, ts)
	}
	return &TimeSeriesSource{blocks: blocks, scale: math.Pow(10, float64(opts.Multiplier))}, nil
}

// Scan selects every sample timestamp whose value strictly exceeds
// threshold * 10^multiplier, in chronological order.
func (s *TimeSeriesSource) Scan(threshold float64) []float64 {
	return scanBlocks(s.blocks, threshold*s.scale)
}

// SampleCount reports the total number of continuous samples held.
func (s *TimeSeriesSource) SampleCount() int {
	return countSamples(s.blocks)
}

// ScatteringSource scans predicted scattering fringe frequencies derived
// from an optic-motion channel. Band-limit and RMS options do not apply.
type ScatteringSource struct {
	blocks []repo.TimeSeries
	scale  float64
}

// NewScatteringSource fetches the main channel over every livetime
// sub-segment and projects each block onto the fringe frequency.
func NewScatteringSource(ctx context.Context, fetcher SeriesFetcher, opts Options, mask segments.SegmentList) (*ScatteringSource, error) {
	blocks := make([]repo.TimeSeries, 0, len(mask))
	for _, seg := range mask {
		ts, err := fetcher.FetchSeries(ctx, opts.Channel, segments.Span(seg), opts.Nproc)
		if err != nil {
			return nil, err
		}
		fringe, err := dsp.FringeFrequency(ts)
		if err != nil {
			return nil, fmt.Errorf("fringe projection %s: %w", opts.Channel, err)
		}
		blocks = append(blocks, fringe)
	}
	return &ScatteringSource{blocks: blocks, scale: math.Pow(10, float64(opts.Multiplier))}, nil
}

// Scan selects every fringe sample strictly above threshold * 10^multiplier.
func (s *ScatteringSource) Scan(threshold float64) []float64 {
	return scanBlocks(s.blocks, threshold*s.scale)
}

// SampleCount reports the total number of fringe samples held.
func (s *ScatteringSource) SampleCount() int {
	return countSamples(s.blocks)
}

// OmicronSource scans discrete trigger events by SNR. The threshold is
// truncated toward zero before comparison and the power-of-ten multiplier
// does not apply: SNR is already in scaled units.
type OmicronSource struct {
	events []repo.TriggerEvent
}

// NewOmicronSource reads the flat event table for the whole span in one
// pass; livetime sub-segments are not iterated.
func NewOmicronSource(ctx context.Context, fetcher TriggerFetcher, opts Options, span segments.Span) (*OmicronSource, error) {
	events, err := fetcher.Triggers(ctx, opts.Ifo, opts.Channel, span)
	if err != nil {
		return nil, err
	}
	return &OmicronSource{events: events}, nil
}

// Scan selects the peak time of every event whose SNR strictly exceeds the
// truncated threshold.
func (s *OmicronSource) Scan(threshold float64) []float64 {
	cut := math.Trunc(threshold)
	var times []float64
	for _, e := range s.events {
		if e.SNR > cut {
			times = append(times, e.Time)
		}
	}
	return times
}

// SampleCount reports the number of trigger events held.
func (s *OmicronSource) SampleCount() int {
	return len(s.events)
}

func scanBlocks(blocks []repo.TimeSeries, cut float64) []float64 {
	var times []float64
	for _, ts := range blocks {
		for i, v := range ts.Samples {
			if v > cut {
				times = append(times, ts.TimeAt(i))
			}
		}
	}
	return times
}

func countSamples(blocks []repo.TimeSeries) int {
	total := 0
	for _, ts := range blocks {
		total += len(ts.Samples)
	}
	return total
}
