// Package engine orchestrates one flag-generation run: resolve the
// livetime mask, build the sample source, scan every threshold, and emit
// the segment and configuration files.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/detcharstack/dqflagger/internal/metrics"
	"github.com/detcharstack/dqflagger/internal/report"
	"github.com/detcharstack/dqflagger/internal/resolver"
	"github.com/detcharstack/dqflagger/internal/scan"
	"github.com/detcharstack/dqflagger/internal/segments"
)

// Request carries every per-run analysis parameter.
type Request struct {
	Ifo          string
	Channel      string
	Span         segments.Span
	StateFlag    string
	Thresholds   []resolver.Threshold
	Method       scan.Method
	Multiplier   int
	Lowpass      float64
	Highpass     float64
	RMSWindow    float64
	StartPad     float64
	EndPad       float64
	Nproc        int
	OutputDir    string
	SegmentDBURL string
}

// Result reports what a run produced.
type Result struct {
	Flags        *segments.Collection
	Livetime     float64
	SegmentsFile string
	ConfigFile   string
}

// Pipeline wires the external stores into the run flow. All fields are
// injected so tests can substitute fakes.
type Pipeline struct {
	logger   *slog.Logger
	segdb    resolver.SegmentClient
	series   scan.SeriesFetcher
	triggers scan.TriggerFetcher
}

// NewPipeline constructs a run pipeline.
func NewPipeline(logger *slog.Logger, segdb resolver.SegmentClient, series scan.SeriesFetcher, triggers scan.TriggerFetcher) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:   logger,
		segdb:    segdb,
		series:   series,
		triggers: triggers,
	}
}

// Run executes one strictly sequential flag-generation pass. Any fetch or
// write failure aborts the run; degenerate results (empty livetime mask,
// no samples above a threshold) produce empty flags.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if req.Channel == "" {
		return Result{}, fmt.Errorf("main channel not specified")
	}
	if len(req.Thresholds) == 0 {
		return Result{}, fmt.Errorf("no thresholds resolved")
	}

	livetime, err := resolver.ResolveLivetime(ctx, p.segdb, req.Span, req.StateFlag)
	if err != nil {
		return Result{}, err
	}
	p.logger.Info("livetime resolved",
		slog.String("stateFlag", req.StateFlag),
		slog.Int("segments", len(livetime.Mask)),
		slog.Float64("seconds", livetime.Seconds))

	fetchStart := time.Now()
	source, err := p.buildSource(ctx, req, livetime.Mask)
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveFetch(time.Since(fetchStart))
	p.logger.Debug("sample source ready",
		slog.String("method", string(req.Method)),
		slog.Int("samples", source.SampleCount()))

	collection := segments.NewCollection()
	for _, th := range req.Thresholds {
		scanStart := time.Now()
		times := source.Scan(th.Value)
		metrics.ObserveScan(time.Since(scanStart), source.SampleCount())

		active := segments.FromTimestamps(times).Pad(req.StartPad, req.EndPad)
		name := segments.FlagName(req.Ifo, req.Channel, th.Label)
		collection.Add(th.Value, segments.NewFlag(name, req.Ifo, req.Span, active))

		p.logger.Debug("threshold scanned",
			slog.String("flag", name),
			slog.Int("activeTimes", len(times)),
			slog.Int("activeSegments", len(active)))
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = "."
	}
	xmlName := report.SegmentsFileName(req.Channel, req.Span)
	iniName := report.INIFileName(req.Channel, req.Span)
	xmlPath := filepath.Join(outDir, xmlName)
	iniPath := filepath.Join(outDir, iniName)

	if err := report.WriteSegmentsFile(xmlPath, collection); err != nil {
		return Result{}, err
	}
	if err := report.WriteINI(iniPath, report.INIParams{
		Ifo:          req.Ifo,
		Channel:      req.Channel,
		SegmentDBURL: req.SegmentDBURL,
		XMLFile:      xmlName,
		Thresholds:   req.Thresholds,
	}); err != nil {
		return Result{}, err
	}
	metrics.ObserveFlagsWritten(collection.Len())

	p.logger.Info("run complete",
		slog.Int("flags", collection.Len()),
		slog.String("segmentsFile", xmlPath),
		slog.String("configFile", iniPath))

	return Result{
		Flags:        collection,
		Livetime:     livetime.Seconds,
		SegmentsFile: xmlPath,
		ConfigFile:   iniPath,
	}, nil
}

func (p *Pipeline) buildSource(ctx context.Context, req Request, mask segments.SegmentList) (scan.Source, error) {
	opts := scan.Options{
		Ifo:        req.Ifo,
		Channel:    req.Channel,
		Multiplier: req.Multiplier,
		Lowpass:    req.Lowpass,
		Highpass:   req.Highpass,
		RMSWindow:  req.RMSWindow,
		Nproc:      req.Nproc,
	}

	switch req.Method {
	case scan.MethodTimeSeries:
		if p.series == nil {
			return nil, fmt.Errorf("time-series store not configured")
		}
		return scan.NewTimeSeriesSource(ctx, p.series, opts, mask)
	case scan.MethodScattering:
		if p.series == nil {
			return nil, fmt.Errorf("time-series store not configured")
		}
		return scan.NewScatteringSource(ctx, p.series, opts, mask)
	case scan.MethodOmicron:
		if p.triggers == nil {
			return nil, fmt.Errorf("trigger store not configured")
		}
		return scan.NewOmicronSource(ctx, p.triggers, opts, req.Span)
	}
	return nil, fmt.Errorf("unknown flag method %q", req.Method)
}
