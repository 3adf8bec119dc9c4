// Command dqflagger generates data-quality flags for a detector channel:
// it scans a derived signal (or Omicron triggers) against a set of
// thresholds and writes the resulting segment file plus a report
// configuration.
//
// Usage:
//
//	dqflagger [flags] IFO GPSSTART GPSEND
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/detcharstack/dqflagger/internal/config"
	"github.com/detcharstack/dqflagger/internal/engine"
	"github.com/detcharstack/dqflagger/internal/metrics"
	"github.com/detcharstack/dqflagger/internal/repo"
	"github.com/detcharstack/dqflagger/internal/resolver"
	"github.com/detcharstack/dqflagger/internal/scan"
	"github.com/detcharstack/dqflagger/internal/utils"
)

// autoStateFlag marks the unset --state-flag value; it resolves to the
// detector's analysis-ready flag once the IFO is known. An explicit empty
// string disables the livetime restriction entirely.
const autoStateFlag = "auto"

type multiString []string

func (m *multiString) String() string {
	return strings.Join(*m, ",")
}

func (m *multiString) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*m = append(*m, part)
		}
	}
	return nil
}

func main() {
	var (
		configPath string
		channel    string
		thresholds multiString
		multiplier int
		stateFlag  string
		lowpass    int
		highpass   int
		rmsWindow  float64
		startPad   int
		endPad     int
		outputDir  string
		method     string
		nproc      int
		verbose    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&channel, "main-channel", "", "Channel to analyse (default {IFO}:GDS-CALIB_STRAIN)")
	flag.Var(&thresholds, "threshold", "Threshold value, comma-separated list, or path to a threshold file; repeatable (default 100)")
	flag.IntVar(&multiplier, "threshold-multiplier", 0, "Power-of-ten scale applied to thresholds before comparison")
	flag.StringVar(&stateFlag, "state-flag", autoStateFlag, "Restrict analysis to active times of this flag (default {IFO}:DMT-ANALYSIS_READY:1, empty disables)")
	flag.IntVar(&lowpass, "lowpass", 0, "Lowpass cutoff frequency in Hz")
	flag.IntVar(&highpass, "highpass", 0, "Highpass cutoff frequency in Hz")
	flag.Float64Var(&rmsWindow, "rms", 0, "RMS reduction window length in seconds")
	flag.IntVar(&startPad, "segment-start-pad", 0, "Seconds subtracted from each segment start")
	flag.IntVar(&endPad, "segment-end-pad", 0, "Seconds added to each segment end")
	flag.StringVar(&outputDir, "output-dir", ".", "Output directory, created if absent")
	flag.StringVar(&method, "flag-method", "timeseries", "Sample derivation method: timeseries, scattering or omicron")
	flag.IntVar(&nproc, "nproc", 1, "Parallelism hint forwarded to the time-series store")
	flag.BoolVar(&verbose, "verbose", false, "Enable progress printing")
	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] IFO GPSSTART GPSEND\n", os.Args[0])
		os.Exit(2)
	}
	ifo := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := utils.NewLogger(level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	span, err := resolver.ParseSpan(args[1], args[2])
	if err != nil {
		logger.Error("invalid analysis span", slog.Any("error", err))
		os.Exit(1)
	}
	resolved, err := resolver.ParseThresholds(thresholds)
	if err != nil {
		logger.Error("invalid thresholds", slog.Any("error", err))
		os.Exit(1)
	}
	flagMethod, err := scan.ParseMethod(method)
	if err != nil {
		logger.Error("invalid flag method", slog.Any("error", err))
		os.Exit(1)
	}

	if channel == "" {
		channel = fmt.Sprintf("%s:GDS-CALIB_STRAIN", ifo)
	}
	if stateFlag == autoStateFlag {
		stateFlag = fmt.Sprintf("%s:DMT-ANALYSIS_READY:1", ifo)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Error("failed to create output directory", slog.String("dir", outputDir), slog.Any("error", err))
		os.Exit(1)
	}
	if err := os.Chdir(outputDir); err != nil {
		logger.Error("failed to enter output directory", slog.String("dir", outputDir), slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := engine.NewPipeline(
		logger,
		repo.NewSegmentDBClient(cfg.SegmentDB.URL, cfg.SegmentDB.Path, cfg.SegmentDB.Timeout),
		repo.NewSeriesClient(cfg.Series.URL, cfg.Series.Path, cfg.Series.Timeout),
		repo.NewOmicronStore(cfg.Triggers.Directory),
	)

	logger.Info("starting dqflagger",
		slog.String("ifo", ifo),
		slog.String("channel", channel),
		slog.String("method", string(flagMethod)),
		slog.String("span", fmt.Sprintf("[%s, %s)", utils.FormatGPS(span.Start), utils.FormatGPS(span.End))),
		slog.Int("thresholds", len(resolved)))

	result, err := pipeline.Run(ctx, engine.Request{
		Ifo:          ifo,
		Channel:      channel,
		Span:         span,
		StateFlag:    stateFlag,
		Thresholds:   resolved,
		Method:       flagMethod,
		Multiplier:   multiplier,
		Lowpass:      float64(lowpass),
		Highpass:     float64(highpass),
		RMSWindow:    rmsWindow,
		StartPad:     float64(startPad),
		EndPad:       float64(endPad),
		Nproc:        nproc,
		OutputDir:    ".",
		SegmentDBURL: cfg.SegmentDB.URL,
	})
	if err != nil {
		metrics.ObserveRun(metrics.OutcomeError)
		pushMetrics(logger, cfg)
		logger.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}

	metrics.ObserveRun(metrics.OutcomeSuccess)
	pushMetrics(logger, cfg)

	logger.Info("dqflagger finished",
		slog.Int("flags", result.Flags.Len()),
		slog.Float64("livetime", result.Livetime),
		slog.String("segmentsFile", result.SegmentsFile),
		slog.String("configFile", result.ConfigFile))
}

func pushMetrics(logger *slog.Logger, cfg *config.Config) {
	if err := metrics.Push(cfg.Metrics.PushGateway, cfg.Metrics.Job, prometheus.DefaultGatherer); err != nil {
		logger.Warn("metrics push failed", slog.Any("error", err))
	}
}
