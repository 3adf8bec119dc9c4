package scan

import (
	"context"
	"testing"

	"github.com/detcharstack/dqflagger/internal/repo"
	"github.com/detcharstack/dqflagger/internal/segments"
)

type fakeSeriesFetcher struct {
	bySpan map[float64]repo.TimeSeries
	calls  int
}

func (f *fakeSeriesFetcher) FetchSeries(ctx context.Context, channel string, span segments.Span, nproc int) (repo.TimeSeries, error) {
	f.calls++
	ts, ok := f.bySpan[span.Start]
	if !ok {
		ts = repo.TimeSeries{Epoch: span.Start, SampleRate: 1, Samples: make([]float64, int(span.Duration()))}
	}
	return ts, nil
}

type fakeTriggerFetcher struct {
	events []repo.TriggerEvent
}

func (f *fakeTriggerFetcher) Triggers(ctx context.Context, ifo, channel string, span segments.Span) ([]repo.TriggerEvent, error) {
	return f.events, nil
}

func TestParseMethod(t *testing.T) {
	for _, value := range []string{"timeseries", "scattering", "omicron"} {
		if _, err := ParseMethod(value); err != nil {
			t.Fatalf("unexpected error for %q: %v", value, err)
		}
	}
	if _, err := ParseMethod("hveto"); err == nil {
		t.Fatalf("expected error for unknown method")
	}
}

func TestTimeSeriesSourceScanStrictComparison(t *testing.T) {
	fetcher := &fakeSeriesFetcher{bySpan: map[float64]repo.TimeSeries{
		100: {Epoch: 100, SampleRate: 1, Samples: []float64{5, 10, 10.5, 9}},
	}}
	source, err := NewTimeSeriesSource(context.Background(), fetcher,
		Options{Channel: "L1:TEST"}, segments.SegmentList{{Start: 100, End: 104}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	times := source.Scan(10)
	if len(times) != 1 || times[0] != 102 {
		t.Fatalf("strict comparison violated: %v", times)
	}
}

func TestTimeSeriesSourceAppliesMultiplier(t *testing.T) {
	fetcher := &fakeSeriesFetcher{bySpan: map[float64]repo.TimeSeries{
		0: {Epoch: 0, SampleRate: 1, Samples: []float64{50, 150, 250}},
	}}
	source, err := NewTimeSeriesSource(context.Background(), fetcher,
		Options{Channel: "L1:TEST", Multiplier: 2}, segments.SegmentList{{Start: 0, End: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// threshold 2 with multiplier 2 means cut at 200
	times := source.Scan(2)
	if len(times) != 1 || times[0] != 2 {
		t.Fatalf("multiplier not applied: %v", times)
	}
}

func TestTimeSeriesSourceChronologicalAcrossBlocks(t *testing.T) {
	fetcher := &fakeSeriesFetcher{bySpan: map[float64]repo.TimeSeries{
		0:  {Epoch: 0, SampleRate: 1, Samples: []float64{9, 1}},
		50: {Epoch: 50, SampleRate: 1, Samples: []float64{1, 9}},
	}}
	mask := segments.SegmentList{{Start: 0, End: 2}, {Start: 50, End: 52}}
	source, err := NewTimeSeriesSource(context.Background(), fetcher, Options{Channel: "L1:TEST"}, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected one fetch per livetime sub-segment, got %d", fetcher.calls)
	}

	times := source.Scan(5)
	if len(times) != 2 || times[0] != 0 || times[1] != 51 {
		t.Fatalf("expected chronological [0 51], got %v", times)
	}
}

func TestTimeSeriesSourceEmptyMask(t *testing.T) {
	fetcher := &fakeSeriesFetcher{}
	source, err := NewTimeSeriesSource(context.Background(), fetcher, Options{Channel: "L1:TEST"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatalf("no fetch expected for empty mask")
	}
	if times := source.Scan(0); len(times) != 0 {
		t.Fatalf("expected no active timestamps, got %v", times)
	}
}

func TestScatteringSourceScansFringe(t *testing.T) {
	// Linear motion of 2.128 µm/s yields a flat 4 Hz fringe, so a threshold
	// of 3 marks every sample and a threshold of 5 marks none.
	samples := make([]float64, 8)
	for i := range samples {
		samples[i] = 2.128 * float64(i)
	}
	fetcher := &fakeSeriesFetcher{bySpan: map[float64]repo.TimeSeries{
		0: {Epoch: 0, SampleRate: 1, Samples: samples},
	}}
	source, err := NewScatteringSource(context.Background(), fetcher,
		Options{Channel: "L1:SUS-ETMY"}, segments.SegmentList{{Start: 0, End: 8}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if times := source.Scan(3); len(times) != len(samples) {
		t.Fatalf("expected every sample active, got %v", times)
	}
	if times := source.Scan(5); len(times) != 0 {
		t.Fatalf("expected no sample active, got %v", times)
	}
}

func TestOmicronSourceTruncatesThreshold(t *testing.T) {
	fetcher := &fakeTriggerFetcher{events: []repo.TriggerEvent{
		{Time: 10, SNR: 5.0},
		{Time: 20, SNR: 5.5},
		{Time: 30, SNR: 6.1},
	}}
	source, err := NewOmicronSource(context.Background(), fetcher,
		Options{Ifo: "L1", Channel: "L1:TEST"}, segments.Span{Start: 0, End: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// threshold 5.9 truncates to 5: events with SNR strictly above 5 match
	times := source.Scan(5.9)
	if len(times) != 2 || times[0] != 20 || times[1] != 30 {
		t.Fatalf("truncation semantics violated: %v", times)
	}

	// SNR exactly at the cut is inactive
	times = source.Scan(5)
	if len(times) != 2 {
		t.Fatalf("strict comparison violated: %v", times)
	}
}

func TestOmicronSourceEmptyResultIsValid(t *testing.T) {
	source, err := NewOmicronSource(context.Background(), &fakeTriggerFetcher{},
		Options{Ifo: "L1", Channel: "L1:TEST"}, segments.Span{Start: 0, End: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if times := source.Scan(100); len(times) != 0 {
		t.Fatalf("expected empty scan, got %v", times)
	}
}
