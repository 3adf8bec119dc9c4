package repo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/detcharstack/dqflagger/internal/segments"
	"github.com/detcharstack/dqflagger/internal/utils"
)

// TimeSeries is one contiguous block of samples at a fixed rate. Sample i
// lives at Epoch + i/SampleRate GPS seconds.
type TimeSeries struct {
	Epoch      float64
	SampleRate float64
	Samples    []float64
}

// Dt returns the sample spacing in seconds.
func (ts TimeSeries) Dt() float64 {
	return 1 / ts.SampleRate
}

// TimeAt returns the absolute GPS time of sample i.
func (ts TimeSeries) TimeAt(i int) float64 {
	return ts.Epoch + float64(i)*ts.Dt()
}

// SeriesClient fetches channel data from the time-series store.
type SeriesClient struct {
	baseURL    string
	queryPath  string
	httpClient *http.Client
}

// NewSeriesClient constructs a client targeting the configured store.
func NewSeriesClient(baseURL, queryPath string, timeout time.Duration) *SeriesClient {
	return &SeriesClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		queryPath: queryPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchSeries retrieves one contiguous time-series for the channel over the
// span at native sample rate. nproc is an opaque parallelism hint forwarded
// to the store; it has no effect on ordering. The client never caches.
func (c *SeriesClient) FetchSeries(ctx context.Context, channel string, span segments.Span, nproc int) (TimeSeries, error) {
	if c == nil {
		return TimeSeries{}, fmt.Errorf("series client not initialised")
	}
	if c.baseURL == "" {
		return TimeSeries{}, fmt.Errorf("time-series store URL not configured")
	}

	endpoint, err := c.queryURL(channel, span, nproc)
	if err != nil {
		return TimeSeries{}, utils.NewAppError("series.fetch", "build query URL", err)
	}

	var response struct {
		Epoch      float64   `json:"epoch"`
		SampleRate float64   `json:"sample_rate"`
		Samples    []float64 `json:"samples"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, &response); err != nil {
		return TimeSeries{}, utils.NewAppError("series.fetch",
			fmt.Sprintf("fetch %s [%s, %s)", channel, utils.FormatGPS(span.Start), utils.FormatGPS(span.End)), err)
	}

	if response.SampleRate <= 0 {
		return TimeSeries{}, utils.NewAppError("series.fetch",
			fmt.Sprintf("store returned invalid sample rate %v for %s", response.SampleRate, channel), nil)
	}
	if len(response.Samples) == 0 {
		return TimeSeries{}, utils.NewAppError("series.fetch",
			fmt.Sprintf("store returned no samples for %s", channel), nil)
	}

	return TimeSeries{
		Epoch:      response.Epoch,
		SampleRate: response.SampleRate,
		Samples:    response.Samples,
	}, nil
}

func (c *SeriesClient) queryURL(channel string, span segments.Span, nproc int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join(u.Path, "/"+strings.TrimLeft(c.queryPath, "/"))
	q := u.Query()
	q.Set("channel", channel)
	q.Set("start", utils.FormatGPS(span.Start))
	q.Set("end", utils.FormatGPS(span.End))
	if nproc > 1 {
		q.Set("nproc", strconv.Itoa(nproc))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
