package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/detcharstack/dqflagger/internal/segments"
	"github.com/detcharstack/dqflagger/internal/utils"
)

// SegmentDBClient queries a segment database for the active segments of a
// data-quality flag.
type SegmentDBClient struct {
	baseURL    string
	queryPath  string
	httpClient *http.Client
}

// NewSegmentDBClient constructs a client targeting the configured segment
// database instance.
func NewSegmentDBClient(baseURL, queryPath string, timeout time.Duration) *SegmentDBClient {
	return &SegmentDBClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		queryPath: queryPath,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ActiveSegments returns the coalesced active segments of the named flag
// within the span. Each database row may carry extra metadata; only the
// (start, end) pair is retained.
func (c *SegmentDBClient) ActiveSegments(ctx context.Context, flag string, span segments.Span) (segments.SegmentList, error) {
	if c == nil {
		return nil, fmt.Errorf("segment database client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("segment database URL not configured")
	}

	endpoint, err := c.queryURL(flag, span)
	if err != nil {
		return nil, utils.NewAppError("segdb.query", "build query URL", err)
	}

	var response struct {
		Active [][]float64 `json:"active"`
	}
	if err := getJSON(ctx, c.httpClient, endpoint, &response); err != nil {
		return nil, utils.NewAppError("segdb.query", fmt.Sprintf("query flag %s", flag), err)
	}

	list := make(segments.SegmentList, 0, len(response.Active))
	for _, row := range response.Active {
		if len(row) < 2 {
			return nil, utils.NewAppError("segdb.query",
				fmt.Sprintf("malformed segment row %v for flag %s", row, flag), nil)
		}
		list = append(list, segments.Segment{Start: row[0], End: row[1]})
	}
	return list.Coalesce(), nil
}

func (c *SegmentDBClient) queryURL(flag string, span segments.Span) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join(u.Path, "/"+strings.TrimLeft(c.queryPath, "/"))
	q := u.Query()
	q.Set("flag", flag)
	q.Set("start", utils.FormatGPS(span.Start))
	q.Set("end", utils.FormatGPS(span.End))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	if endpoint == "" {
		return fmt.Errorf("empty endpoint")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
