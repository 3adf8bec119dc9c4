package repo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/detcharstack/dqflagger/internal/segments"
	"github.com/detcharstack/dqflagger/internal/utils"
)

// TriggerEvent is one Omicron trigger row: peak time, peak frequency, SNR.
type TriggerEvent struct {
	Time      float64
	Frequency float64
	SNR       float64
}

// OmicronStore reads trigger tables produced by the Omicron event-trigger
// generator from a directory tree laid out as
// {dir}/{IFO}/{CHANNELTAG}_OMICRON/*.txt. Each file holds whitespace-
// separated columns: time, frequency, snr. Lines starting with '#' are
// comments.
type OmicronStore struct {
	dir string
}

// NewOmicronStore constructs a reader over the given trigger directory.
func NewOmicronStore(dir string) *OmicronStore {
	return &OmicronStore{dir: dir}
}

// Triggers returns the events for the channel whose peak times fall inside
// the span, sorted chronologically. The whole span is read in one pass.
func (s *OmicronStore) Triggers(ctx context.Context, ifo, channel string, span segments.Span) ([]TriggerEvent, error) {
	if s == nil || s.dir == "" {
		return nil, fmt.Errorf("trigger store directory not configured")
	}

	channelDir := filepath.Join(s.dir, ifo, segments.ChannelTag(channel)+"_OMICRON")
	paths, err := filepath.Glob(filepath.Join(channelDir, "*.txt"))
	if err != nil {
		return nil, utils.NewAppError("omicron.read", "list trigger files", err)
	}
	if len(paths) == 0 {
		return nil, utils.NewAppError("omicron.read",
			fmt.Sprintf("no trigger files under %s", channelDir), nil)
	}
	sort.Strings(paths)

	var events []TriggerEvent
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileEvents, err := readTriggerFile(p, span)
		if err != nil {
			return nil, utils.NewAppError("omicron.read", fmt.Sprintf("read %s", p), err)
		}
		events = append(events, fileEvents...)
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return events, nil
}

func readTriggerFile(path string, span segments.Span) ([]TriggerEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []TriggerEvent
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 columns, got %d", line, len(fields))
		}
		t, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse time: %w", line, err)
		}
		freq, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse frequency: %w", line, err)
		}
		snr, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse snr: %w", line, err)
		}
		if t < span.Start || t >= span.End {
			continue
		}
		events = append(events, TriggerEvent{Time: t, Frequency: freq, SNR: snr})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
