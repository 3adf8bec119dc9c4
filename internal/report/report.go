// Package report serialises a finished flag collection: a gzipped XML
// segment file plus the companion INI configuration that renders one
// report tab per threshold.
package report

import (
	"compress/gzip"
	"embed"
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/detcharstack/dqflagger/internal/resolver"
	"github.com/detcharstack/dqflagger/internal/segments"
	"github.com/detcharstack/dqflagger/internal/utils"
)

//go:embed templates/header.ini.tmpl templates/section.ini.tmpl
var templateFS embed.FS

var (
	headerTmpl  = template.Must(template.ParseFS(templateFS, "templates/header.ini.tmpl"))
	sectionTmpl = template.Must(template.ParseFS(templateFS, "templates/section.ini.tmpl"))
)

// FileTag renders a channel name for use in output file names: the colon
// separator becomes a dash and dots fold to underscores.
func FileTag(channel string) string {
	return strings.NewReplacer(":", "-", ".", "_").Replace(channel)
}

// SegmentsFileName derives the segment-file name from the channel and span.
func SegmentsFileName(channel string, span segments.Span) string {
	return fmt.Sprintf("%s-FLAG_SEGMENTS-%s-%s.xml.gz",
		FileTag(channel), utils.FormatGPS(span.Start), utils.FormatGPS(span.Duration()))
}

// INIFileName derives the configuration-file name from the channel and span.
func INIFileName(channel string, span segments.Span) string {
	return fmt.Sprintf("%s-FLAG_SEGMENTS-%s-%s.ini",
		FileTag(channel), utils.FormatGPS(span.Start), utils.FormatGPS(span.Duration()))
}

type xmlSegment struct {
	Start float64 `xml:"start,attr"`
	End   float64 `xml:"end,attr"`
}

type xmlFlag struct {
	Name   string       `xml:"name,attr"`
	Ifo    string       `xml:"ifo,attr"`
	Known  []xmlSegment `xml:"known>segment"`
	Active []xmlSegment `xml:"active>segment"`
}

type xmlFlagDict struct {
	XMLName xml.Name  `xml:"flagdict"`
	Flags   []xmlFlag `xml:"flag"`
}

// WriteSegmentsFile serialises the collection to a gzipped XML container
// keyed by flag name, in threshold input order.
func WriteSegmentsFile(path string, collection *segments.Collection) error {
	dict := xmlFlagDict{}
	for _, th := range collection.Thresholds() {
		flag, ok := collection.Get(th)
		if !ok {
			return fmt.Errorf("collection missing flag for threshold %v", th)
		}
		dict.Flags = append(dict.Flags, xmlFlag{
			Name:   flag.Name,
			Ifo:    flag.Ifo,
			Known:  toXMLSegments(flag.Known),
			Active: toXMLSegments(flag.Active),
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create segment file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("write segment file: %w", err)
	}
	enc := xml.NewEncoder(gz)
	enc.Indent("", "  ")
	if err := enc.Encode(dict); err != nil {
		return fmt.Errorf("encode segment file: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flush segment file: %w", err)
	}
	return f.Close()
}

// ReadSegmentsFile loads the flags back out of a segment file, in the order
// they were written.
func ReadSegmentsFile(path string) ([]segments.Flag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open segment file: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress segment file: %w", err)
	}
	defer gz.Close()

	var dict xmlFlagDict
	if err := xml.NewDecoder(gz).Decode(&dict); err != nil {
		return nil, fmt.Errorf("decode segment file: %w", err)
	}

	flags := make([]segments.Flag, 0, len(dict.Flags))
	for _, xf := range dict.Flags {
		flags = append(flags, segments.Flag{
			Name:   xf.Name,
			Ifo:    xf.Ifo,
			Known:  fromXMLSegments(xf.Known),
			Active: fromXMLSegments(xf.Active),
		})
	}
	return flags, nil
}

// INIParams feeds the configuration templates.
type INIParams struct {
	Ifo          string
	Channel      string
	SegmentDBURL string
	XMLFile      string
	Thresholds   []resolver.Threshold
}

// WriteINI writes the report configuration: the fixed header block followed
// by one templated section per threshold, in threshold input order.
func WriteINI(path string, p INIParams) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := headerTmpl.Execute(f, map[string]string{
		"SegmentDBURL": p.SegmentDBURL,
		"Channel":      p.Channel,
	}); err != nil {
		return fmt.Errorf("render config header: %w", err)
	}

	chanTag := segments.ChannelTag(p.Channel)
	for _, th := range p.Thresholds {
		if _, err := fmt.Fprintln(f); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
		if err := sectionTmpl.Execute(f, map[string]string{
			"Th":   th.Sanitized(),
			"Chan": chanTag,
			"Ifo":  p.Ifo,
			"Xml":  p.XMLFile,
		}); err != nil {
			return fmt.Errorf("render config section %s: %w", th.Label, err)
		}
	}
	return f.Close()
}

func toXMLSegments(list segments.SegmentList) []xmlSegment {
	out := make([]xmlSegment, 0, len(list))
	for _, seg := range list {
		out = append(out, xmlSegment{Start: seg.Start, End: seg.End})
	}
	return out
}

func fromXMLSegments(list []xmlSegment) segments.SegmentList {
	if len(list) == 0 {
		return nil
	}
	out := make(segments.SegmentList, 0, len(list))
	for _, seg := range list {
		out = append(out, segments.Segment{Start: seg.Start, End: seg.End})
	}
	return out
}
