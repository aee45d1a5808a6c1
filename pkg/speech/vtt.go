package speech

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	cueTimingRe = regexp.MustCompile(`^(?:\d{1,2}:)?\d{2}:\d{2}\.\d{3} --> (?:\d{1,2}:)?\d{2}:\d{2}\.\d{3}`)
	inlineTagRe = regexp.MustCompile(`<[^>]*>`)
)

// ParseVTT reads a WebVTT caption file into ordered segments. Cue
// identifiers, inline tags and the rolling duplicate lines of
// auto-generated captions are stripped.
func ParseVTT(r io.Reader) ([]Segment, error) {
	scanner := bufio.NewScanner(r)
	var segments []Segment
	var current *Segment
	lastText := ""

	flush := func() {
		if current != nil && strings.TrimSpace(current.Text) != "" {
			segments = append(segments, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "WEBVTT"),
			strings.HasPrefix(line, "NOTE"),
			strings.HasPrefix(line, "STYLE"),
			strings.HasPrefix(line, "Kind:"),
			strings.HasPrefix(line, "Language:"):
			// header and metadata
		case cueTimingRe.MatchString(line):
			flush()
			fields := strings.Fields(line)
			start, err := parseVTTTimestamp(fields[0])
			if err != nil {
				return nil, err
			}
			end, err := parseVTTTimestamp(fields[2])
			if err != nil {
				return nil, err
			}
			current = &Segment{Start: start, End: end}
		default:
			if current == nil {
				continue // cue identifier
			}
			text := strings.TrimSpace(inlineTagRe.ReplaceAllString(line, ""))
			if text == "" || text == lastText {
				continue
			}
			lastText = text
			if current.Text != "" {
				current.Text += " "
			}
			current.Text += text
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("no caption cues found")
	}
	return segments, nil
}

func parseVTTTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("bad caption timestamp: %s", ts)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("bad caption timestamp: %s", ts)
		}
		total = total*60 + v
	}
	return total, nil
}
