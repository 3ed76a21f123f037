// Package srt formats and parses SubRip subtitle documents from
// transcription segments, per spec.md §6.
package srt

import (
	"fmt"
	"strconv"
	"strings"

	"subtitle-pipeline/internal/transcribe"
)

// Format renders segments as an SRT document: each entry numbered
// from 1, a zero-padded HH:MM:SS.mmm --> HH:MM:SS.mmm timing line, the
// text, and a blank line separator after every entry including the
// last (spec.md §6).
func Format(segments []transcribe.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(seg.StartMS), formatTimestamp(seg.EndMS), seg.Text)
	}
	return b.String()
}

func formatTimestamp(ms int) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	millis := ms - seconds*1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}

// Parse reverses Format, reproducing the original start/end
// millisecond values from an SRT document's timestamps — the
// round-trip property required by spec.md §8 testable property 7.
func Parse(doc string) ([]transcribe.Segment, error) {
	var segments []transcribe.Segment
	blocks := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n\n")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("srt: malformed entry %q", block)
		}
		// lines[0] is the 1-based index; it is not otherwise used.
		start, end, err := parseTimingLine(lines[1])
		if err != nil {
			return nil, err
		}
		text := strings.Join(lines[2:], "\n")
		segments = append(segments, transcribe.Segment{Text: text, StartMS: start, EndMS: end})
	}
	return segments, nil
}

func parseTimingLine(line string) (start, end int, err error) {
	parts := strings.SplitN(line, " --> ", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("srt: malformed timing line %q", line)
	}
	start, err = parseTimestamp(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end, err = parseTimestamp(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (int, error) {
	ts = strings.TrimSpace(ts)
	var hh, mm, ss, mmm int
	hmsParts := strings.SplitN(ts, ":", 3)
	if len(hmsParts) != 3 {
		return 0, fmt.Errorf("srt: malformed timestamp %q", ts)
	}
	secMillis := strings.SplitN(hmsParts[2], ".", 2)
	if len(secMillis) != 2 {
		return 0, fmt.Errorf("srt: malformed timestamp %q", ts)
	}
	var err error
	if hh, err = strconv.Atoi(hmsParts[0]); err != nil {
		return 0, fmt.Errorf("srt: malformed timestamp %q: %w", ts, err)
	}
	if mm, err = strconv.Atoi(hmsParts[1]); err != nil {
		return 0, fmt.Errorf("srt: malformed timestamp %q: %w", ts, err)
	}
	if ss, err = strconv.Atoi(secMillis[0]); err != nil {
		return 0, fmt.Errorf("srt: malformed timestamp %q: %w", ts, err)
	}
	if mmm, err = strconv.Atoi(secMillis[1]); err != nil {
		return 0, fmt.Errorf("srt: malformed timestamp %q: %w", ts, err)
	}
	return hh*3_600_000 + mm*60_000 + ss*1000 + mmm, nil
}
