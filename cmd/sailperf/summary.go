package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"sailperf/internal/nmea"
	"sailperf/internal/rawlog"
	"sailperf/internal/sample"
)

type logSummary struct {
	Lines     int
	Malformed int
	Decoded   int
	Skipped   int
	First     time.Time
	Last      time.Time
	IDCounts  map[string]int
}

// Span is the time between the first and last line.
func (s logSummary) Span() time.Duration {
	if s.First.IsZero() {
		return 0
	}
	return s.Last.Sub(s.First)
}

func summarizeLog(lines []rawlog.Line, st rawlog.Stats, d *nmea.Decoder) logSummary {
	s := logSummary{
		Lines:     st.Lines,
		Malformed: st.Malformed,
		IDCounts:  map[string]int{},
	}
	for _, ln := range lines {
		at := sample.FromEpochMillis(ln.EpochMillis)
		if s.First.IsZero() || at.Before(s.First) {
			s.First = at
		}
		if at.After(s.Last) {
			s.Last = at
		}
		s.IDCounts[nmea.SentenceID(ln.Sentence)]++

		if _, err := d.Decode(ln); err != nil {
			s.Skipped++
			continue
		}
		s.Decoded++
	}
	return s
}

func printLogSummary(w io.Writer, path string, s logSummary) {
	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "lines: %d\n", s.Lines)
	fmt.Fprintf(w, "malformed_lines: %d\n", s.Malformed)
	fmt.Fprintf(w, "decoded: %d\n", s.Decoded)
	fmt.Fprintf(w, "skipped: %d\n", s.Skipped)
	if !s.First.IsZero() {
		fmt.Fprintf(w, "first: %s\n", sample.FormatTime(s.First))
		fmt.Fprintf(w, "last: %s\n", sample.FormatTime(s.Last))
	}
	fmt.Fprintf(w, "span: %s\n", s.Span())

	ids := make([]string, 0, len(s.IDCounts))
	for id := range s.IDCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(w, "sentence_counts:\n")
	for _, id := range ids {
		fmt.Fprintf(w, "  %s: %d\n", id, s.IDCounts[id])
	}
}

func runSummary(a *app, args []string) error {
	fs := a.newFlagSet("summary", "log...")
	fs.BoolVar(&a.cfg.Decode.VerifyChecksum, "verify-checksum", a.cfg.Decode.VerifyChecksum, "Count sentences with a bad *hh checksum as skipped")
	if err := a.parse(fs, args, 1); err != nil {
		return err
	}

	d := nmea.NewDecoder(nmea.Options{VerifyChecksum: a.cfg.Decode.VerifyChecksum})
	for i, path := range fs.Args() {
		path = strings.TrimSpace(path)
		if path == "" {
			return fmt.Errorf("path is empty")
		}
		lines, st, err := rawlog.ReadFile(path)
		if err != nil {
			return err
		}
		a.metrics.RecordRead(st)
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		printLogSummary(a.stdout, path, summarizeLog(lines, st, d))
	}
	return nil
}
