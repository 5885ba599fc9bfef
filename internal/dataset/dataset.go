// Package dataset reads and writes the pipeline's CSV tables. Readers find
// columns by header name; an empty cell is an unknown value.
package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sailperf/internal/sample"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

const (
	ColDatetime = "datetime"
	ColAWAType  = "awa_type"
	ColTWARaw   = "twa_raw"
	ColTWA      = "twa"
	ColTack     = "tack"
	ColTrackLat = "trk_lat"
	ColTrackLon = "trk_lon"
)

// valueColumns lists the instrument channels in table order. awa_type sits
// between aws_knots and heading_deg in the records table.
var valueColumns = sample.AllChannels()

// RecordColumns is the header of the decoder output.
func RecordColumns() []string {
	cols := []string{ColDatetime}
	for _, c := range valueColumns {
		if c == sample.Heading {
			cols = append(cols, ColAWAType)
		}
		cols = append(cols, c.String())
	}
	return cols
}

// CombinedColumns is the header of the deriver output.
func CombinedColumns(withTrack bool) []string {
	cols := []string{ColDatetime}
	for _, c := range valueColumns {
		cols = append(cols, c.String())
	}
	cols = append(cols, ColTWARaw, ColTWA, ColTack)
	if withTrack {
		cols = append(cols, ColTrackLat, ColTrackLon)
	}
	return cols
}

// FormatFloat renders v with the fewest digits that round-trip; nil is "".
func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func WriteRecords(w io.Writer, recs []sample.RawRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns()); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	row := make([]string, 0, len(valueColumns)+2)
	for _, r := range recs {
		row = append(row[:0], sample.FormatTime(r.Time))
		for _, c := range valueColumns {
			if c == sample.Heading {
				row = append(row, r.AWAType)
			}
			row = append(row, FormatFloat(r.Values[c]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadRecords(r io.Reader) ([]sample.RawRecord, error) {
	t, err := readTable(r, ColDatetime)
	if err != nil {
		return nil, err
	}
	out := make([]sample.RawRecord, 0, len(t.rows))
	for i, row := range t.rows {
		rec := sample.RawRecord{AWAType: t.str(row, ColAWAType)}
		if rec.Time, err = t.time(i, row); err != nil {
			return nil, err
		}
		if err := t.values(i, row, &rec.Values); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteCombined writes the performance dataset. Track columns are added when
// withTrack is set.
func WriteCombined(w io.Writer, rows []sample.EnrichedSample, withTrack bool) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CombinedColumns(withTrack)); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	line := make([]string, 0, len(valueColumns)+6)
	for _, e := range rows {
		line = append(line[:0], sample.FormatTime(e.Time))
		for _, c := range valueColumns {
			line = append(line, FormatFloat(e.Values[c]))
		}
		line = append(line, FormatFloat(e.TWARaw), FormatFloat(e.TWA), string(e.Tack))
		if withTrack {
			line = append(line, FormatFloat(e.TrackLat), FormatFloat(e.TrackLon))
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("csv write: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ReadCombined(r io.Reader) ([]sample.EnrichedSample, error) {
	t, err := readTable(r, ColDatetime)
	if err != nil {
		return nil, err
	}
	out := make([]sample.EnrichedSample, 0, len(t.rows))
	for i, row := range t.rows {
		var e sample.EnrichedSample
		if e.Time, err = t.time(i, row); err != nil {
			return nil, err
		}
		if err := t.values(i, row, &e.Values); err != nil {
			return nil, err
		}
		for _, f := range []struct {
			col string
			dst **float64
		}{
			{ColTWARaw, &e.TWARaw},
			{ColTWA, &e.TWA},
			{ColTrackLat, &e.TrackLat},
			{ColTrackLon, &e.TrackLon},
		} {
			if *f.dst, err = t.float(i, row, f.col); err != nil {
				return nil, err
			}
		}
		if e.Tack, err = parseTack(t.str(row, ColTack)); err != nil {
			return nil, t.rowErr(i, ColTack, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func parseTack(s string) (sample.Tack, error) {
	switch tk := sample.Tack(strings.ToLower(strings.TrimSpace(s))); tk {
	case sample.TackNone, sample.TackStarboard, sample.TackPort:
		return tk, nil
	default:
		return "", fmt.Errorf("unknown tack %q", s)
	}
}

// CreateFile writes a table to path through fn, creating parent directories.
// A failed write removes the partial file.
func CreateFile(path string, fn func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	werr := fn(bw)
	if werr == nil {
		werr = bw.Flush()
	}
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %q: %w", path, werr)
	}
	return nil
}

// OpenFile reads a table from path through fn.
func OpenFile[T any](path string, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()
	v, err := fn(bufio.NewReader(f))
	if err != nil {
		return zero, fmt.Errorf("read %q: %w", path, err)
	}
	return v, nil
}

type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: empty input, no header", ErrMissingColumn)
	}
	t := &table{cols: make(map[string]int, len(recs[0])), rows: recs[1:]}
	for i, name := range recs[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := t.cols[name]; !dup {
			t.cols[name] = i
		}
	}
	for _, col := range required {
		if _, ok := t.cols[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) str(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowErr numbers rows from 2 so the header is line 1.
func (t *table) rowErr(i int, col string, err error) error {
	return fmt.Errorf("row %d: %s: %w", i+2, col, err)
}

func (t *table) float(i int, row []string, col string) (*float64, error) {
	v, err := parseFloat(t.str(row, col))
	if err != nil {
		return nil, t.rowErr(i, col, err)
	}
	return v, nil
}

func (t *table) integer(i int, row []string, col string) (int, error) {
	s := t.str(row, col)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Tables written by float-only tools carry "3.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, t.rowErr(i, col, err)
		}
		n = int(f)
	}
	return n, nil
}

func (t *table) time(i int, row []string) (time.Time, error) {
	ts, err := sample.ParseTime(t.str(row, ColDatetime))
	if err != nil {
		return time.Time{}, t.rowErr(i, ColDatetime, err)
	}
	return ts, nil
}

func (t *table) values(i int, row []string, dst *sample.Values) error {
	for _, c := range valueColumns {
		v, err := t.float(i, row, c.String())
		if err != nil {
			return err
		}
		dst[c] = v
	}
	return nil
}
