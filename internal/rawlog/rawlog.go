package rawlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Log format: line-oriented text, one instrument sentence per line.
//
//	<epoch_ms>;<status>;<sentence>
//
// - Blank lines ignored.
// - status "N" marks a normal sentence; anything else is a skip.
// - sentence starts with '$' (e.g. "$IIHDG,123.4,,,,*5C").
//
// Malformed lines are reported as ErrMalformedLine and never stop a read.

// ErrMalformedLine marks a line that is not a usable sentence triple.
var ErrMalformedLine = errors.New("rawlog: malformed line")

// StatusNormal is the only status flag that carries a usable sentence.
const StatusNormal = "N"

type Line struct {
	// Source is the file the line was read from (empty for plain readers).
	Source      string
	Number      int
	EpochMillis int64
	Status      string
	Sentence    string
}

// ParseLine splits a raw log line into its triple.
func ParseLine(raw string) (Line, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ";")
	if len(parts) != 3 {
		return Line{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedLine, len(parts))
	}
	if parts[1] != StatusNormal {
		return Line{}, fmt.Errorf("%w: status %q", ErrMalformedLine, parts[1])
	}
	if !strings.HasPrefix(parts[2], "$") {
		return Line{}, fmt.Errorf("%w: sentence missing '$'", ErrMalformedLine)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Line{}, fmt.Errorf("%w: timestamp %q", ErrMalformedLine, parts[0])
	}
	return Line{EpochMillis: ms, Status: parts[1], Sentence: parts[2]}, nil
}

// Stats counts what a Reader saw.
type Stats struct {
	Lines     int
	Malformed int
}

type Reader struct {
	r      io.Reader
	source string
	stats  Stats
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Stats returns the counters accumulated by ReadAll.
func (rr *Reader) Stats() Stats {
	return rr.stats
}

// ReadAll returns every well-formed line in input order. Only I/O errors are
// returned; malformed lines are counted and dropped.
func (rr *Reader) ReadAll() ([]Line, error) {
	s := bufio.NewScanner(rr.r)
	// Instrument logs occasionally carry very long garbage lines.
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	out := make([]Line, 0, 4096)
	n := 0
	for s.Scan() {
		n++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		rr.stats.Lines++
		ln, err := ParseLine(text)
		if err != nil {
			rr.stats.Malformed++
			continue
		}
		ln.Source = rr.source
		ln.Number = n
		out = append(out, ln)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFiles reads paths in the order given and concatenates their lines.
func ReadFiles(paths []string) ([]Line, Stats, error) {
	var all []Line
	var total Stats
	for _, p := range paths {
		lines, st, err := ReadFile(p)
		if err != nil {
			return nil, total, err
		}
		all = append(all, lines...)
		total.Lines += st.Lines
		total.Malformed += st.Malformed
	}
	return all, total, nil
}

// ReadFile reads one log file.
func ReadFile(path string) ([]Line, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	rr := NewReader(f)
	rr.source = path
	lines, err := rr.ReadAll()
	if err != nil {
		return nil, rr.Stats(), fmt.Errorf("read %q: %w", path, err)
	}
	return lines, rr.Stats(), nil
}
