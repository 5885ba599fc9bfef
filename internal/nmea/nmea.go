package nmea

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	gonmea "github.com/adrianmo/go-nmea"

	"sailperf/internal/rawlog"
	"sailperf/internal/sample"
)

// ErrSkip matches every sentence the decoder refuses.
var ErrSkip = errors.New("nmea: sentence skipped")

type SkipReason string

const (
	ReasonMalformedLine   SkipReason = "malformed_line"
	ReasonUnknownSentence SkipReason = "unknown_sentence"
	ReasonShortSentence   SkipReason = "short_sentence"
	ReasonVoidFix         SkipReason = "void_fix"
	ReasonBadField        SkipReason = "bad_field"
	ReasonChecksum        SkipReason = "checksum"
)

// SkipError says why a sentence was dropped.
type SkipError struct {
	Reason SkipReason
	ID     string
	Err    error
}

func (e *SkipError) Error() string {
	msg := "nmea: skip " + string(e.Reason)
	if e.ID != "" {
		msg += " " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SkipError) Unwrap() error { return e.Err }

func (e *SkipError) Is(target error) bool { return target == ErrSkip }

func skip(reason SkipReason, id string, err error) error {
	return &SkipError{Reason: reason, ID: id, Err: err}
}

// Kind is the closed set of sentence kinds the decoder understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindFix
	KindWaterSpeed
	KindWind
	KindHeading
)

func (k Kind) String() string {
	switch k {
	case KindFix:
		return "fix"
	case KindWaterSpeed:
		return "water_speed"
	case KindWind:
		return "wind"
	case KindHeading:
		return "heading"
	default:
		return "unknown"
	}
}

// sentenceKind binds a 6-character identifier to its validation predicate
// and field extractor.
type sentenceKind struct {
	kind Kind
	id   string
	// minFields is the smallest comma-split length the extractor may index.
	minFields int
	valid     func(f []string) bool
	extract   func(p *fieldReader, rec *sample.RawRecord)
}

var sentenceKinds = []sentenceKind{
	{
		kind: KindFix, id: "$GNRMC", minFields: 10,
		valid:   func(f []string) bool { return f[2] == "A" },
		extract: extractRMC,
	},
	{
		kind: KindWaterSpeed, id: "$IIVHW", minFields: 6,
		extract: func(p *fieldReader, rec *sample.RawRecord) {
			rec.Values[sample.STW] = p.float(5, "stw")
		},
	},
	{
		kind: KindWind, id: "$IIMWV", minFields: 6,
		valid:   func(f []string) bool { return strings.HasPrefix(f[5], "A") },
		extract: extractMWV,
	},
	{
		kind: KindHeading, id: "$IIHDG", minFields: 2,
		extract: func(p *fieldReader, rec *sample.RawRecord) {
			rec.Values[sample.Heading] = p.float(1, "heading")
		},
	},
}

// RMC fields as logged:
//
//	0: $GNRMC
//	1: time (hhmmss.sss)
//	2: status (A=active, V=void)
//	3: latitude (ddmm.mmmm)
//	4: N/S
//	5: longitude (dddmm.mmmm)
//	6: E/W
//	7: speed over ground (knots)
//	8: course over ground (deg)
//	9: date (ddmmyy)
func extractRMC(p *fieldReader, rec *sample.RawRecord) {
	lat := p.latitude(3, 4)
	lon := p.longitude(5, 6)
	rec.Values[sample.Lat] = lat
	rec.Values[sample.Lon] = lon
	rec.Values[sample.SOG] = p.float(7, "sog")
	rec.Values[sample.COG] = p.float(8, "cog")
}

// MWV fields: 1 angle, 2 reference (R/T), 3 speed, 4 unit, 5 status.
func extractMWV(p *fieldReader, rec *sample.RawRecord) {
	rec.Values[sample.AWA] = p.float(1, "awa")
	rec.AWAType = p.fields[2]
	rec.Values[sample.AWS] = p.float(3, "aws")
}

// SentenceID returns the 6-character identifier the decoder dispatches on.
func SentenceID(sentence string) string {
	if len(sentence) < 6 {
		return sentence
	}
	return sentence[:6]
}

func lookupKind(sentence string) (sentenceKind, bool) {
	for _, k := range sentenceKinds {
		if strings.HasPrefix(sentence, k.id) {
			return k, true
		}
	}
	return sentenceKind{}, false
}

// KindOf reports which kind a sentence would decode as.
func KindOf(sentence string) Kind {
	k, ok := lookupKind(sentence)
	if !ok {
		return KindUnknown
	}
	return k.kind
}

type Options struct {
	// VerifyChecksum drops sentences whose trailing *hh checksum does not
	// match. Sentences without a checksum are still accepted.
	VerifyChecksum bool
}

type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	return &Decoder{opts: opts}
}

// DecodeLine decodes one raw "epoch_ms;status;sentence" log line.
func (d *Decoder) DecodeLine(raw string) (sample.RawRecord, error) {
	ln, err := rawlog.ParseLine(raw)
	if err != nil {
		return sample.RawRecord{}, skip(ReasonMalformedLine, "", err)
	}
	return d.Decode(ln)
}

// Decode decodes an already split log line.
func (d *Decoder) Decode(ln rawlog.Line) (sample.RawRecord, error) {
	sentence := ln.Sentence
	id := SentenceID(sentence)
	k, ok := lookupKind(sentence)
	if !ok {
		return sample.RawRecord{}, skip(ReasonUnknownSentence, id, nil)
	}
	if d.opts.VerifyChecksum {
		if err := verifyChecksum(sentence); err != nil {
			return sample.RawRecord{}, skip(ReasonChecksum, id, err)
		}
	}

	fields := strings.Split(sentence, ",")
	if len(fields) < k.minFields {
		return sample.RawRecord{}, skip(ReasonShortSentence, id, fmt.Errorf("%d fields", len(fields)))
	}
	if k.valid != nil && !k.valid(fields) {
		return sample.RawRecord{}, skip(ReasonVoidFix, id, nil)
	}

	rec := sample.RawRecord{Time: sample.FromEpochMillis(ln.EpochMillis)}
	p := &fieldReader{fields: fields}
	k.extract(p, &rec)
	if p.err != nil {
		return sample.RawRecord{}, skip(ReasonBadField, id, p.err)
	}
	return rec, nil
}

func verifyChecksum(sentence string) error {
	star := strings.LastIndexByte(sentence, '*')
	if star == -1 {
		return nil
	}
	ck := strings.TrimSpace(sentence[star+1:])
	if len(ck) < 2 {
		return fmt.Errorf("short checksum %q", ck)
	}
	want := gonmea.Checksum(sentence[1:star])
	if !strings.EqualFold(ck[:2], want) {
		return fmt.Errorf("checksum %s want %s", ck[:2], want)
	}
	return nil
}

// Stats counts decoder outcomes.
type Stats struct {
	Decoded map[Kind]int
	Skipped map[SkipReason]int
}

func (s Stats) TotalDecoded() int {
	n := 0
	for _, v := range s.Decoded {
		n += v
	}
	return n
}

func (s Stats) TotalSkipped() int {
	n := 0
	for _, v := range s.Skipped {
		n += v
	}
	return n
}

// DecodeAll decodes lines in order, dropping skips.
func (d *Decoder) DecodeAll(lines []rawlog.Line) ([]sample.RawRecord, Stats) {
	st := Stats{Decoded: map[Kind]int{}, Skipped: map[SkipReason]int{}}
	out := make([]sample.RawRecord, 0, len(lines))
	for _, ln := range lines {
		rec, err := d.Decode(ln)
		if err != nil {
			var se *SkipError
			if errors.As(err, &se) {
				st.Skipped[se.Reason]++
			}
			continue
		}
		st.Decoded[KindOf(ln.Sentence)]++
		out = append(out, rec)
	}
	return out, st
}

// fieldReader converts fields by index and keeps the first failure, so an
// extractor can read every field and check once.
type fieldReader struct {
	fields []string
	err    error
}

func (p *fieldReader) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", name, err)
	}
}

func (p *fieldReader) float(i int, name string) *float64 {
	if p.err != nil {
		return nil
	}
	v, ok := parseFloat(p.fields[i])
	if !ok {
		p.fail(name, fmt.Errorf("invalid number %q", p.fields[i]))
		return nil
	}
	return &v
}

func (p *fieldReader) latitude(vi, hi int) *float64 {
	if p.err != nil {
		return nil
	}
	v, ok := parseLatLon(p.fields[vi], p.fields[hi], 2)
	if !ok {
		p.fail("lat", fmt.Errorf("invalid latitude %q %q", p.fields[vi], p.fields[hi]))
		return nil
	}
	return &v
}

func (p *fieldReader) longitude(vi, hi int) *float64 {
	if p.err != nil {
		return nil
	}
	v, ok := parseLatLon(p.fields[vi], p.fields[hi], 3)
	if !ok {
		p.fail("lon", fmt.Errorf("invalid longitude %q %q", p.fields[vi], p.fields[hi]))
		return nil
	}
	return &v
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseLatLon parses a fixed-width degrees-minutes value: the first degWidth
// characters are whole degrees and the rest is minutes. S and W negate.
//
// The split is positional: a value logged with the wrong width decodes to a
// wrong number and is not rejected.
func parseLatLon(v string, hemi string, degWidth int) (float64, bool) {
	v = strings.TrimSpace(v)
	if len(v) <= degWidth {
		return 0, false
	}
	deg, ok := parseFloat(v[:degWidth])
	if !ok {
		return 0, false
	}
	mins, ok := parseFloat(v[degWidth:])
	if !ok {
		return 0, false
	}
	dec := deg + mins/60.0
	switch strings.TrimSpace(hemi) {
	case "S", "W":
		dec = -dec
	}
	return dec, true
}
