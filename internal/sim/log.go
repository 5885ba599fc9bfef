package sim

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"sailperf/internal/rawlog"
)

// Sentences renders the fix, water speed, wind and heading sentences for st,
// each with a checksum.
func Sentences(at time.Time, st State) [4]string {
	at = at.UTC()
	lat, ns := FormatLat(st.LatDeg)
	lon, ew := FormatLon(st.LonDeg)
	return [4]string{
		withChecksum(fmt.Sprintf("GNRMC,%s,A,%s,%s,%s,%s,%.2f,%.1f,%s,,,A",
			at.Format("150405.000"), lat, ns, lon, ew, st.SOGKnots, normDeg(st.COGDeg), at.Format("020106"))),
		withChecksum(fmt.Sprintf("IIVHW,%.1f,T,%.1f,M,%.2f,N,%.2f,K",
			normDeg(st.HeadingDeg), normDeg(st.HeadingDeg), st.STWKnots, st.STWKnots*1.852)),
		withChecksum(fmt.Sprintf("IIMWV,%.1f,R,%.2f,N,A", normDeg(st.AWADeg), st.AWSKnots)),
		withChecksum(fmt.Sprintf("IIHDG,%.1f,,,,", normDeg(st.HeadingDeg))),
	}
}

func withChecksum(body string) string {
	return "$" + body + "*" + gonmea.Checksum(body)
}

// FormatLat renders degrees as ddmm.mmmm plus N or S.
func FormatLat(deg float64) (string, string) {
	hemi := "N"
	if deg < 0 {
		hemi = "S"
	}
	d, m := degMin(deg)
	return fmt.Sprintf("%02d%07.4f", d, m), hemi
}

// FormatLon renders degrees as dddmm.mmmm plus E or W.
func FormatLon(deg float64) (string, string) {
	hemi := "E"
	if deg < 0 {
		hemi = "W"
	}
	d, m := degMin(deg)
	return fmt.Sprintf("%03d%07.4f", d, m), hemi
}

// degMin splits |deg| into whole degrees and minutes rounded to 4 places,
// carrying into the degrees when the minutes round up to 60.
func degMin(deg float64) (int, float64) {
	mins := math.Round(math.Abs(deg)*60*1e4) / 1e4
	d := int(mins / 60)
	return d, mins - float64(d)*60
}

// WriteLog writes one log line per tick from 0 through Duration(), cycling
// through the fix, water speed, wind and heading sentences, and returns how
// many lines were written. Merging keeps a single record per second, so a
// tick never carries more than one sentence.
func (s *Scenario) WriteLog(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for el := time.Duration(0); el <= s.duration; el += s.interval {
		at := s.start.Add(el)
		sentence := Sentences(at, s.StateAt(el, false))[n%4]
		if _, err := fmt.Fprintf(bw, "%d;%s;%s\n", at.UnixMilli(), rawlog.StatusNormal, sentence); err != nil {
			return n, err
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, err
	}
	return n, nil
}
