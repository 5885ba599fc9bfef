// Package track loads travel logs (GPX or FIT) as time-ordered position fixes.
package track

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tormoder/fit"
)

// Fix is one timestamped position from a travel log.
type Fix struct {
	Time time.Time
	Lat  float64
	Lon  float64
}

// Gpx is the subset of a GPX 1.1 document we read.
type Gpx struct {
	XMLName xml.Name `xml:"gpx"`
	Creator string   `xml:"creator,attr"`
	Trks    []Trk    `xml:"trk"`
}

// Trk is a single track with its segments.
type Trk struct {
	Name    string   `xml:"name"`
	Trksegs []Trkseg `xml:"trkseg"`
}

type Trkseg struct {
	Trkpts []Trkpt `xml:"trkpt"`
}

// Trkpt is a track point. Time is a string so that points without a
// parseable time can be dropped instead of failing the whole file.
type Trkpt struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

// ReadGPX reads all timed track points, sorted by time.
func ReadGPX(r io.Reader) ([]Fix, error) {
	var gpx Gpx
	if err := xml.NewDecoder(r).Decode(&gpx); err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	var out []Fix
	for _, trk := range gpx.Trks {
		for _, seg := range trk.Trksegs {
			for _, pt := range seg.Trkpts {
				ts := strings.TrimSpace(pt.Time)
				if ts == "" {
					continue
				}
				t, err := time.Parse(time.RFC3339Nano, ts)
				if err != nil {
					continue
				}
				out = append(out, Fix{Time: t.UTC(), Lat: pt.Lat, Lon: pt.Lon})
			}
		}
	}
	sortFixes(out)
	return out, nil
}

// ReadFIT reads the position records of a FIT activity file, sorted by time.
func ReadFIT(r io.Reader) ([]Fix, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode fit: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("fit activity: %w", err)
	}

	out := make([]Fix, 0, len(activity.Records))
	for _, rec := range activity.Records {
		if rec == nil || rec.Timestamp.IsZero() {
			continue
		}
		if rec.PositionLat.Invalid() || rec.PositionLong.Invalid() {
			continue
		}
		out = append(out, Fix{
			Time: rec.Timestamp.UTC(),
			Lat:  rec.PositionLat.Degrees(),
			Lon:  rec.PositionLong.Degrees(),
		})
	}
	sortFixes(out)
	return out, nil
}

// LoadFile picks the reader by extension: .fit is FIT, anything else GPX.
func LoadFile(path string) ([]Fix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	var fixes []Fix
	if strings.EqualFold(filepath.Ext(path), ".fit") {
		fixes, err = ReadFIT(f)
	} else {
		fixes, err = ReadGPX(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fixes, nil
}

func sortFixes(fs []Fix) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Time.Before(fs[j].Time) })
}

// Nearest returns the fix closest in time to t, provided it is within tol.
// An exact tie between an earlier and a later fix resolves to the earlier one.
// fixes must be sorted by time.
func Nearest(fixes []Fix, t time.Time, tol time.Duration) (Fix, bool) {
	if len(fixes) == 0 {
		return Fix{}, false
	}
	idx := sort.Search(len(fixes), func(i int) bool { return !fixes[i].Time.Before(t) })

	best := -1
	var bestDist time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(fixes) {
			continue
		}
		d := fixes[i].Time.Sub(t)
		if d < 0 {
			d = -d
		}
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 || bestDist > tol {
		return Fix{}, false
	}
	return fixes[best], true
}
