// Package derive turns the merged time series into the performance dataset:
// true wind angle, folded angle and tack per row, optional removal of engine
// periods, race-window trimming and travel-log position matching.
package derive

import (
	"math"
	"time"

	"sailperf/internal/sample"
	"sailperf/internal/track"
)

// DefaultTrackTolerance is the largest time offset for a track position match.
const DefaultTrackTolerance = 2 * time.Second

// Window is a closed time interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether Start <= t <= End.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// DefaultEngineWindows are the periods the engine ran during the logged race
// day. They are dropped when engine exclusion is switched on and no other
// list is configured.
var DefaultEngineWindows = []Window{
	{
		Start: time.Date(2025, 7, 26, 12, 37, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 26, 12, 56, 0, 0, time.UTC),
	},
	{
		Start: time.Date(2025, 7, 26, 15, 17, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 26, 15, 23, 0, 0, time.UTC),
	},
}

// TWARaw is (awa + heading) mod 360, in [0, 360).
func TWARaw(awa, heading float64) float64 {
	x := math.Mod(awa+heading, 360)
	if x < 0 {
		x += 360
	}
	return x
}

// Fold maps a 0..360 angle onto 0..180 off the bow.
func Fold(twa float64) float64 {
	if twa <= 180 {
		return twa
	}
	return 360 - twa
}

// TackFor returns starboard for an apparent wind angle up to 180, else port.
func TackFor(awa float64) sample.Tack {
	if awa <= 180 {
		return sample.TackStarboard
	}
	return sample.TackPort
}

type Options struct {
	// Exclude drops rows inside any of these windows.
	Exclude []Window
	// RaceStart and RaceEnd trim the series when both are set.
	RaceStart time.Time
	RaceEnd   time.Time
	// Track, when non-empty, supplies TrackLat/TrackLon by nearest time.
	Track          []track.Fix
	TrackTolerance time.Duration
}

// TrimEnabled reports whether both race bounds are set.
func (o Options) TrimEnabled() bool {
	return !o.RaceStart.IsZero() && !o.RaceEnd.IsZero()
}

type Result struct {
	Samples []sample.EnrichedSample
	// Excluded and Trimmed count rows removed by each filter.
	Excluded int
	Trimmed  int
	// TrackMatched counts rows that received a track position.
	TrackMatched int
}

// Enrich computes the wind features of a single row.
func Enrich(u sample.UnifiedSample) sample.EnrichedSample {
	e := sample.EnrichedSample{UnifiedSample: u}
	awa, awaOK := u.Values.Get(sample.AWA)
	hdg, hdgOK := u.Values.Get(sample.Heading)
	if awaOK && hdgOK {
		raw := TWARaw(awa, hdg)
		e.TWARaw = sample.F(raw)
		e.TWA = sample.F(Fold(raw))
	}
	if awaOK {
		e.Tack = TackFor(awa)
	}
	return e
}

// Derive enriches every row, then applies exclusion, trimming and the track
// match in that order.
func Derive(series []sample.UnifiedSample, opts Options) Result {
	var res Result
	out := make([]sample.EnrichedSample, 0, len(series))
	for _, u := range series {
		out = append(out, Enrich(u))
	}

	if len(opts.Exclude) > 0 {
		kept := out[:0]
		for _, e := range out {
			if inAny(opts.Exclude, e.Time) {
				res.Excluded++
				continue
			}
			kept = append(kept, e)
		}
		out = kept
	}

	if opts.TrimEnabled() {
		race := Window{Start: opts.RaceStart, End: opts.RaceEnd}
		kept := out[:0]
		for _, e := range out {
			if !race.Contains(e.Time) {
				res.Trimmed++
				continue
			}
			kept = append(kept, e)
		}
		out = kept
	}

	if len(opts.Track) > 0 {
		tol := opts.TrackTolerance
		if tol <= 0 {
			tol = DefaultTrackTolerance
		}
		for i := range out {
			fix, ok := track.Nearest(opts.Track, out[i].Time, tol)
			if !ok {
				continue
			}
			out[i].TrackLat = sample.F(fix.Lat)
			out[i].TrackLon = sample.F(fix.Lon)
			res.TrackMatched++
		}
	}

	res.Samples = out
	return res
}

func inAny(ws []Window, t time.Time) bool {
	for _, w := range ws {
		if w.Contains(t) {
			return true
		}
	}
	return false
}
