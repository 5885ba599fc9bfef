// Package merge aligns independently timestamped instrument records onto one
// per-second time axis and fills interior gaps by time-weighted interpolation.
package merge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"sailperf/internal/sample"
)

// AngleMode selects how compass channels (COG, AWA, heading) are interpolated.
type AngleMode string

const (
	// AngleLinear interpolates angles like any other number.
	AngleLinear AngleMode = "linear"
	// AngleShortest interpolates along the shorter arc, so 350 -> 10 passes 0.
	AngleShortest AngleMode = "shortest"
)

// ParseAngleMode accepts "", "linear" or "shortest".
func ParseAngleMode(s string) (AngleMode, error) {
	switch AngleMode(s) {
	case "", AngleLinear:
		return AngleLinear, nil
	case AngleShortest:
		return AngleShortest, nil
	}
	return "", fmt.Errorf("unknown angle interpolation %q", s)
}

type Options struct {
	Angles AngleMode
}

type Result struct {
	Samples []sample.UnifiedSample
	// Duplicates is how many records lost to another record in the same second.
	Duplicates int
	// Filled counts interpolated values per channel.
	Filled [sample.NumChannels]int
}

type keyed struct {
	rounded time.Time
	rec     sample.RawRecord
}

// Merge rounds, deduplicates and gap-fills records. Input order does not
// matter. Of several records rounding to the same second, the one with the
// latest original timestamp is kept and the rest are dropped.
func Merge(records []sample.RawRecord, opts Options) Result {
	if len(records) == 0 {
		return Result{Samples: []sample.UnifiedSample{}}
	}

	ks := make([]keyed, 0, len(records))
	for _, r := range records {
		ks = append(ks, keyed{rounded: sample.RoundSecond(r.Time), rec: r})
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if !ks[i].rounded.Equal(ks[j].rounded) {
			return ks[i].rounded.Before(ks[j].rounded)
		}
		return ks[i].rec.Time.Before(ks[j].rec.Time)
	})

	var res Result
	rows := make([]sample.UnifiedSample, 0, len(ks))
	for i, k := range ks {
		if i+1 < len(ks) && ks[i+1].rounded.Equal(k.rounded) {
			res.Duplicates++
			continue
		}
		rows = append(rows, sample.UnifiedSample{Time: k.rounded, Values: k.rec.Values})
	}

	for _, c := range sample.AllChannels() {
		angular := opts.Angles == AngleShortest && c.Angular()
		res.Filled[c] = fillChannel(rows, c, angular)
	}
	res.Samples = rows
	return res
}

// fillChannel interpolates the nil values of channel c that sit between two
// known values. Leading and trailing nils are left alone.
func fillChannel(rows []sample.UnifiedSample, c sample.Channel, angular bool) int {
	filled := 0
	prev := -1
	for i := range rows {
		if rows[i].Values[c] == nil {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			t0, v0 := rows[prev].Time, *rows[prev].Values[c]
			t1, v1 := rows[i].Time, *rows[i].Values[c]
			span := float64(t1.Sub(t0))
			for j := prev + 1; j < i; j++ {
				alpha := float64(rows[j].Time.Sub(t0)) / span
				var v float64
				if angular {
					v = lerpAngleDeg(v0, v1, alpha)
				} else {
					v = lerp(v0, v1, alpha)
				}
				rows[j].Values[c] = sample.F(v)
				filled++
			}
		}
		prev = i
	}
	return filled
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func normDeg(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	// A tiny negative x rounds up to exactly 360 above.
	if x >= 360 {
		x = 0
	}
	return x
}

func lerpAngleDeg(a0, a1, t float64) float64 {
	a0 = normDeg(a0)
	a1 = normDeg(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return normDeg(a0 + delta*t)
}
