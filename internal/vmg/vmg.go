// Package vmg picks the best upwind and downwind angles per wind speed bin
// from the polar table.
package vmg

import (
	"math"
	"sort"

	"sailperf/internal/polar"
)

// MinSupport is the fewest polar rows a wind speed bin needs to be optimized.
const MinSupport = 3

type Direction string

const (
	Upwind   Direction = "upwind"
	Downwind Direction = "downwind"
)

// Optimum is the best polar row on one side of the wind.
type Optimum struct {
	Angle float64
	Speed float64
	VMG   float64
}

// Result is the optimization for one AWS bin. Upwind or Downwind is nil when
// the bin has no rows on that side.
type Result struct {
	AWSBin     polar.AWSBin
	Upwind     *Optimum
	Downwind   *Optimum
	DataPoints int
}

// VMG projects speed at angle onto the wind axis. Angles up to 90 are
// upwind; wider angles are measured from dead downwind.
func VMG(speed, angle float64) (float64, Direction) {
	if angle <= 90 {
		return speed * math.Cos(angle*math.Pi/180), Upwind
	}
	return speed * math.Cos((180-angle)*math.Pi/180), Downwind
}

// Optimize uses each polar row's maximum speed as the representative speed.
// Rows without an AWS bin or a maximum are ignored and bins with fewer than
// MinSupport rows are skipped. Results are ordered by bin lower bound.
func Optimize(stats []polar.Stat) []Result {
	groups := map[polar.AWSBin][]polar.Stat{}
	var order []polar.AWSBin
	for _, s := range stats {
		if s.AWS == nil || s.Max == nil {
			continue
		}
		b := *s.AWS
		if _, ok := groups[b]; !ok {
			order = append(order, b)
		}
		groups[b] = append(groups[b], s)
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Lower != order[j].Lower {
			return order[i].Lower < order[j].Lower
		}
		return order[i].Upper < order[j].Upper
	})

	var out []Result
	for _, b := range order {
		rows := groups[b]
		if len(rows) < MinSupport {
			continue
		}
		res := Result{AWSBin: b, DataPoints: len(rows)}
		for _, s := range rows {
			v, dir := VMG(*s.Max, s.TWABin)
			opt := &Optimum{Angle: s.TWABin, Speed: *s.Max, VMG: v}
			switch dir {
			case Upwind:
				if res.Upwind == nil || v > res.Upwind.VMG {
					res.Upwind = opt
				}
			case Downwind:
				if res.Downwind == nil || v > res.Downwind.VMG {
					res.Downwind = opt
				}
			}
		}
		out = append(out, res)
	}
	return out
}
