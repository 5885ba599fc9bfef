// Package polar bins the performance dataset by true wind angle (and
// optionally tack and apparent wind speed) and summarizes boat speed through
// the water for each bin.
package polar

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"sailperf/internal/sample"
)

// DefaultTWABinWidth is the TWA bin width in degrees.
const DefaultTWABinWidth = 5.0

// AWSBin is the half-open wind speed interval (Lower, Upper] in knots.
type AWSBin struct {
	Lower int
	Upper int
}

// Label renders the bin as "lower-upper".
func (b AWSBin) Label() string {
	return fmt.Sprintf("%d-%d", b.Lower, b.Upper)
}

// Contains reports whether Lower < v <= Upper.
func (b AWSBin) Contains(v float64) bool {
	return v > float64(b.Lower) && v <= float64(b.Upper)
}

// ParseAWSBin parses a label produced by Label.
func ParseAWSBin(s string) (AWSBin, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return AWSBin{}, fmt.Errorf("aws bin %q: missing '-'", s)
	}
	l, err := strconv.Atoi(lo)
	if err != nil {
		return AWSBin{}, fmt.Errorf("aws bin %q: %w", s, err)
	}
	u, err := strconv.Atoi(hi)
	if err != nil {
		return AWSBin{}, fmt.Errorf("aws bin %q: %w", s, err)
	}
	if u <= l {
		return AWSBin{}, fmt.Errorf("aws bin %q: upper must exceed lower", s)
	}
	return AWSBin{Lower: l, Upper: u}, nil
}

// AWSBins returns consecutive bins of the given width starting at 0 and
// covering maxAWS. No bins exist when maxAWS <= 0 or width <= 0.
func AWSBins(maxAWS float64, width int) []AWSBin {
	if width <= 0 || !(maxAWS > 0) {
		return nil
	}
	n := int(math.Ceil(maxAWS / float64(width)))
	out := make([]AWSBin, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, AWSBin{Lower: i * width, Upper: (i + 1) * width})
	}
	return out
}

// TWABin returns round(twa/width)*width, rounding halves to even.
func TWABin(twa, width float64) float64 {
	return math.RoundToEven(twa/width) * width
}

// Key identifies one group. Tack is empty and AWS nil when not grouped on.
type Key struct {
	TWABin float64
	Tack   sample.Tack
	AWS    *AWSBin
}

// Stat summarizes STW for one group. Min/Max/Mean are nil when none of the
// group's rows carried a speed through water.
type Stat struct {
	Key
	Min   *float64
	Max   *float64
	Mean  *float64
	Count int
}

type Options struct {
	TWABinWidth float64
	ByTack      bool
	// AWSBinWidth in knots; 0 disables wind speed grouping.
	AWSBinWidth int
}

func (o Options) width() float64 {
	if o.TWABinWidth <= 0 {
		return DefaultTWABinWidth
	}
	return o.TWABinWidth
}

type groupKey struct {
	twa  float64
	tack sample.Tack
	aws  int
}

type acc struct {
	min, max, sum float64
	n             int
}

func (a *acc) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

// Aggregate groups rows and summarizes STW per observed group. Rows without
// a TWA, or without a tack / binnable AWS when those groupings are on, are
// left out. Output is sorted by TWA bin, tack, then AWS bin.
func Aggregate(rows []sample.EnrichedSample, opts Options) []Stat {
	width := opts.width()

	var bins []AWSBin
	if opts.AWSBinWidth > 0 {
		maxAWS := math.Inf(-1)
		for _, r := range rows {
			if v, ok := r.Values.Get(sample.AWS); ok && v > maxAWS {
				maxAWS = v
			}
		}
		bins = AWSBins(maxAWS, opts.AWSBinWidth)
	}

	groups := map[groupKey]*acc{}
	for _, r := range rows {
		if r.TWA == nil {
			continue
		}
		k := groupKey{twa: TWABin(*r.TWA, width), aws: -1}
		if opts.ByTack {
			if r.Tack == sample.TackNone {
				continue
			}
			k.tack = r.Tack
		}
		if opts.AWSBinWidth > 0 {
			aws, ok := r.Values.Get(sample.AWS)
			if !ok {
				continue
			}
			idx := binIndex(bins, aws)
			if idx < 0 {
				continue
			}
			k.aws = idx
		}

		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		if stw, ok := r.Values.Get(sample.STW); ok {
			a.add(stw)
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].twa != keys[j].twa {
			return keys[i].twa < keys[j].twa
		}
		if keys[i].tack != keys[j].tack {
			return keys[i].tack < keys[j].tack
		}
		return keys[i].aws < keys[j].aws
	})

	out := make([]Stat, 0, len(keys))
	for _, k := range keys {
		a := groups[k]
		st := Stat{Key: Key{TWABin: k.twa, Tack: k.tack}, Count: a.n}
		if k.aws >= 0 {
			b := bins[k.aws]
			st.AWS = &b
		}
		if a.n > 0 {
			st.Min = sample.F(a.min)
			st.Max = sample.F(a.max)
			st.Mean = sample.F(a.sum / float64(a.n))
		}
		out = append(out, st)
	}
	return out
}

func binIndex(bins []AWSBin, v float64) int {
	if len(bins) == 0 {
		return -1
	}
	w := float64(bins[0].Upper - bins[0].Lower)
	i := int(math.Ceil(v/w)) - 1
	if i < 0 || i >= len(bins) || !bins[i].Contains(v) {
		return -1
	}
	return i
}
