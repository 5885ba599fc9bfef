package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"sailperf/internal/sample"
)

// DefaultStart is the first timestamp of a scenario that does not set one.
var DefaultStart = time.Date(2025, 7, 26, 13, 0, 0, 0, time.UTC)

// ScenarioScript is a deterministic, script-driven instrument log description.
//
// Times are Go duration strings ("0s", "250ms", "10s"). If Duration is zero
// it is derived from the latest keyframe. Exactly one of keyframes or circuit
// must be given.
//
// YAML schema (v1):
//
//	version: 1
//	start: "2025-07-26 13:00:00"
//	interval: 1s
//	duration: 30s
//	keyframes:
//	  - t: 0s
//	    lat_deg: 48.1173
//	    lon_deg: 11.5167
//	    sog_knots: 5.5
//	    cog_deg: 350
//	    stw_knots: 5.8
//	    awa_deg: 45
//	    aws_knots: 12
//	    heading_deg: 350
//
// or, for a boat sailing a circle through every wind angle:
//
//	circuit:
//	  center_lat_deg: 48.1
//	  center_lon_deg: 11.5
//	  radius_nm: 0.3
//	  period: 10m
//	  wind_from_deg: 270
//	  wind_knots: 12
//	  boat_knots: 6
type ScenarioScript struct {
	Version   int           `yaml:"version"`
	Start     string        `yaml:"start"`
	Interval  time.Duration `yaml:"interval"`
	Duration  time.Duration `yaml:"duration"`
	Keyframes []Keyframe    `yaml:"keyframes"`
	Circuit   *Circuit      `yaml:"circuit"`
}

// Keyframe is a time-stamped instrument state.
type Keyframe struct {
	T          time.Duration `yaml:"t"`
	LatDeg     float64       `yaml:"lat_deg"`
	LonDeg     float64       `yaml:"lon_deg"`
	SOGKnots   float64       `yaml:"sog_knots"`
	COGDeg     float64       `yaml:"cog_deg"`
	STWKnots   float64       `yaml:"stw_knots"`
	AWADeg     float64       `yaml:"awa_deg"`
	AWSKnots   float64       `yaml:"aws_knots"`
	HeadingDeg float64       `yaml:"heading_deg"`
}

// State is what the instruments report at one instant.
type State struct {
	LatDeg     float64
	LonDeg     float64
	SOGKnots   float64
	COGDeg     float64
	STWKnots   float64
	AWADeg     float64
	AWSKnots   float64
	HeadingDeg float64
}

// Scenario is the validated, runtime representation.
type Scenario struct {
	script   ScenarioScript
	start    time.Time
	interval time.Duration
	duration time.Duration
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}

	switch {
	case script.Circuit != nil && len(script.Keyframes) > 0:
		return nil, fmt.Errorf("keyframes and circuit cannot both be set")
	case script.Circuit != nil:
		c := script.Circuit.withDefaults()
		if err := c.validate(); err != nil {
			return nil, err
		}
		script.Circuit = &c
	case len(script.Keyframes) == 0:
		return nil, fmt.Errorf("keyframes is required")
	default:
		if err := validateNonDecreasing(script.Keyframes); err != nil {
			return nil, err
		}
	}

	start := DefaultStart
	if script.Start != "" {
		t, err := sample.ParseTime(script.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		start = t
	}

	interval := script.Interval
	if interval == 0 {
		interval = time.Second
	}
	if interval < 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}

	dur := script.Duration
	if dur <= 0 && script.Circuit != nil {
		dur = script.Circuit.Period
	}
	if dur <= 0 {
		dur = maxKeyframeTime(script.Keyframes)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}

	return &Scenario{script: script, start: start, interval: interval, duration: dur}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

func (s *Scenario) Start() time.Time        { return s.start }
func (s *Scenario) Interval() time.Duration { return s.interval }

// StateAt computes the instrument state at elapsed.
//
// If loop is true, elapsed wraps around Duration(). Otherwise elapsed is clamped
// to [0, Duration()].
func (s *Scenario) StateAt(elapsed time.Duration, loop bool) State {
	if s == nil {
		return State{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}
	if s.script.Circuit != nil {
		return s.script.Circuit.StateAt(elapsed)
	}
	return sampleKeyframes(s.script.Keyframes, elapsed)
}

func validateNonDecreasing(kfs []Keyframe) error {
	for i := range kfs {
		if kfs[i].T < 0 {
			return fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
	}
	return nil
}

func maxKeyframeTime(kfs []Keyframe) time.Duration {
	latest := time.Duration(0)
	for _, kf := range kfs {
		if kf.T > latest {
			latest = kf.T
		}
	}
	return latest
}

func sampleKeyframes(kfs []Keyframe, t time.Duration) State {
	kf0, kf1, alpha := selectSegment(kfs, t)
	return State{
		LatDeg:     lerp(kf0.LatDeg, kf1.LatDeg, alpha),
		LonDeg:     lerp(kf0.LonDeg, kf1.LonDeg, alpha),
		SOGKnots:   lerp(kf0.SOGKnots, kf1.SOGKnots, alpha),
		COGDeg:     lerpAngleDeg(kf0.COGDeg, kf1.COGDeg, alpha),
		STWKnots:   lerp(kf0.STWKnots, kf1.STWKnots, alpha),
		AWADeg:     lerpAngleDeg(kf0.AWADeg, kf1.AWADeg, alpha),
		AWSKnots:   lerp(kf0.AWSKnots, kf1.AWSKnots, alpha),
		HeadingDeg: lerpAngleDeg(kf0.HeadingDeg, kf1.HeadingDeg, alpha),
	}
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
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

// lerpAngleDeg interpolates along the shorter arc.
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
