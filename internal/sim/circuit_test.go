package sim

import (
	"math"
	"testing"
	"time"
)

func TestCircuit_Position_Invariants(t *testing.T) {
	c := Circuit{
		CenterLatDeg: 45.0,
		CenterLonDeg: -122.0,
		RadiusNm:     1.0,
		Period:       60 * time.Second,
	}

	for el := time.Duration(0); el < c.Period; el += 7 * time.Second {
		lat, lon, hdg := c.Position(el)

		if math.IsNaN(lat) || math.IsInf(lat, 0) {
			t.Fatalf("lat invalid: %v", lat)
		}
		if math.IsNaN(lon) || math.IsInf(lon, 0) {
			t.Fatalf("lon invalid: %v", lon)
		}
		if hdg < 0 || hdg >= 360 {
			t.Fatalf("heading out of range: %v", hdg)
		}

		// Rough bound check in degrees (small-angle degree math).
		radiusDeg := c.RadiusNm / 60.0
		if math.Abs(lat-c.CenterLatDeg) > radiusDeg*1.01 {
			t.Fatalf("lat offset too large: got %f want <= %f", math.Abs(lat-c.CenterLatDeg), radiusDeg)
		}
		// Lon offset is scaled by cos(lat).
		maxLonDeg := radiusDeg / math.Cos(c.CenterLatDeg*math.Pi/180.0)
		if math.Abs(lon-c.CenterLonDeg) > maxLonDeg*1.01 {
			t.Fatalf("lon offset too large: got %f want <= %f", math.Abs(lon-c.CenterLonDeg), maxLonDeg)
		}
	}
}

func TestCircuit_StartsNorthHeadingEast(t *testing.T) {
	c := Circuit{CenterLatDeg: 10, CenterLonDeg: 20, RadiusNm: 0.6, Period: time.Minute}
	lat, lon, hdg := c.Position(0)
	if math.Abs(lat-10.01) > 1e-9 || math.Abs(lon-20) > 1e-9 {
		t.Fatalf("start position: got %v,%v want 10.01,20", lat, lon)
	}
	if hdg != 90 {
		t.Fatalf("start heading: got %v want 90", hdg)
	}
	_, _, hdg = c.Position(15 * time.Second)
	if math.Abs(hdg-180) > 1e-9 {
		t.Fatalf("quarter-lap heading: got %v want 180", hdg)
	}
}

func TestApparentWind(t *testing.T) {
	cases := []struct {
		name           string
		twa, tws, boat float64
		awa, aws       float64
	}{
		{"head to wind", 0, 10, 5, 0, 15},
		{"dead run", 180, 10, 4, 180, 6},
		{"beam reach at rest", 90, 10, 0, 90, 10},
		{"beam reach port", 270, 3, 4, 360 - 36.869897645844, 5},
	}
	for _, tc := range cases {
		awa, aws := ApparentWind(tc.twa, tc.tws, tc.boat)
		if math.Abs(awa-tc.awa) > 1e-6 || math.Abs(aws-tc.aws) > 1e-6 {
			t.Fatalf("%s: got awa=%v aws=%v want %v %v", tc.name, awa, aws, tc.awa, tc.aws)
		}
	}
}

func TestCircuit_StateAt_Deterministic(t *testing.T) {
	c := Circuit{CenterLatDeg: 1, CenterLonDeg: 2, Period: 120 * time.Second, WindFromDeg: 270}
	a := c.StateAt(17 * time.Second)
	b := c.StateAt(17 * time.Second)
	if a != b {
		t.Fatalf("expected deterministic result for same elapsed")
	}
	if a.SOGKnots != a.STWKnots || a.COGDeg != a.HeadingDeg {
		t.Fatalf("no-current circuit should report SOG=STW and COG=heading: %+v", a)
	}
	if a.STWKnots <= 0 || a.STWKnots > 6 {
		t.Fatalf("stw out of range: %v", a.STWKnots)
	}
}
