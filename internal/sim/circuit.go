package sim

import (
	"fmt"
	"math"
	"time"
)

// Circuit sails the boat clockwise around a circle in a steady true wind, so
// one lap crosses every wind angle on both tacks.
type Circuit struct {
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
	WindFromDeg  float64       `yaml:"wind_from_deg"`
	WindKnots    float64       `yaml:"wind_knots"`
	// BoatKnots is the speed through water on a beam reach.
	BoatKnots float64 `yaml:"boat_knots"`
}

func (c Circuit) withDefaults() Circuit {
	if c.RadiusNm <= 0 {
		c.RadiusNm = 0.5
	}
	if c.Period <= 0 {
		c.Period = 10 * time.Minute
	}
	if c.WindKnots == 0 {
		c.WindKnots = 12
	}
	if c.BoatKnots == 0 {
		c.BoatKnots = 6
	}
	return c
}

func (c Circuit) validate() error {
	if c.CenterLatDeg < -89 || c.CenterLatDeg > 89 {
		return fmt.Errorf("circuit.center_lat_deg must be within [-89, 89]")
	}
	if c.CenterLonDeg < -180 || c.CenterLonDeg > 180 {
		return fmt.Errorf("circuit.center_lon_deg must be within [-180, 180]")
	}
	if c.WindKnots < 0 || c.BoatKnots < 0 {
		return fmt.Errorf("circuit speeds must be >= 0")
	}
	return nil
}

// Position returns the point on the circle and the heading along it.
func (c Circuit) Position(elapsed time.Duration) (latDeg, lonDeg, headingDeg float64) {
	c = c.withDefaults()

	// Convert NM to degrees latitude (~60 NM per degree).
	radiusDeg := c.RadiusNm / 60.0
	phase := float64(elapsed%c.Period) / float64(c.Period)

	// Start due north of the center heading east.
	//	  east  = sin(2πt)
	//	  north = cos(2πt)
	w := 2 * math.Pi * phase
	latDeg = c.CenterLatDeg + radiusDeg*math.Cos(w)
	lonDeg = c.CenterLonDeg + (radiusDeg*math.Sin(w))/math.Cos(c.CenterLatDeg*math.Pi/180.0)
	headingDeg = normDeg(w*180/math.Pi + 90)
	return latDeg, lonDeg, headingDeg
}

// StateAt returns the instrument readings at elapsed. There is no current, so
// SOG equals STW and COG equals heading.
func (c Circuit) StateAt(elapsed time.Duration) State {
	c = c.withDefaults()
	lat, lon, hdg := c.Position(elapsed)

	twa := normDeg(c.WindFromDeg - hdg)
	stw := c.BoatKnots * speedFactor(twa)
	awa, aws := ApparentWind(twa, c.WindKnots, stw)

	return State{
		LatDeg:     lat,
		LonDeg:     lon,
		SOGKnots:   stw,
		COGDeg:     hdg,
		STWKnots:   stw,
		AWADeg:     awa,
		AWSKnots:   aws,
		HeadingDeg: hdg,
	}
}

// speedFactor is a crude polar: slow head to wind, fastest on a beam reach.
func speedFactor(twaDeg float64) float64 {
	off := twaDeg
	if off > 180 {
		off = 360 - off
	}
	return 0.3 + 0.7*math.Sin(off*math.Pi/180)
}

// ApparentWind combines a true wind at twaDeg off the bow with the headwind
// from the boat's own speed. Angles are clockwise from the bow in [0, 360).
func ApparentWind(twaDeg, windKt, boatKt float64) (awaDeg, awsKt float64) {
	rad := twaDeg * math.Pi / 180
	fwd := windKt*math.Cos(rad) + boatKt
	side := windKt * math.Sin(rad)
	awsKt = math.Hypot(fwd, side)
	if awsKt == 0 {
		return 0, 0
	}
	return normDeg(math.Atan2(side, fwd) * 180 / math.Pi), awsKt
}
