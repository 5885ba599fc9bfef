// Package sample holds the row types that flow between pipeline stages.
//
// Every instrument value is optional. A nil pointer means "not known for this
// row", which keeps the difference between a real zero reading and a missing
// reading visible to every stage.
package sample

import (
	"time"
)

// Channel identifies one numeric instrument channel.
type Channel int

const (
	Lat Channel = iota
	Lon
	SOG
	COG
	STW
	AWA
	AWS
	Heading

	NumChannels
)

var channelNames = [NumChannels]string{
	Lat:     "lat",
	Lon:     "lon",
	SOG:     "sog_knots",
	COG:     "cog_deg",
	STW:     "stw_knots",
	AWA:     "awa_deg",
	AWS:     "aws_knots",
	Heading: "heading_deg",
}

// String returns the column name used for the channel in tabular files.
func (c Channel) String() string {
	if c < 0 || c >= NumChannels {
		return "unknown"
	}
	return channelNames[c]
}

// Angular reports whether the channel is a compass angle in degrees.
func (c Channel) Angular() bool {
	return c == COG || c == AWA || c == Heading
}

// AllChannels lists channels in column order.
func AllChannels() []Channel {
	out := make([]Channel, 0, NumChannels)
	for c := Channel(0); c < NumChannels; c++ {
		out = append(out, c)
	}
	return out
}

// Values is one optional value per channel.
type Values [NumChannels]*float64

// Get returns the channel value and whether it is known.
func (v Values) Get(c Channel) (float64, bool) {
	if v[c] == nil {
		return 0, false
	}
	return *v[c], true
}

// Set stores a copy of x for channel c.
func (v *Values) Set(c Channel, x float64) {
	v[c] = F(x)
}

// Any reports whether at least one channel is known.
func (v Values) Any() bool {
	for _, p := range v {
		if p != nil {
			return true
		}
	}
	return false
}

// RawRecord is one decoded instrument sentence.
type RawRecord struct {
	Time   time.Time
	Values Values
	// AWAType is the wind reference flag of an apparent wind sentence ("R"
	// relative, "T" theoretical). Empty when the sentence carried no wind.
	AWAType string
}

// HasData reports whether the record carries anything beyond its timestamp.
func (r RawRecord) HasData() bool {
	return r.Values.Any() || r.AWAType != ""
}

// UnifiedSample is one row of the merged, gap-filled time series.
type UnifiedSample struct {
	Time   time.Time
	Values Values
}

// Tack is the side the wind comes over.
type Tack string

const (
	TackNone      Tack = ""
	TackStarboard Tack = "starboard"
	TackPort      Tack = "port"
)

// EnrichedSample is a UnifiedSample with derived wind features.
type EnrichedSample struct {
	UnifiedSample

	TWARaw *float64
	TWA    *float64
	Tack   Tack

	// TrackLat/TrackLon come from an external travel log, matched by time.
	TrackLat *float64
	TrackLon *float64
}

// F returns a pointer to a copy of v.
func F(v float64) *float64 {
	return &v
}
