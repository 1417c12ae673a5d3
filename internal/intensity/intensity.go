// Package intensity maps raw sensor readings onto actuator intensities in
// the range [0,100].
package intensity

import (
	"math"

	"github.com/banshee-data/wayfinder/internal/sensor"
)

const (
	Min = 0
	Max = 100

	// ObstacleBoost is added to a zone flagged as an obstacle before clamping.
	ObstacleBoost = 20

	// DefaultDistance replaces a missing or non-finite distance and maps to
	// "nothing in range".
	DefaultDistance = 5.0
)

// Distance breakpoints in meters.
const (
	nearDistance = 1.2
	midDistance  = 2.5
	farDistance  = 4.0
)

// Clamp limits v to [Min, Max].
func Clamp(v int) int {
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// FromAudio maps a dB level onto an intensity using four linear bands:
//
//	[-60,-45) -> [0,20)
//	[-45,-30) -> [20,50)
//	[-30,-15) -> [50,80)
//	[-15,+inf) -> [80,100]
//
// The result is monotonic non-decreasing in db. NaN maps to 0.
func FromAudio(db float64) int {
	var v float64
	switch {
	case math.IsNaN(db) || db <= -60:
		return Min
	case db < -45:
		v = (db + 60) * 20 / 15
	case db < -30:
		v = 20 + (db+45)*30/15
	case db < -15:
		v = 50 + (db+30)*30/15
	case db >= -5:
		// also keeps +Inf and huge values out of the int conversion
		return Max
	default:
		v = 80 + (db+15)*20/10
	}
	return Clamp(int(v))
}

// FromVision maps the distance to the nearest object in a zone onto an
// intensity: 100 at 1.2 m or closer, falling linearly to ~60 at 2.5 m and ~20
// at 4 m, then to 0 by 5 m. A zone flagged as an obstacle gets ObstacleBoost
// on top. Non-finite distances are treated as DefaultDistance.
func FromVision(distance float64, obstacle bool) int {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		distance = DefaultDistance
	}

	var base int
	switch {
	case distance <= nearDistance:
		base = Max
	case distance <= midDistance:
		base = int(100 - (distance-nearDistance)*40/(midDistance-nearDistance))
	case distance <= farDistance:
		base = int(60 - (distance-midDistance)*40/(farDistance-midDistance))
	case distance >= farDistance+1:
		base = 0
	default:
		base = int(20 - (distance-farDistance)*20)
	}
	if base < 0 {
		base = 0
	}

	if obstacle {
		base += ObstacleBoost
	}
	return Clamp(base)
}

// FromVideo maps every zone of a reading.
func FromVideo(distances sensor.ZoneDistances, obstacles sensor.ZoneSet) sensor.ZoneIntensities {
	var out sensor.ZoneIntensities
	for _, z := range sensor.Zones {
		out[z] = FromVision(distances[z], obstacles.Has(z))
	}
	return out
}
