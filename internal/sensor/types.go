// Package sensor defines the records that flow between the capture
// collaborators, the processing workers and the fusion stage.
package sensor

import (
	"strings"
	"time"
)

// Zone is one of the three spatial sectors reported by the depth sensor and
// driven by the actuators.
type Zone int

const (
	Left Zone = iota
	Center
	Right
)

// NumZones is the number of actuator zones.
const NumZones = 3

// Zones lists every zone in left-to-right order.
var Zones = [NumZones]Zone{Left, Center, Right}

func (z Zone) String() string {
	switch z {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// ZoneSet is a bit set of zones, used for the obstacle flags of a reading.
type ZoneSet uint8

// NewZoneSet returns a set holding the given zones.
func NewZoneSet(zones ...Zone) ZoneSet {
	var s ZoneSet
	for _, z := range zones {
		s = s.With(z)
	}
	return s
}

// With returns a copy of s that also contains z.
func (s ZoneSet) With(z Zone) ZoneSet {
	if z < Left || z > Right {
		return s
	}
	return s | 1<<uint(z)
}

// Has reports whether z is in the set.
func (s ZoneSet) Has(z Zone) bool {
	if z < Left || z > Right {
		return false
	}
	return s&(1<<uint(z)) != 0
}

// Count returns the number of zones in the set.
func (s ZoneSet) Count() int {
	n := 0
	for _, z := range Zones {
		if s.Has(z) {
			n++
		}
	}
	return n
}

// List returns the zones in left-to-right order.
func (s ZoneSet) List() []Zone {
	var out []Zone
	for _, z := range Zones {
		if s.Has(z) {
			out = append(out, z)
		}
	}
	return out
}

// Describe renders the set the way obstacle descriptions are reported:
// "none", "left", "left and center".
func (s ZoneSet) Describe() string {
	zones := s.List()
	if len(zones) == 0 {
		return "none"
	}
	names := make([]string, len(zones))
	for i, z := range zones {
		names[i] = z.String()
	}
	return strings.Join(names, " and ")
}

// ZoneDistances holds one distance in meters per zone, indexed by Zone.
type ZoneDistances [NumZones]float64

// ZoneIntensities holds one actuator intensity in [0,100] per zone.
type ZoneIntensities [NumZones]int

// RawAudioSample is one fixed-length block of microphone amplitudes.
type RawAudioSample struct {
	Samples    []float64
	CapturedAt time.Time
}

// RawVideoReading is the per-frame summary delivered by the depth camera.
// Distances are already smoothed over the camera's short history window.
type RawVideoReading struct {
	Distances    ZoneDistances
	Obstacles    ZoneSet
	Mode         string
	ObstacleInfo string
	AvoidZone    Zone
	FrameNumber  uint64
	Timestamp    time.Time
}

// LoudnessClass is the four-level classification of an audio block.
type LoudnessClass int

const (
	Calm LoudnessClass = iota
	SomeNoise
	BeCareful
	Danger
)

func (c LoudnessClass) String() string {
	switch c {
	case Calm:
		return "calm"
	case SomeNoise:
		return "some noise"
	case BeCareful:
		return "be careful"
	case Danger:
		return "danger"
	default:
		return "unknown"
	}
}

// ProcessedAudio is the feature record produced by the audio worker.
type ProcessedAudio struct {
	RMS         float64
	DB          float64
	Loudness    LoudnessClass
	DominantBin int
	Timestamp   time.Time
}

// DangerLevel grades a video reading from 0 (safe) to 3 (critical).
type DangerLevel int

const (
	Safe DangerLevel = iota
	Medium
	High
	Critical
)

// Risk returns the risk classification string for the level.
func (d DangerLevel) Risk() string {
	switch d {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "safe"
	}
}

// ProcessedVideo is the feature record produced by the video worker.
type ProcessedVideo struct {
	Mode          string
	ObstacleInfo  string
	AvoidZone     Zone
	DangerLevel   DangerLevel
	Risk          string
	Distances     ZoneDistances
	Obstacles     ZoneSet
	ObstacleCount int
	FrameNumber   uint64
	Timestamp     time.Time
}
