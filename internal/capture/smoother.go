package capture

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/wayfinder/internal/sensor"
)

const (
	// DefaultSmoothWindow is the number of frames in the running median.
	DefaultSmoothWindow = 5

	// AlertDistance and AttentionDistance are in meters, measured on the
	// center zone.
	AlertDistance     = 1.0
	AttentionDistance = 2.0
)

// Mode labels reported with each reading.
const (
	ModeAlert     = "alert"
	ModeAttention = "attention"
	ModeCalm      = "calm"
)

// Region of interest inside the depth image, as fractions of its size.
const (
	roiTop     = 0.10
	roiBottom  = 0.95
	roiMarginX = 0.10
)

// ZoneSmoother keeps a short history of raw per-zone distances and derives
// the smoothed reading the depth camera reports.
type ZoneSmoother struct {
	window  int
	history [sensor.NumZones][]float64
	next    int
	filled  int
}

// NewZoneSmoother creates a smoother over the last window frames.
func NewZoneSmoother(window int) *ZoneSmoother {
	if window < 1 {
		window = DefaultSmoothWindow
	}
	s := &ZoneSmoother{window: window}
	for i := range s.history {
		s.history[i] = make([]float64, window)
	}
	return s
}

// Observe records one frame of raw distances and returns the smoothed
// reading for it.
func (s *ZoneSmoother) Observe(raw sensor.ZoneDistances, frame uint64, at time.Time) sensor.RawVideoReading {
	for _, z := range sensor.Zones {
		s.history[z][s.next] = raw[z]
	}
	s.next = (s.next + 1) % s.window
	if s.filled < s.window {
		s.filled++
	}

	var smoothed sensor.ZoneDistances
	var obstacles sensor.ZoneSet
	for _, z := range sensor.Zones {
		smoothed[z] = nanMedian(s.history[z][:s.filled])
		if smoothed[z] <= AlertDistance {
			obstacles = obstacles.With(z)
		}
	}

	return sensor.RawVideoReading{
		Distances:    smoothed,
		Obstacles:    obstacles,
		Mode:         DecideMode(smoothed[sensor.Center]),
		ObstacleInfo: obstacles.Describe(),
		AvoidZone:    AvoidZone(smoothed),
		FrameNumber:  frame,
		Timestamp:    at,
	}
}

// Reset clears the history.
func (s *ZoneSmoother) Reset() {
	s.next, s.filled = 0, 0
}

// DecideMode labels the distance straight ahead.
func DecideMode(center float64) string {
	switch {
	case math.IsNaN(center):
		return ModeCalm
	case center < AlertDistance:
		return ModeAlert
	case center <= AttentionDistance:
		return ModeAttention
	default:
		return ModeCalm
	}
}

// AvoidZone returns the zone with the most free space. Unknown distances
// count as blocked and ties go to the leftmost zone.
func AvoidZone(d sensor.ZoneDistances) sensor.Zone {
	best, bestDist := sensor.Left, -1.0
	for _, z := range sensor.Zones {
		v := d[z]
		if math.IsNaN(v) {
			v = -1
		}
		if v > bestDist {
			best, bestDist = z, v
		}
	}
	return best
}

// ZoneMedians splits a depth image into the left, center and right thirds
// of its region of interest and returns the median valid depth of each in
// meters. Pixels are raw sensor units, scale converts them to meters and a
// zero pixel is invalid.
func ZoneMedians(depth []uint16, width, height int, scale float64) sensor.ZoneDistances {
	out := sensor.ZoneDistances{math.NaN(), math.NaN(), math.NaN()}
	if width <= 0 || height <= 0 || len(depth) < width*height {
		return out
	}
	y1, y2 := int(roiTop*float64(height)), int(roiBottom*float64(height))
	x1, x2 := int(roiMarginX*float64(width)), int((1-roiMarginX)*float64(width))
	third := (x2 - x1) / 3
	bounds := [sensor.NumZones][2]int{
		{x1, x1 + third},
		{x1 + third, x1 + 2*third},
		{x1 + 2*third, x2},
	}

	vals := make([]float64, 0, (y2-y1)*(third+1))
	for _, z := range sensor.Zones {
		vals = vals[:0]
		for y := y1; y < y2; y++ {
			row := depth[y*width : (y+1)*width]
			for x := bounds[z][0]; x < bounds[z][1]; x++ {
				if row[x] > 0 {
					vals = append(vals, float64(row[x])*scale)
				}
			}
		}
		out[z] = nanMedian(vals)
	}
	return out
}

// nanMedian is the median of the non-NaN values, or NaN if there are none.
// An even count averages the two middle values.
func nanMedian(vals []float64) float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	n := len(finite)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	if n%2 == 1 {
		return finite[n/2]
	}
	return (finite[n/2-1] + finite[n/2]) / 2
}
