package lcr

import (
	"sync"

	"github.com/banshee-data/wayfinder/internal/intensity"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

// Blend weights. Vision carries four parts in five; audio adds the fifth,
// at full weight on the center zone and sideWeight on the side zones.
const (
	visionParts = 4
	totalParts  = 5
	sideWeight  = 0.7
)

// Blend combines a global audio intensity with per-zone vision intensities.
func Blend(audio int, vision sensor.ZoneIntensities) Command {
	side := int(float64(audio) * sideWeight)
	return Command{
		Left:   (visionParts*vision[sensor.Left] + side) / totalParts,
		Center: (visionParts*vision[sensor.Center] + audio) / totalParts,
		Right:  (visionParts*vision[sensor.Right] + side) / totalParts,
	}.Clamped()
}

// Encoder turns the latest processed records into actuator commands and
// remembers what it produced last.
type Encoder struct {
	mu    sync.Mutex
	last  Command
	count uint64
}

// NewEncoder returns an Encoder whose last command is idle.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode builds a command from whichever inputs are present:
//   - audio and vision: Blend
//   - audio only: the audio intensity on all three zones
//   - vision only: the vision intensities unchanged
//   - neither: idle
func (e *Encoder) Encode(audio *sensor.ProcessedAudio, vision *sensor.ZoneIntensities) Command {
	var cmd Command
	switch {
	case audio != nil && vision != nil:
		cmd = Blend(intensity.FromAudio(audio.DB), *vision)
	case audio != nil:
		cmd = Uniform(intensity.FromAudio(audio.DB))
	case vision != nil:
		cmd = FromIntensities(*vision)
	}
	cmd = cmd.Clamped()

	e.mu.Lock()
	e.last = cmd
	e.count++
	e.mu.Unlock()
	return cmd
}

// EncodeRecords is Encode for a processed video record rather than
// precomputed zone intensities.
func (e *Encoder) EncodeRecords(audio *sensor.ProcessedAudio, video *sensor.ProcessedVideo) Command {
	if video == nil {
		return e.Encode(audio, nil)
	}
	vision := intensity.FromVideo(video.Distances, video.Obstacles)
	return e.Encode(audio, &vision)
}

// Last returns the most recently encoded command.
func (e *Encoder) Last() Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Count returns how many commands have been encoded.
func (e *Encoder) Count() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}
