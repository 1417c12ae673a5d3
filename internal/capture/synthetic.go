package capture

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wayfinder/internal/sensor"
)

// Microphone defaults.
const (
	DefaultSampleRate = 44100
	DefaultBlockSize  = 2048
)

// DefaultDepthFPS is the depth camera frame rate used by SyntheticDepth.
const DefaultDepthFPS = 10.0

// SyntheticMic generates microphone blocks: a tone whose loudness sweeps
// slowly between quiet and loud, plus a little noise.
type SyntheticMic struct {
	SampleRate int     // samples per second
	BlockSize  int     // samples per block
	ToneHz     float64 // frequency of the generated tone
	Period     time.Duration
	MinDB      float64 // loudness at the bottom of the sweep
	MaxDB      float64 // loudness at the top of the sweep
	Paced      bool    // wait one block duration between blocks

	blocks atomic.Uint64
	start  time.Time
	next   time.Time
	rng    *rand.Rand
}

// NewSyntheticMic returns a paced generator with a 20 second sweep from
// -60 dB to -5 dB.
func NewSyntheticMic() *SyntheticMic {
	return &SyntheticMic{
		SampleRate: DefaultSampleRate,
		BlockSize:  DefaultBlockSize,
		ToneHz:     440,
		Period:     20 * time.Second,
		MinDB:      -60,
		MaxDB:      -5,
		Paced:      true,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BlockDuration is the wall-clock length of one block.
func (m *SyntheticMic) BlockDuration() time.Duration {
	return time.Duration(float64(m.BlockSize) / float64(m.SampleRate) * float64(time.Second))
}

// Next returns the next block, waiting for its capture time when paced.
func (m *SyntheticMic) Next(ctx context.Context) (sensor.RawAudioSample, error) {
	if ctx.Err() != nil {
		return sensor.RawAudioSample{}, ctx.Err()
	}
	now := time.Now()
	if m.start.IsZero() {
		m.start = now
		m.next = now
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	if m.Paced {
		if err := sleepUntil(ctx, m.next); err != nil {
			return sensor.RawAudioSample{}, err
		}
		m.next = m.next.Add(m.BlockDuration())
		now = time.Now()
	}
	n := m.blocks.Add(1)
	offset := float64(n-1) * float64(m.BlockSize)
	return sensor.RawAudioSample{
		Samples:    m.block(now.Sub(m.start), offset),
		CapturedAt: now,
	}, nil
}

// Blocks returns how many blocks have been generated.
func (m *SyntheticMic) Blocks() uint64 { return m.blocks.Load() }

func (m *SyntheticMic) block(elapsed time.Duration, offset float64) []float64 {
	db := m.MinDB
	if m.Period > 0 {
		phase := 2 * math.Pi * elapsed.Seconds() / m.Period.Seconds()
		db = m.MinDB + (m.MaxDB-m.MinDB)*(1-math.Cos(phase))/2
	}
	// a sine with RMS r has amplitude r*sqrt(2)
	amplitude := math.Pow(10, db/20) * math.Sqrt2

	out := make([]float64, m.BlockSize)
	for i := range out {
		t := (offset + float64(i)) / float64(m.SampleRate)
		out[i] = amplitude*math.Sin(2*math.Pi*m.ToneHz*t) + amplitude*0.01*m.rng.NormFloat64()
	}
	return out
}

// SyntheticDepth renders small depth images of a scene in which an object
// repeatedly approaches along a lane, and reports the per-zone medians.
type SyntheticDepth struct {
	Width     int
	Height    int
	FrameRate float64
	Scale     float64       // meters per depth unit
	Lane      sensor.Zone   // zone the object approaches in
	Cycle     time.Duration // time for one approach from Far to Near
	Near, Far float64       // meters
	Paced     bool

	frames atomic.Uint64
	start  time.Time
	next   time.Time
	rng    *rand.Rand
}

// NewSyntheticDepth returns a paced 10 fps generator whose object walks
// down the center lane from 4 m to 0.6 m every 8 seconds.
func NewSyntheticDepth() *SyntheticDepth {
	return &SyntheticDepth{
		Width:     64,
		Height:    48,
		FrameRate: DefaultDepthFPS,
		Scale:     0.001,
		Lane:      sensor.Center,
		Cycle:     8 * time.Second,
		Near:      0.6,
		Far:       4.0,
		Paced:     true,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Sample renders the next frame and returns its zone medians.
func (d *SyntheticDepth) Sample(ctx context.Context) (sensor.ZoneDistances, error) {
	if ctx.Err() != nil {
		return sensor.ZoneDistances{}, ctx.Err()
	}
	now := time.Now()
	if d.start.IsZero() {
		d.start = now
		d.next = now
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	if d.Paced && d.FrameRate > 0 {
		if err := sleepUntil(ctx, d.next); err != nil {
			return sensor.ZoneDistances{}, err
		}
		d.next = d.next.Add(time.Duration(float64(time.Second) / d.FrameRate))
		now = time.Now()
	}
	d.frames.Add(1)
	img := d.render(d.objectDistance(now.Sub(d.start)))
	return ZoneMedians(img, d.Width, d.Height, d.Scale), nil
}

// Frames returns how many frames have been rendered.
func (d *SyntheticDepth) Frames() uint64 { return d.frames.Load() }

func (d *SyntheticDepth) objectDistance(elapsed time.Duration) float64 {
	if d.Cycle <= 0 {
		return d.Near
	}
	frac := math.Mod(elapsed.Seconds(), d.Cycle.Seconds()) / d.Cycle.Seconds()
	return d.Far - (d.Far-d.Near)*frac
}

// render fills the lane's third with the object and the rest with a wall
// at Far+1 m. About 5% of pixels are dropped out as invalid.
func (d *SyntheticDepth) render(object float64) []uint16 {
	img := make([]uint16, d.Width*d.Height)
	x1 := int(roiMarginX * float64(d.Width))
	x2 := int((1 - roiMarginX) * float64(d.Width))
	third := (x2 - x1) / 3
	laneStart := x1 + int(d.Lane)*third
	laneEnd := laneStart + third
	if d.Lane == sensor.Right {
		laneEnd = x2
	}

	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			if d.rng.Float64() < 0.05 {
				continue
			}
			m := d.Far + 1
			if x >= laneStart && x < laneEnd {
				m = object
			}
			m += d.rng.NormFloat64() * 0.01
			if m < 0 {
				m = 0
			}
			img[y*d.Width+x] = uint16(m / d.Scale)
		}
	}
	return img
}
