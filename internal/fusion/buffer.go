// Package fusion aligns processed audio and video records in time.
//
// The Buffer keeps a short window of recent records per modality and pairs
// the audio and video records whose arrival times are closest. It is owned by
// a single goroutine (the actuator scheduler) and does no locking.
package fusion

import (
	"time"

	"github.com/banshee-data/wayfinder/internal/sensor"
)

const (
	DefaultCapacity  = 5
	DefaultMaxAge    = 150 * time.Millisecond
	DefaultTolerance = 50 * time.Millisecond
)

// Config controls the fusion window. Zero fields take the defaults above.
type Config struct {
	Capacity  int
	MaxAge    time.Duration
	Tolerance time.Duration

	// Now stamps incoming records and ages them out. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = DefaultCapacity
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Pair is a synchronized audio/video match.
type Pair struct {
	Audio Record[sensor.ProcessedAudio]
	Video Record[sensor.ProcessedVideo]
}

// Skew returns the absolute arrival-time difference of the pair.
func (p Pair) Skew() time.Duration {
	return absDuration(p.Audio.At.Sub(p.Video.At))
}

// Stats counts what the buffer has seen.
type Stats struct {
	AudioAdded uint64 `json:"audio_added"`
	VideoAdded uint64 `json:"video_added"`
	Pairs      uint64 `json:"pairs"`
	Expired    uint64 `json:"expired"`
	AudioHeld  int    `json:"audio_held"`
	VideoHeld  int    `json:"video_held"`
}

// Buffer is the temporal synchronization window.
type Buffer struct {
	cfg   Config
	audio *window[sensor.ProcessedAudio]
	video *window[sensor.ProcessedVideo]

	audioAdded uint64
	videoAdded uint64
	pairs      uint64
	expired    uint64
}

// NewBuffer creates an empty buffer.
func NewBuffer(cfg Config) *Buffer {
	cfg = cfg.withDefaults()
	return &Buffer{
		cfg:   cfg,
		audio: newWindow[sensor.ProcessedAudio](cfg.Capacity),
		video: newWindow[sensor.ProcessedVideo](cfg.Capacity),
	}
}

// Config returns the effective configuration.
func (b *Buffer) Config() Config { return b.cfg }

// AddAudio stamps a processed audio record with the current time and appends
// it, overwriting the oldest audio record when the window is full.
func (b *Buffer) AddAudio(a sensor.ProcessedAudio) {
	b.audio.add(Record[sensor.ProcessedAudio]{Modality: Audio, At: b.cfg.Now(), Value: a})
	b.audioAdded++
}

// AddVideo is AddAudio for video records.
func (b *Buffer) AddVideo(v sensor.ProcessedVideo) {
	b.video.add(Record[sensor.ProcessedVideo]{Modality: Video, At: b.cfg.Now(), Value: v})
	b.videoAdded++
}

// SynchronizedPair returns the audio/video pair with the smallest arrival
// time difference, provided that difference is below the tolerance.
//
// Records older than MaxAge are discarded first. On a match, the matched
// records and every record older than them are removed, so a record is
// paired at most once.
func (b *Buffer) SynchronizedPair() (Pair, bool) {
	b.expire()
	if b.audio.size == 0 || b.video.size == 0 {
		return Pair{}, false
	}

	bestA, bestV := -1, -1
	var best time.Duration
	for i := 0; i < b.audio.size; i++ {
		at := b.audio.at(i).At
		for j := 0; j < b.video.size; j++ {
			d := absDuration(at.Sub(b.video.at(j).At))
			if bestA < 0 || d < best {
				bestA, bestV, best = i, j, d
			}
		}
	}
	if best >= b.cfg.Tolerance {
		return Pair{}, false
	}

	p := Pair{Audio: b.audio.at(bestA), Video: b.video.at(bestV)}
	b.audio.dropFront(bestA + 1)
	b.video.dropFront(bestV + 1)
	b.pairs++
	return p, true
}

// LatestAudio returns the newest audio record without removing it.
func (b *Buffer) LatestAudio() (Record[sensor.ProcessedAudio], bool) {
	return b.audio.latest()
}

// LatestVideo returns the newest video record without removing it.
func (b *Buffer) LatestVideo() (Record[sensor.ProcessedVideo], bool) {
	return b.video.latest()
}

// Len returns the number of audio and video records held.
func (b *Buffer) Len() (audio, video int) {
	return b.audio.size, b.video.size
}

// AudioRecords returns the held audio records, oldest first.
func (b *Buffer) AudioRecords() []Record[sensor.ProcessedAudio] { return b.audio.all() }

// VideoRecords returns the held video records, oldest first.
func (b *Buffer) VideoRecords() []Record[sensor.ProcessedVideo] { return b.video.all() }

// Stats returns the buffer counters.
func (b *Buffer) Stats() Stats {
	return Stats{
		AudioAdded: b.audioAdded,
		VideoAdded: b.videoAdded,
		Pairs:      b.pairs,
		Expired:    b.expired,
		AudioHeld:  b.audio.size,
		VideoHeld:  b.video.size,
	}
}

func (b *Buffer) expire() {
	cutoff := b.cfg.Now().Add(-b.cfg.MaxAge)
	b.expired += uint64(b.audio.purgeBefore(cutoff))
	b.expired += uint64(b.video.purgeBefore(cutoff))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
