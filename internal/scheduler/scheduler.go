// Package scheduler runs the fused dispatch loop: it drains the processed
// queues into the fusion buffer, encodes the best available view of the
// world as an LCR command and sends it to the actuators no more often than
// the configured minimum interval.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/banshee-data/wayfinder/internal/fusion"
	"github.com/banshee-data/wayfinder/internal/lcr"
	"github.com/banshee-data/wayfinder/internal/lifecycle"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

const (
	// DefaultMinInterval is the shortest time between two sends, 25 Hz.
	DefaultMinInterval = 40 * time.Millisecond
	// DefaultDrainTimeout bounds the wait for new processed records.
	DefaultDrainTimeout = 20 * time.Millisecond
)

// Sink receives every command the scheduler emits. An error from Send is
// treated as a failure of the actuator link and stops the scheduler.
type Sink interface {
	Send(ctx context.Context, cmd lcr.Command) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, cmd lcr.Command) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, cmd lcr.Command) error { return f(ctx, cmd) }

// Source says which inputs a command was built from.
type Source int

const (
	SourceIdle Source = iota
	SourceSynchronized
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceSynchronized:
		return "synchronized"
	case SourceFallback:
		return "fallback"
	default:
		return "idle"
	}
}

// Config contains configuration for the Scheduler.
type Config struct {
	// MinInterval is the minimum spacing between sends.
	MinInterval time.Duration
	// DrainTimeout is how long to wait for a processed record when both
	// queues are empty.
	DrainTimeout time.Duration
	// Fusion configures the synchronization window.
	Fusion fusion.Config
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// Stats reports what the scheduler has sent.
type Stats struct {
	Status       string        `json:"status"`
	Sent         uint64        `json:"sent"`
	Synchronized uint64        `json:"synchronized"`
	Fallback     uint64        `json:"fallback"`
	Idle         uint64        `json:"idle"`
	LastCommand  string        `json:"last_command"`
	LastSource   string        `json:"last_source"`
	LastSendAt   time.Time     `json:"last_send_at"`
	Fusion       fusion.Stats  `json:"fusion"`
	MinInterval  time.Duration `json:"min_interval_ns"`
}

// Scheduler is the single consumer of both processed queues.
type Scheduler struct {
	cfg     Config
	audio   *queue.Bounded[sensor.ProcessedAudio]
	video   *queue.Bounded[sensor.ProcessedVideo]
	sink    Sink
	buffer  *fusion.Buffer
	encoder *lcr.Encoder
	logger  *log.Logger
	state   lifecycle.State

	mu    sync.Mutex
	stats Stats
}

// New creates a scheduler reading from audio and video and writing to sink.
func New(audio *queue.Bounded[sensor.ProcessedAudio], video *queue.Bounded[sensor.ProcessedVideo], sink Sink, cfg Config) *Scheduler {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cfg:     cfg,
		audio:   audio,
		video:   video,
		sink:    sink,
		buffer:  fusion.NewBuffer(cfg.Fusion),
		encoder: lcr.NewEncoder(),
		logger:  logger,
		stats:   Stats{LastCommand: lcr.IdleToken, MinInterval: cfg.MinInterval},
	}
}

// Run dispatches commands until ctx is cancelled, returning nil, or until
// the sink fails, returning the wrapped sink error. Either way the
// scheduler ends up stopped; it is never restarted automatically.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	if err := s.state.Start(); err != nil {
		return err
	}
	defer func() { s.state.Stop(err) }()

	s.logger.Printf("scheduler started: min interval %v", s.cfg.MinInterval)
	var lastSend time.Time
	for {
		if !lastSend.IsZero() {
			if err := sleepUntil(ctx, lastSend.Add(s.cfg.MinInterval)); err != nil {
				s.logger.Printf("scheduler stopping: %d commands sent", s.Stats().Sent)
				return nil
			}
		}
		if ctx.Err() != nil {
			s.logger.Printf("scheduler stopping: %d commands sent", s.Stats().Sent)
			return nil
		}

		s.drain(ctx)
		cmd, src := s.compose()

		if err := s.sink.Send(ctx, cmd); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Printf("scheduler: actuator send failed, stopping: %v", err)
			return fmt.Errorf("send %s: %w", cmd, err)
		}
		lastSend = time.Now()
		s.record(cmd, src, lastSend)
	}
}

// drain moves at most one record per modality into the fusion buffer,
// waiting up to DrainTimeout if both queues are empty.
func (s *Scheduler) drain(ctx context.Context) {
	if s.takeOne() {
		return
	}
	timer := time.NewTimer(s.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	case <-s.audio.Ready():
	case <-s.video.Ready():
	}
	s.takeOne()
}

func (s *Scheduler) takeOne() bool {
	a, aok := s.audio.TryGet()
	if aok {
		s.buffer.AddAudio(a)
	}
	v, vok := s.video.TryGet()
	if vok {
		s.buffer.AddVideo(v)
	}
	return aok || vok
}

// compose prefers a synchronized pair and otherwise falls back to the newest
// record of each modality still inside the fusion window.
func (s *Scheduler) compose() (lcr.Command, Source) {
	if p, ok := s.buffer.SynchronizedPair(); ok {
		return s.encoder.EncodeRecords(&p.Audio.Value, &p.Video.Value), SourceSynchronized
	}

	var audio *sensor.ProcessedAudio
	var video *sensor.ProcessedVideo
	if r, ok := s.buffer.LatestAudio(); ok {
		audio = &r.Value
	}
	if r, ok := s.buffer.LatestVideo(); ok {
		video = &r.Value
	}
	cmd := s.encoder.EncodeRecords(audio, video)
	if audio == nil && video == nil {
		return cmd, SourceIdle
	}
	return cmd, SourceFallback
}

func (s *Scheduler) record(cmd lcr.Command, src Source, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Sent++
	switch src {
	case SourceSynchronized:
		s.stats.Synchronized++
	case SourceFallback:
		s.stats.Fallback++
	default:
		s.stats.Idle++
	}
	s.stats.LastCommand = cmd.String()
	s.stats.LastSource = src.String()
	s.stats.LastSendAt = at
	s.stats.Fusion = s.buffer.Stats()
}

// Stats returns a snapshot of the dispatch counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Status = s.state.Status().String()
	return st
}

// Status returns the lifecycle status.
func (s *Scheduler) Status() lifecycle.Status { return s.state.Status() }

// IsRunning reports whether Run is active.
func (s *Scheduler) IsRunning() bool { return s.state.IsRunning() }

// Err returns the error that stopped the last run, if any.
func (s *Scheduler) Err() error { return s.state.Err() }

// LastCommand returns the most recently encoded command.
func (s *Scheduler) LastCommand() lcr.Command { return s.encoder.Last() }

func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
