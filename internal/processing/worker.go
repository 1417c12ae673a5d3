package processing

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wayfinder/internal/lifecycle"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

// DefaultPollTimeout bounds each wait on the input queue so cancellation is
// noticed promptly.
const DefaultPollTimeout = 100 * time.Millisecond

// WorkerConfig contains configuration shared by the processing workers.
type WorkerConfig struct {
	// PollTimeout is the longest single wait on the input queue.
	PollTimeout time.Duration
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// Worker moves records from an input queue to an output queue, transforming
// each one on the way.
type Worker[In, Out any] struct {
	name        string
	in          *queue.Bounded[In]
	out         *queue.Bounded[Out]
	process     func(In) Out
	pollTimeout time.Duration
	logger      *log.Logger

	state     lifecycle.State
	processed atomic.Uint64
}

// AudioWorker turns raw microphone blocks into loudness features.
type AudioWorker = Worker[sensor.RawAudioSample, sensor.ProcessedAudio]

// VideoWorker turns depth readings into danger assessments.
type VideoWorker = Worker[sensor.RawVideoReading, sensor.ProcessedVideo]

func newWorker[In, Out any](name string, in *queue.Bounded[In], out *queue.Bounded[Out], process func(In) Out, cfg WorkerConfig) *Worker[In, Out] {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = DefaultPollTimeout
	}
	return &Worker[In, Out]{
		name:        name,
		in:          in,
		out:         out,
		process:     process,
		pollTimeout: poll,
		logger:      logger,
	}
}

// NewAudioWorker creates the audio feature worker.
func NewAudioWorker(in *queue.Bounded[sensor.RawAudioSample], out *queue.Bounded[sensor.ProcessedAudio], cfg WorkerConfig) *AudioWorker {
	analyzer := NewAudioAnalyzer()
	return newWorker("audio", in, out, func(s sensor.RawAudioSample) sensor.ProcessedAudio {
		return analyzer.Analyze(s.Samples, s.CapturedAt)
	}, cfg)
}

// NewVideoWorker creates the video assessment worker.
func NewVideoWorker(in *queue.Bounded[sensor.RawVideoReading], out *queue.Bounded[sensor.ProcessedVideo], cfg WorkerConfig) *VideoWorker {
	return newWorker("video", in, out, AssessVideo, cfg)
}

// Run processes records until ctx is cancelled. It returns nil on a clean
// shutdown and lifecycle.ErrAlreadyRunning if the worker is already running.
func (w *Worker[In, Out]) Run(ctx context.Context) error {
	if err := w.state.Start(); err != nil {
		return err
	}
	defer w.state.Stop(nil)

	w.logger.Printf("%s worker started", w.name)
	for {
		if ctx.Err() != nil {
			w.logger.Printf("%s worker stopping: %d records processed", w.name, w.processed.Load())
			return nil
		}
		item, ok := w.in.Get(ctx, w.pollTimeout)
		if !ok {
			continue
		}
		w.out.Put(w.process(item))
		w.processed.Add(1)
	}
}

// Name returns the worker's modality name.
func (w *Worker[In, Out]) Name() string { return w.name }

// IsRunning reports whether Run is active.
func (w *Worker[In, Out]) IsRunning() bool { return w.state.IsRunning() }

// Status returns the lifecycle status.
func (w *Worker[In, Out]) Status() lifecycle.Status { return w.state.Status() }

// Processed returns how many records the worker has handled.
func (w *Worker[In, Out]) Processed() uint64 { return w.processed.Load() }
