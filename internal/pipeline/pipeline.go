// Package pipeline wires the capture producers, processing workers, actuator
// scheduler and command writer into one running system and reports on it.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/wayfinder/internal/actuator"
	"github.com/banshee-data/wayfinder/internal/capture"
	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/fusion"
	"github.com/banshee-data/wayfinder/internal/lcr"
	"github.com/banshee-data/wayfinder/internal/lifecycle"
	"github.com/banshee-data/wayfinder/internal/processing"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/scheduler"
	"github.com/banshee-data/wayfinder/internal/sensor"
	"github.com/banshee-data/wayfinder/internal/version"
)

// Options configures a Pipeline.
type Options struct {
	// Config supplies queue sizes and timings; nil uses the defaults.
	Config *config.PipelineConfig
	// Audio is the microphone. Nil runs without audio.
	Audio capture.AudioSource
	// Depth is the depth camera. Nil runs without vision.
	Depth capture.DepthSource
	// Transport receives every command after the recorder. Nil records only.
	Transport scheduler.Sink
	// VerboseCommands logs each command as it is recorded.
	VerboseCommands bool
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// Pipeline owns every queue and goroutine of one session.
type Pipeline struct {
	id     string
	cfg    *config.PipelineConfig
	logger *log.Logger

	audioSrc capture.AudioSource
	depthSrc capture.DepthSource

	rawAudio  *queue.Bounded[sensor.RawAudioSample]
	rawVideo  *queue.Bounded[sensor.RawVideoReading]
	audio     *queue.Bounded[sensor.ProcessedAudio]
	video     *queue.Bounded[sensor.ProcessedVideo]
	audioWork *processing.AudioWorker
	videoWork *processing.VideoWorker
	scheduler *scheduler.Scheduler
	writer    *actuator.QueuedSink
	recorder  *actuator.Recorder
	reporter  *Reporter

	state lifecycle.State

	mu      sync.Mutex
	started time.Time
}

// New builds a pipeline. Nothing runs until Run is called.
func New(opts Options) *Pipeline {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	p := &Pipeline{
		id:       uuid.NewString(),
		cfg:      cfg,
		logger:   logger,
		audioSrc: opts.Audio,
		depthSrc: opts.Depth,
		rawAudio: queue.New[sensor.RawAudioSample]("audio_raw", cfg.GetRawQueueCapacity(), queue.SensorEvictBatch),
		rawVideo: queue.New[sensor.RawVideoReading]("video_raw", cfg.GetRawQueueCapacity(), queue.SensorEvictBatch),
		audio:    queue.New[sensor.ProcessedAudio]("audio_processed", cfg.GetProcessedQueueCapacity(), queue.ProcessedEvictBatch),
		video:    queue.New[sensor.ProcessedVideo]("video_processed", cfg.GetProcessedQueueCapacity(), queue.ProcessedEvictBatch),
	}

	workerCfg := processing.WorkerConfig{PollTimeout: cfg.GetPollTimeout(), Logger: logger}
	p.audioWork = processing.NewAudioWorker(p.rawAudio, p.audio, workerCfg)
	p.videoWork = processing.NewVideoWorker(p.rawVideo, p.video, workerCfg)

	p.recorder = actuator.NewRecorder(cfg.GetCommandHistory(), opts.VerboseCommands)
	var downstream scheduler.Sink = p.recorder
	if opts.Transport != nil {
		downstream = actuator.Fanout{p.recorder, opts.Transport}
	}
	p.writer = actuator.NewQueuedSink(downstream, actuator.QueuedConfig{
		Capacity:    cfg.GetCommandQueueCapacity(),
		PollTimeout: cfg.GetPollTimeout(),
		MinInterval: cfg.GetMinInterval(),
		Logger:      logger,
	})

	p.scheduler = scheduler.New(p.audio, p.video, p.writer, scheduler.Config{
		MinInterval:  cfg.GetMinInterval(),
		DrainTimeout: cfg.GetDrainTimeout(),
		Fusion: fusion.Config{
			Capacity:  cfg.GetFusionCapacity(),
			MaxAge:    cfg.GetFusionMaxAge(),
			Tolerance: cfg.GetFusionTolerance(),
		},
		Logger: logger,
	})

	p.reporter = NewReporter(ReporterConfig{
		Interval: cfg.GetStatsInterval(),
		Stats:    p.Stats,
		Logger:   logger,
	})
	return p
}

// ID returns the session identifier used in logs and stats.
func (p *Pipeline) ID() string { return p.id }

// Recorder returns the sink holding the recent command history.
func (p *Pipeline) Recorder() *actuator.Recorder { return p.recorder }

// Scheduler returns the dispatch loop.
func (p *Pipeline) Scheduler() *scheduler.Scheduler { return p.scheduler }

// Run starts every stage and blocks until ctx is cancelled or the actuator
// link fails. A failed capture source only ends its own producer; the
// scheduler keeps going on whatever modality is left. On a clean shutdown
// Run returns nil.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	if err := p.state.Start(); err != nil {
		return err
	}
	defer func() { p.state.Stop(err) }()

	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.logger.Printf("%s: pipeline %s starting (audio=%v video=%v)", version.String(), p.id, p.audioSrc != nil, p.depthSrc != nil)

	var wg sync.WaitGroup
	spawn := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				p.logger.Printf("%s exited: %v", name, err)
			}
		}()
	}

	if p.audioSrc != nil {
		spawn("audio producer", func(ctx context.Context) error {
			return capture.RunAudioProducer(ctx, p.audioSrc, p.rawAudio)
		})
	}
	if p.depthSrc != nil {
		spawn("video producer", func(ctx context.Context) error {
			return capture.RunDepthProducer(ctx, p.depthSrc, p.rawVideo)
		})
	}
	spawn("audio worker", p.audioWork.Run)
	spawn("video worker", p.videoWork.Run)
	spawn("command writer", p.writer.Run)
	spawn("stats reporter", p.reporter.Run)

	// the scheduler runs on this goroutine; its failure ends the session
	schedErr := p.scheduler.Run(ctx)
	cancel()
	wg.Wait()

	p.reporter.Log(p.Stats())
	if schedErr != nil {
		return fmt.Errorf("pipeline %s: %w", p.id, schedErr)
	}
	p.logger.Printf("pipeline %s stopped", p.id)
	return nil
}

// IsRunning reports whether Run is active.
func (p *Pipeline) IsRunning() bool { return p.state.IsRunning() }

// Stats is a snapshot of the whole pipeline.
type Stats struct {
	SessionID      string          `json:"session_id"`
	Status         string          `json:"status"`
	Uptime         time.Duration   `json:"uptime_ns"`
	Queues         []queue.Stats   `json:"queues"`
	AudioProcessed uint64          `json:"audio_processed"`
	VideoProcessed uint64          `json:"video_processed"`
	Written        uint64          `json:"commands_written"`
	Skipped        uint64          `json:"commands_skipped"`
	Scheduler      scheduler.Stats `json:"scheduler"`
	LastCommand    string          `json:"last_command"`
}

// Stats returns the current counters of every stage.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started)
	}
	last := lcr.IdleToken
	if hist := p.recorder.History(); len(hist) > 0 {
		last = hist[len(hist)-1].Command.String()
	}
	return Stats{
		SessionID:      p.id,
		Status:         p.state.Status().String(),
		Uptime:         uptime,
		Queues:         p.queueStats(),
		AudioProcessed: p.audioWork.Processed(),
		VideoProcessed: p.videoWork.Processed(),
		Written:        p.writer.Written(),
		Skipped:        p.writer.Skipped(),
		Scheduler:      p.scheduler.Stats(),
		LastCommand:    last,
	}
}

// statser is the part of queue.Bounded that does not depend on the item type.
type statser interface {
	Name() string
	Stats() queue.Stats
}

func (p *Pipeline) queues() []statser {
	return []statser{p.rawAudio, p.rawVideo, p.audio, p.video, p.writer.Queue()}
}

func (p *Pipeline) queueStats() []queue.Stats {
	qs := p.queues()
	out := make([]queue.Stats, len(qs))
	for i, q := range qs {
		out[i] = q.Stats()
	}
	return out
}
