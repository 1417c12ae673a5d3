// Package actuator is the transport side of the pipeline. It turns the
// scheduler's commands into lines on the serial link, buffering them in a
// bounded command queue so a slow port never stalls the dispatch loop.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/wayfinder/internal/lcr"
	"github.com/banshee-data/wayfinder/internal/lifecycle"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/scheduler"
)

const (
	// DefaultCommandCapacity is the size of the command queue.
	DefaultCommandCapacity = 30
	// DefaultPollTimeout bounds each wait of the writer on an empty queue.
	DefaultPollTimeout = 100 * time.Millisecond
)

// ErrWriterStopped is returned by QueuedSink.Send once its writer has failed.
var ErrWriterStopped = errors.New("actuator writer stopped")

// Commander is the part of the serial mux used to deliver commands.
type Commander interface {
	SendCommand(string) error
}

// SerialSink writes each command as one newline-terminated token.
type SerialSink struct {
	port Commander
}

// NewSerialSink returns a sink writing to port.
func NewSerialSink(port Commander) *SerialSink {
	return &SerialSink{port: port}
}

// Send writes the token for cmd.
func (s *SerialSink) Send(_ context.Context, cmd lcr.Command) error {
	if err := s.port.SendCommand(cmd.String()); err != nil {
		return fmt.Errorf("serial write %s: %w", cmd, err)
	}
	return nil
}

// Fanout delivers every command to each sink in order and stops at the
// first error.
type Fanout []scheduler.Sink

// Send forwards cmd to every sink.
func (f Fanout) Send(ctx context.Context, cmd lcr.Command) error {
	for _, s := range f {
		if err := s.Send(ctx, cmd); err != nil {
			return err
		}
	}
	return nil
}

// QueuedConfig contains configuration for a QueuedSink.
type QueuedConfig struct {
	// Capacity of the command queue.
	Capacity int
	// PollTimeout is how long the writer waits on an empty queue before
	// checking for cancellation again.
	PollTimeout time.Duration
	// MinInterval is the shortest gap between two downstream writes. When
	// set, each write carries the newest queued command and older ones are
	// skipped. Zero writes every command as soon as it arrives.
	MinInterval time.Duration
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// QueuedSink decouples the scheduler from the transport. Send only enqueues;
// Run drains the queue into the downstream sink. When the command queue is
// full the two oldest commands make room for the newest.
type QueuedSink struct {
	queue       *queue.Bounded[lcr.Command]
	next        scheduler.Sink
	pollTimeout time.Duration
	minInterval time.Duration
	logger      *log.Logger
	state       lifecycle.State

	written atomic.Uint64
	skipped atomic.Uint64

	mu     sync.Mutex
	failed error
}

// NewQueuedSink returns a QueuedSink forwarding to next.
func NewQueuedSink(next scheduler.Sink, cfg QueuedConfig) *QueuedSink {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCommandCapacity
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &QueuedSink{
		queue:       queue.New[lcr.Command]("commands", cfg.Capacity, queue.CommandEvictBatch),
		next:        next,
		pollTimeout: cfg.PollTimeout,
		minInterval: cfg.MinInterval,
		logger:      logger,
	}
}

// Send enqueues cmd without blocking. It fails only after the writer has
// stopped on a transport error, which in turn stops the scheduler.
func (q *QueuedSink) Send(_ context.Context, cmd lcr.Command) error {
	q.mu.Lock()
	failed := q.failed
	q.mu.Unlock()
	if failed != nil {
		return fmt.Errorf("%w: %v", ErrWriterStopped, failed)
	}
	q.queue.Put(cmd)
	return nil
}

// Run writes queued commands until ctx is cancelled (returning nil) or the
// downstream sink fails (returning its error).
func (q *QueuedSink) Run(ctx context.Context) (err error) {
	if err := q.state.Start(); err != nil {
		return err
	}
	defer func() { q.state.Stop(err) }()

	var lastWrite time.Time
	for {
		cmd, ok := q.queue.Get(ctx, q.pollTimeout)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if q.minInterval > 0 {
			if !lastWrite.IsZero() && sleepUntil(ctx, lastWrite.Add(q.minInterval)) != nil {
				return nil
			}
			cmd = q.newest(cmd)
		}
		err := q.next.Send(ctx, cmd)
		lastWrite = time.Now()
		if err != nil {
			q.mu.Lock()
			q.failed = err
			q.mu.Unlock()
			q.logger.Printf("actuator writer stopped: %v", err)
			return err
		}
		q.written.Add(1)
	}
}

// newest replaces cmd with the most recent queued command, counting the ones
// passed over.
func (q *QueuedSink) newest(cmd lcr.Command) lcr.Command {
	for {
		next, ok := q.queue.TryGet()
		if !ok {
			return cmd
		}
		q.skipped.Add(1)
		cmd = next
	}
}

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

// Queue exposes the command queue for stats and metrics.
func (q *QueuedSink) Queue() *queue.Bounded[lcr.Command] { return q.queue }

// Written returns how many commands reached the downstream sink.
func (q *QueuedSink) Written() uint64 { return q.written.Load() }

// Skipped returns how many queued commands were superseded by a newer one
// before their write slot came up.
func (q *QueuedSink) Skipped() uint64 { return q.skipped.Load() }

// Status returns the writer lifecycle state.
func (q *QueuedSink) Status() lifecycle.Status { return q.state.Status() }

// IsRunning reports whether the writer loop is active.
func (q *QueuedSink) IsRunning() bool { return q.state.IsRunning() }
