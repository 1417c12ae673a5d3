// Package capture feeds the pipeline from the microphone and the depth
// camera. Hardware access sits behind the AudioSource and DepthSource
// interfaces; this package supplies the producer loops that push their
// output into the raw queues, the per-zone depth smoothing, and synthetic
// sources for development and tests.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

// AudioSource delivers fixed-length microphone blocks. Next blocks until a
// block is available. Any error is fatal for the producer using the source.
type AudioSource interface {
	Next(ctx context.Context) (sensor.RawAudioSample, error)
}

// DepthSource delivers smoothed per-zone depth readings, one per frame.
type DepthSource interface {
	Next(ctx context.Context) (sensor.RawVideoReading, error)
}

// ZoneSampler delivers the raw per-zone median distance of each depth frame.
// A zone with no valid pixel is reported as NaN.
type ZoneSampler interface {
	Sample(ctx context.Context) (sensor.ZoneDistances, error)
}

// ErrSourceClosed is returned by a source that has no more data.
var ErrSourceClosed = errors.New("capture source closed")

// produce pulls from next until ctx is cancelled or next fails. A cancelled
// context is a clean stop and returns nil.
func produce[T any](ctx context.Context, name string, next func(context.Context) (T, error), out *queue.Bounded[T]) error {
	monitoring.Logf("%s producer started", name)
	var n uint64
	for {
		item, err := next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				monitoring.Logf("%s producer stopping: %d items captured", name, n)
				return nil
			}
			monitoring.Logf("%s producer failed after %d items: %v", name, n, err)
			return fmt.Errorf("%s capture: %w", name, err)
		}
		out.Put(item)
		n++
	}
}

// RunAudioProducer pushes microphone blocks into out until ctx is cancelled
// or the source fails.
func RunAudioProducer(ctx context.Context, src AudioSource, out *queue.Bounded[sensor.RawAudioSample]) error {
	return produce(ctx, "audio", src.Next, out)
}

// RunDepthProducer pushes depth readings into out until ctx is cancelled or
// the source fails.
func RunDepthProducer(ctx context.Context, src DepthSource, out *queue.Bounded[sensor.RawVideoReading]) error {
	return produce(ctx, "video", src.Next, out)
}

// SmoothedDepth turns a ZoneSampler into a DepthSource by running each frame
// through a ZoneSmoother.
type SmoothedDepth struct {
	sampler  ZoneSampler
	smoother *ZoneSmoother
	frame    uint64
	now      func() time.Time
}

// NewSmoothedDepth wraps sampler. A nil smoother gets the default window.
func NewSmoothedDepth(sampler ZoneSampler, smoother *ZoneSmoother) *SmoothedDepth {
	if smoother == nil {
		smoother = NewZoneSmoother(DefaultSmoothWindow)
	}
	return &SmoothedDepth{sampler: sampler, smoother: smoother, now: time.Now}
}

// Next samples one frame and returns the smoothed reading.
func (d *SmoothedDepth) Next(ctx context.Context) (sensor.RawVideoReading, error) {
	raw, err := d.sampler.Sample(ctx)
	if err != nil {
		return sensor.RawVideoReading{}, err
	}
	d.frame++
	return d.smoother.Observe(raw, d.frame, d.now()), nil
}

// sleepUntil waits for t or for ctx to be done.
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
