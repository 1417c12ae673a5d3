package processing

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wayfinder/internal/lifecycle"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

func init() {
	monitoring.SetLogger(nil)
}

func quietConfig() WorkerConfig {
	return WorkerConfig{
		PollTimeout: 10 * time.Millisecond,
		Logger:      log.New(&bytes.Buffer{}, "", 0),
	}
}

func TestVideoWorker_ProcessesInOrder(t *testing.T) {
	in := queue.New[sensor.RawVideoReading]("video_raw", 50, queue.SensorEvictBatch)
	out := queue.New[sensor.ProcessedVideo]("video_processed", 10, queue.ProcessedEvictBatch)
	w := NewVideoWorker(in, out, quietConfig())

	for i := 1; i <= 3; i++ {
		in.Put(sensor.RawVideoReading{FrameNumber: uint64(i), Obstacles: sensor.NewZoneSet(sensor.Center)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, w.Run(ctx))
	}()

	for i := 1; i <= 3; i++ {
		got, ok := out.Get(context.Background(), time.Second)
		require.True(t, ok)
		assert.Equal(t, uint64(i), got.FrameNumber)
		assert.Equal(t, sensor.Critical, got.DangerLevel)
	}
	assert.Eventually(t, func() bool { return w.Processed() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
	assert.Equal(t, lifecycle.Stopped, w.Status())
	assert.Equal(t, "video", w.Name())
}

func TestAudioWorker_ProducesFeatures(t *testing.T) {
	in := queue.New[sensor.RawAudioSample]("audio_raw", 50, queue.SensorEvictBatch)
	out := queue.New[sensor.ProcessedAudio]("audio_processed", 10, queue.ProcessedEvictBatch)
	w := NewAudioWorker(in, out, quietConfig())

	at := time.Unix(1700000000, 0)
	in.Put(sensor.RawAudioSample{Samples: sine(2048, 12, 0.5), CapturedAt: at})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	got, ok := out.Get(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, sensor.Danger, got.Loudness)
	assert.Equal(t, 12, got.DominantBin)
	assert.Equal(t, at, got.Timestamp)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_SecondRunRejected(t *testing.T) {
	in := queue.New[sensor.RawVideoReading]("video_raw", 5, queue.SensorEvictBatch)
	out := queue.New[sensor.ProcessedVideo]("video_processed", 5, queue.ProcessedEvictBatch)
	w := NewVideoWorker(in, out, quietConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	require.Eventually(t, w.IsRunning, time.Second, time.Millisecond)

	err := w.Run(ctx)
	assert.True(t, errors.Is(err, lifecycle.ErrAlreadyRunning))

	cancel()
	assert.NoError(t, <-done)
	assert.False(t, w.IsRunning())
}

func TestWorker_IdleDoesNotError(t *testing.T) {
	in := queue.New[sensor.RawVideoReading]("video_raw", 5, queue.SensorEvictBatch)
	out := queue.New[sensor.ProcessedVideo]("video_processed", 5, queue.ProcessedEvictBatch)
	w := NewVideoWorker(in, out, quietConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, w.Run(ctx))
	assert.Zero(t, w.Processed())
	assert.Zero(t, out.Len())
}
