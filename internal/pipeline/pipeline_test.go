package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wayfinder/internal/actuator"
	"github.com/banshee-data/wayfinder/internal/capture"
	"github.com/banshee-data/wayfinder/internal/config"
	"github.com/banshee-data/wayfinder/internal/lcr"
	"github.com/banshee-data/wayfinder/internal/lifecycle"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/queue"
	"github.com/banshee-data/wayfinder/internal/scheduler"
	"github.com/banshee-data/wayfinder/internal/sensor"
	"github.com/banshee-data/wayfinder/internal/serialmux"
	"github.com/banshee-data/wayfinder/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func strp(s string) *string { return &s }

func fastConfig() *config.PipelineConfig {
	return &config.PipelineConfig{
		PollTimeout:   strp("10ms"),
		StatsInterval: strp("50ms"),
	}
}

func runFor(t *testing.T, p *Pipeline, d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(d + 2*time.Second):
		t.Fatal("pipeline did not stop")
		return nil
	}
}

func TestPipeline_EndToEndWithSimulatedBoard(t *testing.T) {
	board := serialmux.NewSimulatedSerialMux()
	monCtx, stopMon := context.WithCancel(context.Background())
	defer stopMon()
	defer board.Close()
	go board.Monitor(monCtx)
	require.NoError(t, board.Initialize())

	p := New(Options{
		Config:    fastConfig(),
		Audio:     capture.NewSyntheticMic(),
		Depth:     capture.NewSmoothedDepth(capture.NewSyntheticDepth(), nil),
		Transport: actuator.NewSerialSink(board),
		Logger:    quietLogger(),
	})

	require.NoError(t, runFor(t, p, 600*time.Millisecond))
	assert.False(t, p.IsRunning())

	st := p.Stats()
	assert.Equal(t, p.ID(), st.SessionID)
	assert.Greater(t, st.Scheduler.Sent, uint64(3))
	assert.Greater(t, st.AudioProcessed, uint64(0))
	assert.Greater(t, st.VideoProcessed, uint64(0))
	assert.Greater(t, st.Written, uint64(0))
	assert.LessOrEqual(t, st.Written, st.Scheduler.Sent)

	for _, s := range p.Recorder().History() {
		_, err := lcr.Parse(s.Command.String())
		assert.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return board.Status().Executed >= st.Written
	}, time.Second, 10*time.Millisecond)
	assert.NotNil(t, board.Status().LastExec)
}

func TestPipeline_NoSourcesSendsIdle(t *testing.T) {
	p := New(Options{Config: fastConfig(), Logger: quietLogger()})
	require.NoError(t, runFor(t, p, 300*time.Millisecond))

	hist := p.Recorder().History()
	require.NotEmpty(t, hist)
	for _, s := range hist {
		assert.True(t, s.Command.IsIdle(), "got %s", s.Command)
	}
	st := p.Stats()
	assert.Equal(t, st.Scheduler.Sent, st.Scheduler.Idle)
	assert.Zero(t, st.Scheduler.Synchronized)
}

func TestPipeline_TransportFailureStopsRun(t *testing.T) {
	boom := errors.New("board unplugged")
	p := New(Options{
		Config: fastConfig(),
		Transport: scheduler.SinkFunc(func(context.Context, lcr.Command) error {
			return boom
		}),
		Logger: quietLogger(),
	})

	start := time.Now()
	err := runFor(t, p, 3*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, actuator.ErrWriterStopped)
	assert.Contains(t, err.Error(), p.ID())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, lifecycle.Stopped, p.Scheduler().Status())
	assert.Error(t, p.Scheduler().Err())
}

// deadMic fails on every read, like a microphone that was unplugged.
type deadMic struct{}

func (deadMic) Next(context.Context) (sensor.RawAudioSample, error) {
	return sensor.RawAudioSample{}, errors.New("audio device lost")
}

func TestPipeline_CaptureFailureDegrades(t *testing.T) {
	p := New(Options{
		Config: fastConfig(),
		Audio:  deadMic{},
		Depth:  capture.NewSmoothedDepth(capture.NewSyntheticDepth(), nil),
		Logger: quietLogger(),
	})

	require.NoError(t, runFor(t, p, 500*time.Millisecond), "a lost capture source does not end the session")

	st := p.Stats()
	assert.Zero(t, st.AudioProcessed)
	assert.Greater(t, st.VideoProcessed, uint64(0))
	assert.Zero(t, st.Scheduler.Synchronized)
	assert.Greater(t, st.Scheduler.Fallback, uint64(0))

	vision := 0
	for _, s := range p.Recorder().History() {
		if !s.Command.IsIdle() {
			vision++
		}
	}
	assert.Greater(t, vision, 0, "depth-only commands still reach the actuator")
}

// writeTimes records when each transport write began. The first write
// stalls to build up a backlog in the command queue.
type writeTimes struct {
	mu     sync.Mutex
	starts []time.Time
	stall  time.Duration
}

func (w *writeTimes) Send(context.Context, lcr.Command) error {
	w.mu.Lock()
	first := len(w.starts) == 0
	w.starts = append(w.starts, time.Now())
	w.mu.Unlock()
	if first {
		time.Sleep(w.stall)
	}
	return nil
}

func (w *writeTimes) gaps() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []time.Duration
	for i := 1; i < len(w.starts); i++ {
		out = append(out, w.starts[i].Sub(w.starts[i-1]))
	}
	return out
}

func TestPipeline_TransportWritesArePaced(t *testing.T) {
	transport := &writeTimes{stall: 300 * time.Millisecond}
	cfg := fastConfig()
	p := New(Options{
		Config:    cfg,
		Audio:     capture.NewSyntheticMic(),
		Depth:     capture.NewSmoothedDepth(capture.NewSyntheticDepth(), nil),
		Transport: transport,
		Logger:    quietLogger(),
	})

	require.NoError(t, runFor(t, p, 700*time.Millisecond))

	gaps := transport.gaps()
	require.NotEmpty(t, gaps)
	for i, gap := range gaps {
		assert.GreaterOrEqual(t, gap, cfg.GetMinInterval(), "write %d came %v after the previous one", i+1, gap)
	}
	assert.Greater(t, p.Stats().Skipped, uint64(0), "the backlog from the stall is not replayed")
}

func TestPipeline_SecondRunRejected(t *testing.T) {
	p := New(Options{Config: fastConfig(), Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)
	require.Eventually(t, p.IsRunning, time.Second, time.Millisecond)
	assert.ErrorIs(t, p.Run(ctx), lifecycle.ErrAlreadyRunning)
}

func TestPipeline_QueuesUseConfiguredCapacities(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	p := New(Options{Config: cfg, Logger: quietLogger()})

	got := map[string]int{}
	for _, q := range p.Stats().Queues {
		got[q.Name] = q.Capacity
	}
	assert.Equal(t, map[string]int{
		"audio_raw":       50,
		"video_raw":       50,
		"audio_processed": 10,
		"video_processed": 10,
		"commands":        30,
	}, got)
	assert.Equal(t, lcr.IdleToken, p.Stats().LastCommand)
	assert.NotEmpty(t, p.ID())
}

func TestPipeline_Metrics(t *testing.T) {
	p := New(Options{Config: fastConfig(), Logger: quietLogger()})
	m := monitoring.NewMetrics()
	p.RegisterMetrics(m)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `wayfinder_queue_capacity{queue="commands"} 30`)
	assert.Contains(t, body, `wayfinder_queue_size{queue="audio_raw"} 0`)
	assert.Contains(t, body, "wayfinder_commands_sent_total 0")
	assert.Contains(t, body, "wayfinder_commands_skipped_total 0")
	assert.Contains(t, body, "wayfinder_scheduler_running 0")
}

func TestPipeline_AdminRoutes(t *testing.T) {
	p := New(Options{Config: fastConfig(), Logger: quietLogger()})
	mux := http.NewServeMux()
	p.AttachAdminRoutes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1234"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/debug/pipeline")
	require.Equal(t, http.StatusOK, rec.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, p.ID(), st.SessionID)
	assert.Len(t, st.Queues, 5)

	req := httptest.NewRequest(http.MethodPost, "/debug/pipeline", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get("/debug/overview")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "commands:")

	rec = get("/debug/lcr-chart")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// lockedBuffer lets the test read log output while the reporter writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReporter_LogsOverviewEveryInterval(t *testing.T) {
	var out lockedBuffer
	clock := timeutil.NewManualClock(time.Unix(1700000000, 0))
	p := New(Options{Config: fastConfig(), Logger: quietLogger()})
	r := NewReporter(ReporterConfig{
		Interval: 5 * time.Second,
		Stats:    p.Stats,
		Logger:   log.New(&out, "", 0),
		Clock:    clock,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return clock.Tickers() == 1 }, time.Second, time.Millisecond)

	assert.Empty(t, out.String())
	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "overview") }, time.Second, time.Millisecond)
	assert.Contains(t, out.String(), "audio_raw: 0 total, queue 0/50")
	assert.Contains(t, out.String(), "commands: 0 sent")

	cancel()
	require.NoError(t, <-done)
}

func TestFormatOverview_Rates(t *testing.T) {
	out := FormatOverview(Stats{
		SessionID: "abc",
		Status:    "running",
		Uptime:    2 * time.Second,
		Queues: []queue.Stats{
			{Name: "audio_raw", Size: 2, Capacity: 50, Total: 10, Delivered: 7, Dropped: 1},
		},
	})
	assert.True(t, strings.HasPrefix(out, "pipeline abc overview (running, up 2s)"))
	assert.Contains(t, out, "audio_raw: 10 total, queue 2/50, 1 dropped (10.0%), 5.0/s")
}

func TestReporter_Defaults(t *testing.T) {
	r := NewReporter(ReporterConfig{})
	assert.Equal(t, DefaultReportInterval, r.interval)
	assert.IsType(t, timeutil.RealClock{}, r.clock)
	assert.NoError(t, r.Run(context.Background()), "no stats source returns immediately")
}
