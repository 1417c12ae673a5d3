package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/banshee-data/wayfinder/internal/timeutil"
)

// DefaultReportInterval is how often the overview is logged.
const DefaultReportInterval = 5 * time.Second

// ReporterConfig contains configuration for Reporter.
type ReporterConfig struct {
	// Interval between overviews; zero or negative uses the default.
	Interval time.Duration
	// Stats is polled once per interval.
	Stats func() Stats
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
	// Clock is optional; if nil, uses the real clock.
	Clock timeutil.Clock
}

// Reporter periodically logs an overview of the pipeline: per-queue totals
// and fill levels, average rates since start and the dispatch counters.
type Reporter struct {
	interval time.Duration
	stats    func() Stats
	logger   *log.Logger
	clock    timeutil.Clock
}

// NewReporter creates a Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reporter{interval: interval, stats: cfg.Stats, logger: logger, clock: clock}
}

// Run logs an overview every interval until ctx is cancelled. Returns nil on
// clean shutdown.
func (r *Reporter) Run(ctx context.Context) error {
	if r.stats == nil {
		return nil
	}
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			r.Log(r.stats())
		}
	}
}

// Log writes one overview for s.
func (r *Reporter) Log(s Stats) {
	r.logger.Print(FormatOverview(s))
}

// FormatOverview renders s as a multi-line summary.
func FormatOverview(s Stats) string {
	var b strings.Builder
	secs := s.Uptime.Seconds()
	fmt.Fprintf(&b, "pipeline %s overview (%s, up %s)\n", s.SessionID, s.Status, s.Uptime.Truncate(time.Second))
	for _, q := range s.Queues {
		rate := 0.0
		if secs > 0 {
			rate = float64(q.Total) / secs
		}
		fmt.Fprintf(&b, "  %s, %.1f/s\n", q, rate)
	}
	sc := s.Scheduler
	fmt.Fprintf(&b, "  processed: audio %d, video %d\n", s.AudioProcessed, s.VideoProcessed)
	fmt.Fprintf(&b, "  commands: %d sent (%d synchronized, %d fallback, %d idle), %d written, %d skipped, last %s",
		sc.Sent, sc.Synchronized, sc.Fallback, sc.Idle, s.Written, s.Skipped, s.LastCommand)
	return b.String()
}
