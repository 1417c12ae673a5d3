package pipeline

import (
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/wayfinder/internal/httputil"
	"github.com/banshee-data/wayfinder/internal/monitoring"
	"github.com/banshee-data/wayfinder/internal/version"
)

// AttachAdminRoutes registers the pipeline's debug pages on mux, along with
// the command history plots.
func (p *Pipeline) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("pipeline", "pipeline stats (JSON)", func(w http.ResponseWriter, r *http.Request) {
		if !httputil.AllowMethods(w, r, http.MethodGet) {
			return
		}
		httputil.WriteJSON(w, http.StatusOK, p.Stats())
	})
	debug.HandleSilentFunc("overview", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(FormatOverview(p.Stats()) + "\n"))
	})
	debug.KVFunc("version", func() any { return version.String() })
	debug.KVFunc("session", func() any { return p.id })
	debug.KVFunc("scheduler", func() any {
		st := p.scheduler.Stats()
		return st.Status + ", last " + st.LastCommand
	})

	p.recorder.AttachAdminRoutes(mux)
}

// RegisterMetrics exports the queue and dispatch counters on m.
func (p *Pipeline) RegisterMetrics(m *monitoring.Metrics) {
	for _, q := range p.queues() {
		q := q
		m.AddQueue(q.Name(), func() monitoring.QueueSample {
			s := q.Stats()
			return monitoring.QueueSample{
				Size:      s.Size,
				Capacity:  s.Capacity,
				Total:     s.Total,
				Delivered: s.Delivered,
				Dropped:   s.Dropped,
			}
		})
	}

	m.AddCounter("commands_sent_total", "Commands emitted by the scheduler",
		func() float64 { return float64(p.scheduler.Stats().Sent) })
	m.AddCounter("commands_synchronized_total", "Commands built from a synchronized audio/video pair",
		func() float64 { return float64(p.scheduler.Stats().Synchronized) })
	m.AddCounter("commands_fallback_total", "Commands built from the latest single-modality records",
		func() float64 { return float64(p.scheduler.Stats().Fallback) })
	m.AddCounter("commands_idle_total", "Idle commands sent with no fresh data",
		func() float64 { return float64(p.scheduler.Stats().Idle) })
	m.AddCounter("commands_written_total", "Commands delivered to the actuator link",
		func() float64 { return float64(p.writer.Written()) })
	m.AddCounter("commands_skipped_total", "Queued commands superseded before their write slot",
		func() float64 { return float64(p.writer.Skipped()) })
	m.AddCounter("audio_processed_total", "Audio blocks analysed",
		func() float64 { return float64(p.audioWork.Processed()) })
	m.AddCounter("video_processed_total", "Depth readings assessed",
		func() float64 { return float64(p.videoWork.Processed()) })
	m.AddCounter("fusion_pairs_total", "Synchronized pairs found by the fusion buffer",
		func() float64 { return float64(p.scheduler.Stats().Fusion.Pairs) })
	m.AddCounter("fusion_expired_total", "Records aged out of the fusion buffer",
		func() float64 { return float64(p.scheduler.Stats().Fusion.Expired) })
	m.AddGauge("scheduler_running", "1 while the scheduler is dispatching",
		func() float64 {
			if p.scheduler.IsRunning() {
				return 1
			}
			return 0
		})
}
