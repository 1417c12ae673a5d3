package actuator

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"tailscale.com/tsweb"

	"github.com/banshee-data/wayfinder/internal/httputil"
	"github.com/banshee-data/wayfinder/internal/lcr"
	"github.com/banshee-data/wayfinder/internal/monitoring"
)

// DefaultHistory is how many commands a Recorder keeps.
const DefaultHistory = 100

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Sent is one command as seen by the Recorder.
type Sent struct {
	At      time.Time
	Command lcr.Command
}

type historyEntry struct {
	At      time.Time `json:"at"`
	Command string    `json:"command"`
}

// Recorder is a sink that remembers the most recent commands. It stands in
// for the board when no serial port is configured and backs the LCR plots
// on the debug server.
type Recorder struct {
	mu      sync.Mutex
	history []Sent // ring, oldest at head once full
	head    int
	size    int
	total   uint64
	verbose bool
	now     func() time.Time
}

// NewRecorder keeps the last capacity commands. When verbose is set each
// command is also logged.
func NewRecorder(capacity int, verbose bool) *Recorder {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &Recorder{
		history: make([]Sent, capacity),
		verbose: verbose,
		now:     time.Now,
	}
}

// Send records cmd. It never fails.
func (r *Recorder) Send(_ context.Context, cmd lcr.Command) error {
	r.mu.Lock()
	at := r.now()
	idx := (r.head + r.size) % len(r.history)
	r.history[idx] = Sent{At: at, Command: cmd.Clamped()}
	if r.size < len(r.history) {
		r.size++
	} else {
		r.head = (r.head + 1) % len(r.history)
	}
	r.total++
	n := r.total
	r.mu.Unlock()

	if r.verbose {
		monitoring.Logf("[actuator] #%d %s", n, cmd)
	}
	return nil
}

// History returns the recorded commands, oldest first.
func (r *Recorder) History() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, r.size)
	for i := range out {
		out[i] = r.history[(r.head+i)%len(r.history)]
	}
	return out
}

// Total returns how many commands were ever recorded.
func (r *Recorder) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

var zoneColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
}

// zoneSeries splits the history into left, center and right series indexed
// by command number.
func zoneSeries(hist []Sent) [3][]float64 {
	var out [3][]float64
	for i := range out {
		out[i] = make([]float64, len(hist))
	}
	for i, s := range hist {
		out[0][i] = float64(s.Command.Left)
		out[1][i] = float64(s.Command.Center)
		out[2][i] = float64(s.Command.Right)
	}
	return out
}

var zoneNames = [3]string{"Left", "Center", "Right"}

// WritePlot renders the recorded intensities as a PNG.
func (r *Recorder) WritePlot(w io.Writer) error {
	hist := r.History()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("LCR commands (last %d)", len(hist))
	p.X.Label.Text = "Command"
	p.Y.Label.Text = "Intensity"
	p.Y.Min = 0
	p.Y.Max = 100

	series := zoneSeries(hist)
	for z, values := range series {
		pts := make(plotter.XYs, len(values))
		for i, v := range values {
			pts[i] = plotter.XY{X: float64(i), Y: v}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = zoneColors[z]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(zoneNames[z], line)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create plot writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// WriteChart renders the recorded intensities as an interactive HTML page.
func (r *Recorder) WriteChart(w io.Writer) error {
	hist := r.History()

	x := make([]string, len(hist))
	for i, s := range hist {
		x[i] = s.At.Format("15:04:05.000")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "LCR commands", Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "LCR commands", Subtitle: fmt.Sprintf("%d recorded", r.Total())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
	)
	line.SetXAxis(x)
	for z, values := range zoneSeries(hist) {
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(zoneNames[z], data)
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line)
	return page.Render(w)
}

// AttachAdminRoutes registers the plot, chart and summary on the debug mux.
func (r *Recorder) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("lcr-plot", "recent LCR commands (PNG)", func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := r.WritePlot(&buf); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	})

	debug.HandleFunc("lcr-chart", "recent LCR commands (chart)", func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := r.WriteChart(&buf); err != nil {
			http.Error(w, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	debug.HandleSilentFunc("lcr-history", func(w http.ResponseWriter, req *http.Request) {
		if !httputil.AllowMethods(w, req, http.MethodGet) {
			return
		}
		hist := r.History()
		out := make([]historyEntry, len(hist))
		for i, s := range hist {
			out[i] = historyEntry{At: s.At, Command: s.Command.String()}
		}
		httputil.WriteJSON(w, http.StatusOK, out)
	})

	debug.KVFunc("lcr", func() any {
		hist := r.History()
		last := lcr.IdleToken
		if len(hist) > 0 {
			last = hist[len(hist)-1].Command.String()
		}
		return fmt.Sprintf("%d recorded, last %s", r.Total(), last)
	})
}
