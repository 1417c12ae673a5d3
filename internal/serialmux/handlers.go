package serialmux

import (
	"log"
	"sync"
	"time"
)

// DeviceStatus accumulates what the actuator board has told us. It is safe
// for concurrent use.
type DeviceStatus struct {
	mu   sync.Mutex
	snap DeviceSnapshot
	now  func() time.Time
}

// DeviceSnapshot is a copy of the board state at one point in time.
type DeviceSnapshot struct {
	Sent        uint64      `json:"sent"`
	WriteErrors uint64      `json:"write_errors"`
	Lines       uint64      `json:"lines"`
	Parsed      uint64      `json:"parsed"`
	Queued      uint64      `json:"queued"`
	QueueFull   uint64      `json:"queue_full"`
	Executed    uint64      `json:"executed"`
	Errors      uint64      `json:"errors"`
	Unknown     uint64      `json:"unknown"`
	LastSent    string      `json:"last_sent"`
	LastLine    string      `json:"last_line"`
	LastError   string      `json:"last_error"`
	LastExec    *ExecReport `json:"last_exec,omitempty"`
	LastLineAt  time.Time   `json:"last_line_at"`
}

// Summary is the short form shown on the debug page.
func (s DeviceSnapshot) Summary() map[string]any {
	return map[string]any{
		"sent":       s.Sent,
		"executed":   s.Executed,
		"queue_full": s.QueueFull,
		"errors":     s.Errors,
		"last_sent":  s.LastSent,
		"last_line":  s.LastLine,
	}
}

// NewDeviceStatus returns an empty status.
func NewDeviceStatus() *DeviceStatus {
	return &DeviceStatus{now: time.Now}
}

// Observe classifies one line from the board and updates the counters.
func (d *DeviceStatus) Observe(line string) string {
	kind := ClassifyLine(line)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap.Lines++
	d.snap.LastLine = line
	d.snap.LastLineAt = d.now()

	switch kind {
	case EventTypeParse:
		d.snap.Parsed++
	case EventTypeQueue:
		if QueueDropped(line) {
			d.snap.QueueFull++
			log.Printf("actuator board dropped a command: %s", line)
		} else {
			d.snap.Queued++
		}
	case EventTypeExec:
		d.snap.Executed++
		if rep, err := ParseExec(line); err == nil {
			d.snap.LastExec = &rep
		} else {
			log.Printf("unparseable exec line: %v", err)
		}
	case EventTypeError:
		d.snap.Errors++
		d.snap.LastError = line
		log.Printf("actuator board error: %s", line)
	case EventTypeCommand:
		// echo of a command we sent
	default:
		d.snap.Unknown++
	}
	return kind
}

// Snapshot returns a copy of the current state.
func (d *DeviceStatus) Snapshot() DeviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.snap
	if s.LastExec != nil {
		rep := *s.LastExec
		s.LastExec = &rep
	}
	return s
}

func (d *DeviceStatus) recordSent(command string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap.Sent++
	d.snap.LastSent = command
}

func (d *DeviceStatus) recordWriteError() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap.WriteErrors++
}
