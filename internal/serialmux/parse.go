package serialmux

import (
	"fmt"
	"strings"

	"github.com/banshee-data/wayfinder/internal/lcr"
)

// Line types echoed by the actuator board.
const (
	EventTypeParse   = "parse"
	EventTypeQueue   = "queue"
	EventTypeExec    = "exec"
	EventTypeError   = "error"
	EventTypeCommand = "command"
	EventTypeUnknown = "unknown"
)

var linePrefixes = []struct {
	prefix string
	kind   string
}{
	{"[PARSE]", EventTypeParse},
	{"[QUEUE]", EventTypeQueue},
	{"[EXEC]", EventTypeExec},
	{"[ERROR]", EventTypeError},
}

// ClassifyLine returns the event type of a line read from the board. A bare
// LCR token is the board echoing a command back.
func ClassifyLine(line string) string {
	line = strings.TrimSpace(line)
	for _, p := range linePrefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.kind
		}
	}
	if _, err := lcr.Parse(line); err == nil {
		return EventTypeCommand
	}
	return EventTypeUnknown
}

// QueueDropped reports whether a [QUEUE] line says the board discarded a
// command because its own queue was full.
func QueueDropped(line string) bool {
	return strings.Contains(strings.ToUpper(line), "FULL")
}

// ExecReport is the motor state reported by an [EXEC] line, in PWM units.
type ExecReport struct {
	Upper    int `json:"upper"`
	Left     int `json:"left"`
	Right    int `json:"right"`
	Duration int `json:"duration_ms"`
}

// ParseExec decodes "[EXEC] UPP=255 GAU=0 DRO=80 DUR=5000". Fields may
// appear in any order; missing ones stay zero.
func ParseExec(line string) (ExecReport, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "[EXEC]")
	if !ok {
		return ExecReport{}, fmt.Errorf("not an exec line: %q", line)
	}
	var rep ExecReport
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ExecReport{}, fmt.Errorf("empty exec line: %q", line)
	}
	for _, f := range fields {
		key, val, ok := strings.Cut(f, "=")
		if !ok {
			return ExecReport{}, fmt.Errorf("malformed exec field %q", f)
		}
		var n int
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
			return ExecReport{}, fmt.Errorf("malformed exec value %q: %w", f, err)
		}
		switch key {
		case "UPP":
			rep.Upper = n
		case "GAU":
			rep.Left = n
		case "DRO":
			rep.Right = n
		case "DUR":
			rep.Duration = n
		}
	}
	return rep, nil
}
