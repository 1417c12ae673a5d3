package serialmux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"[PARSE] msg = L010C020R030", EventTypeParse},
		{"[QUEUE] Added command", EventTypeQueue},
		{"[QUEUE] FULL - command dropped", EventTypeQueue},
		{"[EXEC] UPP=255 GAU=0 DRO=0 DUR=5000", EventTypeExec},
		{"[ERROR] Invalid command format", EventTypeError},
		{"  L050C050R050  ", EventTypeCommand},
		{"hello", EventTypeUnknown},
		{"", EventTypeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyLine(tt.line), "line %q", tt.line)
	}
}

func TestQueueDropped(t *testing.T) {
	assert.True(t, QueueDropped("[QUEUE] FULL — command dropped"))
	assert.False(t, QueueDropped("[QUEUE] Added command ✓"))
}

func TestParseExec(t *testing.T) {
	rep, err := ParseExec("[EXEC] UPP=255 GAU=10 DRO=80 DUR=5000")
	require.NoError(t, err)
	assert.Equal(t, ExecReport{Upper: 255, Left: 10, Right: 80, Duration: 5000}, rep)

	rep, err = ParseExec("[EXEC] DRO=7")
	require.NoError(t, err)
	assert.Equal(t, ExecReport{Right: 7}, rep)

	for _, bad := range []string{"[PARSE] x", "[EXEC]", "[EXEC] UPP", "[EXEC] UPP=x"} {
		_, err := ParseExec(bad)
		assert.Error(t, err, "line %q", bad)
	}
}

func TestDeviceStatus_Observe(t *testing.T) {
	d := NewDeviceStatus()
	fixed := time.Unix(1700000000, 0)
	d.now = func() time.Time { return fixed }

	for _, line := range []string{
		"[PARSE] msg = L010C020R030",
		"[QUEUE] Added command ✓",
		"[EXEC] UPP=51 GAU=25 DRO=76 DUR=40",
		"[QUEUE] FULL — command dropped",
		"[ERROR] Unknown POS: XYZ",
		"L010C020R030",
		"garbage",
	} {
		d.Observe(line)
	}

	s := d.Snapshot()
	assert.Equal(t, uint64(7), s.Lines)
	assert.Equal(t, uint64(1), s.Parsed)
	assert.Equal(t, uint64(1), s.Queued)
	assert.Equal(t, uint64(1), s.QueueFull)
	assert.Equal(t, uint64(1), s.Executed)
	assert.Equal(t, uint64(1), s.Errors)
	assert.Equal(t, uint64(1), s.Unknown)
	assert.Equal(t, "[ERROR] Unknown POS: XYZ", s.LastError)
	assert.Equal(t, "garbage", s.LastLine)
	assert.Equal(t, fixed, s.LastLineAt)
	require.NotNil(t, s.LastExec)
	assert.Equal(t, 51, s.LastExec.Upper)

	// snapshots are copies
	s.LastExec.Upper = 0
	assert.Equal(t, 51, d.Snapshot().LastExec.Upper)

	sum := s.Summary()
	assert.Equal(t, uint64(1), sum["executed"])
}
