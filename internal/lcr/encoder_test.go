package lcr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/wayfinder/internal/intensity"
	"github.com/banshee-data/wayfinder/internal/sensor"
)

func audioAt(db float64) *sensor.ProcessedAudio {
	return &sensor.ProcessedAudio{DB: db}
}

func TestEncoder_NoInputIsIdle(t *testing.T) {
	e := NewEncoder()
	cmd := e.Encode(nil, nil)
	assert.Equal(t, IdleToken, cmd.String())
	assert.Equal(t, uint64(1), e.Count())
}

func TestEncoder_AudioOnlyBroadcasts(t *testing.T) {
	e := NewEncoder()
	// -30 dB maps to 50
	cmd := e.Encode(audioAt(-30), nil)
	assert.Equal(t, "L050C050R050", cmd.String())
	assert.Equal(t, cmd, e.Last())
}

func TestEncoder_VisionOnlyPassesThrough(t *testing.T) {
	e := NewEncoder()
	vision := sensor.ZoneIntensities{100, 37, 0}
	assert.Equal(t, "L100C037R000", e.Encode(nil, &vision).String())
}

func TestEncoder_Blend(t *testing.T) {
	e := NewEncoder()
	vision := sensor.ZoneIntensities{100, 50, 0}

	// audio intensity 80 at -15 dB: sides get int(80*0.7)=56
	cmd := e.Encode(audioAt(-15), &vision)
	assert.Equal(t, Command{
		Left:   (4*100 + 56) / 5,
		Center: (4*50 + 80) / 5,
		Right:  (4*0 + 56) / 5,
	}, cmd)
	assert.Equal(t, "L091C056R011", cmd.String())
}

func TestBlend_VisionDominates(t *testing.T) {
	loud := Blend(100, sensor.ZoneIntensities{0, 0, 0})
	near := Blend(0, sensor.ZoneIntensities{100, 100, 100})
	assert.Greater(t, near.Center, loud.Center)
	assert.Greater(t, loud.Center, loud.Left)
	assert.Equal(t, loud.Left, loud.Right)
}

func TestEncoder_AlwaysWellFormed(t *testing.T) {
	e := NewEncoder()
	dbs := []float64{math.Inf(-1), -80, -44, -29, -16, -1, 30, math.NaN()}
	distances := []float64{0, 0.9, 1.7, 3.3, 4.6, 12, math.NaN()}
	for _, db := range dbs {
		for _, d := range distances {
			v := intensity.FromVideo(sensor.ZoneDistances{d, d, d}, sensor.NewZoneSet(sensor.Center))
			for _, cmd := range []Command{
				e.Encode(audioAt(db), &v),
				e.Encode(audioAt(db), nil),
				e.Encode(nil, &v),
			} {
				assert.Regexp(t, tokenRE, cmd.String())
			}
		}
	}
}

func TestEncoder_EncodeRecords(t *testing.T) {
	e := NewEncoder()
	video := &sensor.ProcessedVideo{
		Distances: sensor.ZoneDistances{5, 1.0, 5},
		Obstacles: sensor.NewZoneSet(sensor.Center),
	}
	assert.Equal(t, "L000C100R000", e.EncodeRecords(nil, video).String())
	assert.Equal(t, IdleToken, e.EncodeRecords(nil, nil).String())
}
