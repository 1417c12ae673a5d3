package processing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/wayfinder/internal/sensor"
)

func TestDangerLevel(t *testing.T) {
	tests := []struct {
		name      string
		obstacles sensor.ZoneSet
		want      sensor.DangerLevel
		risk      string
	}{
		{"clear", sensor.NewZoneSet(), sensor.Safe, "safe"},
		{"left", sensor.NewZoneSet(sensor.Left), sensor.Medium, "medium"},
		{"right", sensor.NewZoneSet(sensor.Right), sensor.Medium, "medium"},
		{"both sides", sensor.NewZoneSet(sensor.Left, sensor.Right), sensor.High, "high"},
		{"center", sensor.NewZoneSet(sensor.Center), sensor.Critical, "critical"},
		{"everything", sensor.NewZoneSet(sensor.Left, sensor.Center, sensor.Right), sensor.Critical, "critical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DangerLevel(tt.obstacles)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.risk, got.Risk())
		})
	}
}

func TestAssessVideo(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	raw := sensor.RawVideoReading{
		Distances:    sensor.ZoneDistances{0.8, 2.4, 0.9},
		Obstacles:    sensor.NewZoneSet(sensor.Left, sensor.Right),
		Mode:         "attention",
		ObstacleInfo: "left and right",
		AvoidZone:    sensor.Center,
		FrameNumber:  42,
		Timestamp:    ts,
	}
	got := AssessVideo(raw)
	assert.Equal(t, sensor.High, got.DangerLevel)
	assert.Equal(t, "high", got.Risk)
	assert.Equal(t, 2, got.ObstacleCount)
	assert.Equal(t, raw.Distances, got.Distances)
	assert.Equal(t, raw.Obstacles, got.Obstacles)
	assert.Equal(t, "attention", got.Mode)
	assert.Equal(t, "left and right", got.ObstacleInfo)
	assert.Equal(t, sensor.Center, got.AvoidZone)
	assert.Equal(t, uint64(42), got.FrameNumber)
	assert.Equal(t, ts, got.Timestamp)
}
