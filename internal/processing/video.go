package processing

import "github.com/banshee-data/wayfinder/internal/sensor"

// DangerLevel grades the obstacle flags of a reading. An obstacle straight
// ahead is always critical; otherwise the grade follows the number of
// flagged zones.
func DangerLevel(obstacles sensor.ZoneSet) sensor.DangerLevel {
	switch {
	case obstacles.Has(sensor.Center):
		return sensor.Critical
	case obstacles.Count() > 1:
		return sensor.High
	case obstacles.Count() == 1:
		return sensor.Medium
	default:
		return sensor.Safe
	}
}

// AssessVideo builds the processed record for a depth reading.
func AssessVideo(r sensor.RawVideoReading) sensor.ProcessedVideo {
	level := DangerLevel(r.Obstacles)
	return sensor.ProcessedVideo{
		Mode:          r.Mode,
		ObstacleInfo:  r.ObstacleInfo,
		AvoidZone:     r.AvoidZone,
		DangerLevel:   level,
		Risk:          level.Risk(),
		Distances:     r.Distances,
		Obstacles:     r.Obstacles,
		ObstacleCount: r.Obstacles.Count(),
		FrameNumber:   r.FrameNumber,
		Timestamp:     r.Timestamp,
	}
}
