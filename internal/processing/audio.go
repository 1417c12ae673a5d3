// Package processing turns raw sensor records into feature records: loudness
// features for microphone blocks and a danger grade for depth readings.
package processing

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/wayfinder/internal/sensor"
)

// Loudness thresholds in dB.
const (
	calmBelowDB      = -45.0
	someNoiseBelowDB = -30.0
	carefulBelowDB   = -15.0

	// minRMS keeps the log finite for near-silent blocks.
	minRMS = 1e-12
)

// ClassifyLoudness maps a dB level onto the four loudness classes.
func ClassifyLoudness(db float64) sensor.LoudnessClass {
	switch {
	case math.IsNaN(db) || db < calmBelowDB:
		return sensor.Calm
	case db < someNoiseBelowDB:
		return sensor.SomeNoise
	case db < carefulBelowDB:
		return sensor.BeCareful
	default:
		return sensor.Danger
	}
}

// RMS returns the root mean square of samples, or 0 for an empty block.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}

// Decibels converts an RMS amplitude to dBFS. An RMS of exactly zero is
// reported as -Inf.
func Decibels(rms float64) float64 {
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(math.Max(rms, minRMS))
}

// AudioAnalyzer extracts loudness features from fixed-size blocks. It reuses
// its FFT plan while the block length stays the same, so a single analyzer
// must not be shared between goroutines.
type AudioAnalyzer struct {
	fft    *fourier.FFT
	coeffs []complex128
}

// NewAudioAnalyzer returns an analyzer with no FFT plan yet.
func NewAudioAnalyzer() *AudioAnalyzer {
	return &AudioAnalyzer{}
}

// Analyze computes RMS, dB, loudness class and the dominant frequency bin.
func (a *AudioAnalyzer) Analyze(samples []float64, at time.Time) sensor.ProcessedAudio {
	rms := RMS(samples)
	db := Decibels(rms)
	return sensor.ProcessedAudio{
		RMS:         rms,
		DB:          db,
		Loudness:    ClassifyLoudness(db),
		DominantBin: a.dominantBin(samples),
		Timestamp:   at,
	}
}

// dominantBin returns the index of the largest magnitude among the first
// n/2 FFT coefficients.
func (a *AudioAnalyzer) dominantBin(samples []float64) int {
	n := len(samples)
	if n < 2 {
		return 0
	}
	if a.fft == nil || a.fft.Len() != n {
		a.fft = fourier.NewFFT(n)
		a.coeffs = make([]complex128, n/2+1)
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, samples)

	best, bestMag := 0, -1.0
	for i, c := range a.coeffs[:n/2] {
		if mag := math.Hypot(real(c), imag(c)); mag > bestMag {
			best, bestMag = i, mag
		}
	}
	return best
}

// AnalyzeAudio is a one-shot Analyze.
func AnalyzeAudio(samples []float64, at time.Time) sensor.ProcessedAudio {
	return NewAudioAnalyzer().Analyze(samples, at)
}
