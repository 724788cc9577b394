// Package utils provides audio math helpers shared by the capture and
// playback pipelines.
package utils

import (
	"math"

	"github.com/google/uuid"
)

// NewRequestID returns a unique identifier for outbound requests.
func NewRequestID() string {
	return uuid.NewString()
}

// Resample converts samples from one rate to another using linear
// interpolation. Good enough for speech; the gateway applies its own
// conditioning. Returns the input unchanged when the rates match.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}
	return ResampleInto(nil, samples, fromRate, toRate)
}

// ResampleInto appends the resampled signal to dst and returns it. Passing
// a buffer with spare capacity keeps the audio hot path allocation-free.
func ResampleInto(dst, samples []float32, fromRate, toRate int) []float32 {
	if len(samples) == 0 {
		return dst
	}
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return append(dst, samples...)
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)

	for i := 0; i < outLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		if idx+1 < len(samples) {
			dst = append(dst, samples[idx]*(1-frac)+samples[idx+1]*frac)
		} else {
			dst = append(dst, samples[len(samples)-1])
		}
	}
	return dst
}

// CalculateRMS returns the root-mean-square level of the samples.
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// AudioStats summarizes a window of samples for diagnostics.
type AudioStats struct {
	Peak         float32
	SilenceRatio float64
}

// CalculateAudioStats computes the peak level and the fraction of samples
// below the given silence threshold.
func CalculateAudioStats(samples []float32, silenceThreshold float32) AudioStats {
	if len(samples) == 0 {
		return AudioStats{SilenceRatio: 1}
	}

	var peak float32
	silent := 0
	for _, s := range samples {
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
		if abs < silenceThreshold {
			silent++
		}
	}
	return AudioStats{
		Peak:         peak,
		SilenceRatio: float64(silent) / float64(len(samples)),
	}
}

// IsSilent reports whether the window is quiet: RMS below thresholdRMS and
// at least ratio of the samples under the threshold.
func IsSilent(samples []float32, thresholdRMS float64, ratio float64) bool {
	if len(samples) == 0 {
		return true
	}
	stats := CalculateAudioStats(samples, float32(thresholdRMS))
	return CalculateRMS(samples) < thresholdRMS && stats.SilenceRatio >= ratio
}
