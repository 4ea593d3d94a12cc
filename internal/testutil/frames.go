// Package testutil builds interleaved test signals and checks audio buffers.
package testutil

import (
	"math"
	"math/rand"
	"testing"
)

// Interleave converts per-channel float64 signals into one interleaved
// float32 buffer. All channels must have the same length.
func Interleave(channels ...[]float64) []float32 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]float32, frames*len(channels))
	for ch, data := range channels {
		for i := 0; i < frames && i < len(data); i++ {
			out[i*len(channels)+ch] = float32(data[i])
		}
	}
	return out
}

// Deinterleave extracts channel ch from an interleaved buffer.
func Deinterleave(samples []float32, channels, ch int) []float64 {
	if channels <= 0 {
		return nil
	}
	out := make([]float64, len(samples)/channels)
	for i := range out {
		out[i] = float64(samples[i*channels+ch])
	}
	return out
}

// NoiseFrames returns interleaved deterministic noise, each channel seeded
// from seed+channel.
func NoiseFrames(seed int64, amplitude float64, frames, channels int) []float32 {
	chans := make([][]float64, channels)
	for ch := range chans {
		chans[ch] = noise(seed+int64(ch), amplitude, frames)
	}
	return Interleave(chans...)
}

// ImpulseFrames returns an interleaved buffer with a unit impulse at frame
// pos on every channel.
func ImpulseFrames(frames, channels, pos int) []float32 {
	out := make([]float32, frames*channels)
	if pos >= 0 && pos < frames {
		for ch := range channels {
			out[pos*channels+ch] = 1
		}
	}
	return out
}

// RequireFinite32 fails t if any sample is NaN or Inf.
func RequireFinite32(t *testing.T, data []float32) {
	t.Helper()
	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// Energy32 returns the sum of squared samples.
func Energy32(data []float32) float64 {
	var e float64
	for _, v := range data {
		e += float64(v) * float64(v)
	}
	return e
}

// FirstAbove returns the index of the first sample whose magnitude exceeds
// threshold, or -1.
func FirstAbove(data []float32, threshold float64) int {
	for i, v := range data {
		if math.Abs(float64(v)) > threshold {
			return i
		}
	}
	return -1
}

// noise is uniform white noise in [-amplitude, amplitude) from a fixed seed.
func noise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}
