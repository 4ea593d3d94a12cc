package ir

import (
	"math"
	"testing"
)

func TestResponseOfImpulseIsFlat(t *testing.T) {
	ir := make([]float64, 4096)
	ir[0] = 1

	for _, tt := range []struct {
		sampleRate float64
		bands      int
	}{
		{48000, 9},
		{44100, 8},
		{8000, 6},
	} {
		bands, err := Response(ir, tt.sampleRate)
		if err != nil {
			t.Fatal(err)
		}
		if len(bands) != tt.bands {
			t.Fatalf("%v Hz: %d bands, want %d", tt.sampleRate, len(bands), tt.bands)
		}
		for _, b := range bands {
			if math.Abs(b.Level) > 1e-6 {
				t.Errorf("%v Hz: band %v = %.3f dB, want 0", tt.sampleRate, b.Center, b.Level)
			}
		}
	}
}

func TestResponseOfSmoother(t *testing.T) {
	// One-pole lowpass impulse response.
	ir := make([]float64, 8192)
	const a = 0.9
	ir[0] = 1 - a
	for i := 1; i < len(ir); i++ {
		ir[i] = ir[i-1] * a
	}

	bands, err := Response(ir, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if bands[0].Level != 0 {
		t.Errorf("lowest band = %v dB, want 0", bands[0].Level)
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Level >= bands[i-1].Level {
			t.Errorf("band %v (%.2f dB) not below band %v (%.2f dB)",
				bands[i].Center, bands[i].Level, bands[i-1].Center, bands[i-1].Level)
		}
	}
}

func TestResponseErrors(t *testing.T) {
	if _, err := Response(nil, 48000); err != ErrEmptyIR {
		t.Errorf("empty: %v", err)
	}
	if _, err := Response([]float64{1}, 0); err != ErrInvalidSampleRate {
		t.Errorf("rate: %v", err)
	}
}

func TestFadeTail(t *testing.T) {
	x := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	fadeTail(x)
	if x[17] != 1 || x[18] != 1 || x[19] != 0 {
		t.Errorf("fade = %v", x[16:])
	}
}
