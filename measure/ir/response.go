package ir

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// OctaveCenters are the nominal octave-band centers Response reports.
var OctaveCenters = []float64{63, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

// Band is the level of one octave band.
type Band struct {
	Center float64 `json:"center"` // Hz
	Level  float64 `json:"level"`  // dB relative to the loudest band
}

// Response returns the octave-band energy of ir, normalized so the loudest
// band is 0 dB. Bands above Nyquist are omitted. The last tenth of ir is
// faded out before the transform.
func Response(ir []float64, sampleRate float64) ([]Band, error) {
	if len(ir) == 0 {
		return nil, ErrEmptyIR
	}
	if !(sampleRate > 0) {
		return nil, ErrInvalidSampleRate
	}

	n := nextPow2(len(ir))
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("ir: FFT plan: %w", err)
	}

	frame := make([]float64, n)
	copy(frame, ir)
	fadeTail(frame[:len(ir)])

	src := make([]complex128, n)
	for i, v := range frame {
		src[i] = complex(v, 0)
	}
	spec := make([]complex128, n)
	if err := plan.Forward(spec, src); err != nil {
		return nil, fmt.Errorf("ir: FFT: %w", err)
	}

	half := n/2 + 1
	re := make([]float64, half)
	im := make([]float64, half)
	for i := range half {
		re[i], im[i] = real(spec[i]), imag(spec[i])
	}
	mag := make([]float64, half)
	vecmath.Magnitude(mag, re, im)

	binHz := sampleRate / float64(n)
	nyquist := sampleRate / 2
	bands := make([]Band, 0, len(OctaveCenters))
	peak := math.Inf(-1)
	for _, fc := range OctaveCenters {
		lo, hi := fc/math.Sqrt2, fc*math.Sqrt2
		if hi > nyquist {
			break
		}
		var sum float64
		var count int
		for k := int(math.Ceil(lo / binHz)); k <= int(hi/binHz) && k < half; k++ {
			sum += mag[k] * mag[k]
			count++
		}
		level := math.Inf(-1)
		if count > 0 && sum > 0 {
			level = 10 * math.Log10(sum/float64(count))
		}
		peak = max(peak, level)
		bands = append(bands, Band{Center: fc, Level: level})
	}
	if !math.IsInf(peak, -1) {
		for i := range bands {
			bands[i].Level -= peak
		}
	}
	return bands, nil
}

// fadeTail applies a half-cosine fade over the last tenth of x.
func fadeTail(x []float64) {
	n := len(x) / 10
	if n < 2 {
		return
	}
	gains := make([]float64, n)
	for i := range gains {
		gains[i] = 0.5 * (1 + math.Cos(math.Pi*float64(i)/float64(n-1)))
	}
	vecmath.MulBlockInPlace(x[len(x)-n:], gains)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
