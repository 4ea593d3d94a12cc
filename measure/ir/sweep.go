package ir

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// ErrInvalidSweep reports unusable Sweep settings.
var ErrInvalidSweep = errors.New("ir: invalid sweep")

// Sweep is an exponential sine sweep. Each octave takes the same time, so a
// sweep recording deconvolved with the sweep's inverse filter yields the
// linear impulse response with harmonic distortion pushed ahead of it.
type Sweep struct {
	StartHz    float64
	EndHz      float64
	Duration   float64 // seconds
	SampleRate float64
	// Level is the sweep amplitude; zero means 0.5.
	Level float64
}

// DefaultSweep covers 20 Hz to 90% of Nyquist in two seconds.
func DefaultSweep(sampleRate float64) Sweep {
	return Sweep{StartHz: 20, EndHz: 0.45 * sampleRate, Duration: 2, SampleRate: sampleRate, Level: 0.5}
}

// Validate checks the sweep settings.
func (s Sweep) Validate() error {
	switch {
	case !(s.SampleRate > 0):
		return fmt.Errorf("%w: sample rate %v", ErrInvalidSweep, s.SampleRate)
	case !(s.StartHz > 0) || !(s.EndHz > s.StartHz):
		return fmt.Errorf("%w: range %v..%v Hz", ErrInvalidSweep, s.StartHz, s.EndHz)
	case s.EndHz > s.SampleRate/2:
		return fmt.Errorf("%w: end %v Hz above Nyquist", ErrInvalidSweep, s.EndHz)
	case s.frames() < 2:
		return fmt.Errorf("%w: duration %v s", ErrInvalidSweep, s.Duration)
	case s.Level < 0 || s.Level > 1:
		return fmt.Errorf("%w: level %v", ErrInvalidSweep, s.Level)
	}
	return nil
}

func (s Sweep) frames() int {
	return int(math.Round(s.Duration * s.SampleRate))
}

func (s Sweep) level() float64 {
	if s.Level == 0 {
		return 0.5
	}
	return s.Level
}

// Generate returns the sweep signal:
//
//	x(t) = sin(2π f1 T / ln(f2/f1) * (exp(t/T ln(f2/f1)) - 1))
func (s Sweep) Generate() ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	n := s.frames()
	lnRatio := math.Log(s.EndHz / s.StartHz)
	k := 2 * math.Pi * s.StartHz * s.Duration / lnRatio

	out := make([]float64, n)
	for i := range out {
		t := float64(i) / s.SampleRate
		out[i] = s.level() * math.Sin(k*(math.Exp(t/s.Duration*lnRatio)-1))
	}
	return out, nil
}

// inverse returns the time-reversed sweep with a 6 dB/octave downward tilt,
// scaled so that deconvolving the sweep itself peaks at exactly 1.
func (s Sweep) inverse(sweep []float64) []float64 {
	n := len(sweep)
	lnRatio := math.Log(s.EndHz / s.StartHz)

	inv := make([]float64, n)
	var gain float64
	for i := range inv {
		j := n - 1 - i
		tilt := math.Exp(-float64(j) / s.SampleRate / s.Duration * lnRatio)
		inv[i] = sweep[j] * tilt
		gain += sweep[j] * inv[i]
	}
	if gain > 0 {
		for i := range inv {
			inv[i] /= gain
		}
	}
	return inv
}

// Deconvolve recovers length samples of the impulse response from a
// recording of the sweep. The linear response starts at index 0.
func (s Sweep) Deconvolve(recording []float64, length int) ([]float64, error) {
	sweep, err := s.Generate()
	if err != nil {
		return nil, err
	}
	if len(recording) == 0 || length <= 0 {
		return nil, ErrEmptyIR
	}
	inv := s.inverse(sweep)

	size := nextPow2(len(recording) + len(inv) - 1)
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("ir: FFT plan: %w", err)
	}

	spectrum := func(x []float64) ([]complex128, error) {
		padded := make([]complex128, size)
		for i, v := range x {
			padded[i] = complex(v, 0)
		}
		freq := make([]complex128, size)
		if err := plan.Forward(freq, padded); err != nil {
			return nil, fmt.Errorf("ir: forward FFT: %w", err)
		}
		return freq, nil
	}

	rec, err := spectrum(recording)
	if err != nil {
		return nil, err
	}
	filt, err := spectrum(inv)
	if err != nil {
		return nil, err
	}
	for i := range rec {
		rec[i] *= filt[i]
	}

	conv := make([]complex128, size)
	if err := plan.Inverse(conv, rec); err != nil {
		return nil, fmt.Errorf("ir: inverse FFT: %w", err)
	}

	// The linear response of a causal system lands at lag len(inv)-1.
	start := len(inv) - 1
	out := make([]float64, length)
	for i := range out {
		if start+i < size {
			out[i] = real(conv[start+i])
		}
	}
	return out, nil
}

// MeasureSweep plays s on every channel of process, keeps rendering for
// length frames after the sweep ends and deconvolves each output channel
// into a length-sample impulse response. Compared with Capture it trades
// render time for a noise floor that stays low in nonlinear or noisy paths.
func MeasureSweep(process ProcessFunc, channels, length, blockFrames int, s Sweep) ([][]float64, error) {
	sweep, err := s.Generate()
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: length=%d", ErrInvalidCapture, length)
	}

	recorded, err := drive(process, channels, len(sweep)+length, blockFrames, func(i int) float64 {
		if i < len(sweep) {
			return sweep[i]
		}
		return 0
	})
	if err != nil {
		return nil, err
	}

	out := make([][]float64, channels)
	for ch, rec := range recorded {
		if out[ch], err = s.Deconvolve(rec, length); err != nil {
			return nil, err
		}
	}
	return out, nil
}
