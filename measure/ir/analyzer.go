package ir

import (
	"errors"
	"math"
)

var (
	ErrEmptyIR           = errors.New("ir: impulse response is empty")
	ErrInvalidSampleRate = errors.New("ir: sample rate must be positive")
	ErrChannelMismatch   = errors.New("ir: channel lengths differ")
	ErrNoDecay           = errors.New("ir: insufficient decay for RT estimate")
)

// Metrics describes one impulse response, measured from its peak.
type Metrics struct {
	RT60       float64 `json:"rt60"` // seconds, T30 when available else T20
	EDT        float64 `json:"edt"`
	T20        float64 `json:"t20"`
	T30        float64 `json:"t30"`
	C50        float64 `json:"c50"` // dB
	C80        float64 `json:"c80"`
	D50        float64 `json:"d50"` // 0..1
	D80        float64 `json:"d80"`
	CenterTime float64 `json:"centerTime"` // seconds
	PeakIndex  int     `json:"peakIndex"`
	// OnsetIndex is the first sample within 20 dB of the peak.
	OnsetIndex int `json:"onsetIndex"`
}

// StereoMetrics holds per-channel metrics and the interchannel correlation
// of the tails.
type StereoMetrics struct {
	Left        Metrics `json:"left"`
	Right       Metrics `json:"right"`
	Correlation float64 `json:"correlation"`
}

// Analyzer computes Metrics at a fixed sample rate.
type Analyzer struct {
	SampleRate float64
}

// NewAnalyzer returns an analyzer for sampleRate.
func NewAnalyzer(sampleRate float64) *Analyzer {
	return &Analyzer{SampleRate: sampleRate}
}

func (a *Analyzer) check(ir []float64) error {
	if len(ir) == 0 {
		return ErrEmptyIR
	}
	if !(a.SampleRate > 0) || math.IsInf(a.SampleRate, 0) {
		return ErrInvalidSampleRate
	}
	return nil
}

// Analyze measures ir.
func (a *Analyzer) Analyze(ir []float64) (Metrics, error) {
	if err := a.check(ir); err != nil {
		return Metrics{}, err
	}

	peak, onset := peakAndOnset(ir, 0.1)
	tail := ir[peak:]
	curve := DecayCurve(tail)
	e := newEnergy(tail)

	m := Metrics{
		PeakIndex:  peak,
		OnsetIndex: onset,
		EDT:        fitDecay(curve, a.SampleRate, 0, -10),
		T20:        fitDecay(curve, a.SampleRate, -5, -25),
		T30:        fitDecay(curve, a.SampleRate, -5, -35),
		C50:        e.clarity(a.samples(50)),
		C80:        e.clarity(a.samples(80)),
		D50:        e.definition(a.samples(50)),
		D80:        e.definition(a.samples(80)),
		CenterTime: e.centroid() / a.SampleRate,
	}
	m.RT60 = m.T30
	if m.RT60 == 0 {
		m.RT60 = m.T20
	}
	return m, nil
}

// RT60 returns the reverberation time of ir or ErrNoDecay when neither
// T30 nor T20 can be fitted.
func (a *Analyzer) RT60(ir []float64) (float64, error) {
	m, err := a.Analyze(ir)
	if err != nil {
		return 0, err
	}
	if m.RT60 == 0 {
		return 0, ErrNoDecay
	}
	return m.RT60, nil
}

// AnalyzeStereo measures both channels and their correlation.
func (a *Analyzer) AnalyzeStereo(left, right []float64) (StereoMetrics, error) {
	if len(left) != len(right) {
		return StereoMetrics{}, ErrChannelMismatch
	}
	l, err := a.Analyze(left)
	if err != nil {
		return StereoMetrics{}, err
	}
	r, err := a.Analyze(right)
	if err != nil {
		return StereoMetrics{}, err
	}
	return StereoMetrics{Left: l, Right: r, Correlation: Correlation(left, right)}, nil
}

// Correlation is the normalized zero-lag cross-correlation of a and b, in
// [-1, 1]. Silent input yields 0.
func Correlation(a, b []float64) float64 {
	n := min(len(a), len(b))
	var ab, aa, bb float64
	for i := range n {
		ab += a[i] * b[i]
		aa += a[i] * a[i]
		bb += b[i] * b[i]
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / math.Sqrt(aa*bb)
}

func (a *Analyzer) samples(ms float64) int {
	return int(math.Round(ms * 0.001 * a.SampleRate))
}

// peakAndOnset returns the index of the absolute maximum and of the first
// sample reaching ratio times that maximum.
func peakAndOnset(ir []float64, ratio float64) (peak, onset int) {
	var peakVal float64
	for i, v := range ir {
		if av := math.Abs(v); av > peakVal {
			peakVal, peak = av, i
		}
	}
	for i, v := range ir {
		if math.Abs(v) >= peakVal*ratio {
			return peak, i
		}
	}
	return peak, 0
}

// energy holds the running energy of a tail: cum[i] is the energy of the
// first i samples.
type energy struct {
	cum      []float64
	weighted float64
}

func newEnergy(ir []float64) energy {
	e := energy{cum: make([]float64, len(ir)+1)}
	for i, v := range ir {
		p := v * v
		e.cum[i+1] = e.cum[i] + p
		e.weighted += float64(i) * p
	}
	return e
}

func (e energy) total() float64 { return e.cum[len(e.cum)-1] }

func (e energy) early(n int) float64 {
	return e.cum[max(0, min(n, len(e.cum)-1))]
}

func (e energy) clarity(n int) float64 {
	early := e.early(n)
	late := e.total() - early
	switch {
	case early <= 0:
		return math.Inf(-1)
	case late <= 0:
		return math.Inf(1)
	}
	return 10 * math.Log10(early/late)
}

func (e energy) definition(n int) float64 {
	if e.total() <= 0 {
		return 0
	}
	return e.early(n) / e.total()
}

// centroid is the energy-weighted mean sample index.
func (e energy) centroid() float64 {
	if e.total() <= 0 {
		return 0
	}
	return e.weighted / e.total()
}
