package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/native-reverb/dsp/core"
	"github.com/cwbudde/native-reverb/dsp/delay"
)

const (
	fdnSize = 8

	fdnReferenceSampleRate = 44100.0
	fdnModDepthSec         = 0.002
	fdnModRateHz           = 0.1
	fdnMinRT60             = 0.3
	fdnMaxRT60             = 8.0
	fdnScaleDamp           = 0.9
	fdnModSlewSec          = 0.25
)

var fdnDelaySamples = [fdnSize]float64{1537, 1753, 1999, 2251, 2473, 2689, 2851, 3067}

var fdnHadamard = [fdnSize][fdnSize]float64{
	{1, 1, 1, 1, 1, 1, 1, 1},
	{1, -1, 1, -1, 1, -1, 1, -1},
	{1, 1, -1, -1, 1, 1, -1, -1},
	{1, -1, -1, 1, 1, -1, -1, 1},
	{1, 1, 1, 1, -1, -1, -1, -1},
	{1, -1, 1, -1, -1, 1, -1, 1},
	{1, 1, -1, -1, -1, -1, 1, 1},
	{1, -1, -1, 1, -1, 1, 1, -1},
}

// Output taps use two orthogonal Hadamard rows so the channels decorrelate.
var (
	fdnTapL = fdnHadamard[1]
	fdnTapR = fdnHadamard[2]
)

// FDN is an 8-line feedback delay network tank with LFO-modulated reads and
// one-pole damping in each feedback path. While frozen the modulation fades
// out so reads land on integer delays and the loop is lossless.
type FDN struct {
	sampleRate float64

	rt60   float64
	damp   float64
	frozen bool

	lfoPhase float64
	lfoInc   float64
	modScale float64
	modSlew  float64

	delaySamples    [fdnSize]float64
	modDepthSamples float64

	lines        [fdnSize]*delay.Line
	filterState  [fdnSize]float64
	feedbackGain [fdnSize]float64

	inputGain   float64
	outputGain  float64
	matrixScale float64
}

// NewFDN allocates a tank with delay lengths scaled to sampleRate.
func NewFDN(sampleRate float64) (*FDN, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("fdn sample rate must be > 0: %f", sampleRate)
	}

	scale := 1 / math.Sqrt(float64(fdnSize))
	r := &FDN{
		sampleRate:      sampleRate,
		lfoInc:          2 * math.Pi * fdnModRateHz / sampleRate,
		modScale:        1,
		modSlew:         1 / (fdnModSlewSec * sampleRate),
		modDepthSamples: fdnModDepthSec * sampleRate,
		inputGain:       scale,
		outputGain:      scale,
		matrixScale:     scale,
	}

	lineScale := sampleRate / fdnReferenceSampleRate
	for i := range fdnSize {
		r.delaySamples[i] = math.Round(fdnDelaySamples[i] * lineScale)

		// +1 because reads happen before the write of the current frame.
		line, err := delay.ForMaxDelay(r.delaySamples[i] + r.modDepthSamples + 1)
		if err != nil {
			return nil, fmt.Errorf("fdn line %d: %w", i, err)
		}
		r.lines[i] = line
	}

	r.Configure(DefaultParameters())
	return r, nil
}

// RT60ForRoomSize maps a normalized room size exponentially onto
// [0.3s, 8s].
func RT60ForRoomSize(roomSize float64) float64 {
	roomSize = core.Clamp(roomSize, 0, 1)
	return fdnMinRT60 * math.Pow(fdnMaxRT60/fdnMinRT60, roomSize)
}

// Configure implements Tank.
func (r *FDN) Configure(p Parameters) {
	r.frozen = p.Freeze
	if r.frozen {
		r.damp = 0
		for i := range fdnSize {
			r.feedbackGain[i] = 1
		}
		return
	}

	r.rt60 = RT60ForRoomSize(p.RoomSize)
	r.damp = core.Clamp(p.Damping, 0, 1) * fdnScaleDamp
	for i := range fdnSize {
		delaySeconds := r.delaySamples[i] / r.sampleRate
		r.feedbackGain[i] = math.Pow(10, -3*delaySeconds/r.rt60)
	}
}

// Tick implements Tank.
func (r *FDN) Tick(inL, inR float64) (float64, float64) {
	in := 0.5 * (inL + inR) * r.inputGain
	if r.frozen {
		in = 0
		r.modScale = max(0, r.modScale-r.modSlew)
	} else if r.modScale < 1 {
		r.modScale = min(1, r.modScale+r.modSlew)
	}
	depth := r.modDepthSamples * r.modScale

	var taps [fdnSize]float64
	for i := range fdnSize {
		phaseOffset := (2 * math.Pi * float64(i)) / float64(fdnSize)
		mod := 0.5 * (1 + math.Sin(r.lfoPhase+phaseOffset))
		taps[i] = r.lines[i].ReadFractional(r.delaySamples[i] + depth*mod + 1)
	}

	r.lfoPhase += r.lfoInc
	if r.lfoPhase >= 2*math.Pi {
		r.lfoPhase -= 2 * math.Pi
	}

	for i := range fdnSize {
		feedback := 0.0
		for j := range fdnSize {
			feedback += fdnHadamard[i][j] * taps[j]
		}
		feedback *= r.matrixScale

		filtered := core.FlushDenormals(feedback*(1-r.damp) + r.filterState[i]*r.damp)
		r.filterState[i] = filtered
		r.lines[i].Write(in + filtered*r.feedbackGain[i])
	}

	var outL, outR float64
	for i := range fdnSize {
		outL += fdnTapL[i] * taps[i]
		outR += fdnTapR[i] * taps[i]
	}
	return outL * r.outputGain, outR * r.outputGain
}

// Reset implements Tank.
func (r *FDN) Reset() {
	for i := range fdnSize {
		r.lines[i].Reset()
		r.filterState[i] = 0
	}
	r.lfoPhase = 0
	r.modScale = 1
	if r.frozen {
		r.modScale = 0
	}
}

// RT60 returns the decay time derived from the last non-frozen Configure.
func (r *FDN) RT60() float64 { return r.rt60 }

// Damp returns the current feedback damping.
func (r *FDN) Damp() float64 { return r.damp }
