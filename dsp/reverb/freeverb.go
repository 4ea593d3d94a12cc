package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/native-reverb/dsp/core"
)

const (
	freeverbNumCombs     = 8
	freeverbNumAllpasses = 4

	freeverbFixedGain    = 0.015
	freeverbScaleDamp    = 0.4
	freeverbScaleRoom    = 0.28
	freeverbOffsetRoom   = 0.7
	freeverbStereoSpread = 23

	freeverbAllpassFeedback = 0.5
	freeverbReferenceRate   = 44100.0
)

// Tunings in samples at 44.1 kHz for the left channel. The right channel adds
// freeverbStereoSpread.
var (
	freeverbCombTuning    = [freeverbNumCombs]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
	freeverbAllpassTuning = [freeverbNumAllpasses]int{556, 441, 341, 225}
)

// Freeverb is a stereo Schroeder/Moorer tank with damped lowpass-feedback
// combs followed by series allpasses.
type Freeverb struct {
	gain     float64
	feedback float64
	damp     float64

	combL, combR       [freeverbNumCombs]comb
	allpassL, allpassR [freeverbNumAllpasses]allpass
}

// NewFreeverb allocates a tank with tunings scaled to sampleRate.
func NewFreeverb(sampleRate float64) (*Freeverb, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("freeverb sample rate must be > 0: %f", sampleRate)
	}

	scale := sampleRate / freeverbReferenceRate
	size := func(tuning int) int {
		return max(1, int(math.Round(float64(tuning)*scale)))
	}

	f := &Freeverb{}
	for i := range freeverbNumCombs {
		f.combL[i] = newComb(size(freeverbCombTuning[i]))
		f.combR[i] = newComb(size(freeverbCombTuning[i] + freeverbStereoSpread))
	}
	for i := range freeverbNumAllpasses {
		f.allpassL[i] = newAllpass(size(freeverbAllpassTuning[i]))
		f.allpassR[i] = newAllpass(size(freeverbAllpassTuning[i] + freeverbStereoSpread))
	}
	f.Configure(DefaultParameters())
	return f, nil
}

// Configure implements Tank. Freeze holds the tank at unity feedback with no
// damping and mutes its input.
func (f *Freeverb) Configure(p Parameters) {
	if p.Freeze {
		f.gain = 0
		f.feedback = 1
		f.damp = 0
	} else {
		f.gain = freeverbFixedGain
		f.feedback = p.RoomSize*freeverbScaleRoom + freeverbOffsetRoom
		f.damp = p.Damping * freeverbScaleDamp
	}

	for i := range freeverbNumCombs {
		f.combL[i].set(f.feedback, f.damp)
		f.combR[i].set(f.feedback, f.damp)
	}
}

// Tick implements Tank.
func (f *Freeverb) Tick(inL, inR float64) (float64, float64) {
	x := (inL + inR) * f.gain

	var outL, outR float64
	for i := range freeverbNumCombs {
		outL += f.combL[i].process(x)
		outR += f.combR[i].process(x)
	}
	for i := range freeverbNumAllpasses {
		outL = f.allpassL[i].process(outL)
		outR = f.allpassR[i].process(outR)
	}
	return outL, outR
}

// Reset implements Tank.
func (f *Freeverb) Reset() {
	for i := range freeverbNumCombs {
		f.combL[i].reset()
		f.combR[i].reset()
	}
	for i := range freeverbNumAllpasses {
		f.allpassL[i].reset()
		f.allpassR[i].reset()
	}
}

// Feedback returns the current comb feedback.
func (f *Freeverb) Feedback() float64 { return f.feedback }

// Damp returns the current comb damping.
func (f *Freeverb) Damp() float64 { return f.damp }

type comb struct {
	feedback    float64
	filterStore float64
	dampA       float64
	dampB       float64
	buffer      []float64
	index       int
}

func newComb(size int) comb {
	return comb{buffer: make([]float64, size)}
}

func (c *comb) set(feedback, damp float64) {
	c.feedback = feedback
	c.dampA = damp
	c.dampB = 1 - damp
}

func (c *comb) process(input float64) float64 {
	output := c.buffer[c.index]
	c.filterStore = core.FlushDenormals(output*c.dampB + c.filterStore*c.dampA)
	c.buffer[c.index] = input + c.filterStore*c.feedback
	c.index++
	if c.index >= len(c.buffer) {
		c.index = 0
	}
	return output
}

func (c *comb) reset() {
	clear(c.buffer)
	c.index = 0
	c.filterStore = 0
}

type allpass struct {
	buffer []float64
	index  int
}

func newAllpass(size int) allpass {
	return allpass{buffer: make([]float64, size)}
}

func (a *allpass) process(input float64) float64 {
	bufOut := a.buffer[a.index]
	output := bufOut - input
	a.buffer[a.index] = core.FlushDenormals(input + bufOut*freeverbAllpassFeedback)
	a.index++
	if a.index >= len(a.buffer) {
		a.index = 0
	}
	return output
}

func (a *allpass) reset() {
	clear(a.buffer)
	a.index = 0
}
