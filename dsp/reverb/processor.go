package reverb

import (
	"fmt"
	"math"

	"github.com/cwbudde/native-reverb/dsp/core"
	"github.com/cwbudde/native-reverb/dsp/delay"
)

const (
	freeverbScaleWet = 3.0
	fdnScaleWet      = 1.0
	scaleDry         = 2.0
)

// mix holds the gains the processor ramps between parameter sets.
type mix struct {
	wet1     float64
	wet2     float64
	dry      float64
	preDelay float64
}

func (m *mix) add(step mix) {
	m.wet1 += step.wet1
	m.wet2 += step.wet2
	m.dry += step.dry
	m.preDelay += step.preDelay
}

// Processor renders interleaved mono or stereo blocks through pre-delay,
// tank and wet/dry mixer.
type Processor struct {
	cfg           core.ProcessorConfig
	algorithm     Algorithm
	maxPreDelayMs float64
	wetScale      float64

	tank     Tank
	preDelay [2]*delay.Line

	params  Parameters
	current mix
	target  mix
	// settled is set while no audio has been rendered since allocation or
	// Reset; the next parameter change then applies without a ramp.
	settled bool
}

// NewProcessor allocates a processor. Sample rate and channel count come from
// opts; channels must be 1 or 2.
func NewProcessor(alg Algorithm, maxPreDelayMs float64, opts ...core.ProcessorOption) (*Processor, error) {
	cfg, err := core.ApplyProcessorOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("reverb: %w", err)
	}
	if maxPreDelayMs < 0 || !core.IsFinite(maxPreDelayMs) {
		return nil, fmt.Errorf("reverb: max pre-delay must be >= 0: %f", maxPreDelayMs)
	}

	tank, err := NewTank(alg, cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:           cfg,
		algorithm:     alg,
		maxPreDelayMs: maxPreDelayMs,
		wetScale:      freeverbScaleWet,
		tank:          tank,
	}
	if alg == AlgorithmFDN {
		p.wetScale = fdnScaleWet
	}

	maxSamples := core.MsToSamples(maxPreDelayMs, cfg.SampleRate)
	for ch := range cfg.Channels {
		line, err := delay.ForMaxDelay(maxSamples + 1)
		if err != nil {
			return nil, fmt.Errorf("reverb: pre-delay: %w", err)
		}
		p.preDelay[ch] = line
	}

	p.params, _ = DefaultParameters().Clamp(maxPreDelayMs)
	p.tank.Configure(p.params)
	p.target = p.mixFor(p.params)
	p.current = p.target
	p.settled = true
	return p, nil
}

// SetParameters clamps params and retargets the mixer. The gains move
// linearly to the new values over the next processed block, unless nothing
// has been rendered since NewProcessor or Reset, in which case they jump.
// Tank coefficients change immediately.
func (p *Processor) SetParameters(params Parameters) {
	params, _ = params.Clamp(p.maxPreDelayMs)
	p.params = params
	p.tank.Configure(params)
	p.target = p.mixFor(params)
	if p.settled {
		p.current = p.target
	}
}

// Parameters returns the parameter set last applied.
func (p *Processor) Parameters() Parameters { return p.params }

// Algorithm returns the tank algorithm.
func (p *Processor) Algorithm() Algorithm { return p.algorithm }

// SampleRate returns the processing sample rate in Hz.
func (p *Processor) SampleRate() float64 { return p.cfg.SampleRate }

// Channels returns the interleaved channel count.
func (p *Processor) Channels() int { return p.cfg.Channels }

// MaxPreDelayMs returns the largest accepted pre-delay.
func (p *Processor) MaxPreDelayMs() float64 { return p.maxPreDelayMs }

// Reset clears tank and pre-delay state and settles any pending ramp. The
// processor then renders exactly like a new one with the same parameters.
func (p *Processor) Reset() {
	p.tank.Reset()
	for _, line := range p.preDelay {
		if line != nil {
			line.Reset()
		}
	}
	p.current = p.target
	p.settled = true
}

func (p *Processor) mixFor(params Parameters) mix {
	wet := params.WetLevel * p.wetScale
	return mix{
		wet1:     wet * (params.Width/2 + 0.5),
		wet2:     wet * ((1 - params.Width) / 2),
		dry:      params.DryLevel * scaleDry,
		preDelay: core.MsToSamples(params.PreDelayMs, p.cfg.SampleRate),
	}
}

// ProcessInterleaved renders frames frames from in to out. Both slices must
// hold at least frames*Channels() samples; they may alias. Non-finite input
// samples are treated as silence so they cannot poison the tank.
func (p *Processor) ProcessInterleaved(in, out []float32, frames int) {
	if frames <= 0 {
		return
	}

	var step mix
	ramping := p.current != p.target
	if ramping {
		n := float64(frames)
		step = mix{
			wet1:     (p.target.wet1 - p.current.wet1) / n,
			wet2:     (p.target.wet2 - p.current.wet2) / n,
			dry:      (p.target.dry - p.current.dry) / n,
			preDelay: (p.target.preDelay - p.current.preDelay) / n,
		}
	}

	g := p.current
	if p.cfg.Channels == 1 {
		for i := range frames {
			if ramping {
				g.add(step)
			}
			x := sanitize(in[i])
			d := p.preDelay[0].Process(x, g.preDelay)
			wetL, wetR := p.tank.Tick(d, d)
			y := 0.5*(g.wet1+g.wet2)*(wetL+wetR) + g.dry*x
			out[i] = float32(y)
		}
	} else {
		for i := range frames {
			if ramping {
				g.add(step)
			}
			xl := sanitize(in[2*i])
			xr := sanitize(in[2*i+1])
			dl := p.preDelay[0].Process(xl, g.preDelay)
			dr := p.preDelay[1].Process(xr, g.preDelay)
			wetL, wetR := p.tank.Tick(dl, dr)
			out[2*i] = float32(wetL*g.wet1 + wetR*g.wet2 + xl*g.dry)
			out[2*i+1] = float32(wetR*g.wet1 + wetL*g.wet2 + xr*g.dry)
		}
	}

	p.current = p.target
	p.settled = false
}

func sanitize(x float32) float64 {
	v := float64(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
