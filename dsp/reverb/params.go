package reverb

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/native-reverb/dsp/core"
)

const (
	// DefaultMaxPreDelayMs bounds the pre-delay line allocated by NewProcessor
	// when no explicit maximum is given.
	DefaultMaxPreDelayMs = 500.0

	defaultRoomSize   = 0.5
	defaultDamping    = 0.5
	defaultWetLevel   = 1.0 / 3.0
	defaultDryLevel   = 0.5
	defaultPreDelayMs = 10.0
	defaultWidth      = 1.0
)

// ErrNonFinite is returned when a parameter value is NaN or infinite.
var ErrNonFinite = errors.New("reverb: parameter must be finite")

// Parameters is the complete, user-facing reverb configuration.
// All levels are normalized to [0,1]; PreDelayMs is in [0, maxPreDelayMs].
type Parameters struct {
	RoomSize   float64 `json:"roomSize" yaml:"roomSize"`
	Damping    float64 `json:"damping" yaml:"damping"`
	WetLevel   float64 `json:"wetLevel" yaml:"wetLevel"`
	DryLevel   float64 `json:"dryLevel" yaml:"dryLevel"`
	PreDelayMs float64 `json:"preDelayMs" yaml:"preDelayMs"`
	Width      float64 `json:"width" yaml:"width"`
	Freeze     bool    `json:"freeze" yaml:"freeze"`
}

// DefaultParameters returns the parameter set every engine starts from.
func DefaultParameters() Parameters {
	return Parameters{
		RoomSize:   defaultRoomSize,
		Damping:    defaultDamping,
		WetLevel:   defaultWetLevel,
		DryLevel:   defaultDryLevel,
		PreDelayMs: defaultPreDelayMs,
		Width:      defaultWidth,
	}
}

// Validate reports the first non-finite field.
func (p Parameters) Validate() error {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"roomSize", p.RoomSize},
		{"damping", p.Damping},
		{"wetLevel", p.WetLevel},
		{"dryLevel", p.DryLevel},
		{"preDelayMs", p.PreDelayMs},
		{"width", p.Width},
	}
	for _, f := range fields {
		if !core.IsFinite(f.value) {
			return fmt.Errorf("%w: %s=%v", ErrNonFinite, f.name, f.value)
		}
	}
	return nil
}

// Clamp returns p with every field limited to its valid range and reports
// whether any value changed. Non-finite values map to the range bound they
// point at, NaN to the lower bound; callers that must reject them use
// Validate first.
func (p Parameters) Clamp(maxPreDelayMs float64) (Parameters, bool) {
	if maxPreDelayMs < 0 || math.IsNaN(maxPreDelayMs) {
		maxPreDelayMs = 0
	}

	out := Parameters{
		RoomSize:   clampUnit(p.RoomSize),
		Damping:    clampUnit(p.Damping),
		WetLevel:   clampUnit(p.WetLevel),
		DryLevel:   clampUnit(p.DryLevel),
		PreDelayMs: clampRange(p.PreDelayMs, 0, maxPreDelayMs),
		Width:      clampUnit(p.Width),
		Freeze:     p.Freeze,
	}
	return out, out != p
}

func clampUnit(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return core.Clamp(v, lo, hi)
}
