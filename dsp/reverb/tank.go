package reverb

import (
	"fmt"
	"strings"
)

// Algorithm selects the reverb tank.
type Algorithm string

const (
	AlgorithmFreeverb Algorithm = "freeverb"
	AlgorithmFDN      Algorithm = "fdn"
)

// ParseAlgorithm accepts the algorithm names case-insensitively. The empty
// string selects Freeverb.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmFreeverb:
		return AlgorithmFreeverb, nil
	case AlgorithmFDN:
		return AlgorithmFDN, nil
	default:
		return "", fmt.Errorf("reverb: unknown algorithm %q", s)
	}
}

// Tank is the recirculating part of a reverb. It receives the pre-delayed
// stereo input and returns the raw wet pair; mixing happens in Processor.
type Tank interface {
	// Configure maps parameters onto tank coefficients. It must not allocate.
	Configure(p Parameters)
	// Tick processes one stereo frame.
	Tick(inL, inR float64) (outL, outR float64)
	// Reset clears all delay and filter state.
	Reset()
}

// NewTank builds the tank for alg at the given sample rate.
func NewTank(alg Algorithm, sampleRate float64) (Tank, error) {
	switch alg {
	case AlgorithmFreeverb, "":
		return NewFreeverb(sampleRate)
	case AlgorithmFDN:
		return NewFDN(sampleRate)
	default:
		return nil, fmt.Errorf("reverb: unknown algorithm %q", alg)
	}
}
