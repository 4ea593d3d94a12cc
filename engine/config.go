package engine

import (
	"fmt"

	"github.com/cwbudde/native-reverb/dsp/core"
	"github.com/cwbudde/native-reverb/dsp/reverb"
)

const (
	maxSampleRate    = 768000
	maxFramesLimit   = 1 << 16
	maxPreDelayLimit = 10000
)

// Config is the non-real-time setup of an engine.
type Config struct {
	SampleRate    float64          `json:"sampleRate" yaml:"sampleRate"`
	Channels      int              `json:"channels" yaml:"channels"`
	MaxFrames     int              `json:"maxFrames" yaml:"maxFrames"`
	MaxPreDelayMs float64          `json:"maxPreDelayMs" yaml:"maxPreDelayMs"`
	Algorithm     reverb.Algorithm `json:"algorithm" yaml:"algorithm"`
}

// DefaultConfig returns a stereo 48 kHz Freeverb configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		Channels:      2,
		MaxFrames:     4096,
		MaxPreDelayMs: reverb.DefaultMaxPreDelayMs,
		Algorithm:     reverb.AlgorithmFreeverb,
	}
}

// Validate checks every field. Errors wrap ErrInvalidArgument.
func (c Config) Validate() error {
	if !core.IsFinite(c.SampleRate) || c.SampleRate <= 0 || c.SampleRate > maxSampleRate {
		return fmt.Errorf("%w: sample rate must be in (0, %d]: %v", ErrInvalidArgument, maxSampleRate, c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("%w: channels must be 1 or 2: %d", ErrInvalidArgument, c.Channels)
	}
	if c.MaxFrames <= 0 || c.MaxFrames > maxFramesLimit {
		return fmt.Errorf("%w: max frames must be in [1, %d]: %d", ErrInvalidArgument, maxFramesLimit, c.MaxFrames)
	}
	if !core.IsFinite(c.MaxPreDelayMs) || c.MaxPreDelayMs < 0 || c.MaxPreDelayMs > maxPreDelayLimit {
		return fmt.Errorf("%w: max pre-delay must be in [0, %d] ms: %v", ErrInvalidArgument, maxPreDelayLimit, c.MaxPreDelayMs)
	}
	if _, err := reverb.ParseAlgorithm(string(c.Algorithm)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}
