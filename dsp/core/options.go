package core

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig reports a ProcessorConfig a processor cannot run with.
var ErrInvalidConfig = errors.New("core: invalid processor config")

// MaxChannels is the widest interleaved layout processors accept.
const MaxChannels = 2

// ProcessorConfig is the stream format a processor is allocated for.
type ProcessorConfig struct {
	SampleRate float64
	// BlockSize is the largest block processed at once, in frames.
	BlockSize int
	Channels  int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig is 48 kHz stereo with 4096-frame blocks.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 48000,
		BlockSize:  4096,
		Channels:   2,
	}
}

// Validate checks that the format is finite, positive and at most stereo.
func (c ProcessorConfig) Validate() error {
	switch {
	case !(c.SampleRate > 0) || !IsFinite(c.SampleRate):
		return fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	case c.Channels < 1 || c.Channels > MaxChannels:
		return fmt.Errorf("%w: channels must be 1 or 2: %d", ErrInvalidConfig, c.Channels)
	}
	return nil
}

// WithSampleRate sets the sample rate in Hz.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		cfg.SampleRate = sampleRate
	}
}

// WithBlockSize sets the largest block in frames.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		cfg.BlockSize = blockSize
	}
}

// WithChannels sets the interleaved channel count.
func WithChannels(channels int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		cfg.Channels = channels
	}
}

// ApplyProcessorOptions applies opts over DefaultProcessorConfig and
// validates the result.
func ApplyProcessorOptions(opts ...ProcessorOption) (ProcessorConfig, error) {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg, cfg.Validate()
}
