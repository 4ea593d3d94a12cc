// Package device connects the reverb engine to audio hardware. A Driver opens
// a Stream that repeatedly invokes a Callback with interleaved float32 input
// and output buffers.
package device

import (
	"errors"
	"fmt"
)

// Mode selects where callback input comes from.
type Mode string

const (
	// ModePlayback renders StreamConfig.Source through the callback.
	ModePlayback Mode = "playback"
	// ModeDuplex feeds the capture device through the callback.
	ModeDuplex Mode = "duplex"
)

const (
	DefaultPeriodFrames = 256

	// maxChunkFrames bounds how many frames one callback invocation sees;
	// larger device periods are split.
	maxChunkFrames = 4096
)

// ErrInvalidConfig reports an unusable StreamConfig.
var ErrInvalidConfig = errors.New("device: invalid stream config")

// Callback renders frames frames. in and out hold frames*Channels samples.
// It runs on the audio thread.
type Callback func(in, out []float32, frames int)

// Source supplies playback input. Read fills dst without blocking and returns
// the number of samples written.
type Source interface {
	Read(dst []float32) int
}

// StreamConfig describes a stream.
type StreamConfig struct {
	SampleRate   int
	Channels     int
	PeriodFrames int
	Mode         Mode
	// DeviceName selects a device by name; empty selects the default.
	DeviceName string
	// Source provides input in playback mode. Nil plays silence.
	Source Source
	// OnUnderrun is called from the audio thread with the number of frames
	// Source could not supply.
	OnUnderrun func(frames int)
	// OnError is called when the device stops unexpectedly.
	OnError func(err error)
}

// Validate fills defaults and checks the configuration.
func (c *StreamConfig) Validate() error {
	if c.PeriodFrames == 0 {
		c.PeriodFrames = DefaultPeriodFrames
	}
	if c.Mode == "" {
		c.Mode = ModePlayback
	}

	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be > 0: %d", ErrInvalidConfig, c.SampleRate)
	case c.Channels != 1 && c.Channels != 2:
		return fmt.Errorf("%w: channels must be 1 or 2: %d", ErrInvalidConfig, c.Channels)
	case c.PeriodFrames < 0 || c.PeriodFrames > maxChunkFrames:
		return fmt.Errorf("%w: period must be in [1, %d]: %d", ErrInvalidConfig, maxChunkFrames, c.PeriodFrames)
	case c.Mode != ModePlayback && c.Mode != ModeDuplex:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

// Stream is an open device stream.
type Stream interface {
	Start() error
	Stop() error
	// Close stops the stream and frees the device. After Close returns the
	// callback is never invoked again.
	Close() error
	Config() StreamConfig
}

// Driver opens streams.
type Driver interface {
	Name() string
	Open(cfg StreamConfig, cb Callback) (Stream, error)
}

// pump adapts device buffers to the Callback: it splits oversized periods
// and pulls playback input from the Source.
type pump struct {
	cfg     StreamConfig
	cb      Callback
	scratch []float32
}

func newPump(cfg StreamConfig, cb Callback) *pump {
	return &pump{
		cfg:     cfg,
		cb:      cb,
		scratch: make([]float32, maxChunkFrames*cfg.Channels),
	}
}

func (p *pump) run(in, out []float32, frames int) {
	ch := p.cfg.Channels
	frames = min(frames, len(out)/ch)

	for off := 0; off < frames; {
		n := min(frames-off, maxChunkFrames)
		o := out[off*ch : (off+n)*ch]

		var i []float32
		if p.cfg.Mode == ModeDuplex && len(in) >= (off+n)*ch {
			i = in[off*ch : (off+n)*ch]
		} else {
			i = p.scratch[:n*ch]
			p.fill(i)
		}

		p.cb(i, o, n)
		off += n
	}
}

func (p *pump) fill(dst []float32) {
	got := 0
	if p.cfg.Source != nil {
		got = p.cfg.Source.Read(dst)
	}
	if got < len(dst) {
		clear(dst[got:])
		if p.cfg.Source != nil && p.cfg.OnUnderrun != nil {
			p.cfg.OnUnderrun((len(dst) - got) / p.cfg.Channels)
		}
	}
}
