package ir

import (
	"errors"
	"fmt"
)

// ProcessFunc renders frames interleaved frames from in to out. engine.Engine's
// Process method has this shape.
type ProcessFunc func(in, out []float32, frames int) error

// ErrInvalidCapture reports unusable Capture arguments.
var ErrInvalidCapture = errors.New("ir: invalid capture arguments")

// Capture feeds a unit impulse on every channel into process, block by
// block, and returns length samples of each output channel.
func Capture(process ProcessFunc, channels, length, blockFrames int) ([][]float64, error) {
	return drive(process, channels, length, blockFrames, func(i int) float64 {
		if i == 0 {
			return 1
		}
		return 0
	})
}

// drive renders length frames through process with excite(i) on every input
// channel at frame i.
func drive(process ProcessFunc, channels, length, blockFrames int, excite func(i int) float64) ([][]float64, error) {
	if process == nil || channels <= 0 || length <= 0 || blockFrames <= 0 {
		return nil, fmt.Errorf("%w: channels=%d length=%d block=%d", ErrInvalidCapture, channels, length, blockFrames)
	}

	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, length)
	}

	in := make([]float32, blockFrames*channels)
	buf := make([]float32, blockFrames*channels)
	for off := 0; off < length; off += blockFrames {
		n := min(blockFrames, length-off)
		for i := range n {
			x := float32(excite(off + i))
			for ch := range channels {
				in[i*channels+ch] = x
			}
		}
		if err := process(in[:n*channels], buf[:n*channels], n); err != nil {
			return nil, fmt.Errorf("ir: capture at frame %d: %w", off, err)
		}
		for i := range n {
			for ch := range channels {
				out[ch][off+i] = float64(buf[i*channels+ch])
			}
		}
	}
	return out, nil
}
