package buffer

import "fmt"

// Frames wraps an interleaved sample slice with a fixed channel count.
type Frames struct {
	samples  []float32
	channels int
}

// New returns zero-filled Frames holding frameCount frames.
func New(frameCount, channels int) (*Frames, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("buffer channels must be > 0: %d", channels)
	}
	if frameCount < 0 {
		frameCount = 0
	}
	return &Frames{samples: make([]float32, frameCount*channels), channels: channels}, nil
}

// FromInterleaved wraps an existing slice without copying. Trailing samples
// that do not form a whole frame are ignored by FrameCount.
func FromInterleaved(s []float32, channels int) (*Frames, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("buffer channels must be > 0: %d", channels)
	}
	return &Frames{samples: s, channels: channels}, nil
}

// Samples returns the underlying interleaved slice.
func (f *Frames) Samples() []float32 {
	return f.samples
}

// Channels returns the channel count.
func (f *Frames) Channels() int {
	return f.channels
}

// FrameCount returns the number of whole frames.
func (f *Frames) FrameCount() int {
	return len(f.samples) / f.channels
}

// Frame returns the samples of frame i.
func (f *Frames) Frame(i int) []float32 {
	start := i * f.channels
	return f.samples[start : start+f.channels]
}

// Slice returns Frames viewing frames [start, end) of f.
func (f *Frames) Slice(start, end int) *Frames {
	return &Frames{samples: f.samples[start*f.channels : end*f.channels], channels: f.channels}
}

// Zero sets all samples to 0.
func (f *Frames) Zero() {
	for i := range f.samples {
		f.samples[i] = 0
	}
}

// Copy returns a deep copy.
func (f *Frames) Copy() *Frames {
	s := make([]float32, len(f.samples))
	copy(s, f.samples)
	return &Frames{samples: s, channels: f.channels}
}

// Channel extracts channel ch into dst (resized as needed) as float64 and
// returns it.
func (f *Frames) Channel(ch int, dst []float64) []float64 {
	n := f.FrameCount()
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = float64(f.samples[i*f.channels+ch])
	}
	return dst
}

// FrameCapacity reports how many whole frames of the given channel count fit
// in n samples.
func FrameCapacity(n, channels int) int {
	if channels <= 0 {
		return 0
	}
	return n / channels
}
