package delay

import (
	"fmt"
	"math"
)

// Line is a circular delay line. All storage is allocated by New; Write and
// the Read variants never allocate.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line of fixed size.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}
	return &Line{buffer: make([]float64, size)}, nil
}

// ForMaxDelay returns a line able to serve fractional reads up to maxDelay
// samples, including the interpolation guard points.
func ForMaxDelay(maxDelay float64) (*Line, error) {
	if maxDelay < 0 || math.IsNaN(maxDelay) || math.IsInf(maxDelay, 0) {
		return nil, fmt.Errorf("delay max delay must be >= 0: %f", maxDelay)
	}
	return New(int(math.Ceil(maxDelay)) + 4)
}

// Len returns internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// MaxDelay returns the largest delay ReadFractional serves without clamping.
func (d *Line) MaxDelay() float64 {
	return float64(len(d.buffer) - 3)
}

// Write writes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads an integer delay in samples. Read(1) is the most recent write.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}
	readPos := (d.writePos - delay%size + size) % size
	return d.buffer[readPos]
}

// ReadFractional reads with cubic Hermite interpolation. The delay is clamped
// to [1, MaxDelay], 1 being the most recent write.
func (d *Line) ReadFractional(delay float64) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}
	if delay < 1 {
		delay = 1
	}
	maxDelay := d.MaxDelay()
	if delay > maxDelay {
		delay = maxDelay
	}

	p := int(math.Floor(delay))
	t := delay - float64(p)

	xm1 := d.Read(max(1, p-1))
	x0 := d.Read(p)
	x1 := d.Read(p + 1)
	x2 := d.Read(p + 2)
	return hermite(t, xm1, x0, x1, x2)
}

// Process writes x and returns the sample delayed by delay samples. A delay
// of zero passes x through unchanged.
func (d *Line) Process(x, delay float64) float64 {
	d.Write(x)
	if delay <= 0 {
		return x
	}
	// Read(1) is x itself, so a delay of n samples is Read(n+1).
	return d.ReadFractional(delay + 1)
}

// Reset clears line state.
func (d *Line) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}

// hermite is 4-point cubic Hermite interpolation from x0 to x1 at t in [0,1].
func hermite(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}
