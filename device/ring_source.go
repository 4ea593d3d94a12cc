package device

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/smallnest/ringbuffer"
)

// RingSource is a Source fed by a producer goroutine. Writes and reads only
// move whole frames, so channels never slip.
type RingSource struct {
	ring      *ringbuffer.RingBuffer
	frameSize int
	underruns atomic.Int64
	closed    atomic.Bool
}

// readAttempts bounds how often Read retries a ring held by the producer.
const readAttempts = 4

// NewRingSource returns a source buffering up to capacityFrames frames.
func NewRingSource(capacityFrames, channels int) (*RingSource, error) {
	if capacityFrames <= 0 {
		return nil, fmt.Errorf("device: ring capacity must be > 0: %d", capacityFrames)
	}
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("device: channels must be 1 or 2: %d", channels)
	}
	frameSize := 4 * channels
	return &RingSource{
		ring:      ringbuffer.New(capacityFrames * frameSize),
		frameSize: frameSize,
	}, nil
}

// Write queues as many whole frames of samples as fit and returns the number
// of samples written. It never blocks.
func (r *RingSource) Write(samples []float32) (int, error) {
	b := float32AsBytes(samples)
	n := min(len(b), r.ring.Free())
	n -= n % r.frameSize
	if n == 0 {
		if len(b) == 0 {
			return 0, nil
		}
		return 0, ringbuffer.ErrIsFull
	}

	written, err := r.ring.Write(b[:n])
	if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
		return written / 4, fmt.Errorf("device: ring write: %w", err)
	}
	return written / 4, nil
}

// WriteAll queues every sample, polling while the ring is full, until done or
// ctx is canceled.
func (r *RingSource) WriteAll(ctx context.Context, samples []float32) error {
	const poll = 2 * time.Millisecond
	for len(samples) > 0 {
		n, err := r.Write(samples)
		if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
			return err
		}
		samples = samples[n:]
		if len(samples) == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
	return nil
}

// Read implements Source. It runs on the audio callback, so it only ever
// try-locks the ring: if the producer holds it, the read retries a few times
// and then comes up short instead of waiting.
func (r *RingSource) Read(dst []float32) int {
	b := float32AsBytes(dst)
	b = b[:len(b)-len(b)%r.frameSize]
	if len(b) == 0 {
		return 0
	}

	var (
		got int
		err error
	)
	for range readAttempts {
		if got, err = r.ring.TryRead(b); !errors.Is(err, ringbuffer.ErrAcquireLock) {
			break
		}
	}
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		got = 0
	}
	if got < len(b) {
		r.underruns.Add(1)
	}
	return got / 4
}

// Buffered returns the number of queued frames.
func (r *RingSource) Buffered() int {
	return r.ring.Length() / r.frameSize
}

// Underruns returns how many reads came up short.
func (r *RingSource) Underruns() int64 {
	return r.underruns.Load()
}

// Drained reports whether the producer closed the source and every queued
// frame was consumed.
func (r *RingSource) Drained() bool {
	return r.closed.Load() && r.ring.Length() == 0
}

// CloseWrite marks the end of input.
func (r *RingSource) CloseWrite() {
	r.closed.Store(true)
}

// Reset drops all queued frames.
func (r *RingSource) Reset() {
	r.ring.Reset()
	r.closed.Store(false)
}
