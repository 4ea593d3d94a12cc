package engine

import "time"

// Observer receives engine events. BlockProcessed, BlockRejected and
// FramesDropped are called from the real-time path and must not block or
// allocate.
type Observer interface {
	StateChanged(from, to State)
	ParametersUpdated(clamped bool)
	BlockProcessed(frames int, elapsed time.Duration)
	BlockRejected(err error)
	FramesDropped(frames int)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State)         {}
func (NopObserver) ParametersUpdated(bool)            {}
func (NopObserver) BlockProcessed(int, time.Duration) {}
func (NopObserver) BlockRejected(error)               {}
func (NopObserver) FramesDropped(int)                 {}
