package engine

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/native-reverb/dsp/core"
	"github.com/cwbudde/native-reverb/dsp/reverb"
)

// Engine is a reverb instance with an explicit lifecycle. The zero value is
// not usable; construct with New.
type Engine struct {
	lifecycle sync.Mutex
	state     atomic.Int32

	observer Observer
	ctrl     *Controller

	// Owned by whoever moved state to Processing, or by the lifecycle
	// mutex holder while the engine is not active.
	cfg          Config
	proc         *reverb.Processor
	appliedGen   uint64
	resetPending atomic.Bool
}

// New returns an uninitialized engine.
func New(opts ...Option) *Engine {
	e := &Engine{observer: NopObserver{}}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.ctrl = NewController(reverb.DefaultMaxPreDelayMs)
	e.ctrl.observer = e.observer
	return e
}

// Initialize validates cfg, allocates every buffer the real-time path needs
// and resets parameters to their defaults. It may be called again from Ready
// or Released; an in-flight Process is waited for.
func (e *Engine) Initialize(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	alg, _ := reverb.ParseAlgorithm(string(cfg.Algorithm))
	cfg.Algorithm = alg

	proc, err := reverb.NewProcessor(alg, cfg.MaxPreDelayMs,
		core.WithSampleRate(cfg.SampleRate),
		core.WithChannels(cfg.Channels),
		core.WithBlockSize(cfg.MaxFrames),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	from := e.deactivate(StateUninitialized)

	e.cfg = cfg
	e.proc = proc
	e.appliedGen = 0
	e.resetPending.Store(false)
	e.ctrl.Reconfigure(cfg.MaxPreDelayMs)

	e.state.Store(int32(StateReady))
	e.observer.StateChanged(from, StateReady)
	return nil
}

// Process renders frameCount frames from in to out. in and out may alias.
// Frames beyond MaxFrames or beyond what the slices hold are written as
// silence. Before Initialize and after Release out is zeroed and
// ErrNotInitialized is returned; a call overlapping another Process returns
// ErrBusy.
func (e *Engine) Process(in, out []float32, frameCount int) error {
	if !e.state.CompareAndSwap(int32(StateReady), int32(StateProcessing)) {
		clear(out)
		err := ErrNotInitialized
		if State(e.state.Load()) == StateProcessing {
			err = ErrBusy
		}
		e.observer.BlockRejected(err)
		return err
	}

	start := time.Now()
	ch := e.cfg.Channels

	if e.resetPending.CompareAndSwap(true, false) {
		e.proc.Reset()
	}
	if snap := e.ctrl.Snapshot(); snap.Generation != e.appliedGen {
		e.proc.SetParameters(snap.Params)
		e.appliedGen = snap.Generation
	}

	requested := max(frameCount, 0)
	n := min(requested, e.cfg.MaxFrames, len(in)/ch, len(out)/ch)
	e.proc.ProcessInterleaved(in, out, n)
	if tail := min(requested*ch, len(out)); tail > n*ch {
		clear(out[n*ch : tail])
	}

	e.state.Store(int32(StateReady))

	e.observer.BlockProcessed(n, time.Since(start))
	if n < requested {
		e.observer.FramesDropped(requested - n)
	}
	return nil
}

// SetParameters publishes p for the next processed block. A call that
// overlaps Initialize fails with ErrNotInitialized instead of overwriting
// the defaults the new configuration starts from.
func (e *Engine) SetParameters(p reverb.Parameters) (reverb.Parameters, bool, error) {
	epoch := e.ctrl.Epoch()
	if !e.State().Active() {
		return reverb.Parameters{}, false, ErrNotInitialized
	}
	return e.ctrl.SetAt(epoch, p)
}

// ApplyPatch publishes the current parameters overlaid with pt.
func (e *Engine) ApplyPatch(pt reverb.Patch) (reverb.Parameters, bool, error) {
	epoch := e.ctrl.Epoch()
	if !e.State().Active() {
		return reverb.Parameters{}, false, ErrNotInitialized
	}
	return e.ctrl.ApplyAt(epoch, pt)
}

// Parameters returns the most recently published parameter set.
func (e *Engine) Parameters() (reverb.Parameters, error) {
	if !e.State().Active() {
		return reverb.Parameters{}, ErrNotInitialized
	}
	return e.ctrl.Parameters(), nil
}

// Controller exposes the parameter controller.
func (e *Engine) Controller() *Controller {
	return e.ctrl
}

// Reset clears reverb tails. The clear happens at the start of the next
// processed block so the real-time path is never contended.
func (e *Engine) Reset() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.State().Active() {
		return ErrNotInitialized
	}
	e.resetPending.Store(true)
	return nil
}

// Release waits for any in-flight Process to return and drops all DSP state.
// It is idempotent.
func (e *Engine) Release() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if State(e.state.Load()) == StateReleased {
		return
	}

	from := e.deactivate(StateReleased)
	e.proc = nil
	e.cfg = Config{}
	e.appliedGen = 0
	e.observer.StateChanged(from, StateReleased)
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Config returns the configuration of the last successful Initialize, or the
// zero Config when the engine is not active.
func (e *Engine) Config() Config {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	return e.cfg
}

// deactivate moves the engine to the inactive state to, spinning while a
// block is in flight, and returns the state it left. The caller holds the
// lifecycle mutex.
func (e *Engine) deactivate(to State) State {
	for {
		cur := State(e.state.Load())
		switch cur {
		case StateProcessing:
			runtime.Gosched()
			continue
		case StateReady, StateUninitialized, StateReleased:
			if e.state.CompareAndSwap(int32(cur), int32(to)) {
				return cur
			}
		}
	}
}
