package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/native-reverb/dsp/reverb"
)

// Snapshot is an immutable, fully formed parameter set. Generation increases
// with every publication.
type Snapshot struct {
	Params     reverb.Parameters
	Generation uint64
}

// Controller validates, clamps and publishes parameters. Writers serialize on
// a mutex; readers do a single atomic load and never wait.
//
// Every Reconfigure starts a new epoch. SetAt and ApplyAt publish only while
// the epoch they were given is still current, so a write that began before a
// re-initialization cannot land on top of the fresh defaults.
type Controller struct {
	mu            sync.Mutex
	maxPreDelayMs float64
	generation    uint64
	epoch         uint64
	observer      Observer

	current atomic.Pointer[Snapshot]
}

// NewController returns a controller publishing the default parameters.
func NewController(maxPreDelayMs float64) *Controller {
	c := &Controller{observer: NopObserver{}}
	c.Reconfigure(maxPreDelayMs)
	return c
}

// Reconfigure sets the pre-delay bound and republishes the defaults.
func (c *Controller) Reconfigure(maxPreDelayMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epoch++
	c.maxPreDelayMs = maxPreDelayMs
	params, _ := reverb.DefaultParameters().Clamp(maxPreDelayMs)
	c.publishLocked(params)
}

// Epoch returns the current configuration epoch.
func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Set validates p, clamps it and publishes the result. Non-finite values fail
// with ErrInvalidArgument; finite out-of-range values are clamped and
// reported through clamped.
func (c *Controller) Set(p reverb.Parameters) (applied reverb.Parameters, clamped bool, err error) {
	return c.SetAt(c.Epoch(), p)
}

// SetAt is Set bound to epoch. It fails with ErrNotInitialized once a
// Reconfigure has moved past epoch.
func (c *Controller) SetAt(epoch uint64, p reverb.Parameters) (applied reverb.Parameters, clamped bool, err error) {
	if err := p.Validate(); err != nil {
		return reverb.Parameters{}, false, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkEpochLocked(epoch); err != nil {
		return reverb.Parameters{}, false, err
	}
	applied, clamped = p.Clamp(c.maxPreDelayMs)
	c.publishLocked(applied)
	c.observer.ParametersUpdated(clamped)
	return applied, clamped, nil
}

// Apply overlays pt on the current parameters and publishes the result with
// the same rules as Set. The read-modify-write is atomic with respect to
// other writers.
func (c *Controller) Apply(pt reverb.Patch) (applied reverb.Parameters, clamped bool, err error) {
	return c.ApplyAt(c.Epoch(), pt)
}

// ApplyAt is Apply bound to epoch, with the same rule as SetAt.
func (c *Controller) ApplyAt(epoch uint64, pt reverb.Patch) (applied reverb.Parameters, clamped bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkEpochLocked(epoch); err != nil {
		return reverb.Parameters{}, false, err
	}
	next := pt.Apply(c.current.Load().Params)
	if err := next.Validate(); err != nil {
		return reverb.Parameters{}, false, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	applied, clamped = next.Clamp(c.maxPreDelayMs)
	c.publishLocked(applied)
	c.observer.ParametersUpdated(clamped)
	return applied, clamped, nil
}

// Snapshot returns the latest published set. Safe on the real-time path.
func (c *Controller) Snapshot() *Snapshot {
	return c.current.Load()
}

// Parameters returns a copy of the latest published set.
func (c *Controller) Parameters() reverb.Parameters {
	return c.current.Load().Params
}

// MaxPreDelayMs returns the current pre-delay bound.
func (c *Controller) MaxPreDelayMs() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPreDelayMs
}

func (c *Controller) checkEpochLocked(epoch uint64) error {
	if epoch != c.epoch {
		return fmt.Errorf("%w: parameters superseded by re-initialization", ErrNotInitialized)
	}
	return nil
}

func (c *Controller) publishLocked(p reverb.Parameters) {
	c.generation++
	c.current.Store(&Snapshot{Params: p, Generation: c.generation})
}
