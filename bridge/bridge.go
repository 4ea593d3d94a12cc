// Package bridge exposes reverb modules to a scripting runtime through named
// methods with JSON arguments and results.
//
// A Bridge stands in for the host runtime's bridge object: hosts call Invoke
// and Subscribe to events; modules register themselves and emit events back
// through a weak reference, so they never keep the bridge alive.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/native-reverb/internal/logging"
)

// EventName is the host-side event every module event is delivered under.
const EventName = "ReverbEvent"

// Event is the payload of a ReverbEvent.
type Event struct {
	Module     string `json:"module"`
	InstanceID string `json:"instanceId,omitempty"`
	Event      string `json:"event"`
	Data       any    `json:"data,omitempty"`
}

// Listener receives serialized events. It is called synchronously from the
// emitting goroutine and must not block.
type Listener func(name string, payload []byte)

// Recorder receives call and event statistics.
type Recorder interface {
	RecordBridgeCall(module, method, code string, elapsed time.Duration)
	RecordBridgeEvent(event string)
}

// Invalidator is implemented by modules that release resources when the
// bridge is torn down.
type Invalidator interface {
	Invalidate()
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logging.Module(l, "bridge")
	}
}

// WithRecorder installs call statistics.
func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		b.recorder = r
	}
}

// Bridge dispatches host calls to registered modules and fans module events
// out to host listeners.
type Bridge struct {
	logger   *slog.Logger
	recorder Recorder

	mu         sync.RWMutex
	modules    map[string]Handler
	listeners  map[uint64]Listener
	nextListen uint64

	invalidated atomic.Bool
}

// New returns an empty, valid bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		logger:    logging.Discard(),
		modules:   make(map[string]Handler),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Register makes h callable under name.
func (b *Bridge) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("bridge: module name and handler are required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.modules[name]; ok {
		return fmt.Errorf("bridge: module %q already registered", name)
	}
	b.modules[name] = h
	b.logger.Debug("module registered", "name", name, "methods", h.Methods())
	return nil
}

// Modules returns the registered module names.
func (b *Bridge) Modules() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.modules))
	for name := range b.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Methods returns the method names of module, or nil when it is unknown.
func (b *Bridge) Methods(module string) []string {
	b.mu.RLock()
	h, ok := b.modules[module]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	return h.Methods()
}

// Invoke calls module.method with JSON-encoded positional arguments and
// returns the JSON-encoded result. Failures are always *Error.
func (b *Bridge) Invoke(ctx context.Context, module, method string, raw []byte) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		if b.recorder != nil {
			b.recorder.RecordBridgeCall(module, method, string(CodeOf(err)), time.Since(start))
		}
	}()

	if b.invalidated.Load() {
		return nil, Errorf(CodeNotInitialized, "bridge invalidated")
	}
	if err := ctx.Err(); err != nil {
		return nil, AsError(err)
	}

	b.mu.RLock()
	h, ok := b.modules[module]
	b.mu.RUnlock()
	if !ok {
		return nil, Errorf(CodeUnknownMethod, "unknown module %q", module)
	}

	value, err := b.call(ctx, h, method, raw)
	if err != nil {
		be := AsError(err)
		b.logger.Debug("call failed", "module", module, "method", method, "code", be.Code, "error", be.Message)
		return nil, be
	}

	out, err := json.Marshal(value)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "encode result: " + err.Error(), cause: err}
	}
	b.logger.Debug("call", "module", module, "method", method, "elapsed", time.Since(start))
	return out, nil
}

func (b *Bridge) call(ctx context.Context, h Handler, method string, raw []byte) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("module panicked", "method", method, "panic", r)
			err = Errorf(CodeInternal, "panic in %s: %v", method, r)
		}
	}()
	return h.Call(ctx, method, raw)
}

// Subscribe registers l for every emitted event and returns a function that
// removes it.
func (b *Bridge) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextListen
	b.nextListen++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Emit serializes ev and delivers it to every listener under EventName.
// Emitting on an invalidated bridge is a no-op.
func (b *Bridge) Emit(ev Event) error {
	if b.invalidated.Load() {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("bridge: encode event %q: %w", ev.Event, err)
	}

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(EventName, payload)
	}
	if b.recorder != nil {
		b.recorder.RecordBridgeEvent(ev.Event)
	}
	return nil
}

// Valid reports whether the bridge still accepts calls.
func (b *Bridge) Valid() bool {
	return !b.invalidated.Load()
}

// Invalidate tears the bridge down: later calls fail, events are dropped and
// modules implementing Invalidator release their resources.
func (b *Bridge) Invalidate() {
	if b.invalidated.Swap(true) {
		return
	}

	b.mu.Lock()
	modules := make([]Handler, 0, len(b.modules))
	for _, h := range b.modules {
		modules = append(modules, h)
	}
	clear(b.listeners)
	b.mu.Unlock()

	for _, h := range modules {
		if inv, ok := h.(Invalidator); ok {
			inv.Invalidate()
		}
	}
	b.logger.Info("bridge invalidated")
}
