// Package jshost runs JavaScript against a bridge. Every registered bridge
// module appears as a global object whose methods call Bridge.Invoke
// synchronously; failures are thrown as Error objects carrying a code.
package jshost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"modernc.org/quickjs"

	"github.com/cwbudde/native-reverb/bridge"
	"github.com/cwbudde/native-reverb/internal/logging"
)

// Option configures a Host.
type Option func(*Host)

// WithLogger receives console output and host diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logging.Module(l, "jshost")
	}
}

// WithMemoryLimit caps the JavaScript heap.
func WithMemoryLimit(mb int) Option {
	return func(h *Host) {
		h.memoryLimitMB = mb
	}
}

// Host is a QuickJS VM bound to a bridge. It is safe for use by one
// goroutine at a time; calls are serialized.
type Host struct {
	bridge        *bridge.Bridge
	logger        *slog.Logger
	memoryLimitMB int

	mu  sync.Mutex
	vm  *quickjs.VM
	ctx context.Context

	eventsMu    sync.Mutex
	pending     []string
	unsubscribe func()
}

// New creates a VM and installs a global object for every module of b.
func New(b *bridge.Bridge, opts ...Option) (*Host, error) {
	h := &Host{
		bridge: b,
		logger: logging.Discard(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("jshost: creating VM: %w", err)
	}
	if h.memoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(h.memoryLimitMB) * 1024 * 1024)
	}
	h.vm = vm

	if err := h.install(); err != nil {
		vm.Close()
		return nil, err
	}
	h.unsubscribe = b.Subscribe(h.queueEvent)
	return h, nil
}

func (h *Host) install() error {
	if err := h.vm.RegisterFunc("__bridge_invoke", h.invoke, false); err != nil {
		return fmt.Errorf("jshost: register invoke: %w", err)
	}
	if err := h.vm.RegisterFunc("__bridge_events", h.drainEvents, false); err != nil {
		return fmt.Errorf("jshost: register events: %w", err)
	}
	if err := h.vm.RegisterFunc("__console", h.console, false); err != nil {
		return fmt.Errorf("jshost: register console: %w", err)
	}

	if err := h.evalDiscard(runtimeJS); err != nil {
		return fmt.Errorf("jshost: runtime: %w", err)
	}
	for _, name := range h.bridge.Modules() {
		methods, err := json.Marshal(h.bridge.Methods(name))
		if err != nil {
			return err
		}
		js := fmt.Sprintf("__defineModule(%s, %s)", strconv.Quote(name), methods)
		if err := h.evalDiscard(js); err != nil {
			return fmt.Errorf("jshost: module %s: %w", name, err)
		}
	}
	return h.evalDiscard("delete globalThis.__defineModule")
}

// runtimeJS captures the raw Go functions, removes them from the global
// scope and defines the module factory, the event emitter and console.
const runtimeJS = `(function() {
	var invoke = globalThis.__bridge_invoke;
	var events = globalThis.__bridge_events;
	var log = globalThis.__console;
	delete globalThis.__bridge_invoke;
	delete globalThis.__bridge_events;
	delete globalThis.__console;

	var listeners = {};
	function dispatch() {
		var queued = JSON.parse(events());
		for (var i = 0; i < queued.length; i++) {
			var list = listeners[queued[i].name] || [];
			for (var j = 0; j < list.length; j++) {
				list[j](queued[i].payload);
			}
		}
	}

	globalThis.BridgeEvents = {
		addListener: function(name, fn) {
			(listeners[name] = listeners[name] || []).push(fn);
			return { remove: function() {
				var list = listeners[name] || [];
				var k = list.indexOf(fn);
				if (k >= 0) list.splice(k, 1);
			} };
		},
		flush: dispatch
	};

	globalThis.__defineModule = function(name, methods) {
		var mod = {};
		methods.forEach(function(method) {
			mod[method] = function() {
				var args = Array.prototype.slice.call(arguments);
				var r = JSON.parse(invoke(name, method, JSON.stringify(args)));
				dispatch();
				if (!r.ok) {
					var err = new Error(r.error.message);
					err.code = r.error.code;
					throw err;
				}
				return r.result;
			};
		});
		globalThis[name] = mod;
	};

	function format(args) {
		return Array.prototype.map.call(args, function(a) {
			return typeof a === "string" ? a : JSON.stringify(a);
		}).join(" ");
	}
	globalThis.console = {
		log: function() { log("info", format(arguments)); },
		info: function() { log("info", format(arguments)); },
		warn: function() { log("warn", format(arguments)); },
		error: function() { log("error", format(arguments)); },
		debug: function() { log("debug", format(arguments)); }
	};
})()`

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *bridge.Error   `json:"error,omitempty"`
}

func (h *Host) invoke(module, method, args string) string {
	result, err := h.bridge.Invoke(h.ctx, module, method, []byte(args))

	env := envelope{OK: err == nil, Result: result}
	if err != nil {
		env.Error = bridge.AsError(err)
	}
	out, merr := json.Marshal(env)
	if merr != nil {
		return `{"ok":false,"error":{"code":"INTERNAL","message":"encode result"}}`
	}
	return string(out)
}

func (h *Host) queueEvent(name string, payload []byte) {
	entry, err := json.Marshal(struct {
		Name    string          `json:"name"`
		Payload json.RawMessage `json:"payload"`
	}{name, payload})
	if err != nil {
		return
	}
	h.eventsMu.Lock()
	h.pending = append(h.pending, string(entry))
	h.eventsMu.Unlock()
}

func (h *Host) drainEvents() string {
	h.eventsMu.Lock()
	queued := h.pending
	h.pending = nil
	h.eventsMu.Unlock()
	return "[" + strings.Join(queued, ",") + "]"
}

func (h *Host) console(level, msg string) {
	h.logger.Log(context.Background(), logging.ParseLevel(level), msg, "source", "script")
}

func (h *Host) evalDiscard(js string) error {
	v, err := h.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// bind makes ctx current for bridge calls and interrupts the script when
// ctx is done. The returned function must be called when evaluation ends.
func (h *Host) bind(ctx context.Context) func() {
	h.ctx = ctx
	stop := context.AfterFunc(ctx, h.vm.Interrupt)
	return func() {
		stop()
		h.ctx = context.Background()
	}
}

// Run evaluates a script for its side effects. Events queued by the last
// bridge call are delivered before Run returns.
func (h *Host) Run(ctx context.Context, src string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.bind(ctx)()

	if err := h.evalDiscard(src); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("jshost: %w: %v", ctx.Err(), err)
		}
		return fmt.Errorf("jshost: %w", err)
	}
	return h.evalDiscard("BridgeEvents.flush()")
}

// EvalString evaluates an expression and returns its value as a string.
// Objects and arrays are JSON encoded.
func (h *Host) EvalString(ctx context.Context, expr string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.bind(ctx)()

	js := fmt.Sprintf(`(function() {
		var v = eval(%s);
		return (typeof v === "object" && v !== null) ? JSON.stringify(v) : String(v);
	})()`, strconv.Quote(expr))
	r, err := h.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("jshost: %w: %v", ctx.Err(), err)
		}
		return "", fmt.Errorf("jshost: %w", err)
	}
	if r == nil {
		return "", nil
	}
	return fmt.Sprint(r), nil
}

// Close unsubscribes from the bridge and frees the VM.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.vm == nil {
		return
	}
	h.unsubscribe()
	h.vm.Close()
	h.vm = nil
}
