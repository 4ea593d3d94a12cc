package bridge

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/google/uuid"

	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/dsp/buffer"
	"github.com/cwbudde/native-reverb/dsp/reverb"
	"github.com/cwbudde/native-reverb/engine"
	"github.com/cwbudde/native-reverb/internal/logging"
)

// ModuleName is the name the reverb module registers under.
const ModuleName = "NativeReverb"

// Module event names.
const (
	EventStateChanged      = "stateChanged"
	EventParametersChanged = "parametersChanged"
	EventDeviceError       = "deviceError"
)

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithDriver enables initialize({output: true}) through d.
func WithDriver(d device.Driver) ModuleOption {
	return func(m *Module) {
		m.driver = d
	}
}

// WithSource plays src through the engine when a device stream is open.
// Without a source the stream runs full duplex.
func WithSource(src device.Source) ModuleOption {
	return func(m *Module) {
		m.source = src
	}
}

// WithUnderrunHook is called from the audio thread when the source runs dry.
func WithUnderrunHook(fn func(frames int)) ModuleOption {
	return func(m *Module) {
		m.onUnderrun = fn
	}
}

// WithPresets adds or replaces named presets. Built-in presets stay
// available unless overridden.
func WithPresets(presets map[string]reverb.Parameters) ModuleOption {
	return func(m *Module) {
		maps.Copy(m.presets, presets)
	}
}

// WithEngineOptions passes options to the underlying engine.
func WithEngineOptions(opts ...engine.Option) ModuleOption {
	return func(m *Module) {
		m.engineOpts = append(m.engineOpts, opts...)
	}
}

// WithModuleLogger sets the module logger.
func WithModuleLogger(l *slog.Logger) ModuleOption {
	return func(m *Module) {
		m.logger = logging.Module(l, "native-reverb")
	}
}

// WithName registers the module under name instead of ModuleName.
func WithName(name string) ModuleOption {
	return func(m *Module) {
		m.name = name
	}
}

// Module is the NativeReverb bridge module: one engine instance, an optional
// device stream and the preset table. It refers to its bridge weakly.
type Module struct {
	name       string
	id         string
	bridge     weak.Pointer[Bridge]
	handler    Handler
	logger     *slog.Logger
	engine     *engine.Engine
	engineOpts []engine.Option
	presets    map[string]reverb.Parameters

	driver     device.Driver
	source     device.Source
	onUnderrun func(frames int)

	// lifecycle serializes initialize, reset and release. Contended
	// initialize and reset calls fail with BUSY instead of queueing.
	lifecycle sync.Mutex
	stream    device.Stream
	streaming atomic.Bool
}

// NewModule creates a module and registers it with b.
func NewModule(b *Bridge, opts ...ModuleOption) (*Module, error) {
	m := &Module{
		name:    ModuleName,
		id:      uuid.NewString(),
		bridge:  weak.Make(b),
		logger:  logging.Discard(),
		presets: make(map[string]reverb.Parameters),
	}
	for _, name := range reverb.PresetNames() {
		m.presets[name], _ = reverb.Preset(name)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.engine = engine.New(m.engineOpts...)
	m.handler = Dispatch(m)
	m.logger = m.logger.With("instance", m.id)

	if err := b.Register(m.name, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Name returns the registered module name.
func (m *Module) Name() string { return m.name }

// InstanceID identifies this module instance in events.
func (m *Module) InstanceID() string { return m.id }

// Engine returns the underlying engine.
func (m *Module) Engine() *engine.Engine { return m.engine }

// Methods implements Handler.
func (m *Module) Methods() []string { return m.handler.Methods() }

// Call implements Handler.
func (m *Module) Call(ctx context.Context, method string, raw []byte) (any, error) {
	return m.handler.Call(ctx, method, raw)
}

// Initialize configures the engine, optionally opening a device stream.
func (m *Module) Initialize(ctx context.Context, opts InitOptions) error {
	if !m.lifecycle.TryLock() {
		return Errorf(CodeBusy, "lifecycle operation in progress")
	}
	defer m.lifecycle.Unlock()

	cfg, err := m.configFor(opts)
	if err != nil {
		return err
	}
	if opts.Output && m.driver == nil {
		return Errorf(CodeDeviceUnavailable, "no audio driver configured")
	}
	if err := ctx.Err(); err != nil {
		return AsError(err)
	}

	m.closeStreamLocked()
	if err := m.engine.Initialize(cfg); err != nil {
		return AsError(err)
	}

	if opts.Output {
		if err := m.openStreamLocked(cfg, opts); err != nil {
			m.engine.Release()
			m.emitState()
			return err
		}
	}

	m.logger.Info("initialized",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"max_frames", cfg.MaxFrames,
		"algorithm", cfg.Algorithm,
		"output", opts.Output)
	m.emitState()
	return nil
}

func (m *Module) configFor(opts InitOptions) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	if opts.SampleRate != nil {
		cfg.SampleRate = *opts.SampleRate
	}
	if opts.Channels != nil {
		cfg.Channels = *opts.Channels
	}
	if opts.MaxFrames != nil {
		cfg.MaxFrames = *opts.MaxFrames
	}
	if opts.MaxPreDelayMs != nil {
		cfg.MaxPreDelayMs = *opts.MaxPreDelayMs
	}
	if opts.Algorithm != nil {
		alg, err := reverb.ParseAlgorithm(*opts.Algorithm)
		if err != nil {
			return cfg, Errorf(CodeInvalidArgument, "%v", err)
		}
		cfg.Algorithm = alg
	}
	if err := cfg.Validate(); err != nil {
		return cfg, AsError(err)
	}
	if opts.PeriodFrames != nil && (*opts.PeriodFrames <= 0 || *opts.PeriodFrames > cfg.MaxFrames) {
		return cfg, Errorf(CodeInvalidArgument, "periodFrames must be in [1, %d]: %d", cfg.MaxFrames, *opts.PeriodFrames)
	}
	return cfg, nil
}

func (m *Module) openStreamLocked(cfg engine.Config, opts InitOptions) error {
	sc := device.StreamConfig{
		SampleRate: int(cfg.SampleRate),
		Channels:   cfg.Channels,
		Mode:       device.ModeDuplex,
		OnUnderrun: m.onUnderrun,
		OnError:    m.deviceError,
	}
	if m.source != nil {
		sc.Mode = device.ModePlayback
		sc.Source = m.source
	}
	if opts.Device != nil {
		sc.DeviceName = *opts.Device
	}
	sc.PeriodFrames = min(device.DefaultPeriodFrames, cfg.MaxFrames)
	if opts.PeriodFrames != nil {
		sc.PeriodFrames = *opts.PeriodFrames
	}

	eng := m.engine
	stream, err := m.driver.Open(sc, func(in, out []float32, frames int) {
		_ = eng.Process(in, out, frames)
	})
	if err != nil {
		return AsError(err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return AsError(err)
	}

	m.stream = stream
	m.streaming.Store(true)
	m.logger.Info("device stream started", "driver", m.driver.Name(), "mode", sc.Mode, "period", sc.PeriodFrames)
	return nil
}

func (m *Module) closeStreamLocked() {
	if m.stream == nil {
		return
	}
	if err := m.stream.Close(); err != nil {
		m.logger.Warn("closing device stream", "error", err)
	}
	m.stream = nil
	m.streaming.Store(false)
}

func (m *Module) deviceError(err error) {
	m.logger.Error("device stream stopped", "error", err)
	m.emit(EventDeviceError, map[string]any{
		"code":    CodeDeviceUnavailable,
		"message": err.Error(),
	})
}

// SetParameters merges patch into the current parameters.
func (m *Module) SetParameters(_ context.Context, patch reverb.Patch) error {
	applied, clamped, err := m.engine.ApplyPatch(patch)
	if err != nil {
		return AsError(err)
	}
	m.emitParameters(applied, clamped)
	return nil
}

// GetParameters returns the parameters most recently published.
func (m *Module) GetParameters(context.Context) (reverb.Parameters, error) {
	p, err := m.engine.Parameters()
	if err != nil {
		return p, AsError(err)
	}
	return p, nil
}

// LoadPreset publishes the named preset and returns it as applied.
func (m *Module) LoadPreset(_ context.Context, name string) (reverb.Parameters, error) {
	p, ok := m.presets[name]
	if !ok {
		return reverb.Parameters{}, Errorf(CodeInvalidArgument, "unknown preset %q", name)
	}
	applied, clamped, err := m.engine.SetParameters(p)
	if err != nil {
		return reverb.Parameters{}, AsError(err)
	}
	m.emitParameters(applied, clamped)
	return applied, nil
}

// ListPresets returns the preset names in order.
func (m *Module) ListPresets(context.Context) []string {
	return slices.Sorted(maps.Keys(m.presets))
}

// GetState returns the engine state name.
func (m *Module) GetState(context.Context) string {
	return m.engine.State().String()
}

// Reset clears the reverb tail before the next block.
func (m *Module) Reset(context.Context) error {
	if !m.lifecycle.TryLock() {
		return Errorf(CodeBusy, "lifecycle operation in progress")
	}
	defer m.lifecycle.Unlock()

	if err := m.engine.Reset(); err != nil {
		return AsError(err)
	}
	return nil
}

// ProcessBlock renders interleaved samples through the engine and returns a
// block of the same length. Blocks longer than the configured maximum are
// processed in pieces.
func (m *Module) ProcessBlock(_ context.Context, samples []float32) ([]float32, error) {
	if m.streaming.Load() {
		return nil, Errorf(CodeBusy, "engine is driven by a device stream")
	}
	if !m.engine.State().Active() {
		return nil, AsError(engine.ErrNotInitialized)
	}

	cfg := m.engine.Config()
	if cfg.Channels == 0 {
		return nil, AsError(engine.ErrNotInitialized)
	}
	if len(samples)%cfg.Channels != 0 {
		return nil, Errorf(CodeInvalidArgument, "sample count %d is not a multiple of %d channels", len(samples), cfg.Channels)
	}

	in, err := buffer.FromInterleaved(samples, cfg.Channels)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%v", err)
	}
	out := make([]float32, len(samples))
	frames := in.FrameCount()

	for off := 0; off < frames; off += cfg.MaxFrames {
		end := min(off+cfg.MaxFrames, frames)
		lo, hi := off*cfg.Channels, end*cfg.Channels
		if err := m.engine.Process(samples[lo:hi], out[lo:hi], end-off); err != nil {
			return nil, AsError(err)
		}
	}
	return out, nil
}

// Release stops any device stream and frees the engine. It never fails.
func (m *Module) Release(context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.closeStreamLocked()
	before := m.engine.State()
	m.engine.Release()
	if before != engine.StateReleased {
		m.logger.Info("released")
		m.emitState()
	}
}

// Invalidate implements Invalidator.
func (m *Module) Invalidate() {
	m.Release(context.Background())
}

func (m *Module) emitState() {
	m.emit(EventStateChanged, map[string]any{"state": m.engine.State()})
}

func (m *Module) emitParameters(p reverb.Parameters, clamped bool) {
	m.emit(EventParametersChanged, map[string]any{
		"parameters": p,
		"clamped":    clamped,
	})
}

func (m *Module) emit(event string, data any) {
	b := m.bridge.Value()
	if b == nil {
		return
	}
	if err := b.Emit(Event{Module: m.name, InstanceID: m.id, Event: event, Data: data}); err != nil {
		m.logger.Warn("emit failed", "event", event, "error", err)
	}
}
