package device

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/cwbudde/native-reverb/engine"
	"github.com/cwbudde/native-reverb/internal/logging"
)

// Malgo opens miniaudio streams in f32 format.
type Malgo struct {
	logger   *slog.Logger
	backends []malgo.Backend
}

// NewMalgo returns a miniaudio driver. With no backends miniaudio picks the
// platform default.
func NewMalgo(logger *slog.Logger, backends ...malgo.Backend) *Malgo {
	return &Malgo{
		logger:   logging.Module(logger, "device"),
		backends: backends,
	}
}

// Name implements Driver.
func (m *Malgo) Name() string { return "miniaudio" }

// Open implements Driver. Context and device failures wrap
// engine.ErrDeviceUnavailable.
func (m *Malgo) Open(cfg StreamConfig, cb Callback) (Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cb == nil {
		return nil, fmt.Errorf("%w: nil callback", ErrInvalidConfig)
	}

	ctx, err := malgo.InitContext(m.backends, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("miniaudio", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", engine.ErrDeviceUnavailable, err)
	}

	s := &malgoStream{
		cfg:    cfg,
		ctx:    ctx,
		logger: m.logger,
		pump:   newPump(cfg, cb),
	}

	deviceType := malgo.Playback
	if cfg.Mode == ModeDuplex {
		deviceType = malgo.Duplex
	}

	dc := malgo.DefaultDeviceConfig(deviceType)
	dc.SampleRate = uint32(cfg.SampleRate)
	dc.PeriodSizeInFrames = uint32(cfg.PeriodFrames)
	dc.Playback.Format = malgo.FormatF32
	dc.Playback.Channels = uint32(cfg.Channels)
	dc.Alsa.NoMMap = 1
	if cfg.Mode == ModeDuplex {
		dc.Capture.Format = malgo.FormatF32
		dc.Capture.Channels = uint32(cfg.Channels)
	}

	if cfg.DeviceName != "" {
		info, err := findDevice(ctx, malgo.Playback, cfg.DeviceName)
		if err != nil {
			s.freeContext()
			return nil, err
		}
		dc.Playback.DeviceID = info.ID.Pointer()
	}

	dev, err := malgo.InitDevice(ctx.Context, dc, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("%w: init device: %v", engine.ErrDeviceUnavailable, err)
	}
	s.dev = dev

	if rate := int(dev.SampleRate()); rate != cfg.SampleRate {
		s.logger.Warn("device sample rate differs from engine rate",
			"requested", cfg.SampleRate, "actual", rate)
	}
	return s, nil
}

// DeviceNames lists playback devices.
func (m *Malgo) DeviceNames() ([]string, error) {
	ctx, err := malgo.InitContext(m.backends, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", engine.ErrDeviceUnavailable, err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", engine.ErrDeviceUnavailable, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

func findDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("%w: list devices: %v", engine.ErrDeviceUnavailable, err)
	}
	for _, info := range infos {
		if strings.EqualFold(info.Name(), name) || strings.Contains(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: no device matching %q", engine.ErrDeviceUnavailable, name)
}

type malgoStream struct {
	cfg    StreamConfig
	logger *slog.Logger
	pump   *pump

	mu       sync.Mutex
	ctx      *malgo.AllocatedContext
	dev      *malgo.Device
	running  atomic.Bool
	stopping atomic.Bool
}

func (s *malgoStream) Config() StreamConfig { return s.cfg }

func (s *malgoStream) onData(pOutput, pInput []byte, frameCount uint32) {
	out := bytesAsFloat32(pOutput)
	in := bytesAsFloat32(pInput)
	s.pump.run(in, out, int(frameCount))
}

func (s *malgoStream) onStop() {
	if s.stopping.Load() || !s.running.Load() {
		return
	}
	s.running.Store(false)
	if s.cfg.OnError != nil {
		s.cfg.OnError(fmt.Errorf("%w: device stopped unexpectedly", engine.ErrDeviceUnavailable))
	}
}

func (s *malgoStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		return fmt.Errorf("%w: stream closed", engine.ErrDeviceUnavailable)
	}
	if s.running.Load() {
		return nil
	}
	if err := s.dev.Start(); err != nil {
		return fmt.Errorf("%w: start device: %v", engine.ErrDeviceUnavailable, err)
	}
	s.running.Store(true)
	s.logger.Info("stream started", "mode", s.cfg.Mode,
		"sample_rate", s.cfg.SampleRate, "channels", s.cfg.Channels, "period", s.cfg.PeriodFrames)
	return nil
}

func (s *malgoStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *malgoStream) stopLocked() error {
	if s.dev == nil || !s.running.Load() {
		return nil
	}
	s.stopping.Store(true)
	defer s.stopping.Store(false)

	s.running.Store(false)
	if err := s.dev.Stop(); err != nil {
		return fmt.Errorf("device: stop: %w", err)
	}
	s.logger.Info("stream stopped")
	return nil
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.stopLocked()
	if s.dev != nil {
		s.dev.Uninit()
		s.dev = nil
	}
	return errors.Join(err, s.freeContext())
}

func (s *malgoStream) freeContext() error {
	if s.ctx == nil {
		return nil
	}
	err := s.ctx.Uninit()
	s.ctx.Free()
	s.ctx = nil
	if err != nil {
		return fmt.Errorf("device: uninit context: %w", err)
	}
	return nil
}
