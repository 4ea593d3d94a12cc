package cli

import (
	"github.com/cwbudde/native-reverb/bridge"
	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/engine"
)

// newBridge builds a bridge carrying one NativeReverb module wired to the
// app's logger, metrics and presets. The module opens streams on driver when
// a client asks for output; extra options are applied last.
func (a *app) newBridge(driver device.Driver, extra ...bridge.ModuleOption) (*bridge.Bridge, *bridge.Module, error) {
	b := bridge.New(bridge.WithLogger(a.logger), bridge.WithRecorder(a.metrics))

	opts := []bridge.ModuleOption{
		bridge.WithPresets(a.presets),
		bridge.WithModuleLogger(a.logger),
		bridge.WithEngineOptions(engine.WithObserver(a.metrics)),
		bridge.WithUnderrunHook(a.metrics.RecordUnderrun),
	}
	if driver != nil {
		opts = append(opts, bridge.WithDriver(driver))
	}
	opts = append(opts, extra...)

	m, err := bridge.NewModule(b, opts...)
	if err != nil {
		b.Invalidate()
		return nil, nil, err
	}
	return b, m, nil
}
