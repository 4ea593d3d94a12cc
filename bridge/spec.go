package bridge

import (
	"context"
	"slices"

	"github.com/cwbudde/native-reverb/dsp/reverb"
)

// Spec is the capability set a NativeReverb module exposes to the host
// runtime, one method per bridge entry.
type Spec interface {
	Initialize(ctx context.Context, opts InitOptions) error
	SetParameters(ctx context.Context, patch reverb.Patch) error
	GetParameters(ctx context.Context) (reverb.Parameters, error)
	LoadPreset(ctx context.Context, name string) (reverb.Parameters, error)
	ListPresets(ctx context.Context) []string
	GetState(ctx context.Context) string
	Reset(ctx context.Context) error
	ProcessBlock(ctx context.Context, samples []float32) ([]float32, error)
	Release(ctx context.Context)
}

// InitOptions are the optional arguments of initialize. Nil fields take the
// engine defaults.
type InitOptions struct {
	SampleRate    *float64
	Channels      *int
	MaxFrames     *int
	MaxPreDelayMs *float64
	Algorithm     *string
	// Output starts a device stream rendering through the engine.
	Output       bool
	Device       *string
	PeriodFrames *int
}

// Handler is a bridge-registered module.
type Handler interface {
	Methods() []string
	Call(ctx context.Context, method string, raw []byte) (any, error)
}

type methodFunc func(ctx context.Context, s Spec, a args) (any, error)

var specMethods = map[string]methodFunc{
	"initialize": func(ctx context.Context, s Spec, a args) (any, error) {
		opts, err := decodeInitOptions(a.at(0))
		if err != nil {
			return nil, err
		}
		return nil, s.Initialize(ctx, opts)
	},
	"setParameters": func(ctx context.Context, s Spec, a args) (any, error) {
		patch, err := decodePatch(a.at(0))
		if err != nil {
			return nil, err
		}
		return nil, s.SetParameters(ctx, patch)
	},
	"getParameters": func(ctx context.Context, s Spec, _ args) (any, error) {
		return s.GetParameters(ctx)
	},
	"loadPreset": func(ctx context.Context, s Spec, a args) (any, error) {
		name, err := a.requireString(0, "preset name")
		if err != nil {
			return nil, err
		}
		return s.LoadPreset(ctx, name)
	},
	"listPresets": func(ctx context.Context, s Spec, _ args) (any, error) {
		return s.ListPresets(ctx), nil
	},
	"getState": func(ctx context.Context, s Spec, _ args) (any, error) {
		return s.GetState(ctx), nil
	},
	"reset": func(ctx context.Context, s Spec, _ args) (any, error) {
		return nil, s.Reset(ctx)
	},
	"processBlock": func(ctx context.Context, s Spec, a args) (any, error) {
		samples, err := decodeSamples(a.at(0))
		if err != nil {
			return nil, err
		}
		return s.ProcessBlock(ctx, samples)
	},
	"release": func(ctx context.Context, s Spec, _ args) (any, error) {
		s.Release(ctx)
		return nil, nil
	},
}

// Dispatch adapts any Spec implementation to a Handler.
func Dispatch(s Spec) Handler {
	return specHandler{spec: s}
}

type specHandler struct {
	spec Spec
}

func (h specHandler) Methods() []string {
	names := make([]string, 0, len(specMethods))
	for name := range specMethods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (h specHandler) Call(ctx context.Context, method string, raw []byte) (any, error) {
	fn, ok := specMethods[method]
	if !ok {
		return nil, Errorf(CodeUnknownMethod, "unknown method %q", method)
	}
	a, err := parseArgs(raw)
	if err != nil {
		return nil, err
	}
	return fn(ctx, h.spec, a)
}
