package bridge

import (
	"bytes"
	"math"
	"sort"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/cwbudde/native-reverb/dsp/reverb"
)

// args holds the positional arguments of one call. The wire form is a JSON
// array; a bare object or scalar is accepted as a single argument.
type args []*jason.Value

func parseArgs(raw []byte) (args, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	v, err := jason.NewValueFromBytes(raw)
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "malformed arguments: %v", err)
	}
	if list, err := v.Array(); err == nil {
		return list, nil
	}
	return args{v}, nil
}

// at returns argument i, or nil when it is missing or JSON null.
func (a args) at(i int) *jason.Value {
	if i >= len(a) || a[i] == nil || a[i].Null() == nil {
		return nil
	}
	return a[i]
}

func (a args) requireString(i int, name string) (string, error) {
	v := a.at(i)
	if v == nil {
		return "", Errorf(CodeInvalidArgument, "%s is required", name)
	}
	s, err := v.String()
	if err != nil {
		return "", Errorf(CodeInvalidArgument, "%s must be a string", name)
	}
	return s, nil
}

func objectFields(v *jason.Value, what string, known []string) (map[string]*jason.Value, error) {
	obj, err := v.Object()
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%s must be an object", what)
	}
	fields := obj.Map()

	var unknown []string
	for key := range fields {
		if !contains(known, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, Errorf(CodeInvalidArgument, "%s: unknown field(s) %s", what, strings.Join(unknown, ", "))
	}
	return fields, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func numberField(fields map[string]*jason.Value, key string) (*float64, error) {
	v, ok := fields[key]
	if !ok {
		return nil, nil
	}
	f, err := v.Float64()
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%s must be a finite number", key)
	}
	return &f, nil
}

func intField(fields map[string]*jason.Value, key string) (*int, error) {
	v, ok := fields[key]
	if !ok {
		return nil, nil
	}
	n, err := v.Int64()
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%s must be an integer", key)
	}
	i := int(n)
	return &i, nil
}

func boolField(fields map[string]*jason.Value, key string) (*bool, error) {
	v, ok := fields[key]
	if !ok {
		return nil, nil
	}
	b, err := v.Boolean()
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%s must be a boolean", key)
	}
	return &b, nil
}

func stringField(fields map[string]*jason.Value, key string) (*string, error) {
	v, ok := fields[key]
	if !ok {
		return nil, nil
	}
	s, err := v.String()
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "%s must be a string", key)
	}
	return &s, nil
}

var patchKeys = []string{"roomSize", "damping", "wetLevel", "dryLevel", "preDelayMs", "width", "freeze"}

func decodePatch(v *jason.Value) (reverb.Patch, error) {
	if v == nil {
		return reverb.Patch{}, Errorf(CodeInvalidArgument, "parameters are required")
	}
	fields, err := objectFields(v, "parameters", patchKeys)
	if err != nil {
		return reverb.Patch{}, err
	}

	var p reverb.Patch
	numbers := []struct {
		key string
		dst **float64
	}{
		{"roomSize", &p.RoomSize},
		{"damping", &p.Damping},
		{"wetLevel", &p.WetLevel},
		{"dryLevel", &p.DryLevel},
		{"preDelayMs", &p.PreDelayMs},
		{"width", &p.Width},
	}
	for _, n := range numbers {
		if *n.dst, err = numberField(fields, n.key); err != nil {
			return reverb.Patch{}, err
		}
	}
	if p.Freeze, err = boolField(fields, "freeze"); err != nil {
		return reverb.Patch{}, err
	}
	return p, nil
}

var initKeys = []string{"sampleRate", "channels", "maxFrames", "maxPreDelayMs", "algorithm", "output", "device", "periodFrames"}

func decodeInitOptions(v *jason.Value) (InitOptions, error) {
	var opts InitOptions
	if v == nil {
		return opts, nil
	}
	fields, err := objectFields(v, "options", initKeys)
	if err != nil {
		return opts, err
	}

	if opts.SampleRate, err = numberField(fields, "sampleRate"); err != nil {
		return opts, err
	}
	if opts.Channels, err = intField(fields, "channels"); err != nil {
		return opts, err
	}
	if opts.MaxFrames, err = intField(fields, "maxFrames"); err != nil {
		return opts, err
	}
	if opts.MaxPreDelayMs, err = numberField(fields, "maxPreDelayMs"); err != nil {
		return opts, err
	}
	if opts.PeriodFrames, err = intField(fields, "periodFrames"); err != nil {
		return opts, err
	}
	if opts.Algorithm, err = stringField(fields, "algorithm"); err != nil {
		return opts, err
	}
	if opts.Device, err = stringField(fields, "device"); err != nil {
		return opts, err
	}
	output, err := boolField(fields, "output")
	if err != nil {
		return opts, err
	}
	opts.Output = output != nil && *output
	return opts, nil
}

func decodeSamples(v *jason.Value) ([]float32, error) {
	if v == nil {
		return nil, Errorf(CodeInvalidArgument, "samples are required")
	}
	list, err := v.Array()
	if err != nil {
		return nil, Errorf(CodeInvalidArgument, "samples must be an array of numbers")
	}

	out := make([]float32, len(list))
	for i, s := range list {
		f, err := s.Float64()
		if err != nil || math.Abs(f) > math.MaxFloat32 {
			return nil, Errorf(CodeInvalidArgument, "samples[%d] must be a finite number", i)
		}
		out[i] = float32(f)
	}
	return out, nil
}
