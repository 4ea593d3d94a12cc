package reverb

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

var builtinPresets = map[string]Parameters{
	"room": {
		RoomSize: 0.35, Damping: 0.6, WetLevel: 0.25, DryLevel: 0.5, PreDelayMs: 5, Width: 0.8,
	},
	"hall": {
		RoomSize: 0.8, Damping: 0.4, WetLevel: 0.35, DryLevel: 0.5, PreDelayMs: 25, Width: 1,
	},
	"plate": {
		RoomSize: 0.65, Damping: 0.15, WetLevel: 0.4, DryLevel: 0.5, PreDelayMs: 0, Width: 1,
	},
	"cathedral": {
		RoomSize: 0.95, Damping: 0.3, WetLevel: 0.45, DryLevel: 0.45, PreDelayMs: 60, Width: 1,
	},
	"ambient": {
		RoomSize: 0.9, Damping: 0.7, WetLevel: 0.6, DryLevel: 0.3, PreDelayMs: 120, Width: 1,
	},
}

// Preset returns a built-in parameter set by name.
func Preset(name string) (Parameters, bool) {
	p, ok := builtinPresets[name]
	return p, ok
}

// PresetNames returns the sorted names of the built-in presets.
func PresetNames() []string {
	names := make([]string, 0, len(builtinPresets))
	for name := range builtinPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetFile is the YAML layout of a preset collection:
//
//	presets:
//	  vocal:
//	    roomSize: 0.4
//	    wetLevel: 0.2
//
// Fields missing from an entry keep their DefaultParameters value.
type PresetFile struct {
	Presets map[string]Patch `yaml:"presets"`
}

// DecodePresets reads a YAML preset collection, validating every entry.
func DecodePresets(r io.Reader) (map[string]Parameters, error) {
	var file PresetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return map[string]Parameters{}, nil
		}
		return nil, fmt.Errorf("reverb: decode presets: %w", err)
	}

	out := make(map[string]Parameters, len(file.Presets))
	for name, patch := range file.Presets {
		p := patch.Apply(DefaultParameters())
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("reverb: preset %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

// EncodePresets writes presets as YAML in PresetFile layout.
func EncodePresets(w io.Writer, presets map[string]Parameters) error {
	file := PresetFile{Presets: make(map[string]Patch, len(presets))}
	for name, p := range presets {
		file.Presets[name] = FullPatch(p)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("reverb: encode presets: %w", err)
	}
	return enc.Close()
}
