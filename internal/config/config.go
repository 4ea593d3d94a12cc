// Package config loads application settings for the reverb command from
// defaults, an optional YAML file, REVERB_* environment variables and
// command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/cwbudde/native-reverb/dsp/reverb"
	"github.com/cwbudde/native-reverb/engine"
	"github.com/cwbudde/native-reverb/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. REVERB_ENGINE_SAMPLERATE.
const EnvPrefix = "REVERB"

// EngineSettings mirrors engine.Config.
type EngineSettings struct {
	SampleRate    float64 `mapstructure:"samplerate"`
	Channels      int     `mapstructure:"channels"`
	MaxFrames     int     `mapstructure:"maxframes"`
	MaxPreDelayMs float64 `mapstructure:"maxpredelayms"`
	Algorithm     string  `mapstructure:"algorithm"`
}

// AudioSettings select the output device.
type AudioSettings struct {
	Device       string `mapstructure:"device"`
	PeriodFrames int    `mapstructure:"periodframes"`
	// BufferMs sizes the playback ring between file reader and callback.
	BufferMs int `mapstructure:"bufferms"`
}

// ServerSettings configure the HTTP bridge host.
type ServerSettings struct {
	Listen string `mapstructure:"listen"`
}

// Settings is the full application configuration.
type Settings struct {
	Engine  EngineSettings `mapstructure:"engine"`
	Audio   AudioSettings  `mapstructure:"audio"`
	Server  ServerSettings `mapstructure:"server"`
	Log     logging.Config `mapstructure:"log"`
	Preset  string         `mapstructure:"preset"`
	Presets string         `mapstructure:"presets"`
}

// SetDefaults registers every key with its default so environment
// overrides are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	def := engine.DefaultConfig()
	v.SetDefault("engine.samplerate", def.SampleRate)
	v.SetDefault("engine.channels", def.Channels)
	v.SetDefault("engine.maxframes", def.MaxFrames)
	v.SetDefault("engine.maxpredelayms", def.MaxPreDelayMs)
	v.SetDefault("engine.algorithm", string(def.Algorithm))

	v.SetDefault("audio.device", "")
	v.SetDefault("audio.periodframes", 256)
	v.SetDefault("audio.bufferms", 500)

	v.SetDefault("server.listen", "127.0.0.1:8765")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)

	v.SetDefault("preset", "")
	v.SetDefault("presets", "")
}

// New returns a viper instance with defaults and environment binding. When
// path is empty, reverb.yaml is looked up in the working directory and the
// user config directory; a missing file is not an error.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName("reverb")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(dir + "/native-reverb")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the engine section and enumerated values.
func (s *Settings) Validate() error {
	if _, err := reverb.ParseAlgorithm(s.Engine.Algorithm); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := s.EngineConfig().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if s.Audio.PeriodFrames < 0 || s.Audio.BufferMs < 0 {
		return fmt.Errorf("config: audio period and buffer must be >= 0")
	}
	switch strings.ToLower(s.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q", s.Log.Format)
	}
	return nil
}

// EngineConfig converts the engine section.
func (s *Settings) EngineConfig() engine.Config {
	alg, _ := reverb.ParseAlgorithm(s.Engine.Algorithm)
	return engine.Config{
		SampleRate:    s.Engine.SampleRate,
		Channels:      s.Engine.Channels,
		MaxFrames:     s.Engine.MaxFrames,
		MaxPreDelayMs: s.Engine.MaxPreDelayMs,
		Algorithm:     alg,
	}
}

// LoadPresets reads a YAML preset file. An empty path yields no presets.
func LoadPresets(path string) (map[string]reverb.Parameters, error) {
	if path == "" {
		return map[string]reverb.Parameters{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	presets, err := reverb.DecodePresets(f)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return presets, nil
}

// Parameters resolves the configured starting parameters: the named preset
// from the built-in catalog or extra, or the defaults when no preset is set.
func (s *Settings) Parameters(extra map[string]reverb.Parameters) (reverb.Parameters, error) {
	if s.Preset == "" {
		return reverb.DefaultParameters(), nil
	}
	all := make(map[string]reverb.Parameters, len(extra))
	for _, name := range reverb.PresetNames() {
		all[name], _ = reverb.Preset(name)
	}
	maps.Copy(all, extra)

	p, ok := all[s.Preset]
	if !ok {
		return reverb.Parameters{}, fmt.Errorf("config: unknown preset %q", s.Preset)
	}
	return p, nil
}
