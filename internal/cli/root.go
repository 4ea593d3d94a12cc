// Package cli implements the reverb command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cwbudde/native-reverb/dsp/reverb"
	"github.com/cwbudde/native-reverb/engine"
	"github.com/cwbudde/native-reverb/internal/config"
	"github.com/cwbudde/native-reverb/internal/logging"
	"github.com/cwbudde/native-reverb/internal/metrics"
)

// app is the state shared by every command, populated before a command runs.
type app struct {
	configPath string
	settings   *config.Settings
	logger     *slog.Logger
	presets    map[string]reverb.Parameters
	registry   *prometheus.Registry
	metrics    *metrics.EngineMetrics
	params     paramFlags
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"sample-rate":   "engine.samplerate",
	"channels":      "engine.channels",
	"max-frames":    "engine.maxframes",
	"max-predelay":  "engine.maxpredelayms",
	"algorithm":     "engine.algorithm",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"preset":        "preset",
	"presets":       "presets",
	"device":        "audio.device",
	"period-frames": "audio.periodframes",
	"listen":        "server.listen",
}

// NewRootCommand builds the reverb command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "reverb",
		Short:         "Real-time stereo reverb engine and bridge host",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	def := engine.DefaultConfig()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ./reverb.yaml)")
	flags.Float64("sample-rate", def.SampleRate, "engine sample rate in Hz")
	flags.Int("channels", def.Channels, "channel count (1 or 2)")
	flags.Int("max-frames", def.MaxFrames, "largest block the engine renders at once")
	flags.Float64("max-predelay", def.MaxPreDelayMs, "pre-delay capacity in milliseconds")
	flags.String("algorithm", string(def.Algorithm), "reverb algorithm: freeverb or fdn")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", logging.FormatText, "log format: text or json")
	flags.String("preset", "", "starting preset")
	flags.String("presets", "", "YAML preset file")
	flags.String("device", "", "audio device name")
	flags.Int("period-frames", 256, "audio device period in frames")
	flags.String("listen", "127.0.0.1:8765", "HTTP listen address for serve")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.setup(cmd)
	}

	root.AddCommand(
		a.renderCommand(),
		a.analyzeCommand(),
		a.playCommand(),
		a.scriptCommand(),
		a.serveCommand(),
		a.presetsCommand(),
		a.devicesCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	v, err := config.New(a.configPath)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	settings, err := config.Load(v)
	if err != nil {
		return err
	}
	a.settings = settings

	logCfg := settings.Log
	logCfg.Output = cmd.ErrOrStderr()
	a.logger = logging.New(logCfg)

	a.presets, err = config.LoadPresets(settings.Presets)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	a.metrics, err = metrics.NewEngineMetrics(a.registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// startParameters resolves the configured preset and applies parameter
// flags set on cmd over it.
func (a *app) startParameters(cmd *cobra.Command) (reverb.Parameters, error) {
	p, err := a.settings.Parameters(a.presets)
	if err != nil {
		return p, err
	}
	return a.params.patch(cmd).Apply(p), nil
}

// newEngine initializes an engine for cfg with the starting parameters
// applied and no fade-in ramp.
func (a *app) newEngine(cmd *cobra.Command, cfg engine.Config) (*engine.Engine, error) {
	p, err := a.startParameters(cmd)
	if err != nil {
		return nil, err
	}

	e := engine.New(engine.WithObserver(a.metrics))
	if err := e.Initialize(cfg); err != nil {
		return nil, err
	}
	applied, clamped, err := e.SetParameters(p)
	if err != nil {
		e.Release()
		return nil, err
	}
	if clamped {
		a.logger.Warn("parameters clamped", "parameters", applied)
	}
	if err := e.Reset(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
