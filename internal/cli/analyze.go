package cli

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/native-reverb/internal/wavio"
	"github.com/cwbudde/native-reverb/measure/ir"
)

// analysis is the analyze report.
type analysis struct {
	Source     string             `yaml:"source"`
	SampleRate float64            `yaml:"sampleRate"`
	Channels   []ir.Metrics       `yaml:"channels"`
	Stereo     *float64           `yaml:"correlation,omitempty"`
	Bands      map[string]float64 `yaml:"bands"`
}

func (a *app) analyzeCommand() *cobra.Command {
	var (
		input   string
		output  string
		seconds float64
		format  string
		method  string
		sweepS  float64
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Measure the impulse response of the configured reverb or of a WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				irs        [][]float64
				sampleRate float64
				source     string
			)

			if input != "" {
				clip, err := wavio.ReadFile(input)
				if err != nil {
					return err
				}
				irs = deinterleave(clip.Samples, clip.Channels)
				sampleRate = float64(clip.SampleRate)
				source = input
			} else {
				cfg := a.settings.EngineConfig()
				e, err := a.newEngine(cmd, cfg)
				if err != nil {
					return err
				}
				defer e.Release()

				length := int(seconds * cfg.SampleRate)
				switch method {
				case "impulse":
					irs, err = ir.Capture(e.Process, cfg.Channels, length, cfg.MaxFrames)
				case "sweep":
					sw := ir.DefaultSweep(cfg.SampleRate)
					sw.Duration = sweepS
					irs, err = ir.MeasureSweep(e.Process, cfg.Channels, length, cfg.MaxFrames, sw)
				default:
					err = fmt.Errorf("unknown method %q", method)
				}
				if err != nil {
					return err
				}
				sampleRate = cfg.SampleRate
				source = string(cfg.Algorithm)
			}

			if output != "" {
				clip := &wavio.Audio{SampleRate: int(sampleRate), Channels: len(irs), BitDepth: 24, Samples: interleave(irs)}
				if err := wavio.WriteFile(output, clip, 0); err != nil {
					return err
				}
			}

			rep, err := buildAnalysis(source, sampleRate, irs)
			if err != nil {
				return err
			}
			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out(cmd))
				enc.SetIndent(2)
				if err := enc.Encode(rep); err != nil {
					return err
				}
				return enc.Close()
			case "text":
				return writeAnalysis(out(cmd), rep)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	a.params.register(cmd)
	cmd.Flags().StringVar(&input, "in", "", "analyze this impulse response WAV instead of rendering one")
	cmd.Flags().StringVar(&output, "out", "", "write the impulse response to this WAV file")
	cmd.Flags().Float64Var(&seconds, "seconds", 4, "rendered impulse response length")
	cmd.Flags().StringVar(&format, "format", "text", "report format: text or yaml")
	cmd.Flags().StringVar(&method, "method", "impulse", "excitation: impulse or sweep")
	cmd.Flags().Float64Var(&sweepS, "sweep-seconds", 2, "sweep duration for --method sweep")
	return cmd
}

func buildAnalysis(source string, sampleRate float64, irs [][]float64) (*analysis, error) {
	an := ir.NewAnalyzer(sampleRate)
	rep := &analysis{Source: source, SampleRate: sampleRate, Bands: map[string]float64{}}

	for _, response := range irs {
		m, err := an.Analyze(response)
		if err != nil {
			return nil, err
		}
		rep.Channels = append(rep.Channels, m)
	}
	if len(irs) == 2 {
		c := ir.Correlation(irs[0], irs[1])
		rep.Stereo = &c
	}

	mono := make([]float64, len(irs[0]))
	for _, response := range irs {
		for i, v := range response {
			mono[i] += v
		}
	}
	bands, err := ir.Response(mono, sampleRate)
	if err != nil {
		return nil, err
	}
	for _, b := range bands {
		rep.Bands[fmt.Sprintf("%g", b.Center)] = b.Level
	}
	return rep, nil
}

func writeAnalysis(w io.Writer, rep *analysis) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "source\t%s\n", rep.Source)
	for i, m := range rep.Channels {
		fmt.Fprintf(tw, "channel %d\tRT60 %.2f s\tEDT %.2f s\tC80 %s\tD50 %.3f\tTs %.3f s\n",
			i, m.RT60, m.EDT, formatDB(m.C80), m.D50, m.CenterTime)
	}
	if rep.Stereo != nil {
		fmt.Fprintf(tw, "correlation\t%.3f\n", *rep.Stereo)
	}
	for _, fc := range ir.OctaveCenters {
		if level, ok := rep.Bands[fmt.Sprintf("%g", fc)]; ok {
			fmt.Fprintf(tw, "%g Hz\t%s\n", fc, formatDB(level))
		}
	}
	return tw.Flush()
}

func formatDB(v float64) string {
	if math.IsInf(v, 0) {
		return fmt.Sprintf("%+.0f dB", v)
	}
	return fmt.Sprintf("%.1f dB", v)
}

func deinterleave(samples []float32, channels int) [][]float64 {
	frames := len(samples) / channels
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, frames)
		for i := range frames {
			out[ch][i] = float64(samples[i*channels+ch])
		}
	}
	return out
}

func interleave(channels [][]float64) []float32 {
	n := len(channels[0])
	out := make([]float32, n*len(channels))
	for ch, data := range channels {
		for i, v := range data {
			out[i*len(channels)+ch] = float32(v)
		}
	}
	return out
}
