package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/internal/wavio"
)

func (a *app) renderCommand() *cobra.Command {
	var (
		tail     float64
		bitDepth int
	)

	cmd := &cobra.Command{
		Use:   "render INPUT.wav OUTPUT.wav",
		Short: "Render a WAV file through the reverb",
		Long: `Render reads a mono or stereo PCM WAV file, runs it through the engine at the
file's own sample rate and channel count and writes the result. Engine
settings other than sample rate and channels come from the configuration.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := wavio.ReadFile(args[0])
			if err != nil {
				return err
			}

			cfg := a.settings.EngineConfig()
			cfg.SampleRate = float64(src.SampleRate)
			cfg.Channels = src.Channels

			e, err := a.newEngine(cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Release()

			tailFrames := int(tail * float64(src.SampleRate))
			in := append(src.Samples, make([]float32, tailFrames*src.Channels)...)
			rendered := make([]float32, len(in))

			start := time.Now()
			ch := cfg.Channels
			frames := len(in) / ch
			for off := 0; off < frames; off += cfg.MaxFrames {
				n := min(cfg.MaxFrames, frames-off)
				if err := e.Process(in[off*ch:(off+n)*ch], rendered[off*ch:(off+n)*ch], n); err != nil {
					return fmt.Errorf("render: frame %d: %w", off, err)
				}
				if err := cmd.Context().Err(); err != nil {
					return err
				}
			}

			dst := &wavio.Audio{
				SampleRate: src.SampleRate,
				Channels:   src.Channels,
				BitDepth:   src.BitDepth,
				Samples:    rendered,
			}
			if err := wavio.WriteFile(args[1], dst, bitDepth); err != nil {
				return err
			}

			a.logger.Info("rendered",
				"input", args[0],
				"output", args[1],
				"frames", frames,
				"seconds", dst.Duration(),
				"elapsed", time.Since(start))
			fmt.Fprintf(out(cmd), "wrote %s (%.2f s, %d Hz, %d ch)\n", args[1], dst.Duration(), dst.SampleRate, dst.Channels)
			return nil
		},
	}

	a.params.register(cmd)
	cmd.Flags().Float64Var(&tail, "tail", 2, "seconds of silence appended to let the tail ring out")
	cmd.Flags().IntVar(&bitDepth, "bit-depth", 0, "output bit depth (16, 24, 32; default: input depth)")
	return cmd
}
