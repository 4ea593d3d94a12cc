package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/bridge"
	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/dsp/reverb"
	"github.com/cwbudde/native-reverb/engine"
	"github.com/cwbudde/native-reverb/internal/wavio"
)

const drainPoll = 20 * time.Millisecond

func (a *app) playCommand() *cobra.Command {
	var tail float64

	cmd := &cobra.Command{
		Use:   "play [INPUT.wav]",
		Short: "Play a WAV file through the reverb, or process live input",
		Long: `With a file argument, play streams it through the engine to the output device
and exits when the reverb tail has played out. Without one, the default
capture device is processed full duplex until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.settings.EngineConfig()

			var clip *wavio.Audio
			if len(args) == 1 {
				var err error
				if clip, err = wavio.ReadFile(args[0]); err != nil {
					return err
				}
				cfg.SampleRate = float64(clip.SampleRate)
				cfg.Channels = clip.Channels
			}

			p, err := a.startParameters(cmd)
			if err != nil {
				return err
			}

			var (
				src   *device.RingSource
				extra []bridge.ModuleOption
			)
			if clip != nil {
				bufferFrames := max(a.settings.Audio.BufferMs*clip.SampleRate/1000, cfg.MaxFrames)
				if src, err = device.NewRingSource(bufferFrames, clip.Channels); err != nil {
					return err
				}
				extra = append(extra, bridge.WithSource(src))
			}
			b, m, err := a.newBridge(device.NewMalgo(a.logger), extra...)
			if err != nil {
				return err
			}
			defer b.Invalidate()

			failed := make(chan error, 1)
			defer b.Subscribe(deviceFailures(failed))()

			if err := m.Initialize(ctx, initOptions(cfg, a.settings.Audio.Device, a.settings.Audio.PeriodFrames)); err != nil {
				return err
			}
			defer m.Release(context.Background())

			// Input is silence until the source is fed, so the defaults
			// never reach the output.
			if err := m.SetParameters(ctx, reverb.FullPatch(p)); err != nil {
				return err
			}

			if clip == nil {
				fmt.Fprintln(out(cmd), "processing live input, interrupt to stop")
				select {
				case <-ctx.Done():
					return nil
				case err := <-failed:
					return err
				}
			}

			fmt.Fprintf(out(cmd), "playing %s (%.2f s)\n", args[0], clip.Duration())
			samples := append(clip.Samples, make([]float32, int(tail*cfg.SampleRate)*cfg.Channels)...)
			return feed(ctx, src, samples, failed)
		},
	}

	a.params.register(cmd)
	cmd.Flags().Float64Var(&tail, "tail", 2, "seconds of silence appended to let the tail ring out")
	return cmd
}

// deviceFailures returns a listener that reports the first deviceError event
// on failed as a DEVICE_UNAVAILABLE error.
func deviceFailures(failed chan<- error) bridge.Listener {
	return func(_ string, payload []byte) {
		var ev struct {
			Event string `json:"event"`
			Data  struct {
				Message string `json:"message"`
			} `json:"data"`
		}
		if json.Unmarshal(payload, &ev) != nil || ev.Event != bridge.EventDeviceError {
			return
		}
		select {
		case failed <- bridge.Errorf(bridge.CodeDeviceUnavailable, "device stopped: %s", ev.Data.Message):
		default:
		}
	}
}

// feed queues samples into src and waits for the device to consume them. It
// returns nil when ctx is canceled and the device error when one arrives on
// failed.
func feed(ctx context.Context, src *device.RingSource, samples []float32, failed <-chan error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case err := <-failed:
			cancel(err)
		case <-ctx.Done():
		}
	}()

	stopped := func() error {
		if cause := context.Cause(ctx); errors.Is(cause, engine.ErrDeviceUnavailable) {
			return cause
		}
		return nil
	}

	if err := src.WriteAll(ctx, samples); err != nil {
		if errors.Is(err, context.Canceled) {
			return stopped()
		}
		return err
	}
	src.CloseWrite()

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for !src.Drained() {
		select {
		case <-ctx.Done():
			return stopped()
		case <-ticker.C:
		}
	}
	return nil
}

func initOptions(cfg engine.Config, deviceName string, periodFrames int) bridge.InitOptions {
	alg := string(cfg.Algorithm)
	opts := bridge.InitOptions{
		SampleRate:    &cfg.SampleRate,
		Channels:      &cfg.Channels,
		MaxFrames:     &cfg.MaxFrames,
		MaxPreDelayMs: &cfg.MaxPreDelayMs,
		Algorithm:     &alg,
		Output:        true,
	}
	if deviceName != "" {
		opts.Device = &deviceName
	}
	if periodFrames > 0 {
		period := min(periodFrames, cfg.MaxFrames)
		opts.PeriodFrames = &period
	}
	return opts
}
