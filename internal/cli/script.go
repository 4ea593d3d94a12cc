package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/internal/jshost"
)

func (a *app) scriptCommand() *cobra.Command {
	var (
		eval      string
		timeout   time.Duration
		memoryMB  int
		nullAudio bool
	)

	cmd := &cobra.Command{
		Use:   "script [FILE.js]",
		Short: "Run JavaScript against the NativeReverb bridge module",
		Long: `Script evaluates a JavaScript file in an embedded QuickJS runtime. The
NativeReverb global exposes every bridge method; BridgeEvents.addListener
subscribes to ReverbEvent notifications and console output goes to the log.`,
		Example: `  reverb script -e 'NativeReverb.initialize({}); NativeReverb.listPresets()'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && eval == "" {
				return fmt.Errorf("script: a file or --eval expression is required")
			}

			var driver device.Driver = device.NewMalgo(a.logger)
			if nullAudio {
				driver = device.Null{Realtime: true}
			}
			b, _, err := a.newBridge(driver)
			if err != nil {
				return err
			}
			defer b.Invalidate()

			host, err := jshost.New(b, jshost.WithLogger(a.logger), jshost.WithMemoryLimit(memoryMB))
			if err != nil {
				return err
			}
			defer host.Close()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if len(args) == 1 {
				src, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if err := host.Run(ctx, string(src)); err != nil {
					return err
				}
			}
			if eval != "" {
				result, err := host.EvalString(ctx, eval)
				if err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), result)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&eval, "eval", "e", "", "expression to evaluate after the file; its value is printed")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "interrupt the script after this long")
	cmd.Flags().IntVar(&memoryMB, "memory-limit", 64, "JavaScript heap limit in MiB")
	cmd.Flags().BoolVar(&nullAudio, "null-audio", false, "use a silent clock-driven device instead of the sound card")
	return cmd
}
