package cli

import (
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/internal/server"
)

func (a *app) serveCommand() *cobra.Command {
	var (
		origins   []string
		nullAudio bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the NativeReverb bridge module over HTTP and WebSocket",
		Long: `Serve hosts the bridge on --listen. Methods are invoked with
POST /bridge/NativeReverb/<method> and a JSON argument array; events stream
on GET /events; Prometheus metrics are on GET /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.registry.Register(collectors.NewGoCollector()); err != nil {
				return err
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

			srv := server.New(b,
				server.WithLogger(a.logger),
				server.WithGatherer(a.registry),
				server.WithOriginPatterns(origins...),
			)
			a.logger.Info("serving", "listen", a.settings.Server.Listen)
			return srv.ListenAndServe(cmd.Context(), a.settings.Server.Listen)
		},
	}

	cmd.Flags().StringSliceVar(&origins, "origin", nil, "allowed cross-origin WebSocket host patterns")
	cmd.Flags().BoolVar(&nullAudio, "null-audio", false, "use a silent clock-driven device instead of the sound card")
	return cmd
}
