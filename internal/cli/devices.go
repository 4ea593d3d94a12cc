package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/device"
)

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List playback devices of the default audio backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := device.NewMalgo(a.logger).DeviceNames()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(out(cmd), "no playback devices")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out(cmd), name)
			}
			return nil
		},
	}
}
