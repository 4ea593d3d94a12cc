package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/dsp/reverb"
)

func (a *app) presetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List or export reverb presets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List built-in and configured presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all := a.allPresets()
			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tROOM\tDAMP\tWET\tDRY\tPREDELAY\tWIDTH\tFREEZE")
			for _, name := range slices.Sorted(maps.Keys(all)) {
				p := all[name]
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.0f ms\t%.2f\t%t\n",
					name, p.RoomSize, p.Damping, p.WetLevel, p.DryLevel, p.PreDelayMs, p.Width, p.Freeze)
			}
			return tw.Flush()
		},
	})

	var output string
	export := &cobra.Command{
		Use:   "export [NAME...]",
		Short: "Write presets as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			all := a.allPresets()
			selected := all
			if len(args) > 0 {
				selected = make(map[string]reverb.Parameters, len(args))
				for _, name := range args {
					p, ok := all[name]
					if !ok {
						return fmt.Errorf("unknown preset %q", name)
					}
					selected[name] = p
				}
			}

			var w io.Writer = out(cmd)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return reverb.EncodePresets(w, selected)
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.AddCommand(export)
	return cmd
}

// allPresets merges configured presets over the built-in ones.
func (a *app) allPresets() map[string]reverb.Parameters {
	all := make(map[string]reverb.Parameters)
	for _, name := range reverb.PresetNames() {
		all[name], _ = reverb.Preset(name)
	}
	maps.Copy(all, a.presets)
	return all
}
