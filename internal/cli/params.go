package cli

import (
	"github.com/spf13/cobra"

	"github.com/cwbudde/native-reverb/dsp/reverb"
)

// paramFlags are per-command reverb parameter overrides.
type paramFlags struct {
	roomSize, damping, wet, dry, preDelay, width float64
	freeze                                       bool
}

func (f *paramFlags) register(cmd *cobra.Command) {
	def := reverb.DefaultParameters()
	fs := cmd.Flags()
	fs.Float64Var(&f.roomSize, "room-size", def.RoomSize, "room size [0, 1]")
	fs.Float64Var(&f.damping, "damping", def.Damping, "high-frequency damping [0, 1]")
	fs.Float64Var(&f.wet, "wet", def.WetLevel, "wet level [0, 1]")
	fs.Float64Var(&f.dry, "dry", def.DryLevel, "dry level [0, 1]")
	fs.Float64Var(&f.preDelay, "pre-delay", def.PreDelayMs, "pre-delay in milliseconds")
	fs.Float64Var(&f.width, "width", def.Width, "stereo width [0, 1]")
	fs.BoolVar(&f.freeze, "freeze", def.Freeze, "hold the tail indefinitely")
}

// patch returns the flags explicitly set on cmd.
func (f *paramFlags) patch(cmd *cobra.Command) reverb.Patch {
	var p reverb.Patch
	set := func(name string, v float64, dst **float64) {
		if fl := cmd.Flags().Lookup(name); fl != nil && fl.Changed {
			*dst = &v
		}
	}
	set("room-size", f.roomSize, &p.RoomSize)
	set("damping", f.damping, &p.Damping)
	set("wet", f.wet, &p.WetLevel)
	set("dry", f.dry, &p.DryLevel)
	set("pre-delay", f.preDelay, &p.PreDelayMs)
	set("width", f.width, &p.Width)
	if fl := cmd.Flags().Lookup("freeze"); fl != nil && fl.Changed {
		freeze := f.freeze
		p.Freeze = &freeze
	}
	return p
}
