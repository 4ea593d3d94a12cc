// Command reverb renders, plays, measures and serves the NativeReverb engine.
//
// Usage:
//
//	reverb [command] [flags]
//
// Examples:
//
//	reverb render --preset hall dry.wav wet.wav
//	reverb analyze --algorithm fdn --room-size 0.9
//	reverb play --preset plate vocals.wav
//	reverb serve --listen :8765
//	reverb script -e 'NativeReverb.listPresets()'
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/native-reverb/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
