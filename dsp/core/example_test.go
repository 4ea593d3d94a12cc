package core_test

import (
	"fmt"

	"github.com/cwbudde/native-reverb/dsp/core"
)

func ExampleApplyProcessorOptions() {
	cfg, err := core.ApplyProcessorOptions(
		core.WithSampleRate(44100),
		core.WithBlockSize(256),
		core.WithChannels(1),
	)
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Printf("sampleRate=%.0f blockSize=%d channels=%d\n", cfg.SampleRate, cfg.BlockSize, cfg.Channels)

	// Output:
	// sampleRate=44100 blockSize=256 channels=1
}

func ExampleMsToSamples() {
	fmt.Println(core.MsToSamples(25, 48000))

	// Output:
	// 1200
}
