package buffer_test

import (
	"fmt"

	"github.com/cwbudde/native-reverb/dsp/buffer"
)

func ExampleFromInterleaved() {
	f, _ := buffer.FromInterleaved([]float32{0.1, -0.1, 0.2, -0.2}, 2)

	fmt.Println(f.FrameCount(), f.Frame(1))

	// Output:
	// 2 [0.2 -0.2]
}
