package ir_test

import (
	"fmt"

	"github.com/cwbudde/native-reverb/measure/ir"
)

func ExampleAnalyzer_Analyze() {
	// Direct sound followed by one reflection at half amplitude 100 ms later.
	const sampleRate = 48000
	response := make([]float64, sampleRate)
	response[0] = 1
	response[sampleRate/10] = 0.5

	m, err := ir.NewAnalyzer(sampleRate).Analyze(response)
	if err != nil {
		panic(err)
	}
	fmt.Printf("C80 = %.1f dB\n", m.C80)
	fmt.Printf("D50 = %.3f\n", m.D50)
	fmt.Printf("Ts  = %.3f s\n", m.CenterTime)
	// Output:
	// C80 = 6.0 dB
	// D50 = 0.800
	// Ts  = 0.020 s
}
