// Package ir measures rendered reverb tails.
//
// Capture drives any block processor with a unit impulse and returns the
// per-channel impulse responses. Analyzer derives decay and energy metrics
// from them:
//
//   - RT60 from the T30 (or T20) slope of the Schroeder decay curve
//   - EDT from the 0 to -10 dB slope
//   - C50/C80 clarity and D50/D80 definition
//   - center time
//   - interchannel correlation of a stereo tail, which tracks stereo width
//
// Response reduces an impulse response to octave-band levels.
//
//	irs, _ := ir.Capture(eng.Process, 2, 48000*4, 512)
//	m, _ := ir.NewAnalyzer(48000).Analyze(irs[0])
//	fmt.Printf("RT60 = %.2f s, C80 = %.1f dB\n", m.RT60, m.C80)
package ir
