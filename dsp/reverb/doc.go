// Package reverb provides the real-time reverb processor behind NativeReverb.
//
// A Processor combines a per-channel pre-delay, a reverb tank and a wet/dry
// mixer whose gains are ramped across a block whenever parameters change.
// Two tanks are available:
//   - Freeverb: Schroeder/Moorer style, 8 damped combs and 4 allpasses per
//     channel with a fixed stereo spread.
//   - FDN: 8-line Hadamard feedback delay network with modulated fractional
//     reads and per-line decay gains derived from RT60.
//
// Every buffer is allocated by the constructors. SetParameters, Reset and the
// Process methods never allocate and never block, so they can run on an audio
// callback thread.
package reverb
