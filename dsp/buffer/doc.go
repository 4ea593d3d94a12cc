// Package buffer provides interleaved audio frame buffers.
//
// Hosts and audio drivers exchange interleaved float32 samples; Frames wraps
// such a slice with its channel count so frame arithmetic lives in one place.
// Frames never copies on construction: ownership stays with the caller.
package buffer
