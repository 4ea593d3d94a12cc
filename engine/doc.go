// Package engine owns the reverb lifecycle and the real-time processing
// entry point.
//
// An Engine moves through Uninitialized, Ready, Processing and Released.
// Initialize and Release run on a control goroutine; Process runs on the
// audio callback and never allocates, locks or blocks. Parameters reach the
// callback through a Controller, which publishes immutable snapshots with a
// single atomic pointer swap.
package engine
