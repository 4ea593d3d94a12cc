package engine

import "errors"

var (
	// ErrInvalidArgument reports an out-of-range or malformed argument.
	ErrInvalidArgument = errors.New("engine: invalid argument")
	// ErrNotInitialized reports a call before Initialize or after Release.
	ErrNotInitialized = errors.New("engine: not initialized")
	// ErrDeviceUnavailable reports that the audio device could not be opened
	// or started.
	ErrDeviceUnavailable = errors.New("engine: device unavailable")
	// ErrBusy reports a re-entrant Process call or a lifecycle call that
	// overlaps another one.
	ErrBusy = errors.New("engine: busy")
)
