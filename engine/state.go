package engine

import "fmt"

// State is the engine lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateProcessing
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateProcessing:
		return "processing"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether the engine holds DSP state.
func (s State) Active() bool {
	return s == StateReady || s == StateProcessing
}
