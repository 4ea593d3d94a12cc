package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/native-reverb/bridge"
	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/engine"
)

func TestDeviceFailuresForwardsDeviceError(t *testing.T) {
	failed := make(chan error, 1)
	listen := deviceFailures(failed)

	state, err := json.Marshal(bridge.Event{Module: "NativeReverb", Event: bridge.EventStateChanged})
	require.NoError(t, err)
	listen(bridge.EventName, state)
	assert.Empty(t, failed)

	stopped, err := json.Marshal(bridge.Event{
		Module: "NativeReverb",
		Event:  bridge.EventDeviceError,
		Data:   map[string]any{"code": bridge.CodeDeviceUnavailable, "message": "device unplugged"},
	})
	require.NoError(t, err)
	listen(bridge.EventName, stopped)
	listen(bridge.EventName, stopped)

	require.Len(t, failed, 1)
	err = <-failed
	assert.ErrorIs(t, err, engine.ErrDeviceUnavailable)
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestFeedReturnsDeviceError(t *testing.T) {
	src, err := device.NewRingSource(4, 1)
	require.NoError(t, err)

	// Nobody reads the ring, so feed blocks until the device error arrives.
	failed := make(chan error, 1)
	time.AfterFunc(20*time.Millisecond, func() {
		failed <- bridge.Errorf(bridge.CodeDeviceUnavailable, "device stopped")
	})

	err = feed(context.Background(), src, make([]float32, 64), failed)
	require.Error(t, err)
	assert.Equal(t, bridge.CodeDeviceUnavailable, bridge.CodeOf(err))
}

func TestFeedInterruptedReturnsNil(t *testing.T) {
	src, err := device.NewRingSource(4, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	assert.NoError(t, feed(ctx, src, make([]float32, 64), make(chan error)))
}
