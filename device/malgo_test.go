package device

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMalgoOpenRejectsBadConfig(t *testing.T) {
	m := NewMalgo(nil)
	assert.Equal(t, "miniaudio", m.Name())

	_, err := m.Open(StreamConfig{SampleRate: 48000, Channels: 3}, func(_, _ []float32, _ int) {})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = m.Open(StreamConfig{SampleRate: 48000, Channels: 2}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// Opening real hardware only runs when explicitly requested.
func TestMalgoPlaybackDevice(t *testing.T) {
	if os.Getenv("REVERB_DEVICE_TESTS") == "" {
		t.Skip("set REVERB_DEVICE_TESTS=1 to open the default audio device")
	}

	m := NewMalgo(nil)
	stream, err := m.Open(StreamConfig{SampleRate: 48000, Channels: 2}, func(_, out []float32, _ int) {
		clear(out)
	})
	require.NoError(t, err)
	require.NoError(t, stream.Start())
	require.NoError(t, stream.Close())
}
