// Package wavio reads and writes PCM WAV files as interleaved float32
// samples in [-1, 1].
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidFile reports input that is not a supported WAV file.
var ErrInvalidFile = errors.New("wavio: invalid WAV file")

// Audio is a decoded clip.
type Audio struct {
	SampleRate int
	Channels   int
	// BitDepth is the source resolution; Write uses it when no depth is
	// given.
	BitDepth int
	Samples  []float32
}

// Frames returns the number of whole frames.
func (a *Audio) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the clip length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float64(int64(1) << (bitDepth - 1)), nil
	default:
		return 0, fmt.Errorf("wavio: unsupported bit depth: %d", bitDepth)
	}
}

// Read decodes a 16, 24 or 32-bit PCM WAV stream.
func Read(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, ErrInvalidFile
	}

	bitDepth := int(dec.BitDepth)
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}
	if dec.NumChans != 1 && dec.NumChans != 2 {
		return nil, fmt.Errorf("wavio: unsupported number of channels: %d", dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavio: decode: %w", err)
	}

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(float64(v) / scale)
	}

	return &Audio{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   bitDepth,
		Samples:    samples,
	}, nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	a, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Write encodes a as PCM at bitDepth, or at a.BitDepth when bitDepth is 0.
// Samples are clipped to full scale.
func Write(w io.WriteSeeker, a *Audio, bitDepth int) error {
	if bitDepth == 0 {
		bitDepth = a.BitDepth
	}
	scale, err := fullScale(bitDepth)
	if err != nil {
		return err
	}
	if a.SampleRate <= 0 || a.Channels <= 0 {
		return fmt.Errorf("wavio: invalid format: %d Hz, %d channels", a.SampleRate, a.Channels)
	}

	hi := scale - 1
	data := make([]int, len(a.Samples))
	for i, s := range a.Samples {
		v := math.Round(float64(s) * scale)
		if math.IsNaN(v) {
			v = 0
		}
		data[i] = int(max(-scale, min(hi, v)))
	}

	enc := wav.NewEncoder(w, a.SampleRate, bitDepth, a.Channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: a.SampleRate, NumChannels: a.Channels},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavio: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavio: finalize: %w", err)
	}
	return nil
}

// WriteFile encodes a into a new file at path.
func WriteFile(path string, a *Audio, bitDepth int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, a, bitDepth); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
