package cli

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/native-reverb/dsp/reverb"
	"github.com/cwbudde/native-reverb/internal/wavio"
)

// run executes the command tree in an empty working directory and returns
// stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

func writeImpulse(t *testing.T, path string, sampleRate, channels, frames int) {
	t.Helper()
	samples := make([]float32, frames*channels)
	for ch := range channels {
		samples[ch] = 0.5
	}
	require.NoError(t, wavio.WriteFile(path, &wavio.Audio{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   24,
		Samples:    samples,
	}, 0))
}

func energy(samples []float32) float64 {
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return sum
}

func TestPresetsList(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, err := run(t, "presets", "list")
	require.NoError(t, err)
	for _, name := range reverb.PresetNames() {
		assert.Contains(t, stdout, name)
	}
	assert.True(t, strings.HasPrefix(stdout, "NAME"))
}

func TestPresetsExportAndReload(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	stdout, err := run(t, "presets", "export", "hall", "plate")
	require.NoError(t, err)

	presets, err := reverb.DecodePresets(strings.NewReader(stdout))
	require.NoError(t, err)
	require.Len(t, presets, 2)
	hall, _ := reverb.Preset("hall")
	assert.Equal(t, hall, presets["hall"])

	_, err = run(t, "presets", "export", "nope")
	assert.ErrorContains(t, err, "unknown preset")

	file := filepath.Join(dir, "mine.yaml")
	_, err = run(t, "presets", "export", "-o", file, "room")
	require.NoError(t, err)

	stdout, err = run(t, "--presets", file, "presets", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "room")
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	in := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")
	writeImpulse(t, in, 44100, 2, 4410)

	stdout, err := run(t, "render", in, outPath, "--tail", "0.5", "--preset", "hall", "--dry", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote")

	got, err := wavio.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 44100, got.SampleRate)
	assert.Equal(t, 2, got.Channels)
	assert.Equal(t, 4410+22050, got.Frames())

	// Dry is off, so everything past the impulse is reverb.
	assert.Greater(t, energy(got.Samples[2*4410:]), 1e-6)
}

func TestRenderBitDepth(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	in := filepath.Join(dir, "in.wav")
	outPath := filepath.Join(dir, "out.wav")
	writeImpulse(t, in, 48000, 1, 480)

	_, err := run(t, "render", in, outPath, "--tail", "0", "--bit-depth", "16")
	require.NoError(t, err)

	got, err := wavio.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, 16, got.BitDepth)
	assert.Equal(t, 1, got.Channels)
}

func TestRenderMissingInput(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := run(t, "render", filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out.wav"))
	assert.Error(t, err)
}

func TestAnalyzeEngine(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	irPath := filepath.Join(dir, "ir.wav")
	stdout, err := run(t, "analyze", "--seconds", "1.5", "--format", "yaml", "--out", irPath,
		"--room-size", "0.7", "--width", "1")
	require.NoError(t, err)

	var rep analysis
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &rep))
	assert.Equal(t, "freeverb", rep.Source)
	require.Len(t, rep.Channels, 2)
	for _, m := range rep.Channels {
		assert.Greater(t, m.RT60, 0.1)
	}
	require.NotNil(t, rep.Stereo)
	assert.Less(t, *rep.Stereo, 0.99)
	assert.NotEmpty(t, rep.Bands)

	clip, err := wavio.ReadFile(irPath)
	require.NoError(t, err)
	assert.Equal(t, 72000, clip.Frames())

	stdout, err = run(t, "analyze", "--in", irPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "RT60")
	assert.Contains(t, stdout, "correlation")
}

func TestAnalyzeSweep(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, err := run(t, "analyze", "--method", "sweep", "--sweep-seconds", "0.5", "--seconds", "1",
		"--channels", "1", "--format", "yaml")
	require.NoError(t, err)

	var rep analysis
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &rep))
	require.Len(t, rep.Channels, 1)
	assert.Nil(t, rep.Stereo)
	assert.Greater(t, rep.Channels[0].RT60, 0.0)

	_, err = run(t, "analyze", "--method", "mls", "--seconds", "0.1")
	assert.ErrorContains(t, err, "unknown method")
}

func TestAnalyzeUnknownFormat(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "analyze", "--seconds", "0.2", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestScriptEval(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, err := run(t, "script", "--null-audio", "-e",
		`NativeReverb.initialize({ sampleRate: 44100 }); NativeReverb.loadPreset("plate"); NativeReverb.getState()`)
	require.NoError(t, err)
	assert.Equal(t, "ready\n", stdout)
}

func TestScriptFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "test.js")
	writeFileString(t, path, `
		NativeReverb.initialize({});
		NativeReverb.setParameters({ roomSize: 0.25 });
	`)

	stdout, err := run(t, "script", "--null-audio", path, "-e", "NativeReverb.getParameters().roomSize")
	require.NoError(t, err)
	assert.Equal(t, "0.25\n", stdout)

	_, err = run(t, "script")
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "--channels", "5", "presets", "list")
	assert.Error(t, err)

	_, err = run(t, "--preset", "nope", "analyze", "--seconds", "0.1")
	assert.ErrorContains(t, err, "unknown preset")
}

func TestFormatDB(t *testing.T) {
	assert.Equal(t, "+Inf dB", formatDB(math.Inf(1)))
	assert.Equal(t, "-3.0 dB", formatDB(-3))
}

func TestInterleaveRoundTrip(t *testing.T) {
	samples := []float32{1, 2, 3, 4, 5, 6}
	channels := deinterleave(samples, 2)
	assert.Equal(t, [][]float64{{1, 3, 5}, {2, 4, 6}}, channels)
	assert.Equal(t, samples, interleave(channels))
}

func writeFileString(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
