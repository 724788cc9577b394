package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTap_WritesReadableWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	tap, err := NewTap(path, 16000)
	require.NoError(t, err)

	tap.WriteFloat([]float32{0, 0.5, -0.5, 1})
	tap.WriteBytes(SamplesToBytes([]int16{100, -100}))
	require.NoError(t, tap.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, 16000, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
	assert.Len(t, buf.Data, 6)
	assert.Equal(t, 100, buf.Data[4])
	assert.Equal(t, -100, buf.Data[5])
}

func TestTap_CloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	tap, err := NewTap(path, 24000)
	require.NoError(t, err)

	require.NoError(t, tap.Close())
	assert.NoError(t, tap.Close())
}
