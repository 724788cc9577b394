package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice_assistant_client/internal/config"
)

// The render callback runs on the device thread; it must zero-fill on
// underrun and must not allocate per tick.
func TestRenderCallback_DrainsRingAndZeroFills(t *testing.T) {
	cfg := config.Default().Audio
	p := NewPlayer(&cfg)

	p.Write(SamplesToBytes([]int16{100, -200}))

	out := make([]int16, 4)
	p.renderCallback(out)

	assert.Equal(t, []int16{100, -200, 0, 0}, out)
}

func TestRenderCallback_ReusesScratch(t *testing.T) {
	cfg := config.Default().Audio
	p := NewPlayer(&cfg)

	out := make([]int16, 8)
	p.renderCallback(out)
	require.NotEmpty(t, p.scratch)
	first := &p.scratch[0]

	p.Write(SamplesToBytes([]int16{1, 2, 3, 4, 5, 6, 7, 8}))
	p.renderCallback(out)

	assert.Same(t, first, &p.scratch[0])
	assert.Equal(t, []int16{1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestReset_DropsBufferedAudio(t *testing.T) {
	cfg := config.Default().Audio
	p := NewPlayer(&cfg)

	p.Write(SamplesToBytes([]int16{1, 2, 3, 4}))
	p.Reset()

	out := make([]int16, 4)
	p.renderCallback(out)
	assert.Equal(t, []int16{0, 0, 0, 0}, out)
}
