package audio

import (
	"os"
	"sync"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Tap appends audio passing through a pipeline to a WAV file. Used for
// debugging capture and playback; failures after opening are ignored so a
// full disk never disturbs the audio path.
type Tap struct {
	mu   sync.Mutex
	file *os.File
	enc  *wav.Encoder
	rate int
}

// NewTap creates a mono 16-bit WAV tap at path.
func NewTap(path string, sampleRate int) (*Tap, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Tap{
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, 16, 1, 1),
		rate: sampleRate,
	}, nil
}

// WriteFloat appends normalized float samples.
func (t *Tap) WriteFloat(samples []float32) {
	ints := make([]int, len(samples))
	raw := BytesToSamples(EncodePCM16(samples))
	for i, s := range raw {
		ints[i] = int(s)
	}
	t.write(ints)
}

// WriteBytes appends 16-bit little-endian PCM bytes.
func (t *Tap) WriteBytes(pcm []byte) {
	raw := BytesToSamples(pcm)
	ints := make([]int, len(raw))
	for i, s := range raw {
		ints[i] = int(s)
	}
	t.write(ints)
}

func (t *Tap) write(data []int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc == nil {
		return
	}
	_ = t.enc.Write(&gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: t.rate},
		Data:           data,
		SourceBitDepth: 16,
	})
}

// Close finalizes the WAV header and closes the file.
func (t *Tap) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enc == nil {
		return nil
	}
	err := t.enc.Close()
	if cerr := t.file.Close(); err == nil {
		err = cerr
	}
	t.enc = nil
	t.file = nil
	return err
}
