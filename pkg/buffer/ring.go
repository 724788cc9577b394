// Package buffer provides a thread-safe ring buffer for audio bytes.
package buffer

import "sync/atomic"

// RingBuffer is a single-producer, single-consumer byte ring. The producer
// is the playback scheduler; the consumer is the audio device callback.
type RingBuffer struct {
	buf    []byte
	size   int
	r, w   int32
	count  int32
	closed int32
}

// New creates a ring buffer with the given capacity in bytes.
func New(size int) *RingBuffer {
	return &RingBuffer{
		buf:  make([]byte, size),
		size: size,
	}
}

// Write copies data into the buffer and returns the number of bytes
// actually written. Excess data is dropped when the buffer is full.
func (rb *RingBuffer) Write(data []byte) int {
	if atomic.LoadInt32(&rb.closed) == 1 {
		return 0
	}

	total := 0
	for len(data) > 0 {
		r := atomic.LoadInt32(&rb.r)
		w := atomic.LoadInt32(&rb.w)
		count := atomic.LoadInt32(&rb.count)

		avail := rb.size - int(count)
		if avail == 0 {
			break
		}

		var toWrite int
		if w < r {
			toWrite = min(len(data), int(r)-int(w))
		} else {
			toWrite = min(len(data), rb.size-int(w))
			if toWrite == 0 && r > 0 {
				// Tail is full but the head has room; wrap.
				atomic.StoreInt32(&rb.w, 0)
				w = 0
				toWrite = min(len(data), int(r))
			}
		}

		if toWrite == 0 {
			break
		}

		copy(rb.buf[w:], data[:toWrite])
		newW := (w + int32(toWrite)) % int32(rb.size)
		atomic.StoreInt32(&rb.w, newW)
		atomic.AddInt32(&rb.count, int32(toWrite))

		data = data[toWrite:]
		total += toWrite
	}
	return total
}

// Read fills out with buffered data and returns the number of bytes read
// and whether the buffer is closed and drained.
func (rb *RingBuffer) Read(out []byte) (int, bool) {
	if atomic.LoadInt32(&rb.closed) == 1 && atomic.LoadInt32(&rb.count) == 0 {
		return 0, true
	}

	total := 0
	for len(out) > 0 {
		r := atomic.LoadInt32(&rb.r)
		w := atomic.LoadInt32(&rb.w)
		count := atomic.LoadInt32(&rb.count)

		if count <= 0 {
			break
		}

		var toRead int
		if r < w {
			toRead = min(len(out), int(w)-int(r))
		} else {
			toRead = min(len(out), rb.size-int(r))
		}

		if toRead == 0 {
			break
		}

		copy(out, rb.buf[r:r+int32(toRead)])
		newR := (r + int32(toRead)) % int32(rb.size)
		atomic.StoreInt32(&rb.r, newR)
		atomic.AddInt32(&rb.count, int32(-toRead))

		out = out[toRead:]
		total += toRead
	}

	closed := atomic.LoadInt32(&rb.closed) == 1 && atomic.LoadInt32(&rb.count) == 0
	return total, closed
}

// Reset discards all buffered data immediately. Used for barge-in: the
// device callback starts reading silence on its next invocation.
func (rb *RingBuffer) Reset() {
	w := atomic.LoadInt32(&rb.w)
	atomic.StoreInt32(&rb.r, w)
	atomic.StoreInt32(&rb.count, 0)
}

// Length returns the number of buffered bytes.
func (rb *RingBuffer) Length() int {
	return int(atomic.LoadInt32(&rb.count))
}

// Close marks the buffer closed; readers drain the remaining data.
func (rb *RingBuffer) Close() {
	atomic.StoreInt32(&rb.closed, 1)
}

// IsClosed reports whether Close has been called.
func (rb *RingBuffer) IsClosed() bool {
	return atomic.LoadInt32(&rb.closed) == 1
}

// IsEmpty reports whether the buffer holds no data.
func (rb *RingBuffer) IsEmpty() bool {
	return atomic.LoadInt32(&rb.count) == 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
