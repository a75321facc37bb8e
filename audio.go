package groovebox

import (
	"math"
	"unsafe"
)

type (
	// AudioBuffer is a buffer of stereo audio samples of variable length, each
	// sample represented by [2]float32. [0] is left channel, [1] is right.
	AudioBuffer [][2]float32

	// AudioOutput is a host audio device that periodically pulls blocks from a
	// BlockRenderer until closed.
	AudioOutput interface {
		Play(r BlockRenderer) error
		Close() error
	}

	// BlockRenderer renders frames of interleaved stereo audio into out. It is
	// called from the host audio thread and must not block.
	BlockRenderer interface {
		RenderBlock(out []float32, frames int) int
	}
)

// Interleaved returns the buffer as a flat slice of interleaved L/R samples
// sharing the same memory.
func (b AudioBuffer) Interleaved() []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), 2*len(b))
}

// Clear sets all samples of the buffer to zero.
func (b AudioBuffer) Clear() {
	clear(b)
}

// Int16 converts the buffer into interleaved 16-bit samples, clamping values
// outside [-1, 1]. dst is reused if it has enough capacity.
func (b AudioBuffer) Int16(dst []int16) []int16 {
	n := 2 * len(b)
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i, v := range b.Interleaved() {
		dst[i] = FloatToInt16(v)
	}
	return dst
}

// SetInt16 overwrites the buffer with interleaved 16-bit samples. Only
// min(len(b), len(src)/2) frames are written.
func (b AudioBuffer) SetInt16(src []int16) {
	flat := b.Interleaved()
	n := min(len(flat), len(src))
	for i := 0; i < n; i++ {
		flat[i] = float32(src[i]) / math.MaxInt16
	}
}

func FloatToInt16(v float32) int16 {
	switch {
	case v != v: // NaN
		return 0
	case v <= -1:
		return -math.MaxInt16
	case v >= 1:
		return math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}
