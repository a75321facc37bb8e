// Package oto plays a groovebox.BlockRenderer on the default audio device
// through oto.
package oto

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
)

type (
	// Output is the host audio loop: the device pulls audio from the
	// renderer on its own thread.
	Output struct {
		ctx    *oto.Context
		player *oto.Player
		mu     sync.Mutex // only for Play and Close
	}

	// Reader adapts a BlockRenderer to the io.Reader oto pulls from,
	// producing interleaved stereo float32 little endian samples.
	Reader struct {
		renderer groovebox.BlockRenderer
		buf      []float32
	}
)

const bytesPerFrame = 2 * 4

// oto allows a single context per process.
var (
	contextOnce sync.Once
	context     *oto.Context
	contextErr  error
)

// NewOutput opens the audio device. bufferSize is the device latency; zero
// lets oto choose.
func NewOutput(sampleRate int, bufferSize time.Duration) (*Output, error) {
	contextOnce.Do(func() {
		var ready chan struct{}
		context, ready, contextErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   bufferSize,
		})
		if contextErr == nil {
			<-ready
		}
	})
	if contextErr != nil {
		return nil, errors.Wrap(contextErr, "cannot create oto context")
	}
	return &Output{ctx: context}, nil
}

// Play starts pulling audio from r, replacing whatever was playing.
func (o *Output) Play(r groovebox.BlockRenderer) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.closePlayer(); err != nil {
		return err
	}
	o.player = o.ctx.NewPlayer(NewReader(r))
	o.player.Play()
	return nil
}

func (o *Output) closePlayer() error {
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	if err != nil {
		return errors.Wrap(err, "cannot close oto player")
	}
	return nil
}

// Close stops playback. The device itself stays open for the process.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closePlayer()
}

func NewReader(r groovebox.BlockRenderer) *Reader {
	return &Reader{renderer: r}
}

// Read renders as many whole frames as fit in p. It never fails; a renderer
// returning fewer frames yields a short read.
func (r *Reader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < 2*frames {
		r.buf = make([]float32, 2*frames)
	}
	buf := r.buf[:2*frames]
	n := r.renderer.RenderBlock(buf, frames)
	for i, v := range buf[:2*n] {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return n * bytesPerFrame, nil
}

var _ groovebox.AudioOutput = (*Output)(nil)
