// Package sampler is a small polyphonic sample player implementing
// groovebox.SampleEngine. Notes replay one sample, pitched relative to a
// root note, with velocity as gain.
package sampler

import (
	"math"

	"github.com/vsariola/groovebox"
)

type (
	// Engine plays a Sample on a fixed number of voices. When all voices
	// are busy the oldest one is stolen.
	Engine struct {
		sample     *Sample
		rootNote   int
		sampleRate int
		voices     []voice
		counter    int

		// OneShot makes voices ignore note offs and always play the sample
		// to its end, as drum hits usually do.
		OneShot bool
	}

	voice struct {
		active  bool
		channel byte
		note    byte
		pos     float64
		step    float64
		gain    float32
		release int // frames of fade left after note off, 0 when held
		started int
	}
)

// releaseFrames is the length of the fade after a note off.
const releaseFrames = 64

const DefaultVoices = 8

// New creates an engine rendering at sampleRate. A nil sample renders
// silence.
func New(sample *Sample, rootNote, voices, sampleRate int) *Engine {
	if voices <= 0 {
		voices = DefaultVoices
	}
	return &Engine{
		sample:     sample,
		rootNote:   rootNote,
		sampleRate: sampleRate,
		voices:     make([]voice, voices),
	}
}

func (e *Engine) NoteOn(channel, note, velocity byte) {
	if e.sample == nil || len(e.sample.Frames) == 0 || e.sampleRate <= 0 {
		return
	}
	if velocity == 0 {
		e.NoteOff(channel, note, 0)
		return
	}
	v := e.free()
	e.counter++
	*v = voice{
		active:  true,
		channel: channel,
		note:    note,
		step:    math.Exp2(float64(int(note)-e.rootNote)/12) * float64(e.sample.SampleRate) / float64(e.sampleRate),
		gain:    float32(velocity) / 127,
		started: e.counter,
	}
}

func (e *Engine) NoteOff(channel, note, velocity byte) {
	if e.OneShot {
		return
	}
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.release == 0 && v.channel == channel && v.note == note {
			v.release = releaseFrames
		}
	}
}

// free returns an idle voice, or the oldest one if none is idle.
func (e *Engine) free() *voice {
	oldest := 0
	for i := range e.voices {
		if !e.voices[i].active {
			return &e.voices[i]
		}
		if e.voices[i].started < e.voices[oldest].started {
			oldest = i
		}
	}
	return &e.voices[oldest]
}

// Active returns the number of sounding voices.
func (e *Engine) Active() int {
	n := 0
	for _, v := range e.voices {
		if v.active {
			n++
		}
	}
	return n
}

func (e *Engine) Render(buffer groovebox.AudioBuffer) {
	buffer.Clear()
	if e.sample == nil {
		return
	}
	frames := e.sample.Frames
	last := float64(len(frames) - 1)
	for i := range e.voices {
		v := &e.voices[i]
		for j := 0; j < len(buffer) && v.active; j++ {
			if v.pos > last {
				v.active = false
				break
			}
			k := int(v.pos)
			t := float32(v.pos - float64(k))
			s := frames[k]
			if k+1 < len(frames) {
				n := frames[k+1]
				s[0] += (n[0] - s[0]) * t
				s[1] += (n[1] - s[1]) * t
			}
			g := v.gain
			if v.release > 0 {
				g *= float32(v.release) / releaseFrames
				v.release--
				if v.release == 0 {
					v.active = false
				}
			}
			buffer[j][0] += s[0] * g
			buffer[j][1] += s[1] * g
			v.pos += v.step
		}
	}
}
