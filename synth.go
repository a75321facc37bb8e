package groovebox

type (
	// SampleEngine is an opaque polyphonic renderer owned by one program. The
	// player calls it only from the audio thread.
	SampleEngine interface {
		// Render overwrites buffer with the next len(buffer) frames of stereo
		// audio.
		Render(buffer AudioBuffer)
		NoteOn(channel, note, velocity byte)
		NoteOff(channel, note, velocity byte)
	}

	// Effect processes interleaved stereo 16-bit audio in place. Parameters
	// are plain integers indexed from 0 to NumParams()-1.
	Effect interface {
		Process(buffer []int16, frames, sampleRate int)
		NumParams() int
		Param(index int) int
		SetParam(index, value int)
	}

	// EffectChain runs effects in order.
	EffectChain []Effect
)

func (c EffectChain) Process(buffer []int16, frames, sampleRate int) {
	for _, e := range c {
		if e != nil {
			e.Process(buffer, frames, sampleRate)
		}
	}
}

// Render renders the engine into buffer in pieces split at the event frames,
// so notes start at the exact sample they were scheduled on. Events must be
// sorted by frame; events outside the buffer are applied at its edges.
func Render(engine SampleEngine, buffer AudioBuffer, events []NoteEvent) {
	frame := 0
	for _, ev := range events {
		f := min(max(ev.Frame, frame), len(buffer))
		if f > frame {
			engine.Render(buffer[frame:f])
			frame = f
		}
		if ev.On {
			engine.NoteOn(ev.Channel, ev.Note, ev.Velocity)
		} else {
			engine.NoteOff(ev.Channel, ev.Note, ev.Velocity)
		}
	}
	if frame < len(buffer) {
		engine.Render(buffer[frame:])
	}
}

// NoteEvent is a note on or off scheduled within the current block. Frame is
// relative to the start of the block.
type NoteEvent struct {
	Frame    int
	Slot     int
	Program  int
	Channel  byte
	Note     byte
	Velocity byte
	On       bool
}
