// Package mixer renders the sample engines of all programs and mixes them
// through the playback and master buses.
package mixer

import (
	"github.com/pkg/errors"
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/groovebox"
)

// Mixer holds the sample engines and effect chains of every program, and
// the scratch buffers used to mix them. All methods are meant to be called
// from the audio thread only.
type Mixer struct {
	sampleRate    int
	engines       [groovebox.MaxPrograms]groovebox.SampleEngine
	effects       [groovebox.MaxPrograms]groovebox.EffectChain
	masterEffects groovebox.EffectChain

	scratch groovebox.AudioBuffer
	bus     groovebox.AudioBuffer
	ints    []int16
	abs     []float32
	events  [groovebox.MaxPrograms][]groovebox.NoteEvent

	// peak levels of the last block, programs first, then master
	levels [groovebox.MaxPrograms + 1]float32
}

// MasterLevel is the index of the master level in Levels.
const MasterLevel = groovebox.MaxPrograms

var ErrInvalidProgram = errors.New("invalid program")

// New creates a mixer with scratch buffers sized for blockSize frames.
// Larger blocks are still handled, at the cost of one allocation.
func New(sampleRate, blockSize int) *Mixer {
	m := &Mixer{sampleRate: sampleRate}
	m.grow(blockSize)
	for i := range m.events {
		m.events[i] = make([]groovebox.NoteEvent, 0, 64)
	}
	return m
}

func (m *Mixer) grow(frames int) {
	if frames <= len(m.scratch) {
		return
	}
	m.scratch = make(groovebox.AudioBuffer, frames)
	m.bus = make(groovebox.AudioBuffer, frames)
	m.ints = make([]int16, 2*frames)
	m.abs = make([]float32, 2*frames)
}

func (m *Mixer) SetEngine(program int, e groovebox.SampleEngine) error {
	if program < 0 || program >= len(m.engines) {
		return errors.Wrapf(ErrInvalidProgram, "program %d", program)
	}
	m.engines[program] = e
	return nil
}

func (m *Mixer) SetEffects(program int, chain groovebox.EffectChain) error {
	if program < 0 || program >= len(m.effects) {
		return errors.Wrapf(ErrInvalidProgram, "program %d", program)
	}
	m.effects[program] = chain
	return nil
}

func (m *Mixer) SetMasterEffects(chain groovebox.EffectChain) {
	m.masterEffects = chain
}

// Levels returns the peak levels of the last mixed block.
func (m *Mixer) Levels() [groovebox.MaxPrograms + 1]float32 {
	return m.levels
}

// Mix renders one block into out. events must be sorted by frame; each is
// delivered to the engine of its program at its frame, so notes start
// sample-accurately. p is read for the whole block and must not change
// during the call.
func (m *Mixer) Mix(out groovebox.AudioBuffer, events []groovebox.NoteEvent, p *Params) {
	frames := len(out)
	m.grow(frames)
	for i := range m.events {
		m.events[i] = m.events[i][:0]
	}
	for _, e := range events {
		if e.Program >= 0 && e.Program < len(m.events) {
			m.events[e.Program] = append(m.events[e.Program], e)
		}
	}
	bus := m.bus[:frames]
	bus.Clear()
	for prog, engine := range m.engines {
		if engine == nil {
			m.levels[prog] = 0
			continue
		}
		buf := m.scratch[:frames]
		groovebox.Render(engine, buf, m.events[prog])
		ch := p.Programs[prog]
		if ch.Effects && len(m.effects[prog]) > 0 {
			m.process(m.effects[prog], buf)
		}
		if ch.Mute {
			m.levels[prog] = 0
			continue
		}
		l, r := ProgramGains(ch)
		applyGains(buf, l, r)
		m.levels[prog] = m.peak(buf)
		vek32.Add_Inplace(bus.Interleaved(), buf.Interleaved())
	}
	if p.Playback.Mute || p.Master.Mute {
		bus.Clear()
	} else {
		l, r := BusGains(p.Playback)
		applyGains(bus, l, r)
		l, r = BusGains(p.Master)
		applyGains(bus, l, r)
		if p.Master.Effects && len(m.masterEffects) > 0 {
			m.process(m.masterEffects, bus)
		}
	}
	m.levels[MasterLevel] = m.peak(bus)
	copy(out, bus)
}

// process runs an effect chain on buf, converting to the 16-bit
// representation the effects work on and back.
func (m *Mixer) process(chain groovebox.EffectChain, buf groovebox.AudioBuffer) {
	m.ints = buf.Int16(m.ints)
	chain.Process(m.ints, len(buf), m.sampleRate)
	buf.SetInt16(m.ints)
}

func (m *Mixer) peak(buf groovebox.AudioBuffer) float32 {
	if len(buf) == 0 {
		return 0
	}
	flat := buf.Interleaved()
	return vek32.Max(vek32.Abs_Into(m.abs[:len(flat)], flat))
}
