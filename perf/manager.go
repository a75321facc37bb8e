// Package perf turns stored tracks into note events keyed to the pattern
// position. Each slot (a pad or a chained sequence) plays independently of
// the others.
package perf

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
)

// Manager owns all the playback slots. It is not safe for concurrent use:
// the player calls it from the audio thread, between blocks.
type Manager struct {
	slots  [groovebox.MaxSlots]slot
	report func(slot int, err error)
}

// maxPasses bounds how many times a very short track may wrap within one
// block.
const maxPasses = 64

var (
	ErrMalformedRange = errors.New("malformed pulse range")
	ErrTooManyWraps   = errors.New("track wrapped too many times in one block")
)

func NewManager() *Manager {
	return &Manager{}
}

// SetReporter sets the function receiving errors that happen while
// updating slots, such as malformed ranges. The function is called on the
// audio thread and must not block. The errors are the package sentinels,
// unwrapped, so reporting never allocates.
func (m *Manager) SetReporter(report func(slot int, err error)) {
	m.report = report
}

func (m *Manager) valid(i int) bool {
	return i >= 0 && i < len(m.slots)
}

// Configure replaces what a slot plays. A playing slot is stopped first.
func (m *Manager) Configure(i int, c SlotConfig) error {
	if !m.valid(i) {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", i)
	}
	m.slots[i] = slot{SlotConfig: c}
	return nil
}

// SetStartMode changes the start mode; it takes effect on the next trigger.
func (m *Manager) SetStartMode(i int, mode StartMode) error {
	if !m.valid(i) {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", i)
	}
	m.slots[i].Mode = mode
	return nil
}

// SetProgram routes the events of a slot to another program. Notes already
// sounding on the old program are the caller's business.
func (m *Manager) SetProgram(i, program int) error {
	if !m.valid(i) {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", i)
	}
	if program < 0 || program >= groovebox.MaxPrograms {
		return errors.Errorf("program %d out of range", program)
	}
	m.slots[i].Program = program
	return nil
}

// SetLoops changes how many passes over all phrases the slot makes; zero
// repeats forever. A playing slot keeps its position and finishes according
// to the new count.
func (m *Manager) SetLoops(i, loops int) error {
	if !m.valid(i) {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", i)
	}
	if loops < 0 {
		return errors.Errorf("negative loop count %d", loops)
	}
	m.slots[i].Loops = loops
	return nil
}

// Trigger starts, queues or stops a slot. An idle slot starts playing at
// pulse (Immediate) or waits for the pattern to reach pulse 0 (Quantized). A
// queued or playing slot is stopped. A slot without a playable first track
// stays idle. The returned state is the state after the trigger.
func (m *Manager) Trigger(i int, pulse float64) (State, error) {
	if !m.valid(i) {
		return Idle, errors.Wrapf(ErrInvalidSlot, "slot %d", i)
	}
	s := &m.slots[i]
	if s.state != Idle {
		s.state = Idle
		return Idle, nil
	}
	if s.current().Empty() {
		return Idle, nil
	}
	s.rewind()
	if s.Mode == Quantized {
		s.state = Queued
		return Queued, nil
	}
	s.state = Playing
	s.anchor, s.anchored = pulse, false
	return Playing, nil
}

// Stop returns a slot to idle immediately. No further note events are
// produced for it; releasing notes that are still sounding is up to the
// caller.
func (m *Manager) Stop(i int) {
	if m.valid(i) {
		m.slots[i].state = Idle
	}
}

func (m *Manager) StopAll() {
	for i := range m.slots {
		m.slots[i].state = Idle
	}
}

func (m *Manager) State(i int) State {
	if !m.valid(i) {
		return Idle
	}
	return m.slots[i].state
}

func (m *Manager) IsPlaying(i int) bool {
	return m.State(i) == Playing
}

// CurrentPhrase returns the index of the phrase being played, or 0 for
// invalid slots.
func (m *Manager) CurrentPhrase(i int) int {
	if !m.valid(i) {
		return 0
	}
	return m.slots[i].phrase
}

// Anchor returns the pattern pulse where the slot started playing: the
// start of the first block it played in, or 0 for quantized starts. Before
// that block it is the trigger position.
func (m *Manager) Anchor(i int) float64 {
	if !m.valid(i) {
		return 0
	}
	return m.slots[i].anchor
}

func (m *Manager) Program(i int) int {
	if !m.valid(i) {
		return 0
	}
	return m.slots[i].Program
}

// Realign shifts the local position of playing slots by drift pulses, so
// that they stay locked to their anchors when the pattern position is
// resynchronized.
func (m *Manager) Realign(drift float64) {
	for i := range m.slots {
		s := &m.slots[i]
		if s.state != Playing {
			continue
		}
		t := s.current()
		if t.Empty() {
			continue
		}
		dur := float64(t.Duration()) / t.TicksPerPulse()
		s.position = math.Mod(s.position+drift, dur)
		if s.position < 0 {
			s.position += dur
		}
	}
}

// UpdateAll runs Update for every slot.
func (m *Manager) UpdateAll(r groovebox.PulseRange, events []groovebox.NoteEvent) []groovebox.NoteEvent {
	for i := range m.slots {
		events = m.Update(i, r, events)
	}
	return events
}

// Update appends to events the note events slot i produces during the block
// covered by r, in time order. Each event gets the sample offset inside the
// block matching its position within the pulse range.
func (m *Manager) Update(i int, r groovebox.PulseRange, events []groovebox.NoteEvent) []groovebox.NoteEvent {
	if !m.valid(i) {
		return events
	}
	s := &m.slots[i]
	if s.state == Idle {
		return events
	}
	if r.Length < 0 || math.IsNaN(r.Length) || math.IsInf(r.Length, 0) || r.Length > float64(r.Modulus) || r.Frames < 0 {
		m.fail(i, ErrMalformedRange)
		return events
	}
	if r.Length == 0 {
		return events
	}
	offset := 0.0
	if s.state == Queued {
		o, ok := r.ZeroCrossing()
		if !ok {
			return events
		}
		s.state = Playing
		s.anchor, s.anchored = 0, true
		s.rewind()
		offset = o
	}
	if !s.anchored {
		// a trigger applied after external ticks in the same block sees a
		// later pulse than the range it starts playing from
		s.anchor, s.anchored = r.Start, true
	}
	return m.play(i, s, r, offset, events)
}

func (m *Manager) play(i int, s *slot, r groovebox.PulseRange, offset float64, events []groovebox.NoteEvent) []groovebox.NoteEvent {
	remaining := r.Length - offset
	for pass := 0; remaining > 0; pass++ {
		t := s.current()
		if t.Empty() {
			s.state = Idle
			m.fail(i, ErrNoTrack)
			return events
		}
		if pass >= maxPasses {
			m.fail(i, ErrTooManyWraps)
			return events
		}
		tpp := t.TicksPerPulse()
		dur := float64(t.Duration()) / tpp
		end := math.Min(s.position+remaining, dur)
		lo, hi := s.position*tpp, end*tpp
		first := sort.Search(len(t.Events), func(k int) bool { return float64(t.Events[k].Tick) >= lo })
		for _, e := range t.Events[first:] {
			tick := float64(e.Tick)
			if tick >= hi {
				break
			}
			events = append(events, groovebox.NoteEvent{
				Frame:    r.FrameAt(offset + tick/tpp - s.position),
				Slot:     i,
				Program:  s.Program,
				Channel:  s.Channel,
				Note:     e.Note,
				Velocity: e.Velocity,
				On:       e.On,
			})
		}
		consumed := end - s.position
		remaining -= consumed
		offset += consumed
		s.position = end
		if s.position >= dur && !s.nextPass() {
			s.state = Idle
			return events
		}
	}
	return events
}

func (m *Manager) fail(i int, err error) {
	if m.report != nil {
		m.report(i, err)
	}
}
