package player

import (
	"math"
	"sync/atomic"

	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/perf"
)

type (
	// Status is a read-only view of the player after the last rendered
	// block, for display only.
	Status struct {
		Pulse    int
		Row      int
		Tempo    float64
		External bool // following an external MIDI clock
		Running  bool // external transport running
		Slots    [groovebox.MaxSlots]SlotStatus
		Levels   [groovebox.MaxPrograms + 1]float32 // peak levels, master last
		Blocks   int64
		Dropped  int64 // transport events lost to a full queue
	}

	SlotStatus struct {
		State   perf.State
		Phrase  int
		Program int     // program the slot is routed to
		Anchor  float64 // pattern pulse where playback started
	}

	// telemetry is written by the audio thread after every block and read
	// by anyone; every field is an atomic so neither side ever waits.
	telemetry struct {
		pulse    atomic.Int64
		tempo    atomic.Uint64
		external atomic.Bool
		running  atomic.Bool
		states   [groovebox.MaxSlots]atomic.Int32
		phrases  [groovebox.MaxSlots]atomic.Int32
		programs [groovebox.MaxSlots]atomic.Int32
		anchors  [groovebox.MaxSlots]atomic.Uint64
		levels   [groovebox.MaxPrograms + 1]atomic.Uint32
		blocks   atomic.Int64
		dropped  atomic.Int64
	}
)

func (p *Player) publish() {
	t := &p.telemetry
	t.pulse.Store(int64(p.clock.Pulse()))
	t.tempo.Store(math.Float64bits(p.clock.Tempo()))
	t.external.Store(p.sync.ExternalActive())
	t.running.Store(p.sync.Running())
	for i := range t.states {
		t.states[i].Store(int32(p.slots.State(i)))
		t.phrases[i].Store(int32(p.slots.CurrentPhrase(i)))
		t.programs[i].Store(int32(p.slots.Program(i)))
		t.anchors[i].Store(math.Float64bits(p.slots.Anchor(i)))
	}
	levels := p.mixer.Levels()
	for i, l := range levels {
		t.levels[i].Store(math.Float32bits(l))
	}
	t.blocks.Add(1)
}

// Status returns the telemetry of the last rendered block. Fields are read
// one by one, so a block finishing meanwhile may mix into the result.
func (p *Player) Status() Status {
	t := &p.telemetry
	s := Status{
		Pulse:    int(t.pulse.Load()),
		Tempo:    math.Float64frombits(t.tempo.Load()),
		External: t.external.Load(),
		Running:  t.running.Load(),
		Blocks:   t.blocks.Load() - 1,
		Dropped:  t.dropped.Load(),
	}
	s.Row = s.Pulse / p.pulsesPerRow
	for i := range s.Slots {
		s.Slots[i] = SlotStatus{
			State:   perf.State(t.states[i].Load()),
			Phrase:  int(t.phrases[i].Load()),
			Program: int(t.programs[i].Load()),
			Anchor:  math.Float64frombits(t.anchors[i].Load()),
		}
	}
	for i := range s.Levels {
		s.Levels[i] = math.Float32frombits(t.levels[i].Load())
	}
	return s
}

// IsPlaying reports whether the slot was playing at the end of the last
// block. Invalid slots are never playing.
func (p *Player) IsPlaying(slot int) bool {
	if slot < 0 || slot >= groovebox.MaxSlots {
		return false
	}
	return perf.State(p.telemetry.states[slot].Load()) == perf.Playing
}

// CurrentPhrase returns the phrase index the slot was playing at the end of
// the last block, or 0 for invalid slots.
func (p *Player) CurrentPhrase(slot int) int {
	if slot < 0 || slot >= groovebox.MaxSlots {
		return 0
	}
	return int(p.telemetry.phrases[slot].Load())
}
