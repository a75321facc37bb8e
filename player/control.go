package player

import (
	"math"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/clock"
	"github.com/vsariola/groovebox/mixer"
	"github.com/vsariola/groovebox/perf"
)

// MIDI controllers understood by ControlChange.
const (
	ControllerVolume = 7
	ControllerPan    = 10
)

func (p *Player) send(msg any) error {
	if !TrySend(p.broker.ToPlayer, msg) {
		return ErrQueueFull
	}
	return nil
}

func validSlot(slot int) error {
	if slot < 0 || slot >= groovebox.MaxSlots {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", slot)
	}
	return nil
}

func validProgram(program int) error {
	if program < 0 || program >= groovebox.MaxPrograms {
		return errors.Wrapf(ErrInvalidProgram, "program %d", program)
	}
	return nil
}

// ProcessTransportEvent queues one transport message. Events without a
// timestamp are stamped now. If the queue is full the event is dropped and
// counted in Status.Dropped.
func (p *Player) ProcessTransportEvent(e clock.Event) error {
	if e.Time.IsZero() {
		e.Time = p.now()
	}
	if err := p.send(e); err != nil {
		p.telemetry.dropped.Add(1)
		return err
	}
	return nil
}

// Trigger starts or stops a slot at the next block, see perf.Manager.Trigger.
func (p *Player) Trigger(slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	return p.send(TriggerMsg{Slot: slot})
}

// Stop stops a slot at the next block and releases the notes it holds.
func (p *Player) Stop(slot int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	return p.send(StopMsg{Slot: slot})
}

func (p *Player) StopAll() error {
	return p.send(StopAllMsg{})
}

// Panic stops every slot and releases every held note, including live input.
func (p *Player) Panic() error {
	return p.send(PanicMsg{})
}

func (p *Player) SetTempo(bpm float64) error {
	if !(bpm > 0) || math.IsInf(bpm, 0) {
		return errors.Errorf("tempo must be positive, got %v", bpm)
	}
	return p.send(TempoMsg{BPM: bpm})
}

func (p *Player) SetSyncSettings(s groovebox.SyncSettings) error {
	if s.SoftThreshold < 0 || s.HardThreshold < s.SoftThreshold {
		return errors.Errorf("sync thresholds must satisfy 0 <= soft (%d) <= hard (%d)", s.SoftThreshold, s.HardThreshold)
	}
	return p.send(SyncSettingsMsg{Settings: s})
}

// AssignTrack makes a pad play the named track. The pad keeps its program,
// channel, loop and start mode settings.
func (p *Player) AssignTrack(pad int, name string) error {
	if pad < 0 || pad >= groovebox.MaxPads {
		return errors.Wrapf(ErrInvalidSlot, "pad %d", pad)
	}
	var t *groovebox.Track
	if p.tracks != nil {
		t, _ = p.tracks.Track(name)
	}
	if t.Empty() {
		return errors.Wrapf(perf.ErrNoTrack, "%q", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.configs[pad]
	if len(c.Phrases) == 0 {
		c.Loops = 1
	}
	c.Phrases = []perf.Phrase{{Track: t, Loops: 1}}
	if err := p.send(ConfigureMsg{Slot: pad, Config: c}); err != nil {
		return err
	}
	p.configs[pad] = c
	return nil
}

// AssignSequence replaces the i:th sequence. Missing tracks leave the
// sequence silent, as in New.
func (p *Player) AssignSequence(i int, seq groovebox.Sequence) error {
	if i < 0 || i >= groovebox.MaxSequences {
		return errors.Wrapf(ErrInvalidSlot, "sequence %d", i)
	}
	if err := validProgram(seq.Program); err != nil {
		return err
	}
	slot := groovebox.SequenceSlot(i)
	c := perf.SequenceConfig(seq, p.tracks)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.send(ConfigureMsg{Slot: slot, Config: c}); err != nil {
		return err
	}
	p.configs[slot] = c
	return nil
}

// SetStartMode takes effect on the next trigger of the slot.
func (p *Player) SetStartMode(slot int, mode perf.StartMode) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.send(StartModeMsg{Slot: slot, Mode: mode}); err != nil {
		return err
	}
	p.configs[slot].Mode = mode
	return nil
}

// SetProgram routes the slot to another program. Notes already sounding
// are released on the program that played them.
func (p *Player) SetProgram(slot, program int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if err := validProgram(program); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.send(ProgramMsg{Slot: slot, Program: program}); err != nil {
		return err
	}
	p.configs[slot].Program = program
	return nil
}

// SetLoop sets how many times the slot plays through; zero loops forever.
func (p *Player) SetLoop(slot, loops int) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if loops < 0 {
		return errors.Errorf("negative loop count %d", loops)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.send(LoopsMsg{Slot: slot, Loops: loops}); err != nil {
		return err
	}
	p.configs[slot].Loops = loops
	return nil
}

// SlotConfig returns the configuration last requested for a slot.
func (p *Player) SlotConfig(slot int) (perf.SlotConfig, error) {
	if err := validSlot(slot); err != nil {
		return perf.SlotConfig{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.configs[slot], nil
}

// NoteOn plays a note directly on a program's engine at the next block.
func (p *Player) NoteOn(program int, channel, note, velocity byte) error {
	if err := validProgram(program); err != nil {
		return err
	}
	return p.send(NoteMsg{Program: program, Channel: channel, Note: note, Velocity: velocity, On: true})
}

func (p *Player) NoteOff(program int, channel, note byte) error {
	if err := validProgram(program); err != nil {
		return err
	}
	return p.send(NoteMsg{Program: program, Channel: channel, Note: note})
}

// ControlChange applies a MIDI controller to a program's mixer channel.
// Volume (7) and pan (10) are supported; other controllers are ignored.
func (p *Player) ControlChange(program int, controller, value byte) error {
	v := float32(min(value, 127)) / 127
	switch controller {
	case ControllerVolume:
		return p.SetVolume(program, v)
	case ControllerPan:
		return p.SetPan(program, v)
	}
	return nil
}

func (p *Player) SetEngine(program int, e groovebox.SampleEngine) error {
	if err := validProgram(program); err != nil {
		return err
	}
	return p.send(EngineMsg{Program: program, Engine: e})
}

func (p *Player) SetEffects(program int, chain groovebox.EffectChain) error {
	if err := validProgram(program); err != nil {
		return err
	}
	return p.send(EffectsMsg{Program: program, Chain: chain})
}

func (p *Player) SetMasterEffects(chain groovebox.EffectChain) error {
	return p.send(EffectsMsg{Program: MasterEffects, Chain: chain})
}

// Mix returns the current mixer snapshot. It must not be modified.
func (p *Player) Mix() *mixer.Params {
	return p.params.Load()
}

func (p *Player) updateProgram(program int, f func(c *groovebox.MixChannel)) error {
	if err := validProgram(program); err != nil {
		return err
	}
	p.params.Update(func(m *mixer.Params) { f(&m.Programs[program]) })
	return nil
}

func (p *Player) SetVolume(program int, volume float32) error {
	return p.updateProgram(program, func(c *groovebox.MixChannel) { c.Volume = max(volume, 0) })
}

func (p *Player) SetPan(program int, pan float32) error {
	return p.updateProgram(program, func(c *groovebox.MixChannel) { c.Pan = min(max(pan, 0), 1) })
}

func (p *Player) SetMute(program int, mute bool) error {
	return p.updateProgram(program, func(c *groovebox.MixChannel) { c.Mute = mute })
}

func (p *Player) SetEffectsEnabled(program int, enabled bool) error {
	return p.updateProgram(program, func(c *groovebox.MixChannel) { c.Effects = enabled })
}

func (p *Player) SetPlayback(c groovebox.MixChannel) {
	p.params.Update(func(m *mixer.Params) { m.Playback = c })
}

func (p *Player) SetMaster(c groovebox.MixChannel) {
	p.params.Update(func(m *mixer.Params) { m.Master = c })
}
