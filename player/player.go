// Package player ties the pattern clock, the synchronizer, the playback
// slots and the mixer into one engine driven by the host audio loop.
//
// The audio thread calls RenderBlock. All other methods are meant for
// control threads: they either queue a message through the Broker, applied
// at the start of the next block, or publish a new mixer snapshot. The audio
// thread never takes a lock.
package player

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/clock"
	"github.com/vsariola/groovebox/mixer"
	"github.com/vsariola/groovebox/perf"
)

type (
	// Player is one independent groovebox engine. Several players can run
	// side by side; they share nothing.
	Player struct {
		sampleRate   int
		blockSize    int
		pulsesPerRow int

		broker *Broker
		clock  *clock.Clock
		sync   *clock.Synchronizer
		slots  *perf.Manager
		mixer  *mixer.Mixer
		params *mixer.ParamStore
		tracks groovebox.TrackProvider
		now    func() time.Time

		// audio thread only
		events []groovebox.NoteEvent
		buffer groovebox.AudioBuffer
		held   [groovebox.MaxSlots][128]heldNote
		live   [groovebox.MaxPrograms][16][128]bool
		before [groovebox.MaxSlots]perf.State

		// tempo set while following an external clock, applied once the
		// clock goes internal again; zero when none is pending
		pendingTempo float64

		telemetry telemetry

		mu      sync.Mutex // guards configs; never taken by the audio thread
		configs [groovebox.MaxSlots]perf.SlotConfig
	}

	// heldNote remembers where a sounding note was sent, so it can be
	// released there even if the slot has been rerouted since.
	heldNote struct {
		on      bool
		program int
		channel byte
	}
)

// liveSlot marks note events that come from live input rather than a slot.
const liveSlot = -1

var (
	ErrInvalidSlot    = perf.ErrInvalidSlot
	ErrInvalidProgram = mixer.ErrInvalidProgram
	ErrQueueFull      = errors.New("player queue is full")
)

// New creates a player for the kit. Pads and sequences are resolved against
// tracks now; missing tracks leave their slots silent. The kit is not
// retained.
func New(kit *groovebox.Kit, tracks groovebox.TrackProvider, broker *Broker) (*Player, error) {
	if err := kit.Validate(); err != nil {
		return nil, err
	}
	c, err := clock.New(kit.PatternLength(), kit.BPM)
	if err != nil {
		return nil, errors.Wrap(err, "could not create pattern clock")
	}
	p := &Player{
		sampleRate:   kit.SampleRate,
		blockSize:    kit.BlockSize,
		pulsesPerRow: kit.PulsesPerRow,
		broker:       broker,
		clock:        c,
		sync:         clock.NewSynchronizer(c, kit.Sync),
		slots:        perf.NewManager(),
		mixer:        mixer.New(kit.SampleRate, kit.BlockSize),
		params:       mixer.NewParamStore(mixer.KitParams(kit)),
		tracks:       tracks,
		now:          time.Now,
		events:       make([]groovebox.NoteEvent, 0, 1024),
		buffer:       make(groovebox.AudioBuffer, kit.BlockSize),
	}
	p.slots.SetReporter(p.reportSlot)
	for i, pad := range kit.Pads {
		p.configs[i] = perf.PadConfig(pad, tracks)
	}
	for i, seq := range kit.Sequences {
		p.configs[groovebox.SequenceSlot(i)] = perf.SequenceConfig(seq, tracks)
	}
	for i, c := range p.configs {
		if err := p.slots.Configure(i, c); err != nil {
			return nil, errors.Wrapf(err, "could not configure slot %d", i)
		}
	}
	p.publish()
	return p, nil
}

// RenderBlock renders frames of interleaved stereo audio into out and
// returns the number of frames written. Long requests are split into blocks
// of the configured block size; control messages and transport events are
// applied at the start of each block.
func (p *Player) RenderBlock(out []float32, frames int) int {
	frames = min(frames, len(out)/2)
	done := 0
	for done < frames {
		n := min(p.blockSize, frames-done)
		buf := p.buffer[:n]
		p.process(buf)
		copy(out[2*done:], buf.Interleaved())
		done += n
	}
	return done
}

func (p *Player) process(buf groovebox.AudioBuffer) {
	frames := len(buf)
	p.events = p.events[:0]
	p.processMessages()
	if p.sync.CheckTimeout(p.now()) {
		p.SendAlert("ExternalClockLost", "MIDI clock stopped arriving, following the internal tempo", Warning)
	}
	if bpm, ok := p.sync.Tempo(); ok && p.sync.ExternalActive() {
		p.clock.SetTempo(bpm)
	} else if p.pendingTempo > 0 {
		p.clock.SetTempo(p.pendingTempo)
		p.pendingTempo = 0
	}
	r := p.clock.Advance(frames, p.sampleRate)
	for i := range p.before {
		p.before[i] = p.slots.State(i)
	}
	p.events = p.slots.UpdateAll(r, p.events)
	slices.SortStableFunc(p.events, func(a, b groovebox.NoteEvent) int {
		return cmp.Compare(a.Frame, b.Frame)
	})
	p.track(p.events)
	for i, s := range p.before {
		if s != perf.Idle && p.slots.State(i) == perf.Idle {
			p.events = p.releaseSlot(i, frames-1, p.events)
		}
	}
	p.mixer.Mix(buf, p.events, p.params.Load())
	p.publish()
}

func (p *Player) processMessages() {
	for {
		select {
		case msg := <-p.broker.ToPlayer:
			p.apply(msg)
		default:
			return
		}
	}
}

func (p *Player) apply(msg any) {
	switch m := msg.(type) {
	case clock.Event:
		before := p.clock.Pulse()
		switch p.sync.Handle(m) {
		case clock.SyncSoft, clock.SyncHard:
			p.slots.Realign(float64(clock.Drift(before, p.clock.Pulse(), p.clock.Modulus())))
		}
	case TriggerMsg:
		was := p.slots.State(m.Slot)
		s, err := p.slots.Trigger(m.Slot, p.clock.Position())
		if err != nil {
			p.alertErr("TriggerFailed", err)
			return
		}
		if was != perf.Idle && s == perf.Idle {
			p.events = p.releaseSlot(m.Slot, 0, p.events)
		}
	case StopMsg:
		p.slots.Stop(m.Slot)
		p.events = p.releaseSlot(m.Slot, 0, p.events)
	case StopAllMsg:
		p.stopAll()
	case PanicMsg:
		p.stopAll()
		p.releaseLive()
	case ConfigureMsg:
		p.events = p.releaseSlot(m.Slot, 0, p.events)
		p.alertErr("ConfigureFailed", p.slots.Configure(m.Slot, m.Config))
	case StartModeMsg:
		p.alertErr("ConfigureFailed", p.slots.SetStartMode(m.Slot, m.Mode))
	case ProgramMsg:
		p.alertErr("ConfigureFailed", p.slots.SetProgram(m.Slot, m.Program))
	case LoopsMsg:
		p.alertErr("ConfigureFailed", p.slots.SetLoops(m.Slot, m.Loops))
	case TempoMsg:
		if p.sync.ExternalActive() {
			p.pendingTempo = m.BPM
			return
		}
		p.clock.SetTempo(m.BPM)
	case SyncSettingsMsg:
		p.sync.SetSettings(m.Settings)
	case NoteMsg:
		p.events = append(p.events, groovebox.NoteEvent{
			Slot:     liveSlot,
			Program:  m.Program,
			Channel:  m.Channel & 0x0f,
			Note:     m.Note & 0x7f,
			Velocity: m.Velocity,
			On:       m.On,
		})
	case EngineMsg:
		p.alertErr("EngineFailed", p.mixer.SetEngine(m.Program, m.Engine))
	case EffectsMsg:
		if m.Program == MasterEffects {
			p.mixer.SetMasterEffects(m.Chain)
			return
		}
		p.alertErr("EffectsFailed", p.mixer.SetEffects(m.Program, m.Chain))
	default:
		// ignore unknown messages
	}
}

func (p *Player) stopAll() {
	p.slots.StopAll()
	for i := range p.held {
		p.events = p.releaseSlot(i, 0, p.events)
	}
}

// track updates the held notes from the events of one block.
func (p *Player) track(events []groovebox.NoteEvent) {
	for _, e := range events {
		n := e.Note & 0x7f
		if e.Slot == liveSlot {
			if e.Program >= 0 && e.Program < len(p.live) {
				p.live[e.Program][e.Channel&0x0f][n] = e.On
			}
			continue
		}
		if e.Slot >= 0 && e.Slot < len(p.held) {
			p.held[e.Slot][n] = heldNote{on: e.On, program: e.Program, channel: e.Channel}
		}
	}
}

// releaseSlot appends a note off at frame for every note slot i still holds.
func (p *Player) releaseSlot(i, frame int, events []groovebox.NoteEvent) []groovebox.NoteEvent {
	if i < 0 || i >= len(p.held) {
		return events
	}
	for n := range p.held[i] {
		h := &p.held[i][n]
		if !h.on {
			continue
		}
		events = append(events, groovebox.NoteEvent{
			Frame:   frame,
			Slot:    i,
			Program: h.program,
			Channel: h.channel,
			Note:    byte(n),
		})
		h.on = false
	}
	return events
}

func (p *Player) releaseLive() {
	for prog := range p.live {
		for ch := range p.live[prog] {
			for n, on := range p.live[prog][ch] {
				if !on {
					continue
				}
				p.events = append(p.events, groovebox.NoteEvent{
					Slot:    liveSlot,
					Program: prog,
					Channel: byte(ch),
					Note:    byte(n),
				})
				p.live[prog][ch][n] = false
			}
		}
	}
}

func (p *Player) reportSlot(slot int, err error) {
	TrySend(p.broker.Alerts, Alert{Name: "SlotError", Priority: Warning, Err: err, Slot: slot})
}

func (p *Player) alertErr(name string, err error) {
	if err != nil {
		TrySend(p.broker.Alerts, Alert{Name: name, Priority: Error, Err: err, Slot: -1})
	}
}

// SendAlert queues an alert without blocking. Alerts are dropped when
// nobody is reading them.
func (p *Player) SendAlert(name, message string, priority AlertPriority) {
	TrySend(p.broker.Alerts, Alert{Name: name, Priority: priority, Message: message})
}
