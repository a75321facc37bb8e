package clock

import (
	"time"

	"github.com/vsariola/groovebox"
)

type (
	// Synchronizer interprets MIDI transport messages: it follows the external
	// clock, estimates its tempo and reconciles Song Position Pointer messages
	// with the pattern position.
	Synchronizer struct {
		clock    *Clock
		settings groovebox.SyncSettings

		running        bool
		externalActive bool
		lastPulse      time.Time
		windowStart    time.Time
		subPulses      int // pulses since windowStart
		totalPulses    int // pulses since start
		smoothed       float64
		haveTempo      bool
	}

	EventKind int

	// Event is one transport message. Value carries the song position in
	// sixteenth notes for SongPosition events. Time is the arrival time of the
	// message, used for tempo estimation.
	Event struct {
		Kind  EventKind
		Value int
		Time  time.Time
	}

	// SyncResult tells what a song position message did.
	SyncResult int
)

const (
	ClockPulse EventKind = iota
	Start
	Stop
	Continue
	SongPosition
)

const (
	SyncIgnored SyncResult = iota
	SyncWithinJitter
	SyncSoft
	SyncHard
)

// tempoSmoothing is the weight of a new tempo reading in the moving average.
const tempoSmoothing = 0.3

func NewSynchronizer(c *Clock, settings groovebox.SyncSettings) *Synchronizer {
	return &Synchronizer{clock: c, settings: settings}
}

func (s *Synchronizer) Running() bool        { return s.running }
func (s *Synchronizer) ExternalActive() bool { return s.externalActive }
func (s *Synchronizer) TotalPulses() int     { return s.totalPulses }

// Tempo returns the smoothed external tempo, or ok=false if no estimate
// exists yet.
func (s *Synchronizer) Tempo() (bpm float64, ok bool) {
	return s.smoothed, s.haveTempo
}

func (s *Synchronizer) SetSettings(settings groovebox.SyncSettings) {
	s.settings = settings
}

// Handle applies one transport event. It returns the outcome of the
// position reconciliation for SongPosition events and SyncIgnored
// otherwise.
func (s *Synchronizer) Handle(e Event) SyncResult {
	switch e.Kind {
	case ClockPulse:
		s.pulse(e.Time)
	case Start:
		s.subPulses = 0
		s.totalPulses = 0
		s.windowStart = time.Time{}
		s.running = true
	case Stop:
		s.running = false
		s.leaveExternal()
		s.totalPulses = 0
	case Continue:
		s.running = true
	case SongPosition:
		return s.songPosition(e.Value)
	}
	return SyncIgnored
}

func (s *Synchronizer) pulse(t time.Time) {
	if !s.externalActive {
		s.externalActive = true
		s.resetTempo()
		s.clock.SetExternal(true)
	}
	s.lastPulse = t
	s.totalPulses++
	if s.windowStart.IsZero() {
		s.windowStart = t
		s.subPulses = 0
	} else {
		s.subPulses++
		if s.subPulses >= groovebox.PulsesPerQuarter {
			if elapsed := t.Sub(s.windowStart); elapsed > 0 {
				s.foldTempo(60 / elapsed.Seconds())
			}
			s.windowStart = t
			s.subPulses = 0
		}
	}
	s.clock.Tick()
}

func (s *Synchronizer) foldTempo(raw float64) {
	if !s.haveTempo {
		s.smoothed = raw
		s.haveTempo = true
		return
	}
	s.smoothed = s.smoothed*(1-tempoSmoothing) + raw*tempoSmoothing
}

func (s *Synchronizer) resetTempo() {
	s.smoothed = 0
	s.haveTempo = false
	s.subPulses = 0
	s.windowStart = time.Time{}
}

func (s *Synchronizer) leaveExternal() {
	s.externalActive = false
	s.resetTempo()
	s.clock.SetExternal(false)
}

// CheckTimeout leaves external mode if no clock pulse has arrived within the
// configured timeout. The transport running flag is left as is.
func (s *Synchronizer) CheckTimeout(now time.Time) bool {
	if s.settings.ExternalTimeout <= 0 || !s.externalActive {
		return false
	}
	if now.Sub(s.lastPulse) <= s.settings.ExternalTimeout {
		return false
	}
	s.leaveExternal()
	return true
}

func (s *Synchronizer) songPosition(sixteenths int) SyncResult {
	if !s.settings.PositionSync || (s.running && s.externalActive) {
		return SyncIgnored
	}
	target := groovebox.Wrap(sixteenths*groovebox.PulsesPerSixteenth, s.clock.Modulus())
	return s.reconcile(target)
}

// Drift returns the signed shortest distance from current to target on a
// circular pattern of the given length.
func Drift(current, target, modulus int) int {
	d := target - current
	if d > modulus/2 {
		d -= modulus
	} else if d <= -modulus/2 {
		d += modulus
	}
	return d
}

func (s *Synchronizer) reconcile(target int) SyncResult {
	d := Drift(s.clock.Pulse(), target, s.clock.Modulus())
	if d < 0 {
		d = -d
	}
	switch {
	case d >= s.settings.HardThreshold && d > 0:
		s.clock.ForcePosition(target)
		return SyncHard
	case d >= s.settings.SoftThreshold && d > 0 && !s.clock.External():
		s.clock.ForcePosition(target)
		return SyncSoft
	}
	return SyncWithinJitter
}
