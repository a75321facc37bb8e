// Package clock keeps the pattern position in sync with either an internal
// tempo or an external MIDI clock.
package clock

import (
	"math"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
)

// Clock owns the current pulse position within the pattern. In internal mode
// the position advances from the sample count at the current tempo; in
// external mode it moves only when Tick is called.
//
// Clock is not safe for concurrent use; the player calls it from the audio
// thread only.
type Clock struct {
	modulus  int
	pulse    int     // always in [0, modulus)
	phase    float64 // fractional pulse in [0, 1), internal mode only
	tempo    float64
	external bool
	pending  int // external ticks since the last Advance
}

var ErrInvalidModulus = errors.New("pattern length must be positive")

func New(modulus int, bpm float64) (*Clock, error) {
	if modulus <= 0 {
		return nil, errors.Wrapf(ErrInvalidModulus, "got %d", modulus)
	}
	if bpm <= 0 {
		return nil, errors.Errorf("tempo must be positive, got %v", bpm)
	}
	return &Clock{modulus: modulus, tempo: bpm}, nil
}

func (c *Clock) Modulus() int   { return c.modulus }
func (c *Clock) Pulse() int     { return c.pulse }
func (c *Clock) Tempo() float64 { return c.tempo }
func (c *Clock) External() bool { return c.external }

// Position returns the pulse position including the sub-pulse phase.
func (c *Clock) Position() float64 {
	return float64(c.pulse) + c.phase
}

// SetTempo sets the internal tempo. Non-positive or NaN values are ignored.
func (c *Clock) SetTempo(bpm float64) {
	if bpm > 0 && !math.IsInf(bpm, 0) {
		c.tempo = bpm
	}
}

// Advance moves the clock over one block of frames and returns the pulse
// range the block covers. In external mode, the range spans the ticks
// received since the previous call. Bad arguments yield an empty range.
func (c *Clock) Advance(frames, sampleRate int) groovebox.PulseRange {
	r := groovebox.PulseRange{Start: c.Position(), Frames: max(frames, 0), Modulus: c.modulus}
	if c.external {
		r.Start = float64(groovebox.Wrap(c.pulse-c.pending, c.modulus))
		r.Length = float64(c.pending)
		c.pending = 0
		return r
	}
	if frames <= 0 || sampleRate <= 0 {
		return r
	}
	r.Length = float64(frames) * c.tempo * groovebox.PulsesPerQuarter / (60 * float64(sampleRate))
	c.step(r.Length)
	return r
}

func (c *Clock) step(pulses float64) {
	total := c.phase + pulses
	whole := math.Floor(total)
	c.phase = total - whole
	// reduce before converting so huge blocks can never overflow the int
	c.pulse = groovebox.Wrap(c.pulse+int(math.Mod(whole, float64(c.modulus))), c.modulus)
}

// Tick advances the position by one external pulse.
func (c *Clock) Tick() {
	c.pulse = groovebox.Wrap(c.pulse+1, c.modulus)
	if c.pending < c.modulus {
		c.pending++
	}
}

// SetExternal switches the clock source. The pulse position is preserved in
// both directions; switching back to internal drops the sub-pulse phase so
// the next block starts exactly on the current pulse.
func (c *Clock) SetExternal(external bool) {
	if c.external == external {
		return
	}
	c.external = external
	c.phase = 0
	c.pending = 0
}

// ForcePosition unconditionally moves the clock to the given pulse.
func (c *Clock) ForcePosition(pulse int) {
	c.pulse = groovebox.Wrap(pulse, c.modulus)
	c.phase = 0
	c.pending = 0
}
