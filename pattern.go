package groovebox

const (
	// PulsesPerQuarter is the resolution of the MIDI clock.
	PulsesPerQuarter = 24
	// PulsesPerSixteenth is the size of one Song Position Pointer unit.
	PulsesPerSixteenth = PulsesPerQuarter / 4

	DefaultRows          = 64
	DefaultPulsesPerRow  = 6
	DefaultPatternLength = DefaultRows * DefaultPulsesPerRow // 384
)

// PulseRange is the span of pattern pulses covered by one audio block. Start
// is a position in [0, Modulus) with a fractional part carrying sub-pulse
// phase; Length is the number of pulses advanced during the block and may
// reach past the end of the pattern, in which case the range wraps.
type PulseRange struct {
	Start   float64
	Length  float64
	Frames  int
	Modulus int
}

// Wrap maps any pulse, negative ones included, into [0, modulus).
func Wrap(pulse, modulus int) int {
	if modulus <= 0 {
		return 0
	}
	return (pulse%modulus + modulus) % modulus
}

// WrapFloat is Wrap for fractional pulse positions.
func WrapFloat(pulse float64, modulus int) float64 {
	if modulus <= 0 {
		return 0
	}
	m := float64(modulus)
	for pulse >= m {
		pulse -= m
	}
	for pulse < 0 {
		pulse += m
	}
	return pulse
}

// End returns the pattern position right after the range.
func (r PulseRange) End() float64 {
	return WrapFloat(r.Start+r.Length, r.Modulus)
}

// ZeroCrossing reports whether the range passes pattern position 0 and, if
// so, how many pulses into the range that happens. A range starting exactly
// at 0 crosses at offset 0.
func (r PulseRange) ZeroCrossing() (offset float64, ok bool) {
	if r.Modulus <= 0 || r.Length <= 0 {
		return 0, false
	}
	if r.Start == 0 {
		return 0, true
	}
	offset = float64(r.Modulus) - r.Start
	if offset < r.Length {
		return offset, true
	}
	return 0, false
}

// FrameAt converts a pulse offset within the range into a sample offset
// within the block, clamped to [0, Frames).
func (r PulseRange) FrameAt(pulseOffset float64) int {
	if r.Frames <= 0 {
		return 0
	}
	if r.Length <= 0 || pulseOffset <= 0 {
		return 0
	}
	f := int(pulseOffset * float64(r.Frames) / r.Length)
	if f >= r.Frames {
		f = r.Frames - 1
	}
	return f
}
