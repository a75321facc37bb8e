package groovebox

import (
	"sort"

	"github.com/pkg/errors"
)

type (
	// Track is an ordered list of note events, with tick positions relative to
	// the start of the track. Tracks are read-only once handed to the player;
	// all slots referring to the same track share it.
	Track struct {
		Name            string
		TicksPerQuarter int
		// Length is the duration of the track in ticks. If zero, the duration
		// is the last event rounded up to the next full bar of four quarters.
		Length int          `yaml:",omitempty"`
		Events []TrackEvent `yaml:",flow"`
	}

	TrackEvent struct {
		Tick     int
		Note     byte
		Velocity byte
		On       bool
	}

	// TrackProvider gives read-only access to named tracks.
	TrackProvider interface {
		Track(name string) (*Track, bool)
	}

	// TrackMap is the simplest TrackProvider.
	TrackMap map[string]*Track
)

var ErrInvalidTrack = errors.New("invalid track")

func (m TrackMap) Track(name string) (*Track, bool) {
	t, ok := m[name]
	return t, ok
}

// Duration returns the length of the track in ticks.
func (t *Track) Duration() int {
	if t.Length > 0 {
		return t.Length
	}
	if len(t.Events) == 0 || t.TicksPerQuarter <= 0 {
		return 0
	}
	bar := 4 * t.TicksPerQuarter
	last := t.Events[len(t.Events)-1].Tick
	return (last/bar + 1) * bar
}

// TicksPerPulse is the ratio of track ticks to MIDI clock pulses.
func (t *Track) TicksPerPulse() float64 {
	return float64(t.TicksPerQuarter) / PulsesPerQuarter
}

// Empty reports whether the track cannot produce any events.
func (t *Track) Empty() bool {
	return t == nil || len(t.Events) == 0 || t.TicksPerQuarter <= 0 || t.Duration() <= 0
}

// Normalize sorts the events by tick, keeping the original order of events
// sharing a tick.
func (t *Track) Normalize() {
	sort.SliceStable(t.Events, func(i, j int) bool { return t.Events[i].Tick < t.Events[j].Tick })
}

// Validate checks that the track can be scheduled: positive resolution,
// events sorted and within the duration.
func (t *Track) Validate() error {
	if t.TicksPerQuarter <= 0 {
		return errors.Wrapf(ErrInvalidTrack, "track %q: ticks per quarter must be positive, got %d", t.Name, t.TicksPerQuarter)
	}
	d := t.Duration()
	prev := 0
	for i, e := range t.Events {
		if e.Tick < 0 {
			return errors.Wrapf(ErrInvalidTrack, "track %q: event %d has negative tick %d", t.Name, i, e.Tick)
		}
		if e.Tick < prev {
			return errors.Wrapf(ErrInvalidTrack, "track %q: event %d is out of order", t.Name, i)
		}
		if e.Tick >= d {
			return errors.Wrapf(ErrInvalidTrack, "track %q: event %d at tick %d is past the track length %d", t.Name, i, e.Tick, d)
		}
		if e.Note > 127 || e.Velocity > 127 {
			return errors.Wrapf(ErrInvalidTrack, "track %q: event %d has out of range note or velocity", t.Name, i)
		}
		prev = e.Tick
	}
	return nil
}
