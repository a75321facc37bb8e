package perf

import (
	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
)

type (
	// State is the playback state of a slot. A slot is in exactly one state
	// at a time; advancing to the next phrase of a sequence keeps it Playing.
	State int

	StartMode int

	// Phrase is a resolved part of a slot: the track to play and how many
	// times to play it before moving on.
	Phrase struct {
		Track *groovebox.Track
		Loops int
	}

	// SlotConfig describes what a slot plays. A pad is a slot with a single
	// phrase. Loops is the number of passes over all phrases; zero repeats
	// forever.
	SlotConfig struct {
		Phrases []Phrase
		Loops   int
		Program int
		Channel byte
		Mode    StartMode
	}

	slot struct {
		SlotConfig
		state State

		anchor     float64 // pattern pulse where playback started
		anchored   bool    // anchor fixed by the first played range
		position   float64 // pulses played of the current phrase pass
		phrase     int
		phraseLoop int // completed passes of the current phrase
		loop       int // completed passes over all phrases
	}
)

const (
	Idle State = iota
	Queued
	Playing
)

const (
	Immediate StartMode = iota
	Quantized
)

var (
	ErrInvalidSlot = errors.New("invalid slot")
	ErrNoTrack     = errors.New("track missing or empty")
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Queued:
		return "queued"
	case Playing:
		return "playing"
	}
	return "unknown"
}

func (m StartMode) String() string {
	if m == Quantized {
		return "quantized"
	}
	return "immediate"
}

// PadConfig resolves a pad against a track provider.
func PadConfig(pad groovebox.Pad, tracks groovebox.TrackProvider) SlotConfig {
	c := SlotConfig{
		Phrases: []Phrase{{Track: lookup(tracks, pad.Track), Loops: 1}},
		Loops:   1,
		Program: pad.Program,
		Channel: byte(pad.Channel & 0x0f),
	}
	if pad.Loop {
		c.Loops = 0
	}
	if pad.Quantized {
		c.Mode = Quantized
	}
	return c
}

// SequenceConfig resolves a sequence against a track provider.
func SequenceConfig(seq groovebox.Sequence, tracks groovebox.TrackProvider) SlotConfig {
	c := SlotConfig{
		Phrases: make([]Phrase, len(seq.Phrases)),
		Loops:   seq.Loops,
		Program: seq.Program,
		Channel: byte(seq.Channel & 0x0f),
	}
	for i, p := range seq.Phrases {
		c.Phrases[i] = Phrase{Track: lookup(tracks, p.Track), Loops: max(p.Loops, 1)}
	}
	if seq.Quantized {
		c.Mode = Quantized
	}
	return c
}

func lookup(tracks groovebox.TrackProvider, name string) *groovebox.Track {
	if tracks == nil || name == "" {
		return nil
	}
	t, _ := tracks.Track(name)
	return t
}

func (s *slot) current() *groovebox.Track {
	if s.phrase < 0 || s.phrase >= len(s.Phrases) {
		return nil
	}
	return s.Phrases[s.phrase].Track
}

func (s *slot) rewind() {
	s.position = 0
	s.phrase = 0
	s.phraseLoop = 0
	s.loop = 0
}

// nextPass moves to the next pass of the current phrase, the next phrase or
// the next loop of the whole slot. It returns false when the slot is done.
func (s *slot) nextPass() bool {
	s.position = 0
	s.phraseLoop++
	if s.phraseLoop < s.Phrases[s.phrase].Loops {
		return true
	}
	s.phraseLoop = 0
	s.phrase++
	if s.phrase < len(s.Phrases) {
		return true
	}
	s.phrase = 0
	s.loop++
	return s.Loops == 0 || s.loop < s.Loops
}
