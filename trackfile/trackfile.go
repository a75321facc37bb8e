// Package trackfile loads tracks from Standard MIDI Files and YAML files
// into a Library, which serves them to the player as a
// groovebox.TrackProvider.
package trackfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gopkg.in/yaml.v3"
)

// Library is a set of named tracks. It is safe for concurrent use, but the
// player only reads it from control threads when resolving pads, never from
// the audio thread.
type Library struct {
	mu     sync.RWMutex
	tracks map[string]*groovebox.Track
}

var ErrUnsupportedTimeFormat = errors.New("only metric time format is supported")

func NewLibrary() *Library {
	return &Library{tracks: map[string]*groovebox.Track{}}
}

func (l *Library) Track(name string) (*groovebox.Track, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tracks[name]
	return t, ok
}

// Add validates a track and stores it under its name, replacing any track
// with the same name. The track must not be modified afterwards.
func (l *Library) Add(t *groovebox.Track) error {
	if t.Name == "" {
		return errors.Wrap(groovebox.ErrInvalidTrack, "track has no name")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks[t.Name] = t
	return nil
}

// Names returns the track names in sorted order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.tracks))
	for n := range l.tracks {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// LoadFile adds the tracks of a .mid or .yml file and returns their names.
// Tracks of a MIDI file are named after the file without its extension;
// when the file has several note tracks they get a "/N" suffix.
func (l *Library) LoadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open track file %v", path)
	}
	defer f.Close()
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var tracks []*groovebox.Track
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		tracks, err = DecodeSMF(f, base)
	case ".yml", ".yaml":
		tracks, err = DecodeYAML(f)
	default:
		return nil, errors.Errorf("unknown track file type %v", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read tracks from %v", path)
	}
	names := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if err := l.Add(t); err != nil {
			return names, errors.Wrapf(err, "in %v", path)
		}
		names = append(names, t.Name)
	}
	return names, nil
}

// LoadDir loads every track file in dir, not recursing into
// subdirectories.
func (l *Library) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read track directory %v", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mid", ".midi", ".smf", ".yml", ".yaml":
		default:
			continue
		}
		n, err := l.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return names, err
		}
		names = append(names, n...)
	}
	return names, nil
}

// DecodeSMF reads the note tracks of a Standard MIDI File. Tracks without
// notes, such as tempo maps, are skipped. The end of track marker sets the
// track length.
func DecodeSMF(r io.Reader, name string) ([]*groovebox.Track, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse MIDI file")
	}
	tpq, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || tpq == 0 {
		return nil, ErrUnsupportedTimeFormat
	}
	var tracks []*groovebox.Track
	for _, tr := range s.Tracks {
		t := decodeTrack(tr, int(tpq))
		if len(t.Events) > 0 {
			tracks = append(tracks, t)
		}
	}
	for i, t := range tracks {
		t.Name = name
		if len(tracks) > 1 {
			t.Name = fmt.Sprintf("%s/%d", name, i)
		}
	}
	return tracks, nil
}

func decodeTrack(tr smf.Track, tpq int) *groovebox.Track {
	t := &groovebox.Track{TicksPerQuarter: tpq}
	tick := 0
	for _, ev := range tr {
		tick += int(ev.Delta)
		msg := midi.Message(ev.Message)
		var channel, key, velocity uint8
		switch {
		case msg.GetNoteStart(&channel, &key, &velocity):
			t.Events = append(t.Events, groovebox.TrackEvent{Tick: tick, Note: key, Velocity: velocity, On: true})
		case msg.GetNoteEnd(&channel, &key):
			t.Events = append(t.Events, groovebox.TrackEvent{Tick: tick, Note: key})
		case endOfTrack(ev.Message):
			t.Length = tick
		}
	}
	if len(t.Events) == 0 {
		return t
	}
	t.Normalize()
	last := t.Events[len(t.Events)-1].Tick
	switch {
	case t.Length > last:
	case t.Length == last && t.Length > 0:
		// note offs right at the end marker are moved inside the track
		for i := range t.Events {
			if t.Events[i].Tick == last && !t.Events[i].On {
				t.Events[i].Tick = last - 1
			}
		}
		t.Normalize()
		if t.Events[len(t.Events)-1].Tick >= t.Length {
			t.Length = 0
		}
	default:
		t.Length = 0
	}
	return t
}

func endOfTrack(msg []byte) bool {
	return len(msg) >= 2 && msg[0] == 0xFF && msg[1] == 0x2F
}

// DecodeYAML reads a list of tracks in the groovebox.Track YAML form. Null
// entries are skipped.
func DecodeYAML(r io.Reader) ([]*groovebox.Track, error) {
	var tracks []*groovebox.Track
	if err := yaml.NewDecoder(r).Decode(&tracks); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not parse tracks")
	}
	tracks = slices.DeleteFunc(tracks, func(t *groovebox.Track) bool { return t == nil })
	for _, t := range tracks {
		t.Normalize()
	}
	return tracks, nil
}
