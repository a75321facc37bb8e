package groovebox

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Kit is the complete configuration of a groovebox session: audio
	// settings, pattern geometry, sync policy, programs, pads and sequences.
	Kit struct {
		SampleRate   int     `yaml:"samplerate,omitempty"`
		BlockSize    int     `yaml:"blocksize,omitempty"`
		Rows         int     `yaml:",omitempty"`
		PulsesPerRow int     `yaml:"pulsesperrow,omitempty"`
		BPM          float64 `yaml:",omitempty"`
		Sync         SyncSettings

		Programs  []Program
		Pads      []Pad
		Sequences []Sequence `yaml:",omitempty"`

		Playback      MixChannel
		Master        MixChannel
		MasterEffects []EffectConfig `yaml:"mastereffects,omitempty"`
	}

	SyncSettings struct {
		// PositionSync enables honoring Song Position Pointer messages.
		PositionSync  bool `yaml:"positionsync"`
		HardThreshold int  `yaml:"hardthreshold,omitempty"`
		SoftThreshold int  `yaml:"softthreshold,omitempty"`
		// ExternalTimeout leaves external clock mode when no pulse has arrived
		// for this long. Zero disables the timeout.
		ExternalTimeout time.Duration `yaml:"externaltimeout,omitempty"`
	}

	// MixChannel is the volume, pan, mute and effects switch of a program or
	// bus. Pan is in [0, 1], 0.5 being center.
	MixChannel struct {
		Volume  float32
		Pan     float32
		Mute    bool `yaml:",omitempty"`
		Effects bool `yaml:",omitempty"`
	}

	// Program is one sample-engine instance with its mixer strip. OneShot
	// samples play to their end, ignoring note offs.
	Program struct {
		Name     string
		Sample   string `yaml:",omitempty"`
		RootNote int    `yaml:"rootnote,omitempty"`
		Voices   int    `yaml:",omitempty"`
		OneShot  bool   `yaml:"oneshot,omitempty"`
		Channel  MixChannel
		Effects  []EffectConfig `yaml:",omitempty"`
	}

	// EffectConfig creates one effect. Params are set by index, then
	// Settings by parameter name.
	EffectConfig struct {
		Type     string
		Params   []int          `yaml:",flow,omitempty"`
		Settings map[string]int `yaml:",flow,omitempty"`
	}

	// Pad triggers a single track.
	Pad struct {
		Track     string
		Program   int
		Channel   int  `yaml:",omitempty"`
		Loop      bool `yaml:",omitempty"`
		Quantized bool `yaml:",omitempty"`
	}

	// Sequence chains phrases. Loops is the number of passes over all the
	// phrases; zero repeats forever.
	Sequence struct {
		Program   int
		Channel   int `yaml:",omitempty"`
		Phrases   []Phrase
		Loops     int  `yaml:",omitempty"`
		Quantized bool `yaml:",omitempty"`
	}

	// Phrase is one part of a sequence, played Loops times before moving on.
	Phrase struct {
		Track string
		Loops int `yaml:",omitempty"`
	}
)

const (
	MaxPrograms  = 16
	MaxPads      = 16
	MaxSequences = 8
	MaxSlots     = MaxPads + MaxSequences
)

var (
	ErrTooManyPrograms  = errors.New("too many programs")
	ErrTooManyPads      = errors.New("too many pads")
	ErrTooManySequences = errors.New("too many sequences")
	ErrInvalidKit       = errors.New("invalid kit")
)

func DefaultMixChannel() MixChannel {
	return MixChannel{Volume: 1, Pan: 0.5}
}

// DefaultKit returns an empty kit with the default audio settings and the
// standard 64 row pattern of 6 pulses per row.
func DefaultKit() Kit {
	return Kit{
		SampleRate:   44100,
		BlockSize:    512,
		Rows:         DefaultRows,
		PulsesPerRow: DefaultPulsesPerRow,
		BPM:          120,
		Sync: SyncSettings{
			PositionSync:  true,
			HardThreshold: 6,
			SoftThreshold: 3,
		},
		Playback: DefaultMixChannel(),
		Master:   DefaultMixChannel(),
	}
}

// LoadKit reads a kit from a YAML file. Fields missing from the file keep
// their default values.
func LoadKit(path string) (Kit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Kit{}, errors.Wrapf(err, "could not read kit %v", path)
	}
	return ParseKit(b)
}

func ParseKit(b []byte) (Kit, error) {
	kit := DefaultKit()
	if err := yaml.Unmarshal(b, &kit); err != nil {
		return Kit{}, errors.Wrap(err, "could not parse kit")
	}
	if err := kit.Validate(); err != nil {
		return Kit{}, err
	}
	return kit, nil
}

func (c *MixChannel) UnmarshalYAML(value *yaml.Node) error {
	type plain MixChannel
	p := plain(DefaultMixChannel())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = MixChannel(p)
	return nil
}

func (p *Program) UnmarshalYAML(value *yaml.Node) error {
	type plain Program
	q := plain{Channel: DefaultMixChannel()}
	if err := value.Decode(&q); err != nil {
		return err
	}
	*p = Program(q)
	return nil
}

func (p *Phrase) UnmarshalYAML(value *yaml.Node) error {
	type plain Phrase
	q := plain{Loops: 1}
	if err := value.Decode(&q); err != nil {
		return err
	}
	*p = Phrase(q)
	return nil
}

// PatternLength is the pattern modulus in pulses.
func (k *Kit) PatternLength() int {
	return k.Rows * k.PulsesPerRow
}

func (k *Kit) Validate() error {
	switch {
	case k.SampleRate <= 0:
		return errors.Wrapf(ErrInvalidKit, "sample rate must be positive, got %d", k.SampleRate)
	case k.BlockSize <= 0:
		return errors.Wrapf(ErrInvalidKit, "block size must be positive, got %d", k.BlockSize)
	case k.Rows <= 0 || k.PulsesPerRow <= 0:
		return errors.Wrapf(ErrInvalidKit, "rows (%d) and pulses per row (%d) must be positive", k.Rows, k.PulsesPerRow)
	case k.BPM <= 0:
		return errors.Wrapf(ErrInvalidKit, "bpm must be positive, got %v", k.BPM)
	case k.Sync.SoftThreshold < 0 || k.Sync.HardThreshold < k.Sync.SoftThreshold:
		return errors.Wrapf(ErrInvalidKit, "sync thresholds must satisfy 0 <= soft (%d) <= hard (%d)", k.Sync.SoftThreshold, k.Sync.HardThreshold)
	case len(k.Programs) > MaxPrograms:
		return errors.Wrapf(ErrTooManyPrograms, "%d > %d", len(k.Programs), MaxPrograms)
	case len(k.Pads) > MaxPads:
		return errors.Wrapf(ErrTooManyPads, "%d > %d", len(k.Pads), MaxPads)
	case len(k.Sequences) > MaxSequences:
		return errors.Wrapf(ErrTooManySequences, "%d > %d", len(k.Sequences), MaxSequences)
	}
	for i, p := range k.Pads {
		if p.Program < 0 || p.Program >= MaxPrograms {
			return errors.Wrapf(ErrInvalidKit, "pad %d: program %d out of range", i, p.Program)
		}
	}
	for i, s := range k.Sequences {
		if s.Program < 0 || s.Program >= MaxPrograms {
			return errors.Wrapf(ErrInvalidKit, "sequence %d: program %d out of range", i, s.Program)
		}
		if s.Loops < 0 {
			return errors.Wrapf(ErrInvalidKit, "sequence %d: negative loop count", i)
		}
		for j, ph := range s.Phrases {
			if ph.Loops < 1 {
				return errors.Wrapf(ErrInvalidKit, "sequence %d phrase %d: loops must be at least 1", i, j)
			}
		}
	}
	return nil
}

// SequenceSlot returns the slot index of the i:th sequence. Pads occupy
// slots 0..MaxPads-1.
func SequenceSlot(i int) int {
	return MaxPads + i
}
