package player

import (
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/perf"
)

// Messages to the audio thread. Transport events travel as clock.Event
// values; everything else uses one of the types below.
type (
	TriggerMsg struct{ Slot int }
	StopMsg    struct{ Slot int }
	StopAllMsg struct{}
	PanicMsg   struct{}

	ConfigureMsg struct {
		Slot   int
		Config perf.SlotConfig // owned by the audio thread once sent
	}

	StartModeMsg struct {
		Slot int
		Mode perf.StartMode
	}

	ProgramMsg struct {
		Slot, Program int
	}

	LoopsMsg struct {
		Slot, Loops int
	}

	TempoMsg struct{ BPM float64 }

	SyncSettingsMsg struct{ Settings groovebox.SyncSettings }

	// NoteMsg is live note input, played on the engine of Program at the
	// start of the next block.
	NoteMsg struct {
		Program  int
		Channel  byte
		Note     byte
		Velocity byte
		On       bool
	}

	EngineMsg struct {
		Program int
		Engine  groovebox.SampleEngine
	}

	EffectsMsg struct {
		Program int // MasterEffects for the master chain
		Chain   groovebox.EffectChain
	}
)

// MasterEffects addresses the master chain in EffectsMsg.
const MasterEffects = -1
