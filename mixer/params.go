package mixer

import (
	"sync"
	"sync/atomic"

	"github.com/vsariola/groovebox"
)

type (
	// Params is a snapshot of every mixer setting. A snapshot is never
	// modified after it has been published, so the audio thread can read it
	// for a whole block without locking.
	Params struct {
		Programs [groovebox.MaxPrograms]groovebox.MixChannel
		Playback groovebox.MixChannel
		Master   groovebox.MixChannel
	}

	// ParamStore publishes Params snapshots from control threads to the
	// audio thread. Writers copy the current snapshot, modify the copy and
	// swap it in atomically; the audio thread only ever calls Load.
	ParamStore struct {
		mu      sync.Mutex // serializes writers only
		current atomic.Pointer[Params]
	}
)

// DefaultParams has every channel at unity gain and centered.
func DefaultParams() Params {
	var p Params
	for i := range p.Programs {
		p.Programs[i] = groovebox.DefaultMixChannel()
	}
	p.Playback = groovebox.DefaultMixChannel()
	p.Master = groovebox.DefaultMixChannel()
	return p
}

// KitParams builds the initial snapshot from a kit.
func KitParams(kit *groovebox.Kit) Params {
	p := DefaultParams()
	for i, prog := range kit.Programs {
		if i < len(p.Programs) {
			p.Programs[i] = prog.Channel
		}
	}
	p.Playback = kit.Playback
	p.Master = kit.Master
	return p
}

func NewParamStore(p Params) *ParamStore {
	s := &ParamStore{}
	s.current.Store(&p)
	return s
}

// Load returns the current snapshot. The returned value must not be
// modified.
func (s *ParamStore) Load() *Params {
	return s.current.Load()
}

// Update applies f to a copy of the current snapshot and publishes the
// copy. Never call it from the audio thread: it allocates.
func (s *ParamStore) Update(f func(p *Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.current.Load()
	f(&p)
	s.current.Store(&p)
}
