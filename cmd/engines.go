// Package cmd holds the wiring shared by the command line tools: building
// sample engines and effect chains from a kit, and opening MIDI inputs.
package cmd

import (
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/fx"
	"github.com/vsariola/groovebox/sampler"
)

// DefaultRootNote is the note at which a sample plays at its recorded pitch
// when the program does not say otherwise.
const DefaultRootNote = 60

// EngineTarget receives the engines and effect chains built from a kit.
// *player.Player implements it.
type EngineTarget interface {
	SetEngine(program int, e groovebox.SampleEngine) error
	SetEffects(program int, chain groovebox.EffectChain) error
	SetMasterEffects(chain groovebox.EffectChain) error
}

// LoadEngines creates a sampler for every program of the kit and installs
// it, together with the program and master effect chains, into target.
// Relative sample paths are resolved against dir. Programs without a sample
// stay silent.
func LoadEngines(target EngineTarget, kit *groovebox.Kit, dir string) error {
	for i, prog := range kit.Programs {
		var sample *sampler.Sample
		if prog.Sample != "" {
			path := prog.Sample
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			var err error
			if sample, err = sampler.LoadWav(path); err != nil {
				return errors.Wrapf(err, "program %d (%s)", i, prog.Name)
			}
		}
		root := prog.RootNote
		if root == 0 {
			root = DefaultRootNote
		}
		engine := sampler.New(sample, root, prog.Voices, kit.SampleRate)
		engine.OneShot = prog.OneShot
		if err := target.SetEngine(i, engine); err != nil {
			return errors.Wrapf(err, "program %d (%s)", i, prog.Name)
		}
		if len(prog.Effects) == 0 {
			continue
		}
		chain, err := fx.NewChain(prog.Effects)
		if err != nil {
			return errors.Wrapf(err, "program %d (%s) effects", i, prog.Name)
		}
		if err := target.SetEffects(i, chain); err != nil {
			return errors.Wrapf(err, "program %d (%s) effects", i, prog.Name)
		}
	}
	if len(kit.MasterEffects) == 0 {
		return nil
	}
	chain, err := fx.NewChain(kit.MasterEffects)
	if err != nil {
		return errors.Wrap(err, "master effects")
	}
	return target.SetMasterEffects(chain)
}
