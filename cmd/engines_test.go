package cmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/cmd"
	"github.com/vsariola/groovebox/fx"
	"github.com/vsariola/groovebox/sampler"
)

type engineRecorder struct {
	engines map[int]groovebox.SampleEngine
	effects map[int]groovebox.EffectChain
	master  groovebox.EffectChain
}

func (r *engineRecorder) SetEngine(program int, e groovebox.SampleEngine) error {
	r.engines[program] = e
	return nil
}

func (r *engineRecorder) SetEffects(program int, chain groovebox.EffectChain) error {
	r.effects[program] = chain
	return nil
}

func (r *engineRecorder) SetMasterEffects(chain groovebox.EffectChain) error {
	r.master = chain
	return nil
}

func writeSample(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data := make([]float32, 200)
	for i := range data {
		data[i] = 0.5
	}
	if err := groovebox.WriteWav(f, data, 44100); err != nil {
		t.Fatal(err)
	}
}

func TestLoadEngines(t *testing.T) {
	dir := t.TempDir()
	writeSample(t, filepath.Join(dir, "kick.wav"))
	kit := groovebox.DefaultKit()
	kit.Programs = []groovebox.Program{
		{Name: "kick", Sample: "kick.wav", Effects: []groovebox.EffectConfig{{Type: "gain", Params: []int{50}}}},
		{Name: "empty"},
		{Name: "hit", Sample: "kick.wav", OneShot: true},
	}
	kit.MasterEffects = []groovebox.EffectConfig{{Type: "delay"}}
	r := &engineRecorder{engines: map[int]groovebox.SampleEngine{}, effects: map[int]groovebox.EffectChain{}}
	if err := cmd.LoadEngines(r, &kit, dir); err != nil {
		t.Fatal(err)
	}
	if len(r.engines) != 3 {
		t.Fatalf("got %d engines, want 3", len(r.engines))
	}
	if e := r.engines[2].(*sampler.Engine); !e.OneShot {
		t.Error("oneshot program should get a oneshot engine")
	}
	if e := r.engines[0].(*sampler.Engine); e.OneShot {
		t.Error("kick program should not be oneshot")
	}
	if len(r.effects) != 1 || len(r.effects[0]) != 1 {
		t.Fatalf("unexpected program effects %v", r.effects)
	}
	if g := r.effects[0][0].Param(fx.GainPercent); g != 50 {
		t.Errorf("gain %d, want 50", g)
	}
	if len(r.master) != 1 {
		t.Errorf("got %d master effects, want 1", len(r.master))
	}
	buf := make(groovebox.AudioBuffer, 16)
	r.engines[0].NoteOn(0, cmd.DefaultRootNote, 127)
	r.engines[0].Render(buf)
	if buf[0][0] == 0 {
		t.Error("kick engine rendered silence")
	}
}

func TestLoadEnginesErrors(t *testing.T) {
	cases := map[string]groovebox.Program{
		"missing sample": {Name: "a", Sample: "nope.wav"},
		"unknown effect": {Name: "b", Effects: []groovebox.EffectConfig{{Type: "flanger"}}},
	}
	for name, prog := range cases {
		t.Run(name, func(t *testing.T) {
			kit := groovebox.DefaultKit()
			kit.Programs = []groovebox.Program{prog}
			r := &engineRecorder{engines: map[int]groovebox.SampleEngine{}, effects: map[int]groovebox.EffectChain{}}
			if err := cmd.LoadEngines(r, &kit, t.TempDir()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
