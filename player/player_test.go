package player_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/clock"
	"github.com/vsariola/groovebox/perf"
	"github.com/vsariola/groovebox/player"
)

// 48 kHz at 120 BPM is 48 pulses per second, so one block of 1000 frames is
// exactly one pulse.
const (
	sampleRate = 48000
	blockSize  = 1000
)

type note struct {
	frame int
	note  byte
	on    bool
}

// recorder outputs 0.5 on both channels while any note is held and records
// the absolute frame of every note event.
type recorder struct {
	rendered int
	held     int
	notes    []note
}

func (r *recorder) Render(buffer groovebox.AudioBuffer) {
	for i := range buffer {
		v := float32(0)
		if r.held > 0 {
			v = 0.5
		}
		buffer[i] = [2]float32{v, v}
	}
	r.rendered += len(buffer)
}

func (r *recorder) NoteOn(channel, n, velocity byte) {
	r.held++
	r.notes = append(r.notes, note{r.rendered, n, true})
}

func (r *recorder) NoteOff(channel, n, velocity byte) {
	r.held = max(r.held-1, 0)
	r.notes = append(r.notes, note{r.rendered, n, false})
}

func (r *recorder) ons() []note {
	var ret []note
	for _, n := range r.notes {
		if n.on {
			ret = append(ret, n)
		}
	}
	return ret
}

// oneNote is a 96 tpqn track one pattern long, with a quarter note at the
// start.
func oneNote() *groovebox.Track {
	return &groovebox.Track{
		Name:            "one",
		TicksPerQuarter: 96,
		Length:          96 * 16,
		Events: []groovebox.TrackEvent{
			{Tick: 0, Note: 60, Velocity: 100, On: true},
			{Tick: 96, Note: 60, On: false},
		},
	}
}

func newPlayer(t *testing.T) (*player.Player, *recorder, *recorder) {
	t.Helper()
	kit := groovebox.DefaultKit()
	kit.SampleRate = sampleRate
	kit.BlockSize = blockSize
	kit.Pads = []groovebox.Pad{
		{Track: "one", Program: 0, Loop: true},
		{Track: "one", Program: 1, Quantized: true},
		{Track: "missing", Program: 0},
	}
	tracks := groovebox.TrackMap{"one": oneNote()}
	p, err := player.New(&kit, tracks, player.NewBroker())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a, b := &recorder{}, &recorder{}
	if err := p.SetEngine(0, a); err != nil {
		t.Fatal(err)
	}
	if err := p.SetEngine(1, b); err != nil {
		t.Fatal(err)
	}
	return p, a, b
}

// render renders the given number of blocks and returns the last one.
func render(p *player.Player, blocks int) []float32 {
	out := make([]float32, 2*blockSize)
	for i := 0; i < blocks; i++ {
		if n := p.RenderBlock(out, blockSize); n != blockSize {
			panic("short render")
		}
	}
	return out
}

func TestClockAdvancesPerBlock(t *testing.T) {
	p, _, _ := newPlayer(t)
	out := make([]float32, 2*4*blockSize)
	if n := p.RenderBlock(out, 4*blockSize); n != 4*blockSize {
		t.Fatalf("rendered %d frames", n)
	}
	s := p.Status()
	if s.Pulse != 4 || s.Row != 0 || s.Blocks != 4 || s.External {
		t.Fatalf("unexpected status:\n%s", spew.Sdump(s))
	}
	render(p, 2)
	if s := p.Status(); s.Pulse != 6 || s.Row != 1 {
		t.Fatalf("expected row 1 at pulse 6, got %d/%d", s.Pulse, s.Row)
	}
}

func TestRenderBlockClampsToBuffer(t *testing.T) {
	p, _, _ := newPlayer(t)
	out := make([]float32, 10)
	if n := p.RenderBlock(out, 100); n != 5 {
		t.Fatalf("expected 5 frames, got %d", n)
	}
	if n := p.RenderBlock(out, -1); n != 0 {
		t.Fatalf("expected 0 frames, got %d", n)
	}
}

func TestLoopingPadOneNotePerPattern(t *testing.T) {
	p, a, _ := newPlayer(t)
	if err := p.Trigger(0); err != nil {
		t.Fatal(err)
	}
	render(p, 2*groovebox.DefaultPatternLength)
	want := []note{{0, 60, true}, {24000, 60, false}, {384000, 60, true}, {408000, 60, false}}
	if len(a.notes) != len(want) {
		t.Fatalf("got notes:\n%s", spew.Sdump(a.notes))
	}
	for i := range want {
		if a.notes[i] != want[i] {
			t.Fatalf("note %d: got %+v, want %+v", i, a.notes[i], want[i])
		}
	}
	if !p.IsPlaying(0) || p.CurrentPhrase(0) != 0 {
		t.Fatal("pad should still be playing its only phrase")
	}
}

func TestOutputIsInterleavedMix(t *testing.T) {
	p, _, _ := newPlayer(t)
	if err := p.NoteOn(0, 0, 60, 100); err != nil {
		t.Fatal(err)
	}
	out := render(p, 1)
	for i, v := range out {
		if math.Abs(float64(v)-0.25) > 1e-6 {
			t.Fatalf("sample %d: got %v, want 0.25", i, v)
		}
	}
	if l := p.Status().Levels; math.Abs(float64(l[0])-0.25) > 1e-6 {
		t.Fatalf("program level %v", l[0])
	}
}

func TestStopReleasesHeldNotes(t *testing.T) {
	p, a, _ := newPlayer(t)
	p.Trigger(0)
	render(p, 10)
	if err := p.Stop(0); err != nil {
		t.Fatal(err)
	}
	render(p, 50)
	want := []note{{0, 60, true}, {10000, 60, false}}
	if len(a.notes) != 2 || a.notes[0] != want[0] || a.notes[1] != want[1] {
		t.Fatalf("got notes:\n%s", spew.Sdump(a.notes))
	}
	if p.IsPlaying(0) {
		t.Fatal("pad still playing")
	}
}

func TestTriggerTogglesAndReleases(t *testing.T) {
	p, a, _ := newPlayer(t)
	p.Trigger(0)
	render(p, 5)
	p.Trigger(0)
	render(p, 1)
	if p.IsPlaying(0) || len(a.notes) != 2 || a.notes[1] != (note{5000, 60, false}) {
		t.Fatalf("toggle did not stop the pad:\n%s", spew.Sdump(a.notes))
	}
}

func TestQuantizedPadWaitsForPatternStart(t *testing.T) {
	p, _, b := newPlayer(t)
	render(p, 10)
	p.Trigger(1)
	render(p, 1)
	if s := p.Status().Slots[1].State; s != perf.Queued {
		t.Fatalf("expected queued, got %v", s)
	}
	render(p, groovebox.DefaultPatternLength-11)
	if len(b.notes) != 0 {
		t.Fatalf("queued pad played early:\n%s", spew.Sdump(b.notes))
	}
	render(p, 1)
	if len(b.notes) != 1 || b.notes[0] != (note{384000, 60, true}) {
		t.Fatalf("expected note at pattern start:\n%s", spew.Sdump(b.notes))
	}
	// a one-shot pad ends after one pass and releases nothing more
	render(p, groovebox.DefaultPatternLength)
	if p.IsPlaying(1) || len(b.notes) != 2 {
		t.Fatalf("one-shot pad did not end cleanly:\n%s", spew.Sdump(b.notes))
	}
}

func TestPanicReleasesEverything(t *testing.T) {
	p, a, b := newPlayer(t)
	p.Trigger(0)
	p.NoteOn(1, 0, 64, 90)
	render(p, 3)
	if err := p.Panic(); err != nil {
		t.Fatal(err)
	}
	render(p, 1)
	if a.held != 0 || b.held != 0 {
		t.Fatalf("notes still held: %d, %d", a.held, b.held)
	}
	if b.notes[len(b.notes)-1] != (note{3000, 64, false}) {
		t.Fatalf("live note not released:\n%s", spew.Sdump(b.notes))
	}
	if p.IsPlaying(0) {
		t.Fatal("pad still playing after panic")
	}
}

func TestMissingTrackStaysIdle(t *testing.T) {
	p, a, _ := newPlayer(t)
	p.Trigger(2)
	render(p, 30)
	if p.IsPlaying(2) || len(a.notes) != 0 {
		t.Fatal("pad without a track should stay idle")
	}
}

func TestExternalClock(t *testing.T) {
	p, _, _ := newPlayer(t)
	t0 := time.Unix(1000, 0)
	// 125 BPM is 50 pulses per second
	for i := 0; i <= groovebox.PulsesPerQuarter; i++ {
		e := clock.Event{Kind: clock.ClockPulse, Time: t0.Add(time.Duration(i) * 20 * time.Millisecond)}
		if err := p.ProcessTransportEvent(e); err != nil {
			t.Fatal(err)
		}
	}
	render(p, 1)
	s := p.Status()
	if !s.External || s.Pulse != 25 {
		t.Fatalf("unexpected status:\n%s", spew.Sdump(s))
	}
	if math.Abs(s.Tempo-125) > 1e-6 {
		t.Fatalf("tempo %v, want 125", s.Tempo)
	}
	// without pulses the external clock holds the position
	render(p, 5)
	if s := p.Status(); s.Pulse != 25 {
		t.Fatalf("position moved without pulses: %d", s.Pulse)
	}
	p.ProcessTransportEvent(clock.Event{Kind: clock.Stop})
	render(p, 1)
	// 1000 frames at 125 BPM is 1.04 pulses
	if s := p.Status(); s.External || s.Pulse != 26 || math.Abs(s.Tempo-125) > 1e-6 {
		t.Fatalf("stop should return to the internal clock at 125 BPM:\n%s", spew.Sdump(s))
	}
}

func TestTempoSetWhileExternalWaitsForInternalClock(t *testing.T) {
	p, _, _ := newPlayer(t)
	t0 := time.Unix(1000, 0)
	for i := 0; i <= groovebox.PulsesPerQuarter; i++ {
		p.ProcessTransportEvent(clock.Event{Kind: clock.ClockPulse, Time: t0.Add(time.Duration(i) * 20 * time.Millisecond)})
	}
	render(p, 1)
	if err := p.SetTempo(90); err != nil {
		t.Fatal(err)
	}
	render(p, 1)
	if s := p.Status(); !s.External || math.Abs(s.Tempo-125) > 1e-6 {
		t.Fatalf("external tempo should win:\n%s", spew.Sdump(s))
	}
	p.ProcessTransportEvent(clock.Event{Kind: clock.Stop})
	render(p, 1)
	if s := p.Status(); s.External || s.Tempo != 90 {
		t.Fatalf("expected the stored 90 BPM after stop:\n%s", spew.Sdump(s))
	}
}

func TestHardSyncRealignsPlayingSlots(t *testing.T) {
	p, a, _ := newPlayer(t)
	p.Trigger(0)
	render(p, 10)
	// 60 sixteenths is pulse 360, 34 pulses behind: hard sync
	p.ProcessTransportEvent(clock.Event{Kind: clock.SongPosition, Value: 60})
	render(p, 1)
	if s := p.Status(); s.Pulse != 361 {
		t.Fatalf("expected position 361 after resync, got %d", s.Pulse)
	}
	render(p, 24)
	ons := a.ons()
	if len(ons) != 2 || ons[1].frame != 34000 {
		t.Fatalf("pad did not stay locked to the pattern:\n%s", spew.Sdump(a.notes))
	}
}

func TestQueueFull(t *testing.T) {
	p, _, _ := newPlayer(t)
	dropped := 0
	for i := 0; i < 1100; i++ {
		if err := p.ProcessTransportEvent(clock.Event{Kind: clock.Continue}); errors.Is(err, player.ErrQueueFull) {
			dropped++
		}
	}
	if dropped == 0 || p.Status().Dropped != int64(dropped) {
		t.Fatalf("dropped %d, status says %d", dropped, p.Status().Dropped)
	}
	if err := p.Trigger(0); !errors.Is(err, player.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	render(p, 1)
	if err := p.Trigger(0); err != nil {
		t.Fatalf("queue should have drained: %v", err)
	}
}

func TestControlValidation(t *testing.T) {
	p, _, _ := newPlayer(t)
	if err := p.Trigger(groovebox.MaxSlots); !errors.Is(err, player.ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
	if err := p.SetVolume(groovebox.MaxPrograms, 1); !errors.Is(err, player.ErrInvalidProgram) {
		t.Fatalf("expected ErrInvalidProgram, got %v", err)
	}
	if err := p.SetTempo(0); err == nil {
		t.Fatal("zero tempo accepted")
	}
	if err := p.AssignTrack(0, "nope"); !errors.Is(err, perf.ErrNoTrack) {
		t.Fatalf("expected ErrNoTrack, got %v", err)
	}
	if err := p.SetLoop(0, -2); err == nil {
		t.Fatal("negative loop count accepted")
	}
	if p.IsPlaying(-1) || p.CurrentPhrase(99) != 0 {
		t.Fatal("invalid slots must read as idle")
	}
}

func TestMixSetters(t *testing.T) {
	p, _, _ := newPlayer(t)
	before := p.Mix()
	if err := p.ControlChange(3, player.ControllerVolume, 127); err != nil {
		t.Fatal(err)
	}
	p.ControlChange(3, player.ControllerPan, 0)
	p.SetMute(4, true)
	p.SetEffectsEnabled(5, true)
	m := p.Mix()
	if m.Programs[3].Volume != 1 || m.Programs[3].Pan != 0 || !m.Programs[4].Mute || !m.Programs[5].Effects {
		t.Fatalf("unexpected mix:\n%s", spew.Sdump(m.Programs[3:6]))
	}
	if before.Programs[4].Mute {
		t.Fatal("old snapshot was modified")
	}
}

func TestAssignTrackAndLoop(t *testing.T) {
	p, a, _ := newPlayer(t)
	if err := p.AssignTrack(3, "one"); err != nil {
		t.Fatal(err)
	}
	if err := p.SetLoop(3, 2); err != nil {
		t.Fatal(err)
	}
	c, err := p.SlotConfig(3)
	if err != nil || c.Loops != 2 || len(c.Phrases) != 1 {
		t.Fatalf("unexpected config %+v, %v", c, err)
	}
	p.Trigger(3)
	render(p, 3*groovebox.DefaultPatternLength)
	if ons := a.ons(); len(ons) != 2 {
		t.Fatalf("expected two passes:\n%s", spew.Sdump(a.notes))
	}
	if p.IsPlaying(3) {
		t.Fatal("pad should have ended")
	}
}

func TestSlotTelemetry(t *testing.T) {
	p, _, _ := newPlayer(t)
	if err := p.SetProgram(1, 4); err != nil {
		t.Fatal(err)
	}
	render(p, 5)
	p.Trigger(0)
	render(p, 1)
	s := p.Status()
	if s.Slots[0].Anchor != 5 {
		t.Fatalf("slot 0 anchored at %v, want 5", s.Slots[0].Anchor)
	}
	if s.Slots[0].Program != 0 || s.Slots[1].Program != 4 {
		t.Fatalf("unexpected slot programs:\n%s", spew.Sdump(s.Slots[:2]))
	}
}

// TestConcurrentControl drives the control API from one goroutine while
// another renders. Run it with -race to check that the audio thread and
// the control threads share nothing unsynchronized.
func TestConcurrentControl(t *testing.T) {
	p, _, _ := newPlayer(t)
	const blocks = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		render(p, blocks)
	}()
	t0 := time.Unix(1000, 0)
	for i := 0; i < 500; i++ {
		p.Trigger(i % 4)
		p.SetVolume(i%groovebox.MaxPrograms, float32(i%10)/10)
		p.SetPan(i%groovebox.MaxPrograms, 0.25)
		p.ProcessTransportEvent(clock.Event{Kind: clock.ClockPulse, Time: t0.Add(time.Duration(i) * 20 * time.Millisecond)})
		p.AssignTrack(3, "one")
		p.SetTempo(float64(100 + i%40))
		if s := p.Status(); s.Pulse < 0 || s.Pulse >= groovebox.DefaultPatternLength {
			t.Errorf("pulse %d outside the pattern", s.Pulse)
		}
	}
	p.SetVolume(2, 0.75)
	wg.Wait()
	if s := p.Status(); s.Blocks != blocks {
		t.Fatalf("rendered %d blocks, want %d", s.Blocks, blocks)
	}
	if v := p.Mix().Programs[2].Volume; v != 0.75 {
		t.Fatalf("last volume %v, want 0.75", v)
	}
}

func TestPlayersAreIndependent(t *testing.T) {
	p1, a1, _ := newPlayer(t)
	p2, a2, _ := newPlayer(t)
	p1.Trigger(0)
	render(p1, 1)
	render(p2, 1)
	if len(a1.notes) != 1 || len(a2.notes) != 0 {
		t.Fatalf("players interfered: %d, %d notes", len(a1.notes), len(a2.notes))
	}
}

func TestLogAlerts(t *testing.T) {
	log, hook := test.NewNullLogger()
	alerts := make(chan player.Alert, 2)
	alerts <- player.Alert{Name: "EngineFailed", Priority: player.Error, Err: perf.ErrInvalidSlot, Slot: -1}
	alerts <- player.Alert{Name: "SlotError", Priority: player.Warning, Err: perf.ErrMalformedRange, Slot: 3}
	close(alerts)
	player.LogAlerts(context.Background(), alerts, log)
	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("unexpected log entries:\n%s", spew.Sdump(entries))
	}
	if e := entries[0]; e.Level != logrus.ErrorLevel || e.Message != perf.ErrInvalidSlot.Error() || e.Data["slot"] != nil {
		t.Errorf("unexpected entry:\n%s", spew.Sdump(e))
	}
	e := entries[1]
	if e.Level != logrus.WarnLevel || e.Data["alert"] != "SlotError" || e.Data["slot"] != 3 {
		t.Fatalf("unexpected entry:\n%s", spew.Sdump(e))
	}
	if want := "slot 3: " + perf.ErrMalformedRange.Error(); e.Message != want {
		t.Errorf("message %q, want %q", e.Message, want)
	}
}
