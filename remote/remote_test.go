package remote_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vsariola/groovebox"
	"github.com/vsariola/groovebox/perf"
	"github.com/vsariola/groovebox/player"
	"github.com/vsariola/groovebox/remote"
)

var _ remote.Controller = (*player.Player)(nil)

type fakeController struct {
	calls  []string
	volume map[int]float32
	pan    map[int]float32
	mute   map[int]bool
	tempo  float64
	full   bool
	status player.Status
}

func newFake() *fakeController {
	return &fakeController{volume: map[int]float32{}, pan: map[int]float32{}, mute: map[int]bool{}}
}

func (f *fakeController) slot(name string, slot int) error {
	if slot < 0 || slot >= groovebox.MaxSlots {
		return errors.Wrapf(player.ErrInvalidSlot, "slot %d", slot)
	}
	if f.full {
		return player.ErrQueueFull
	}
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeController) program(program int) error {
	if program < 0 || program >= groovebox.MaxPrograms {
		return errors.Wrapf(player.ErrInvalidProgram, "program %d", program)
	}
	return nil
}

func (f *fakeController) Trigger(slot int) error { return f.slot("trigger", slot) }

func (f *fakeController) Stop(slot int) error { return f.slot("stop", slot) }

func (f *fakeController) StopAll() error {
	f.calls = append(f.calls, "stopall")
	return nil
}

func (f *fakeController) Panic() error {
	f.calls = append(f.calls, "panic")
	return nil
}

func (f *fakeController) SetTempo(bpm float64) error {
	if bpm <= 0 {
		return errors.Errorf("tempo must be positive, got %v", bpm)
	}
	f.tempo = bpm
	return nil
}

func (f *fakeController) SetVolume(program int, volume float32) error {
	if err := f.program(program); err != nil {
		return err
	}
	f.volume[program] = volume
	return nil
}

func (f *fakeController) SetPan(program int, pan float32) error {
	if err := f.program(program); err != nil {
		return err
	}
	f.pan[program] = pan
	return nil
}

func (f *fakeController) SetMute(program int, mute bool) error {
	if err := f.program(program); err != nil {
		return err
	}
	f.mute[program] = mute
	return nil
}

func (f *fakeController) Status() player.Status { return f.status }

func do(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestSlotRoutes(t *testing.T) {
	log, _ := test.NewNullLogger()
	cases := []struct {
		path string
		full bool
		code int
		call string
	}{
		{"/slots/0/trigger", false, http.StatusNoContent, "trigger"},
		{"/slots/7/stop", false, http.StatusNoContent, "stop"},
		{"/slots/99/trigger", false, http.StatusNotFound, ""},
		{"/slots/x/trigger", false, http.StatusBadRequest, ""},
		{"/slots/1/trigger", true, http.StatusServiceUnavailable, ""},
		{"/stop", false, http.StatusNoContent, "stopall"},
		{"/panic", false, http.StatusNoContent, "panic"},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			f := newFake()
			f.full = c.full
			rec := do(t, remote.New(f, log), http.MethodPost, c.path, "")
			if rec.Code != c.code {
				t.Fatalf("status %d, want %d (%s)", rec.Code, c.code, rec.Body.String())
			}
			if c.call == "" {
				if len(f.calls) != 0 {
					t.Errorf("unexpected calls %v", f.calls)
				}
				return
			}
			if len(f.calls) != 1 || f.calls[0] != c.call {
				t.Errorf("calls %v, want [%s]", f.calls, c.call)
			}
		})
	}
}

func TestStatusJSON(t *testing.T) {
	log, _ := test.NewNullLogger()
	f := newFake()
	f.status.Pulse = 42
	f.status.Row = 7
	f.status.Tempo = 125
	f.status.External = true
	f.status.Slots[2] = player.SlotStatus{State: perf.Playing, Phrase: 1, Program: 3}
	f.status.Levels[groovebox.MaxPrograms] = 0.5
	rec := do(t, remote.New(f, log), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	var resp remote.StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Pulse != 42 || resp.Row != 7 || resp.Tempo != 125 || !resp.External {
		t.Errorf("unexpected transport %+v", resp)
	}
	if len(resp.Slots) != groovebox.MaxSlots {
		t.Fatalf("got %d slots", len(resp.Slots))
	}
	if resp.Slots[2].State != perf.Playing.String() || resp.Slots[2].Phrase != 1 || resp.Slots[2].Program != 3 {
		t.Errorf("slot 2: %+v", resp.Slots[2])
	}
	if resp.Slots[0].State != perf.Idle.String() {
		t.Errorf("slot 0: %+v", resp.Slots[0])
	}
	if resp.Levels[groovebox.MaxPrograms] != 0.5 {
		t.Errorf("master level %v", resp.Levels[groovebox.MaxPrograms])
	}
}

func TestMixRoute(t *testing.T) {
	log, _ := test.NewNullLogger()
	f := newFake()
	s := remote.New(f, log)
	rec := do(t, s, http.MethodPut, "/programs/3", `{"volume":0.5,"mute":true}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if f.volume[3] != 0.5 || !f.mute[3] {
		t.Errorf("volume %v mute %v", f.volume[3], f.mute[3])
	}
	if _, ok := f.pan[3]; ok {
		t.Error("pan should be left unchanged")
	}
	if rec := do(t, s, http.MethodPut, "/programs/99", `{"pan":0.1}`); rec.Code != http.StatusNotFound {
		t.Errorf("invalid program: status %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPut, "/programs/1", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: status %d", rec.Code)
	}
}

func TestTempoRoute(t *testing.T) {
	log, hook := test.NewNullLogger()
	f := newFake()
	s := remote.New(f, log)
	if rec := do(t, s, http.MethodPut, "/tempo", `{"bpm":140}`); rec.Code != http.StatusNoContent {
		t.Fatalf("status %d", rec.Code)
	}
	if f.tempo != 140 {
		t.Errorf("tempo %v", f.tempo)
	}
	hook.Reset()
	rec := do(t, s, http.MethodPut, "/tempo", `{"bpm":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	var body struct{ Error string }
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error == "" {
		t.Errorf("expected error body, got %q (%v)", body.Error, err)
	}
	if e := hook.LastEntry(); e == nil || e.Message != "remote request failed" {
		t.Errorf("expected a warning to be logged, got %v", e)
	}
}

func TestUnknownMethod(t *testing.T) {
	log, _ := test.NewNullLogger()
	rec := do(t, remote.New(newFake(), log), http.MethodGet, "/panic", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d", rec.Code)
	}
}
