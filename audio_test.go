package groovebox_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/vsariola/groovebox"
)

func TestFloatToInt16(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{0.5, 16383},
		{1, math.MaxInt16},
		{2, math.MaxInt16},
		{-1, -math.MaxInt16},
		{-3, -math.MaxInt16},
		{float32(math.NaN()), 0},
	}
	for _, c := range cases {
		if got := groovebox.FloatToInt16(c.in); got != c.want {
			t.Errorf("FloatToInt16(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestInt16RoundTrip(t *testing.T) {
	b := groovebox.AudioBuffer{{0, 1}, {-1, 0.5}}
	ints := b.Int16(nil)
	if len(ints) != 4 || ints[1] != math.MaxInt16 || ints[2] != -math.MaxInt16 {
		t.Fatalf("unexpected int16 data %v", ints)
	}
	c := make(groovebox.AudioBuffer, 2)
	c.SetInt16(ints)
	if c[0][1] != 1 || c[1][0] != -1 {
		t.Errorf("round trip gave %v", c)
	}
	if d := c[1][1] - 0.5; d > 1e-4 || d < -1e-4 {
		t.Errorf("0.5 came back as %v", c[1][1])
	}
}

func TestInterleavedSharesMemory(t *testing.T) {
	b := make(groovebox.AudioBuffer, 3)
	flat := b.Interleaved()
	if len(flat) != 6 {
		t.Fatalf("len %d, want 6", len(flat))
	}
	flat[3] = 0.25
	if b[1][1] != 0.25 {
		t.Error("interleaved view does not alias the buffer")
	}
	b.Clear()
	if flat[3] != 0 {
		t.Error("Clear did not zero the buffer")
	}
}

func TestWriteWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	data := []float32{0, 0, 0.5, -0.5, 1, -1}
	if err := groovebox.WriteWav(f, data, 48000); err != nil {
		t.Fatal(err)
	}
	f.Close()
	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if d.SampleRate != 48000 || d.NumChans != 2 || d.BitDepth != 16 {
		t.Errorf("header: rate %d channels %d depth %d", d.SampleRate, d.NumChans, d.BitDepth)
	}
	want := []int{0, 0, 16383, -16383, math.MaxInt16, -math.MaxInt16}
	if len(buf.Data) != len(want) {
		t.Fatalf("got %d samples, want %d", len(buf.Data), len(want))
	}
	for i, v := range want {
		if buf.Data[i] != v {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], v)
		}
	}
	if err := groovebox.WriteWav(f, data, 0); err == nil {
		t.Error("expected an error for a zero sample rate")
	}
}
