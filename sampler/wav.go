package sampler

import (
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/vsariola/groovebox"
)

// Sample is decoded audio at its original sample rate. Mono files are
// stored with both channels equal.
type Sample struct {
	Name       string
	Frames     groovebox.AudioBuffer
	SampleRate int
}

var ErrInvalidWav = errors.New("invalid wav file")

// LoadWav reads a PCM wave file into memory.
func LoadWav(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open sample %v", path)
	}
	defer f.Close()
	s, err := DecodeWav(f)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode sample %v", path)
	}
	s.Name = path
	return s, nil
}

func DecodeWav(r io.ReadSeeker) (*Sample, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWav
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "could not read PCM data")
	}
	channels := buf.Format.NumChannels
	bitDepth := int(decoder.BitDepth)
	if channels <= 0 || bitDepth <= 0 || buf.Format.SampleRate <= 0 {
		return nil, errors.Wrapf(ErrInvalidWav, "%d channels, %d bits at %d Hz", channels, bitDepth, buf.Format.SampleRate)
	}
	factor := float32(math.Pow(2, float64(bitDepth-1)))
	frames := make(groovebox.AudioBuffer, len(buf.Data)/channels)
	for i := range frames {
		l := float32(buf.Data[i*channels]) / factor
		r := l
		if channels > 1 {
			r = float32(buf.Data[i*channels+1]) / factor
		}
		frames[i] = [2]float32{l, r}
	}
	return &Sample{Frames: frames, SampleRate: buf.Format.SampleRate}, nil
}
