package groovebox

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
)

// WriteWav encodes interleaved stereo float samples as a 16-bit PCM wave
// file.
func WriteWav(w io.WriteSeeker, interleaved []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return errors.Errorf("invalid sample rate %d", sampleRate)
	}
	enc := wav.NewEncoder(w, sampleRate, 16, 2, 1)
	data := make([]int, len(interleaved))
	for i, v := range interleaved {
		data[i] = int(FloatToInt16(v))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "could not write wav data")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "could not finalize wav file")
	}
	return nil
}
