package fx

// Delay is a stereo feedback delay. The delay line is sized on the first
// block, and again whenever the time or sample rate changes.
type Delay struct {
	params
	line [][2]int16
	pos  int
	rate int
	time int
}

const (
	DelayTime     = 0 // milliseconds
	DelayFeedback = 1 // percent
	DelayMix      = 2 // percent of wet signal
)

func NewDelay() *Delay {
	return &Delay{params: newParams(
		param{name: "time", min: 1, max: 2000, def: 250},
		param{name: "feedback", min: 0, max: 95, def: 40},
		param{name: "mix", min: 0, max: 100, def: 30},
	)}
}

func (d *Delay) resize(sampleRate int) {
	t := d.values[DelayTime]
	if d.line != nil && d.rate == sampleRate && d.time == t {
		return
	}
	d.rate, d.time = sampleRate, t
	d.line = make([][2]int16, max(t*sampleRate/1000, 1))
	d.pos = 0
}

func (d *Delay) Process(buffer []int16, frames, sampleRate int) {
	if sampleRate <= 0 {
		return
	}
	d.resize(sampleRate)
	feedback := int32(d.values[DelayFeedback])
	mix := int32(d.values[DelayMix])
	frames = min(frames, len(buffer)/2)
	for i := 0; i < frames; i++ {
		slot := &d.line[d.pos]
		for c := 0; c < 2; c++ {
			in := int32(buffer[2*i+c])
			wet := int32(slot[c])
			slot[c] = saturate(in + wet*feedback/100)
			buffer[2*i+c] = saturate((in*(100-mix) + wet*mix) / 100)
		}
		d.pos++
		if d.pos == len(d.line) {
			d.pos = 0
		}
	}
}
