package fx

// Gain scales the signal by a percentage, saturating at full scale.
type Gain struct {
	params
}

const GainPercent = 0

func NewGain() *Gain {
	return &Gain{params: newParams(param{name: "gain", min: 0, max: 400, def: 100})}
}

func (g *Gain) Process(buffer []int16, frames, sampleRate int) {
	gain := int32(g.values[GainPercent])
	if gain == 100 {
		return
	}
	n := min(2*frames, len(buffer))
	for i := 0; i < n; i++ {
		buffer[i] = saturate(int32(buffer[i]) * gain / 100)
	}
}
