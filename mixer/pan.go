package mixer

import "github.com/vsariola/groovebox"

// ProgramGains returns the left and right gains of a program channel using
// the linear pan law: left = 1-pan, right = pan, both scaled by volume.
func ProgramGains(c groovebox.MixChannel) (left, right float32) {
	pan := clamp01(c.Pan)
	vol := max(c.Volume, 0)
	return vol * (1 - pan), vol * pan
}

// BusGains returns the left and right gains of a bus. Panning keeps the near
// side at full level and fades the far side linearly, so a centered bus
// passes the signal unchanged.
func BusGains(c groovebox.MixChannel) (left, right float32) {
	pan := clamp01(c.Pan)
	vol := max(c.Volume, 0)
	left, right = 1, 1
	if pan > 0.5 {
		left = 1 - (pan-0.5)*2
	}
	if pan < 0.5 {
		right = pan * 2
	}
	return vol * left, vol * right
}

func clamp01(v float32) float32 {
	if v != v {
		return 0.5
	}
	return min(max(v, 0), 1)
}

func applyGains(b groovebox.AudioBuffer, left, right float32) {
	if left == 1 && right == 1 {
		return
	}
	for i := range b {
		b[i][0] *= left
		b[i][1] *= right
	}
}
