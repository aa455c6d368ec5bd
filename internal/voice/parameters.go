package voice

import "math"

const (
	DefaultRate  = 0.95
	DefaultPitch = 1.1

	MinRate  = 0.5
	MaxRate  = 2.0
	MinPitch = 0.5
	MaxPitch = 2.0
)

// Parameters are copied by value into every Speak call.
type Parameters struct {
	Rate    float64
	Pitch   float64
	VoiceID string
}

func DefaultParameters() Parameters {
	return Parameters{Rate: DefaultRate, Pitch: DefaultPitch}
}

// Clamp pins rate and pitch into the synthesizer range. Zero or NaN values take the defaults.
func (p Parameters) Clamp() Parameters {
	p.Rate = clampOr(p.Rate, MinRate, MaxRate, DefaultRate)
	p.Pitch = clampOr(p.Pitch, MinPitch, MaxPitch, DefaultPitch)
	return p
}

func clampOr(v, lo, hi, fallback float64) float64 {
	if v == 0 || math.IsNaN(v) {
		return fallback
	}
	return math.Min(hi, math.Max(lo, v))
}
