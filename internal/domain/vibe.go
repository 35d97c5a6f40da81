package domain

import (
	"fmt"
	"math"
)

// Vibe is an ordered mood scale, calmest first.
type Vibe string

const (
	VibeChill     Vibe = "chill"
	VibeCozy      Vibe = "cozy"
	VibeMellow    Vibe = "mellow"
	VibeCasual    Vibe = "casual"
	VibeSocial    Vibe = "social"
	VibeLively    Vibe = "lively"
	VibeEnergetic Vibe = "energetic"
	VibeWild      Vibe = "wild"
)

const vibeBucketWidth = 0.125

var vibeScale = [...]Vibe{
	VibeChill,
	VibeCozy,
	VibeMellow,
	VibeCasual,
	VibeSocial,
	VibeLively,
	VibeEnergetic,
	VibeWild,
}

func Vibes() []Vibe { return vibeScale[:] }

func (v Vibe) Valid() bool { return v.Level() >= 0 }

// Level is the position of v on the scale, or -1 if v is unknown.
func (v Vibe) Level() int {
	for i, s := range vibeScale {
		if s == v {
			return i
		}
	}
	return -1
}

func ParseVibe(raw string) (Vibe, error) {
	v := Vibe(raw)
	if !v.Valid() {
		return "", fmt.Errorf("unknown vibe %q", raw)
	}
	return v, nil
}

// VibeFromSlider maps a slider position in [0,1] onto the scale. Buckets are
// closed on the lower edge and open on the upper edge, except the last one
// which also includes 1.0. Out-of-range input clamps; NaN is the calmest vibe.
func VibeFromSlider(value float64) Vibe {
	if math.IsNaN(value) || value <= 0 {
		return vibeScale[0]
	}
	idx := int(math.Floor(value / vibeBucketWidth))
	if idx >= len(vibeScale) {
		idx = len(vibeScale) - 1
	}
	return vibeScale[idx]
}

// SliderFromVibe returns the lower edge of v's bucket. Unknown vibes map to 0.
func SliderFromVibe(v Vibe) float64 {
	lvl := v.Level()
	if lvl < 0 {
		return 0
	}
	return float64(lvl) * vibeBucketWidth
}
