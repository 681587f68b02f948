package reflex

import "math"

// Thresholds of the white-reflex rule on the 8-bit HSV scale.
const (
	MaxSaturation = 50
	MinValue      = 120
)

// Eye is one eye region reported by the vision backend. PupilBGR is the mean
// colour inside the largest dark contour of the region and is only
// meaningful when PupilFound is set.
type Eye struct {
	Box        [4]int     `json:"box"`
	PupilFound bool       `json:"pupil_found"`
	PupilBGR   [3]float64 `json:"pupil_bgr"`
}

// HSV is a colour on the 8-bit scale: H in [0,180), S and V in [0,255].
type HSV struct {
	H, S, V uint8
}

// ToHSV converts a mean BGR colour. Channels are truncated to uint8 first, the
// same way a float mean is packed into an 8-bit image before conversion.
func ToHSV(bgr [3]float64) HSV {
	b, g, r := clamp8(bgr[0]), clamp8(bgr[1]), clamp8(bgr[2])

	v := max(b, g, r)
	lo := min(b, g, r)
	diff := v - lo

	var s float64
	if v > 0 {
		s = math.Round(diff * 255 / v)
	}

	var h float64
	if diff > 0 {
		switch v {
		case r:
			h = 60 * (g - b) / diff
		case g:
			h = 120 + 60*(b-r)/diff
		default:
			h = 240 + 60*(r-g)/diff
		}
		if h < 0 {
			h += 360
		}
	}
	h = math.Round(h / 2)
	if h >= 180 {
		h -= 180
	}

	return HSV{H: uint8(h), S: uint8(s), V: uint8(v)}
}

// IsWhiteReflex reports whether a pupil colour is bright and unsaturated.
func IsWhiteReflex(bgr [3]float64) bool {
	c := ToHSV(bgr)
	return c.S < MaxSaturation && c.V > MinValue
}

// Detect reports whether any eye with a located pupil shows a white reflex.
func Detect(eyes []Eye) bool {
	for _, e := range eyes {
		if e.PupilFound && IsWhiteReflex(e.PupilBGR) {
			return true
		}
	}
	return false
}

func clamp8(x float64) float64 {
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= 255:
		return 255
	}
	return math.Trunc(x)
}
