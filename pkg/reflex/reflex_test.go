package reflex

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHSV(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		bgr  [3]float64
		want HSV
	}{
		{name: "black", bgr: [3]float64{0, 0, 0}, want: HSV{0, 0, 0}},
		{name: "white", bgr: [3]float64{255, 255, 255}, want: HSV{0, 0, 255}},
		{name: "pure red", bgr: [3]float64{0, 0, 255}, want: HSV{0, 255, 255}},
		{name: "pure green", bgr: [3]float64{0, 255, 0}, want: HSV{60, 255, 255}},
		{name: "pure blue", bgr: [3]float64{255, 0, 0}, want: HSV{120, 255, 255}},
		{name: "fractions truncate", bgr: [3]float64{200.9, 200.9, 200.9}, want: HSV{0, 0, 200}},
		{name: "out of range clamps", bgr: [3]float64{-4, 300, math.NaN()}, want: HSV{60, 255, 255}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ToHSV(tc.bgr))
		})
	}
}

func TestIsWhiteReflex(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		bgr  [3]float64
		want bool
	}{
		{name: "bright grey", bgr: [3]float64{200, 200, 200}, want: true},
		{name: "pale yellow", bgr: [3]float64{180, 200, 210}, want: true},
		{name: "dark pupil", bgr: [3]float64{30, 25, 28}, want: false},
		{name: "value at threshold", bgr: [3]float64{120, 120, 120}, want: false},
		{name: "value just above", bgr: [3]float64{121, 121, 121}, want: true},
		{name: "red eye", bgr: [3]float64{40, 40, 220}, want: false},
		// s = round(46*255/230) = 51
		{name: "saturation just over", bgr: [3]float64{184, 230, 230}, want: false},
		// s = round(45*255/230) = 50
		{name: "saturation at threshold", bgr: [3]float64{185, 230, 230}, want: false},
		// s = round(44*255/230) = 49
		{name: "saturation just under", bgr: [3]float64{186, 230, 230}, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsWhiteReflex(tc.bgr))
		})
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	white := [3]float64{210, 210, 215}
	dark := [3]float64{20, 18, 22}

	assert.False(t, Detect(nil))
	assert.False(t, Detect([]Eye{{PupilFound: true, PupilBGR: dark}}))
	assert.False(t, Detect([]Eye{{PupilFound: false, PupilBGR: white}}), "eyes without a pupil are skipped")
	assert.True(t, Detect([]Eye{
		{PupilFound: true, PupilBGR: dark},
		{PupilFound: true, PupilBGR: white},
	}))
}
