package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func constantHistory(n int, left, right Point) []Observation {
	h := make([]Observation, n)
	for i := range h {
		h[i] = Observation{Left: left, Right: right}
	}
	return h
}

func TestClassify_ShortHistory(t *testing.T) {
	t.Parallel()

	for n := 0; n < MinHistory; n++ {
		h := constantHistory(n, Point{0, 0}, Point{0, 0})
		if n > 0 {
			h[n-1].Left = Point{X: 0, Y: 500}
		}

		isLazy, l, r := Classify(h, DefaultMovePxMin, DefaultRatioThresh)
		assert.False(t, isLazy, "n=%d", n)
		assert.Zero(t, l, "n=%d", n)
		assert.Zero(t, r, "n=%d", n)
	}
}

func TestClassify_NoMotion(t *testing.T) {
	t.Parallel()

	h := constantHistory(MinHistory, Point{10, 20}, Point{40, 20})
	isLazy, l, r := Classify(h, DefaultMovePxMin, DefaultRatioThresh)

	assert.False(t, isLazy)
	assert.Equal(t, 0.0, l)
	assert.Equal(t, 0.0, r)
}

func TestClassify_OneEyeStill(t *testing.T) {
	t.Parallel()

	h := constantHistory(20, Point{0, 0}, Point{0, 0})
	h[len(h)-1].Left = Point{X: 0, Y: 100}

	isLazy, l, r := Classify(h, DefaultMovePxMin, DefaultRatioThresh)

	assert.True(t, isLazy)
	assert.InDelta(t, 100.0, l, 1e-9)
	assert.Equal(t, 0.0, r)
}

func TestClassify_SymmetricMotion(t *testing.T) {
	t.Parallel()

	h := constantHistory(20, Point{0, 0}, Point{100, 0})
	h[len(h)-1] = Observation{Left: Point{30, 40}, Right: Point{130, 40}}

	isLazy, l, r := Classify(h, DefaultMovePxMin, DefaultRatioThresh)

	assert.False(t, isLazy)
	assert.InDelta(t, 50.0, l, 1e-9)
	assert.InDelta(t, 50.0, r, 1e-9)
}

func TestClassify_OnlyEndpointsMatter(t *testing.T) {
	t.Parallel()

	h := constantHistory(30, Point{0, 0}, Point{0, 0})
	for i := 1; i < len(h)-1; i++ {
		h[i].Right = Point{X: 400, Y: 400}
	}
	h[len(h)-1].Left = Point{X: 60, Y: 80}

	isLazy, l, r := Classify(h, DefaultMovePxMin, DefaultRatioThresh)

	assert.True(t, isLazy)
	assert.InDelta(t, 100.0, l, 1e-9)
	assert.Equal(t, 0.0, r)
}

func TestClassify_Thresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		leftMove  float64
		rightMove float64
		movePx    float64
		ratio     float64
		want      bool
	}{
		{name: "fast at threshold is not enough", leftMove: 30, rightMove: 0, movePx: 30, ratio: 0.3, want: false},
		{name: "just above threshold", leftMove: 31, rightMove: 0, movePx: 30, ratio: 0.3, want: true},
		{name: "slow at ratio boundary", leftMove: 100, rightMove: 30, movePx: 30, ratio: 0.3, want: false},
		{name: "slow under ratio boundary", leftMove: 100, rightMove: 29.9, movePx: 30, ratio: 0.3, want: true},
		{name: "right eye is the fast one", leftMove: 5, rightMove: 80, movePx: 30, ratio: 0.3, want: true},
		{name: "looser ratio", leftMove: 100, rightMove: 45, movePx: 30, ratio: 0.5, want: true},
		{name: "stricter move threshold", leftMove: 40, rightMove: 0, movePx: 50, ratio: 0.3, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := constantHistory(MinHistory, Point{0, 0}, Point{0, 0})
			h[len(h)-1] = Observation{Left: Point{X: tc.leftMove}, Right: Point{X: tc.rightMove}}

			isLazy, l, r := Classify(h, tc.movePx, tc.ratio)
			assert.Equal(t, tc.want, isLazy)
			assert.InDelta(t, tc.leftMove, l, 1e-9)
			assert.InDelta(t, tc.rightMove, r, 1e-9)
		})
	}
}
