package tracking

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultMovePxMin   = 30.0
	DefaultRatioThresh = 0.30
	DefaultHistFrames  = 60

	// MinHistory is the shortest window the classifier will judge.
	MinHistory = 15
)

// Classify decides whether the eye motion recorded in history is asymmetric
// enough to flag. Displacement is measured between the first and last
// observation only; intermediate samples are ignored.
//
// One eye must move more than movePxMin pixels while the other moves less
// than ratioThresh times as far. Histories shorter than MinHistory yield
// (false, 0, 0).
func Classify(history []Observation, movePxMin, ratioThresh float64) (isLazy bool, leftDisp, rightDisp float64) {
	if len(history) < MinHistory {
		return false, 0, 0
	}

	first, last := history[0], history[len(history)-1]
	leftDisp = distance(first.Left, last.Left)
	rightDisp = distance(first.Right, last.Right)

	fast := math.Max(leftDisp, rightDisp)
	slow := math.Min(leftDisp, rightDisp)

	isLazy = fast > movePxMin && slow < fast*ratioThresh
	return isLazy, leftDisp, rightDisp
}

func distance(a, b Point) float64 {
	return floats.Distance([]float64{a.X, a.Y}, []float64{b.X, b.Y}, 2)
}
