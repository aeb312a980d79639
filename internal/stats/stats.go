// Package stats holds the similarity measures used to compare intensity
// profiles. All functions return a defined value for degenerate input
// (empty, constant or all-zero vectors) instead of NaN.
package stats

import (
	"math"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// NoCorrelation is returned by Pearson when correlation is undefined
	NoCorrelation = 0.0
	// MaxDistance is returned by Distance when the distance is undefined
	MaxDistance = 1.0
)

// Pearson returns the Pearson correlation coefficient of x and y.
// Vectors of different length are compared over their common prefix.
// NoCorrelation is returned when either vector has fewer than two positive
// samples or zero variance. A single spike carries no profile shape.
func Pearson(x, y []float64) float64 {
	n := min(len(x), len(y))
	if positives(x[:n]) < 2 || positives(y[:n]) < 2 {
		return NoCorrelation
	}
	r := stat.Correlation(x[:n], y[:n], nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return NoCorrelation
	}
	// Rounding may push a perfect correlation slightly outside [-1,1]
	return math.Max(-1, math.Min(1, r))
}

func positives(x []float64) int {
	n := 0
	for _, v := range x {
		if v > 0 {
			n++
		}
	}
	return n
}

// Normalize returns a copy of x scaled to sum 1. Negative values are
// treated as 0. If nothing remains, ok is false.
func Normalize(x []float64) (p []float64, ok bool) {
	p = make([]float64, len(x))
	for i, v := range x {
		if v > 0 && !math.IsInf(v, 0) {
			p[i] = v
		}
	}
	sum := floats.Sum(p)
	if !(sum > 0) {
		return p, false
	}
	floats.Scale(1/sum, p)
	return p, true
}

// BhattacharyyaCoefficient returns the overlap of the distributions
// obtained by normalizing x and y, in [0,1]. 1 means identical shapes.
// Vectors of different length are padded with zeros.
func BhattacharyyaCoefficient(x, y []float64) float64 {
	n := max(len(x), len(y))
	px, okx := Normalize(pad(x, n))
	py, oky := Normalize(pad(y, n))
	if !okx || !oky {
		return 0
	}
	bc := vek.Dot(vek.Sqrt(px), vek.Sqrt(py))
	return math.Max(0, math.Min(1, bc))
}

// Distance returns the Bhattacharyya-style (Hellinger) distance
// sqrt(1 - BC) between the normalized shapes of x and y, in [0,1].
// MaxDistance is returned if either vector has no positive intensity.
func Distance(x, y []float64) float64 {
	bc := BhattacharyyaCoefficient(x, y)
	if bc <= 0 {
		return MaxDistance
	}
	return math.Sqrt(1 - bc)
}

// ArgMax returns the index of the largest value, the first one on ties, or
// -1 for an empty slice
func ArgMax(x []float64) int {
	if len(x) == 0 {
		return -1
	}
	return floats.MaxIdx(x)
}

func pad(x []float64, n int) []float64 {
	if len(x) >= n {
		return x
	}
	p := make([]float64, n)
	copy(p, x)
	return p
}
