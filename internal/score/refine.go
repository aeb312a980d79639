package score

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/524D/mzfeat/internal/cluster"
	"github.com/524D/mzfeat/internal/signal"
	"github.com/524D/mzfeat/internal/spectrum"
)

// matchedPeak is an observed isotope peak with its theoretical m/z
type matchedPeak struct {
	mzTheo     float64
	mzMeasured float64
	intens     float64
}

// RefineMass returns the relative mass error (ppm) that best explains the
// observed isotope peaks of the cluster: the intensity weighted least
// squares fit of a single ppm offset over all matched peaks. The result is
// limited to the tolerance. Without matched peaks the offset is 0.
func RefineMass(m *signal.Matrix, cl cluster.Cluster, tol spectrum.Tolerance) (float64, error) {
	env := m.Envelope()
	var peaks []matchedPeak
	for _, c := range cl.Cells {
		z := m.Charge(c.Row)
		intens := m.IsotopeIntensities(c.Row, c.Col)
		for k, iso := range env.Isotopes {
			if intens[k] <= 0 {
				continue
			}
			peaks = append(peaks, matchedPeak{
				mzTheo:     env.IsotopeMz(iso.Index, z),
				mzMeasured: m.IsotopeMz(c.Row, c.Col, k),
				intens:     intens[k],
			})
		}
	}
	if len(peaks) == 0 {
		return 0, nil
	}

	// Minimize with the gonum optimize package:
	// https://pkg.go.dev/gonum.org/v1/gonum/optimize#Minimize
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			sumOfResiduals := 0.0
			for _, p := range peaks {
				diff := p.mzMeasured - p.mzTheo*(1+x[0]/1e6)
				sumOfResiduals += p.intens * diff * diff
			}
			return sumOfResiduals
		},
	}
	result, err := optimize.Minimize(problem, []float64{0}, nil, nil)
	if err != nil {
		return 0, err
	}
	ppm := result.X[0]
	limit := tol.Ppm(peaks[0].mzTheo)
	return math.Max(-limit, math.Min(limit, ppm)), nil
}
