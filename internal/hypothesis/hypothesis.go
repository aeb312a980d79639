// Package hypothesis produces the neutral masses that feature detection
// searches: a sweep over mass bins, identified peptides or a list of masses.
package hypothesis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/524D/mzfeat/internal/binning"
)

// ErrInvalidMass is returned for masses that are not finite and positive
var ErrInvalidMass = errors.New("hypothesis: invalid mass")

// Hypothesis is one neutral mass to search, with optional bounds.
// Zero bounds mean the search defaults.
type Hypothesis struct {
	Mass float64
	Name string // source of the hypothesis, e.g. a peptide ID

	MinCharge int
	MaxCharge int
	// Retention time window in seconds. The window is only used if
	// MaxRT > MinRT.
	MinRT float64
	MaxRT float64
}

// HasRTWindow reports whether the hypothesis limits the retention time
func (h Hypothesis) HasRTWindow() bool {
	return h.MaxRT > h.MinRT
}

func validMass(m float64) bool {
	return !math.IsNaN(m) && !math.IsInf(m, 0) && m > 0
}

// Sweep returns one hypothesis per bin of bn that overlaps
// [minMass, maxMass], at the bin centre. Bins cover the mass axis without
// gaps, so the sweep neither misses nor duplicates a region.
func Sweep(bn binning.Binner, minMass, maxMass float64) ([]Hypothesis, error) {
	if !validMass(minMass) || !validMass(maxMass) {
		return nil, fmt.Errorf("%w: sweep range %v:%v", ErrInvalidMass, minMass, maxMass)
	}
	if maxMass < minMass {
		return nil, fmt.Errorf("%w: sweep range %v:%v", ErrInvalidMass, minMass, maxMass)
	}
	first, last := binning.Range(bn, minMass, maxMass)
	hyps := make([]Hypothesis, 0, last-first+1)
	for b := first; b <= last; b++ {
		hyps = append(hyps, Hypothesis{Mass: binning.Center(bn, b)})
	}
	return hyps, nil
}

// FromMasses returns one hypothesis per mass, in the given order
func FromMasses(masses []float64) ([]Hypothesis, error) {
	hyps := make([]Hypothesis, 0, len(masses))
	for i, m := range masses {
		if !validMass(m) {
			return nil, fmt.Errorf("%w: mass %d (%v)", ErrInvalidMass, i+1, m)
		}
		hyps = append(hyps, Hypothesis{Mass: m})
	}
	return hyps, nil
}

// Peptides within mergeMassTol Dalton are merged
const mergeMassTol = float64(1e-7)

// merge combines hypotheses of the same mass, widening the retention time
// window to cover all of them. The result is ordered by mass.
func merge(hyps []Hypothesis) []Hypothesis {
	sort.SliceStable(hyps, func(i, j int) bool { return hyps[i].Mass < hyps[j].Mass })
	var out []Hypothesis
	for _, h := range hyps {
		if n := len(out); n > 0 && h.Mass-out[n-1].Mass <= mergeMassTol {
			last := &out[n-1]
			if last.HasRTWindow() && h.HasRTWindow() {
				last.MinRT = math.Min(last.MinRT, h.MinRT)
				last.MaxRT = math.Max(last.MaxRT, h.MaxRT)
			} else {
				// One of them may elute at any time
				last.MinRT, last.MaxRT = 0, 0
			}
			continue
		}
		out = append(out, h)
	}
	return out
}
