// Package feature turns score bundles into accepted features, the output
// of feature detection.
package feature

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/524D/mzfeat/internal/binning"
	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/score"
	"github.com/524D/mzfeat/internal/spectrum"
)

// Namespace of the name based feature IDs
var idNamespace = uuid.MustParse("5f0c6a3e-2d6b-4f0e-9a43-7d1f6c2b8e91")

// Feature is an accepted, isotope and charge coherent signal of one species.
// A Feature is not modified after it has been emitted.
type Feature struct {
	ID             string
	Mass           float64
	HypothesisMass float64
	MassErrorPpm   float64 `json:",omitempty"`
	RepCharge      int
	MinCharge      int
	MaxCharge      int
	MinScan        int
	MaxScan        int
	RepScan        int
	MinRT          float64
	MaxRT          float64
	Abundance      float64
	EnvelopeCorr   float64
	EnvelopeDist   float64
	IsotopeXicCorr float64
	ChargeXicCorr  float64
	Score          float64
	ChargeScores   []score.ChargeScore `json:",omitempty"`
}

// NewID returns the deterministic ID of a feature found at a hypothesis
// mass with the given charge and scan ranges
func NewID(hypothesisMass float64, minCharge, maxCharge, minScan, maxScan int) string {
	name := fmt.Sprintf("%.6f/%d:%d/%d:%d", hypothesisMass, minCharge, maxCharge, minScan, maxScan)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Aggregator accepts or rejects score bundles
type Aggregator struct {
	likelihood Likelihood
	minScore   float64
	logger     *slog.Logger
}

// NewAggregator returns an Aggregator that accepts bundles with a
// likelihood of at least minScore. A nil likelihood selects
// DefaultWeightedSum.
func NewAggregator(likelihood Likelihood, minScore float64, logger *slog.Logger) *Aggregator {
	if likelihood == nil {
		likelihood = DefaultWeightedSum()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{likelihood: likelihood, minScore: minScore, logger: logger}
}

// Aggregate returns the feature of bundle b if its likelihood reaches the
// acceptance threshold. Rejection is a normal outcome, reported by ok.
func (a *Aggregator) Aggregate(b score.Bundle) (f Feature, ok bool) {
	if b.NumCharges == 0 {
		return Feature{}, false
	}
	s := a.likelihood.Score(b)
	if !(s >= a.minScore) {
		a.logger.Debug("rejected", "mass", b.HypothesisMass, "charge", b.RepCharge,
			"scans", fmt.Sprintf("%d:%d", b.MinScan, b.MaxScan), "score", s)
		return Feature{}, false
	}
	f = Feature{
		ID:             NewID(b.HypothesisMass, b.MinCharge, b.MaxCharge, b.MinScan, b.MaxScan),
		Mass:           b.Mass,
		HypothesisMass: b.HypothesisMass,
		MassErrorPpm:   b.MassErrorPpm,
		RepCharge:      b.RepCharge,
		MinCharge:      b.MinCharge,
		MaxCharge:      b.MaxCharge,
		MinScan:        b.MinScan,
		MaxScan:        b.MaxScan,
		RepScan:        b.RepScan,
		MinRT:          b.MinRT,
		MaxRT:          b.MaxRT,
		Abundance:      b.Abundance,
		EnvelopeCorr:   b.EnvelopeCorr,
		EnvelopeDist:   b.EnvelopeDist,
		IsotopeXicCorr: b.IsotopeXicCorr,
		ChargeXicCorr:  b.ChargeXicCorr,
		Score:          s,
		ChargeScores:   append([]score.ChargeScore(nil), b.ChargeScores...),
	}
	a.logger.Debug("accepted", "mass", f.Mass, "charge", f.RepCharge,
		"scans", fmt.Sprintf("%d:%d", f.MinScan, f.MaxScan), "score", s)
	return f, true
}

// AggregateAll returns the features of all accepted bundles, in bundle order
func (a *Aggregator) AggregateAll(bundles []score.Bundle) []Feature {
	var features []Feature
	for _, b := range bundles {
		if f, ok := a.Aggregate(b); ok {
			features = append(features, f)
		}
	}
	return features
}

// overlaps reports whether two features share scans and charges
func overlaps(a, b Feature) bool {
	return a.MinScan <= b.MaxScan && b.MinScan <= a.MaxScan &&
		a.MinCharge <= b.MaxCharge && b.MinCharge <= a.MaxCharge
}

// duplicateWindow returns the largest mass difference between two features
// of one species at mass. Hypotheses match the species within the
// tolerance on either side, so their masses can differ by two tolerance
// windows. One bin width is added for the spacing of swept hypotheses.
func duplicateWindow(mass float64, maxCharge int, bn binning.Binner, tol spectrum.Tolerance) float64 {
	w := tol.Window(mass)
	if tol.Unit == spectrum.Th {
		// An m/z window scales with the charge when converted to mass
		w = tol.Value * float64(max(maxCharge, 1))
	}
	b := bn.BinNumber(mass)
	return 2*w + (bn.BinEnd(b) - bn.BinStart(b))
}

// Merge removes duplicate features: features whose masses, directly or
// after a shift of one isotope, differ by at most two tolerance windows
// plus one bin width and that overlap in scan and charge range. Of each set
// of duplicates the feature with the highest score is kept. The result is
// ordered by mass.
func Merge(features []Feature, bn binning.Binner, tol spectrum.Tolerance) []Feature {
	sorted := make([]Feature, len(features))
	copy(sorted, features)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if sorted[i].Mass != sorted[j].Mass {
			return sorted[i].Mass < sorted[j].Mass
		}
		return sorted[i].ID < sorted[j].ID
	})

	var kept []Feature
	byBin := make(map[int][]int)
	for _, f := range sorted {
		dup := false
	search:
		for shift := -1; shift <= 1; shift++ {
			m := f.Mass + float64(shift)*isotope.MassC13Diff
			w := duplicateWindow(m, f.MaxCharge, bn, tol)
			first, last := binning.Range(bn, m-w, m+w)
			for b := first; b <= last; b++ {
				for _, k := range byBin[b] {
					if math.Abs(kept[k].Mass-m) <= w && overlaps(f, kept[k]) {
						dup = true
						break search
					}
				}
			}
		}
		if dup {
			continue
		}
		b := bn.BinNumber(f.Mass)
		byBin[b] = append(byBin[b], len(kept))
		kept = append(kept, f)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Mass != kept[j].Mass {
			return kept[i].Mass < kept[j].Mass
		}
		return kept[i].RepScan < kept[j].RepScan
	})
	return kept
}
