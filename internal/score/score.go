// Package score measures how well a cluster of the signal matrix looks
// like one molecular species: isotope envelope fit, co-elution of the
// isotopes and co-elution of the charge states.
package score

import (
	"log/slog"

	"github.com/524D/mzfeat/internal/cluster"
	"github.com/524D/mzfeat/internal/signal"
	"github.com/524D/mzfeat/internal/spectrum"
	"github.com/524D/mzfeat/internal/stats"
	"github.com/524D/mzfeat/internal/xic"
)

// ChargeScore holds the scores of one charge state of a cluster
type ChargeScore struct {
	Charge         int
	Abundance      float64 // summed isotope intensity over the cluster cells
	EnvelopeCorr   float64
	EnvelopeDist   float64
	IsotopeXicCorr float64 // see Bundle.IsotopeXicCorr
	ApexScan       int
}

// Bundle is the score set of one cluster
type Bundle struct {
	HypothesisMass float64
	Mass           float64 // refined mass, equal to HypothesisMass if not refined
	MassErrorPpm   float64

	Cluster   cluster.Cluster
	MinCharge int
	MaxCharge int
	RepCharge int
	MinScan   int
	MaxScan   int
	RepScan   int
	MinRT     float64
	MaxRT     float64
	Abundance float64

	// Scores of the representative charge
	EnvelopeCorr float64
	EnvelopeDist float64
	// IsotopeXicCorr is the mean correlation of the chromatograms of the
	// envelope isotopes with that of the most abundant isotope, not the
	// monoisotopic one: for large masses the monoisotopic peak falls below
	// the envelope cut-off. Isotopes found in fewer than two scans of the
	// cluster contribute stats.NoCorrelation.
	IsotopeXicCorr float64
	// ChargeXicCorr is the mean correlation between the chromatogram of the
	// representative charge and those of the other charges. It is
	// stats.NoCorrelation when NumCharges is 1.
	ChargeXicCorr float64
	NumCharges    int

	ChargeScores []ChargeScore
}

// Scorer scores clusters. A Scorer is safe for concurrent use.
type Scorer struct {
	tol    spectrum.Tolerance
	refine bool
	logger *slog.Logger
}

// NewScorer returns a scorer. If refine is set, the mass of every bundle is
// refined from the observed isotope m/z values, limited to tol.
func NewScorer(tol spectrum.Tolerance, refine bool, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{tol: tol, refine: refine, logger: logger}
}

// Score computes the score bundle of cluster cl of matrix m
func (s *Scorer) Score(m *signal.Matrix, cl cluster.Cluster) Bundle {
	b := Bundle{
		HypothesisMass: m.Mass(),
		Mass:           m.Mass(),
		Cluster:        cl,
	}
	if cl.Size() == 0 {
		b.EnvelopeDist = stats.MaxDistance
		return b
	}
	minCol, maxCol := cl.ColRange()
	b.MinScan, b.MaxScan = m.ScanNum(minCol), m.ScanNum(maxCol)
	b.MinRT, b.MaxRT = m.ElutionTime(minCol), m.ElutionTime(maxCol)

	env := m.Envelope()
	theo := env.Abundances()
	apexIso := env.MostAbundantPosition()
	nIso := env.Len()

	// Cells of the cluster per row
	rowCols := make(map[int][]int)
	for _, c := range cl.Cells {
		rowCols[c.Row] = append(rowCols[c.Row], c.Col)
	}
	rows := cl.Rows()
	b.NumCharges = len(rows)
	b.MinCharge, b.MaxCharge = m.Charge(rows[0]), m.Charge(rows[len(rows)-1])

	abundances := make([]float64, len(rows))
	apexXics := make([]xic.Xic, len(rows))
	for i, r := range rows {
		observed := make([]float64, nIso)
		cs := ChargeScore{Charge: m.Charge(r)}
		apexIntens := -1.0
		for _, c := range rowCols[r] {
			cellSum := 0.0
			for k, v := range m.IsotopeIntensities(r, c) {
				observed[k] += v
				cellSum += v
			}
			cs.Abundance += cellSum
			if cellSum > apexIntens || (cellSum == apexIntens && m.ScanNum(c) < cs.ApexScan) {
				apexIntens = cellSum
				cs.ApexScan = m.ScanNum(c)
			}
		}
		cs.EnvelopeCorr = stats.Pearson(observed, theo)
		cs.EnvelopeDist = stats.Distance(observed, theo)

		// Co-elution of every isotope with the most abundant one
		apexXics[i] = m.Xic(r, apexIso, minCol, maxCol)
		sum, n := 0.0, 0
		for k := 0; k < nIso; k++ {
			if k == apexIso {
				continue
			}
			sum += xic.Correlation(apexXics[i], m.Xic(r, k, minCol, maxCol))
			n++
		}
		if n > 0 {
			cs.IsotopeXicCorr = sum / float64(n)
		}

		b.ChargeScores = append(b.ChargeScores, cs)
		b.Abundance += cs.Abundance
		abundances[i] = cs.Abundance
	}

	// The most abundant charge represents the cluster, the lowest on ties
	repIdx := stats.ArgMax(abundances)
	rep := b.ChargeScores[repIdx]
	b.RepCharge = rep.Charge
	b.RepScan = rep.ApexScan
	b.EnvelopeCorr = rep.EnvelopeCorr
	b.EnvelopeDist = rep.EnvelopeDist
	b.IsotopeXicCorr = rep.IsotopeXicCorr

	if len(rows) > 1 {
		sum := 0.0
		for i := range rows {
			if i != repIdx {
				sum += xic.Correlation(apexXics[repIdx], apexXics[i])
			}
		}
		b.ChargeXicCorr = sum / float64(len(rows)-1)
	} else {
		b.ChargeXicCorr = stats.NoCorrelation
	}

	if s.refine {
		ppm, err := RefineMass(m, cl, s.tol)
		if err != nil {
			s.logger.Debug("mass refinement failed", "mass", m.Mass(), "err", err)
		} else {
			b.MassErrorPpm = ppm
			b.Mass = m.Mass() * (1 + ppm/1e6)
		}
	}
	return b
}
