package feature

import (
	"math"

	"github.com/524D/mzfeat/internal/score"
)

// Likelihood combines the scores of a bundle into one value; higher is
// better. Implementations must be deterministic and safe for concurrent use.
type Likelihood interface {
	Score(b score.Bundle) float64
}

// LikelihoodFunc adapts a function to the Likelihood interface
type LikelihoodFunc func(b score.Bundle) float64

// Score implements Likelihood
func (f LikelihoodFunc) Score(b score.Bundle) float64 { return f(b) }

// Weights of the WeightedSum terms
type Weights struct {
	EnvelopeCorr   float64 `yaml:"envelope_corr"`
	EnvelopeDist   float64 `yaml:"envelope_dist"`
	IsotopeXicCorr float64 `yaml:"isotope_xic_corr"`
	ChargeXicCorr  float64 `yaml:"charge_xic_corr"`
}

// DefaultWeights favours the envelope fit over chromatogram correlation
func DefaultWeights() Weights {
	return Weights{
		EnvelopeCorr:   0.35,
		EnvelopeDist:   0.25,
		IsotopeXicCorr: 0.25,
		ChargeXicCorr:  0.15,
	}
}

// WeightedSum is the weighted mean of the bundle scores, each mapped to
// [0,1]: correlations are clipped at 0 and the distance is inverted.
// The cross-charge term only counts for clusters with more than one charge;
// without it the remaining weights are renormalized.
type WeightedSum struct {
	Weights Weights
}

// DefaultWeightedSum returns a WeightedSum with DefaultWeights
func DefaultWeightedSum() WeightedSum {
	return WeightedSum{Weights: DefaultWeights()}
}

// Score implements Likelihood
func (ws WeightedSum) Score(b score.Bundle) float64 {
	w := ws.Weights
	sum := w.EnvelopeCorr*unit(b.EnvelopeCorr) +
		w.EnvelopeDist*unit(1-b.EnvelopeDist) +
		w.IsotopeXicCorr*unit(b.IsotopeXicCorr)
	total := w.EnvelopeCorr + w.EnvelopeDist + w.IsotopeXicCorr
	if b.NumCharges > 1 {
		sum += w.ChargeXicCorr * unit(b.ChargeXicCorr)
		total += w.ChargeXicCorr
	}
	if total <= 0 {
		return 0
	}
	return sum / total
}

// unit clips v to [0,1], mapping NaN to 0
func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
