package feature

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/mzfeat/internal/binning"
	"github.com/524D/mzfeat/internal/cluster"
	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/score"
	"github.com/524D/mzfeat/internal/signal"
	"github.com/524D/mzfeat/internal/spectrum"
	"github.com/524D/mzfeat/internal/synth"
)

const testMass = 1800.0

func bundlesOf(t *testing.T, run *synth.Run) []score.Bundle {
	t.Helper()
	b := signal.NewBuilder(run.Provider(), nil, nil)
	m, err := b.Build(context.Background(), testMass, signal.Params{
		MinCharge:          1,
		MaxCharge:          4,
		MinScan:            0,
		MaxScan:            run.NumScans - 1,
		Tolerance:          spectrum.NewPpm(10),
		IntensityThreshold: 10,
	})
	require.NoError(t, err)
	scorer := score.NewScorer(spectrum.NewPpm(10), false, nil)
	var bundles []score.Bundle
	for _, cl := range cluster.Segment(m) {
		bundles = append(bundles, scorer.Score(m, cl))
	}
	return bundles
}

func TestAggregateAcceptsPerfectFeature(t *testing.T) {
	run := synth.NewRun(30)
	run.AddFeature(synth.Feature{
		Mass:     testMass,
		Charges:  []int{2, 3},
		ApexScan: 14,
		Sigma:    2,
		Height:   5e4,
	})
	bundles := bundlesOf(t, run)
	require.Len(t, bundles, 1)

	agg := NewAggregator(nil, 0.7, nil)
	f, ok := agg.Aggregate(bundles[0])
	require.True(t, ok)
	assert.InDelta(t, 1.0, f.Score, 1e-4)
	assert.InDelta(t, 1.0, f.EnvelopeCorr, 1e-6)
	assert.InDelta(t, 0.0, f.EnvelopeDist, 1e-4)
	assert.Equal(t, testMass, f.Mass)
	assert.Equal(t, 2, f.MinCharge)
	assert.Equal(t, 3, f.MaxCharge)
	assert.Equal(t, 14, f.RepScan)
	assert.Len(t, f.ChargeScores, 2)
	assert.NotEmpty(t, f.ID)

	// Same input, same feature
	f2, ok := agg.Aggregate(bundlesOf(t, run)[0])
	require.True(t, ok)
	if diff := cmp.Diff(f, f2); diff != "" {
		t.Errorf("feature not deterministic (-first +second):\n%s", diff)
	}
}

func TestAggregateRejectsNoise(t *testing.T) {
	run := synth.NewRun(30)
	run.AddNoise(42, 2000, 300, 2000, 1000)
	agg := NewAggregator(nil, 0.7, nil)
	assert.Empty(t, agg.AggregateAll(bundlesOf(t, run)))

	noise := score.Bundle{
		HypothesisMass: testMass,
		NumCharges:     1,
		EnvelopeCorr:   0.01,
		EnvelopeDist:   0.9,
		IsotopeXicCorr: -0.2,
	}
	_, ok := agg.Aggregate(noise)
	assert.False(t, ok)
	_, ok = agg.Aggregate(score.Bundle{})
	assert.False(t, ok)
}

func TestWeightedSum(t *testing.T) {
	ws := DefaultWeightedSum()
	perfect := score.Bundle{NumCharges: 2, EnvelopeCorr: 1, IsotopeXicCorr: 1, ChargeXicCorr: 1}
	assert.InDelta(t, 1.0, ws.Score(perfect), 1e-12)

	// A single charge ignores the cross-charge term
	single := perfect
	single.NumCharges = 1
	single.ChargeXicCorr = 0
	assert.InDelta(t, 1.0, ws.Score(single), 1e-12)

	// Bad cross-charge correlation lowers the score of multi-charge clusters
	bad := perfect
	bad.ChargeXicCorr = -1
	w := DefaultWeights()
	expected := (w.EnvelopeCorr + w.EnvelopeDist + w.IsotopeXicCorr) /
		(w.EnvelopeCorr + w.EnvelopeDist + w.IsotopeXicCorr + w.ChargeXicCorr)
	assert.InDelta(t, expected, ws.Score(bad), 1e-12)

	assert.Zero(t, WeightedSum{}.Score(perfect))
}

func TestPluggableLikelihood(t *testing.T) {
	always := LikelihoodFunc(func(score.Bundle) float64 { return 1 })
	agg := NewAggregator(always, 0.5, nil)
	_, ok := agg.Aggregate(score.Bundle{NumCharges: 1, EnvelopeDist: 1})
	assert.True(t, ok)
}

func TestNewIDDeterministic(t *testing.T) {
	a := NewID(1000.5, 1, 3, 10, 20)
	assert.Equal(t, a, NewID(1000.5, 1, 3, 10, 20))
	assert.NotEqual(t, a, NewID(1000.5, 1, 3, 10, 21))
}

func TestMerge(t *testing.T) {
	bn, err := binning.NewBitBinner(17)
	require.NoError(t, err)

	best := Feature{ID: "a", Mass: 1500.0, MinCharge: 2, MaxCharge: 3, MinScan: 10, MaxScan: 20, Score: 0.95}
	nearby := Feature{ID: "b", Mass: 1500.001, MinCharge: 2, MaxCharge: 2, MinScan: 12, MaxScan: 18, Score: 0.8}
	isoShift := Feature{ID: "c", Mass: 1500.0 + isotope.MassC13Diff, MinCharge: 3, MaxCharge: 3, MinScan: 15, MaxScan: 25, Score: 0.75}
	laterElution := Feature{ID: "d", Mass: 1500.0, MinCharge: 2, MaxCharge: 3, MinScan: 40, MaxScan: 50, Score: 0.9}
	otherMass := Feature{ID: "e", Mass: 900.0, MinCharge: 1, MaxCharge: 2, MinScan: 10, MaxScan: 20, Score: 0.7}

	// Two hypotheses 15 ppm apart can both match a species at 10 ppm
	twoBinsAway := Feature{ID: "f", Mass: 1500.0 * (1 + 15e-6), MinCharge: 2, MaxCharge: 3, MinScan: 10, MaxScan: 20, Score: 0.95}
	beyondTolerance := Feature{ID: "g", Mass: 1500.0 * (1 + 40e-6), MinCharge: 2, MaxCharge: 3, MinScan: 10, MaxScan: 20, Score: 0.6}

	tol := spectrum.NewPpm(10)
	merged := Merge([]Feature{nearby, isoShift, twoBinsAway, best, laterElution, otherMass, beyondTolerance}, bn, tol)
	ids := make([]string, len(merged))
	for i, f := range merged {
		ids[i] = f.ID
	}
	if diff := cmp.Diff([]string{"e", "a", "d", "g"}, ids); diff != "" {
		t.Errorf("merged features mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Merge(nil, bn, tol))

	// An absolute tolerance scales with the charge
	th := spectrum.Tolerance{Value: 0.01, Unit: spectrum.Th}
	wide := Feature{ID: "h", Mass: 1500.05, MinCharge: 2, MaxCharge: 3, MinScan: 10, MaxScan: 20, Score: 0.5}
	assert.Len(t, Merge([]Feature{best, wide}, bn, th), 1)
	assert.Len(t, Merge([]Feature{best, wide}, bn, tol), 2)
}
