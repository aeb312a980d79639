package score

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/mzfeat/internal/cluster"
	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/signal"
	"github.com/524D/mzfeat/internal/spectrum"
	"github.com/524D/mzfeat/internal/stats"
	"github.com/524D/mzfeat/internal/synth"
)

const testMass = 2200.0

func buildMatrix(t *testing.T, f synth.Feature) *signal.Matrix {
	t.Helper()
	run := synth.NewRun(40)
	run.AddFeature(f)
	b := signal.NewBuilder(run.Provider(), nil, nil)
	m, err := b.Build(context.Background(), testMass, signal.Params{
		MinCharge:          1,
		MaxCharge:          5,
		MinScan:            0,
		MaxScan:            39,
		Tolerance:          spectrum.NewPpm(10),
		IntensityThreshold: 100,
	})
	require.NoError(t, err)
	return m
}

func TestScorePerfectFeature(t *testing.T) {
	m := buildMatrix(t, synth.Feature{
		Mass:          testMass,
		Charges:       []int{2, 3, 4},
		ChargeWeights: []float64{0.5, 1, 0.3},
		ApexScan:      20,
		Sigma:         2.5,
		Height:        1e5,
	})
	clusters := cluster.Segment(m)
	require.Len(t, clusters, 1)

	b := NewScorer(spectrum.NewPpm(10), true, nil).Score(m, clusters[0])
	assert.Equal(t, 3, b.NumCharges)
	assert.Equal(t, 2, b.MinCharge)
	assert.Equal(t, 4, b.MaxCharge)
	assert.Equal(t, 3, b.RepCharge)
	assert.Equal(t, 20, b.RepScan)
	assert.LessOrEqual(t, b.MinScan, 18)
	assert.GreaterOrEqual(t, b.MaxScan, 22)
	assert.InDelta(t, float64(b.MinScan)*1.5, b.MinRT, 1e-9)

	assert.InDelta(t, 1.0, b.EnvelopeCorr, 1e-6)
	assert.InDelta(t, 0.0, b.EnvelopeDist, 1e-4)
	assert.InDelta(t, 1.0, b.IsotopeXicCorr, 1e-6)
	assert.InDelta(t, 1.0, b.ChargeXicCorr, 1e-6)
	assert.InDelta(t, 0.0, b.MassErrorPpm, 0.05)
	assert.InDelta(t, testMass, b.Mass, 1e-3)

	require.Len(t, b.ChargeScores, 3)
	total := 0.0
	for _, cs := range b.ChargeScores {
		total += cs.Abundance
		assert.Equal(t, 20, cs.ApexScan)
	}
	assert.InDelta(t, total, b.Abundance, 1e-6)
	assert.Greater(t, b.ChargeScores[1].Abundance, b.ChargeScores[0].Abundance)
}

func TestScoreSingleCharge(t *testing.T) {
	m := buildMatrix(t, synth.Feature{
		Mass:     testMass,
		Charges:  []int{2},
		ApexScan: 10,
		Sigma:    2,
		Height:   1e5,
	})
	clusters := cluster.Segment(m)
	require.Len(t, clusters, 1)
	b := NewScorer(spectrum.NewPpm(10), false, nil).Score(m, clusters[0])
	assert.Equal(t, 1, b.NumCharges)
	assert.Equal(t, stats.NoCorrelation, b.ChargeXicCorr)
	assert.Equal(t, testMass, b.Mass)
}

func TestRefineMass(t *testing.T) {
	m := buildMatrix(t, synth.Feature{
		Mass:       testMass,
		Charges:    []int{2, 3},
		ApexScan:   15,
		Sigma:      2,
		Height:     1e5,
		MzShiftPpm: 3,
	})
	clusters := cluster.Segment(m)
	require.NotEmpty(t, clusters)

	ppm, err := RefineMass(m, clusters[0], spectrum.NewPpm(10))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, ppm, 0.1)

	// The offset is limited to the tolerance
	ppm, err = RefineMass(m, clusters[0], spectrum.NewPpm(1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ppm, 1e-9)

	ppm, err = RefineMass(m, cluster.Cluster{}, spectrum.NewPpm(10))
	require.NoError(t, err)
	assert.Zero(t, ppm)
}

func TestScoreEmptyCluster(t *testing.T) {
	m := buildMatrix(t, synth.Feature{Mass: testMass, Charges: []int{2}, ApexScan: 5, Sigma: 1, Height: 1e5})
	b := NewScorer(spectrum.NewPpm(10), true, nil).Score(m, cluster.Cluster{})
	assert.Equal(t, stats.MaxDistance, b.EnvelopeDist)
	assert.Zero(t, b.NumCharges)
}

// A charge state matched in a single scan has no elution profile, even when
// the cluster spans several scans
func TestScoreSingleScanRow(t *testing.T) {
	env := isotope.Default().Envelope(testMass)
	apexIso := env.MostAbundantIndex()
	p := spectrum.NewMemory()
	for s := 0; s < 10; s++ {
		var peaks []spectrum.Peak
		if s == 5 {
			for _, iso := range env.Isotopes {
				peaks = append(peaks, spectrum.Peak{Mz: env.IsotopeMz(iso.Index, 2), Intens: 1e5 * iso.Abundance})
			}
		}
		if s >= 4 && s <= 6 {
			peaks = append(peaks, spectrum.Peak{Mz: env.IsotopeMz(apexIso, 3), Intens: 1000})
		}
		p.AddScan(s, 1, float64(s), peaks)
	}
	m, err := signal.NewBuilder(p, nil, nil).Build(context.Background(), testMass, signal.Params{
		MinCharge:          1,
		MaxCharge:          5,
		MinScan:            0,
		MaxScan:            9,
		Tolerance:          spectrum.NewPpm(10),
		IntensityThreshold: 100,
	})
	require.NoError(t, err)
	clusters := cluster.Segment(m)
	require.Len(t, clusters, 1)
	require.Equal(t, 4, clusters[0].Size())

	b := NewScorer(spectrum.NewPpm(10), false, nil).Score(m, clusters[0])
	assert.Equal(t, 2, b.RepCharge)
	assert.Equal(t, 4, b.MinScan)
	assert.Equal(t, 6, b.MaxScan)
	assert.InDelta(t, 1.0, b.EnvelopeCorr, 1e-6)
	assert.Equal(t, stats.NoCorrelation, b.IsotopeXicCorr)
	assert.Equal(t, stats.NoCorrelation, b.ChargeXicCorr)
}
