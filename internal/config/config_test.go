package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	lo, hi, err := cfg.ChargeRange()
	require.NoError(t, err)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 5, hi)

	lo, hi, err = cfg.ScanRange()
	require.NoError(t, err)
	assert.Equal(t, 0, lo)
	assert.Greater(t, hi, 1000000)

	rtLo, rtHi, err := cfg.RTWindow()
	require.NoError(t, err)
	assert.Equal(t, -60.0, rtLo)
	assert.Equal(t, 60.0, rtHi)
	assert.Equal(t, 10.0, cfg.Tolerance().Value)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mzfeat.yaml")
	err := os.WriteFile(path, []byte(`
search:
  charge: "2:4"
  tolerance_ppm: 5
scoring:
  min_score: 0.8
  weights:
    charge_xic_corr: 0.5
sweep:
  mass: "1000:2000"
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "2:4", cfg.Search.Charge)
	assert.Equal(t, 5.0, cfg.Search.TolerancePPM)
	assert.Equal(t, 0.8, cfg.Scoring.MinScore)
	assert.Equal(t, 0.5, cfg.Scoring.Weights.ChargeXicCorr)
	// Untouched values keep their default
	assert.Equal(t, DefaultConfig().Scoring.Weights.EnvelopeCorr, cfg.Scoring.Weights.EnvelopeCorr)
	assert.Equal(t, DefaultConfig().Runtime, cfg.Runtime)

	lo, hi, err := cfg.MassRange()
	require.NoError(t, err)
	assert.Equal(t, 1000.0, lo)
	assert.Equal(t, 2000.0, hi)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: [unclosed"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Binary = true
	cfg.Sweep.Bits = 20
	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Charge = "0:3"
	cfg.Search.TolerancePPM = -1
	cfg.Search.MinClusterSize = 0
	cfg.Sweep.Mass = "5000:500"
	cfg.Runtime.MaxInFlight = 0

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 5)
	assert.Contains(t, err.Error(), "charge range")
}

func TestChargeRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Charge = ":3"
	lo, hi, err := cfg.ChargeRange()
	require.NoError(t, err)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 3, hi)

	cfg.Search.Charge = "-1:3"
	_, _, err = cfg.ChargeRange()
	assert.ErrorIs(t, err, ErrRangeSpec)
}
