// Package config holds the feature detection settings: defaults, loading
// from a YAML file and validation before any search starts.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/524D/mzfeat/internal/feature"
	"github.com/524D/mzfeat/internal/spectrum"
)

// Config is the complete detection configuration
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Scoring ScoringConfig `yaml:"scoring"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// SearchConfig controls matrix building and segmentation
type SearchConfig struct {
	Charge             string  `yaml:"charge"` // charge range, e.g. "1:5"
	Scans              string  `yaml:"scans"`  // scan number range, empty for all
	TolerancePPM       float64 `yaml:"tolerance_ppm"`
	IntensityThreshold float64 `yaml:"intensity_threshold"`
	Binary             bool    `yaml:"binary"`
	MinMatchedIsotopes int     `yaml:"min_matched_isotopes"`
	MinClusterSize     int     `yaml:"min_cluster_size"`
	MaxClusters        int     `yaml:"max_clusters"` // per hypothesis, <1 for all
	RefineMass         bool    `yaml:"refine_mass"`
	// RTWindow limits targeted searches to this retention time range (in
	// seconds) around the identification
	RTWindow      string `yaml:"rt_window"`
	ScoreFilter   string `yaml:"score_filter"`
	AcceptProfile bool   `yaml:"accept_profile"`
}

// ScoringConfig controls feature acceptance
type ScoringConfig struct {
	MinScore        float64         `yaml:"min_score"`
	Weights         feature.Weights `yaml:"weights"`
	MinRelAbundance float64         `yaml:"min_rel_abundance"` // envelope isotope cut-off
}

// SweepConfig controls the mass sweep of untargeted searches
type SweepConfig struct {
	Mass string `yaml:"mass"` // mass range in Dalton
	Bits uint   `yaml:"bits"` // mantissa bits of the mass bins
}

// RuntimeConfig controls resource use
type RuntimeConfig struct {
	Workers       int `yaml:"workers"`        // parallel scan fetches per hypothesis
	MaxInFlight   int `yaml:"max_in_flight"`  // hypotheses searched concurrently
	SpectrumCache int `yaml:"spectrum_cache"` // decoded spectra kept in memory
}

// DefaultScoreFilter accepts the PSMs of some common search engines
const DefaultScoreFilter = "MS:1002257(0.0:1e-2)MS:1001330(0.0:1e-2)MS:1001159(0.0:1e-2)MS:1002466(0.99:)"

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			Charge:             "1:5",
			TolerancePPM:       10,
			IntensityThreshold: 0,
			MinMatchedIsotopes: 2,
			MinClusterSize:     3,
			MaxClusters:        5,
			RefineMass:         true,
			RTWindow:           "-60.0:60.0",
			ScoreFilter:        DefaultScoreFilter,
		},
		Scoring: ScoringConfig{
			MinScore:        0.7,
			Weights:         feature.DefaultWeights(),
			MinRelAbundance: 0.1,
		},
		Sweep: SweepConfig{
			Mass: "500:5000",
			Bits: 17,
		},
		Runtime: RuntimeConfig{
			Workers:       4,
			MaxInFlight:   8,
			SpectrumCache: 2048,
		},
	}
}

// Load returns the default configuration overlaid with the YAML file at
// path. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ValidationError lists all problems found in a configuration
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the configuration as a whole, so that a search can fail
// before any work is done
func (c *Config) Validate() error {
	var errs []string
	if _, _, err := c.ChargeRange(); err != nil {
		errs = append(errs, fmt.Sprintf("charge range %q: %v", c.Search.Charge, err))
	}
	if _, _, err := c.ScanRange(); err != nil {
		errs = append(errs, fmt.Sprintf("scan range %q: %v", c.Search.Scans, err))
	}
	if _, _, err := c.RTWindow(); err != nil {
		errs = append(errs, fmt.Sprintf("rt window %q: %v", c.Search.RTWindow, err))
	}
	if err := c.Tolerance().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if !isFinite(c.Search.IntensityThreshold) || c.Search.IntensityThreshold < 0 {
		errs = append(errs, "intensity threshold must be non-negative")
	}
	if c.Search.MinClusterSize < 1 {
		errs = append(errs, "minimum cluster size must be at least 1")
	}
	if !isFinite(c.Scoring.MinScore) {
		errs = append(errs, "minimum score must be finite")
	}
	w := c.Scoring.Weights
	if w.EnvelopeCorr < 0 || w.EnvelopeDist < 0 || w.IsotopeXicCorr < 0 || w.ChargeXicCorr < 0 {
		errs = append(errs, "likelihood weights must be non-negative")
	} else if w.EnvelopeCorr+w.EnvelopeDist+w.IsotopeXicCorr == 0 {
		errs = append(errs, "at least one envelope or isotope weight must be positive")
	}
	if c.Scoring.MinRelAbundance <= 0 || c.Scoring.MinRelAbundance >= 1 {
		errs = append(errs, "minimum relative abundance must be in (0,1)")
	}
	if lo, _, err := c.MassRange(); err != nil {
		errs = append(errs, fmt.Sprintf("mass range %q: %v", c.Sweep.Mass, err))
	} else if lo <= 0 {
		errs = append(errs, "mass range must be positive")
	}
	if c.Sweep.Bits < 1 || c.Sweep.Bits > 52 {
		errs = append(errs, "mass bin bits must be in 1:52")
	}
	if c.Runtime.MaxInFlight < 1 {
		errs = append(errs, "max in flight must be at least 1")
	}
	if c.Runtime.SpectrumCache < 1 {
		errs = append(errs, "spectrum cache must hold at least 1 spectrum")
	}
	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}
	return nil
}

const maxCharge = 100

// ChargeRange returns the configured charge range. A missing minimum means
// 1, a missing maximum 100. Charges below 1 are an error.
func (c *Config) ChargeRange() (int, int, error) {
	lo, hi, err := ParseIntRange(c.Search.Charge, math.MinInt32, maxCharge)
	if err != nil {
		return lo, hi, err
	}
	if lo == math.MinInt32 {
		lo = 1
	}
	if lo < 1 {
		return lo, hi, fmt.Errorf("%w: charge must be positive", ErrRangeSpec)
	}
	return lo, hi, nil
}

// ScanRange returns the configured scan number range
func (c *Config) ScanRange() (int, int, error) {
	return ParseIntRange(c.Search.Scans, 0, math.MaxInt32)
}

// RTWindow returns the retention time window of targeted searches
func (c *Config) RTWindow() (float64, float64, error) {
	return ParseFloat64Range(c.Search.RTWindow, -math.MaxFloat64, math.MaxFloat64)
}

// MassRange returns the mass range of the sweep
func (c *Config) MassRange() (float64, float64, error) {
	return ParseFloat64Range(c.Sweep.Mass, 0, math.MaxFloat64)
}

// Tolerance returns the m/z matching tolerance
func (c *Config) Tolerance() spectrum.Tolerance {
	return spectrum.NewPpm(c.Search.TolerancePPM)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
