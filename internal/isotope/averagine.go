// Package isotope approximates the isotope envelope of a molecule from its
// monoisotopic mass only, using the "averagine" model: a hypothetical amino
// acid with the average elemental composition of proteins.
package isotope

import (
	"math"
	"sync"

	"github.com/dgraph-io/ristretto"
	"gonum.org/v1/gonum/floats"

	"github.com/524D/mzfeat/internal/spectrum"
)

// MassC13Diff is the mass difference between 13C and 12C, used as the
// spacing between consecutive isotope peaks
const MassC13Diff = float64(1.00335483507)

// Supported mass range. Masses outside are clamped.
const (
	MinMass = float64(50)
	MaxMass = float64(100000)
)

// Averagine composition per averagineMass Dalton
const averagineMass = 111.1254

var averagine = struct{ c, h, n, o, s float64 }{4.9384, 7.7583, 1.3577, 1.4773, 0.0417}

// Natural isotope abundances, indexed by neutron shift
var (
	abundC = []float64{0.9893, 0.0107}
	abundH = []float64{0.999885, 0.000115}
	abundN = []float64{0.99636, 0.00364}
	abundO = []float64{0.99757, 0.00038, 0.00205}
	abundS = []float64{0.9499, 0.0075, 0.0425, 0, 0.0001}
)

// maxDistLen limits the length of computed distributions; beyond ~100 kDa
// all relevant isotopes are well within this range.
const maxDistLen = 160

const (
	defaultMinRelAbundance = 0.1
	defaultNumCounters     = 1e5
	defaultMaxCost         = 1 << 24
	defaultBufferItems     = 64
)

// Isotope is one peak of an isotope envelope. Index 0 is the monoisotopic peak.
type Isotope struct {
	Index     int
	Abundance float64
}

// Config configures a Model
type Config struct {
	// MinRelAbundance drops isotopes below this fraction of the most abundant one
	MinRelAbundance float64
	// MaxCost bounds the memory used by the envelope cache (bytes)
	MaxCost int64
}

// Model computes averagine envelopes. Envelopes are computed once per
// nominal mass and cached; a Model is safe for concurrent use.
type Model struct {
	minRel float64
	cache  *ristretto.Cache
}

// NewModel creates a new Model with the given configuration.
// A nil config selects the defaults.
func NewModel(config *Config) (*Model, error) {
	cfg := applyDefaults(config)
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Model{minRel: cfg.MinRelAbundance, cache: cache}, nil
}

func applyDefaults(config *Config) *Config {
	cfg := &Config{
		MinRelAbundance: defaultMinRelAbundance,
		MaxCost:         defaultMaxCost,
	}
	if config == nil {
		return cfg
	}
	if config.MinRelAbundance > 0 && config.MinRelAbundance < 1 {
		cfg.MinRelAbundance = config.MinRelAbundance
	}
	if config.MaxCost > 0 {
		cfg.MaxCost = config.MaxCost
	}
	return cfg
}

// Close releases the cache of the model
func (m *Model) Close() {
	m.cache.Close()
}

// Envelope returns the isotope envelope for a neutral monoisotopic mass.
// The result is a pure function of the mass: all masses that round to the
// same nominal mass share one envelope shape.
func (m *Model) Envelope(mass float64) Envelope {
	nominal := nominalMass(mass)
	var isotopes []Isotope
	if v, ok := m.cache.Get(nominal); ok {
		isotopes = v.([]Isotope)
	} else {
		isotopes = computeEnvelope(nominal, m.minRel)
		m.cache.Set(nominal, isotopes, int64(len(isotopes))*16)
	}
	return newEnvelope(mass, isotopes)
}

// MostAbundantIsotopeIndex returns the isotope index of the highest peak
// of the envelope of mass
func (m *Model) MostAbundantIsotopeIndex(mass float64) int {
	return m.Envelope(mass).MostAbundantIndex()
}

var (
	defaultModel     *Model
	defaultModelOnce sync.Once
)

// Default returns a shared Model with default settings
func Default() *Model {
	defaultModelOnce.Do(func() {
		var err error
		defaultModel, err = NewModel(nil)
		if err != nil {
			// Only possible with an invalid static ristretto configuration
			panic(err)
		}
	})
	return defaultModel
}

// IsotopeMz returns the m/z of isotope index of a molecule with the given
// neutral monoisotopic mass at the given charge
func IsotopeMz(mass float64, index int, charge int) float64 {
	return spectrum.MzFromMass(mass+float64(index)*MassC13Diff, charge)
}

func nominalMass(mass float64) int {
	if math.IsNaN(mass) || mass < MinMass {
		mass = MinMass
	}
	if mass > MaxMass {
		mass = MaxMass
	}
	return int(math.Round(mass))
}

// computeEnvelope computes the averagine isotope distribution for a
// nominal mass, keeping the contiguous range of isotopes above minRel
// of the maximum, normalized to a sum of 1
func computeEnvelope(nominal int, minRel float64) []Isotope {
	units := float64(nominal) / averagineMass
	dist := []float64{1}
	dist = convolve(dist, polyPow(abundC, int(math.Round(averagine.c*units))))
	dist = convolve(dist, polyPow(abundH, int(math.Round(averagine.h*units))))
	dist = convolve(dist, polyPow(abundN, int(math.Round(averagine.n*units))))
	dist = convolve(dist, polyPow(abundO, int(math.Round(averagine.o*units))))
	dist = convolve(dist, polyPow(abundS, int(math.Round(averagine.s*units))))

	maxAbund := floats.Max(dist)
	first, last := -1, -1
	for i, a := range dist {
		if a >= minRel*maxAbund {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	abund := make([]float64, last-first+1)
	copy(abund, dist[first:last+1])
	floats.Scale(1/floats.Sum(abund), abund)

	isotopes := make([]Isotope, len(abund))
	for i, a := range abund {
		isotopes[i] = Isotope{Index: first + i, Abundance: a}
	}
	return isotopes
}

// polyPow raises the polynomial p to the power n by repeated squaring
func polyPow(p []float64, n int) []float64 {
	result := []float64{1}
	base := p
	for n > 0 {
		if n&1 == 1 {
			result = convolve(result, base)
		}
		n >>= 1
		if n > 0 {
			base = convolve(base, base)
		}
	}
	return result
}

// convolve multiplies two polynomials, truncated to maxDistLen terms
func convolve(a, b []float64) []float64 {
	n := len(a) + len(b) - 1
	if n > maxDistLen {
		n = maxDistLen
	}
	out := make([]float64, n)
	for i, x := range a {
		if x == 0 || i >= n {
			continue
		}
		for j, y := range b {
			if i+j >= n {
				break
			}
			out[i+j] += x * y
		}
	}
	return out
}
