package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/spectrum"
)

// ErrInvalidInput means the mass, charge range, scan range or matching
// parameters of a build request are unusable
var ErrInvalidInput = errors.New("signal: invalid input")

// Params controls how a Matrix is built
type Params struct {
	MinCharge int
	MaxCharge int
	MinScan   int // lowest scan number, inclusive
	MaxScan   int // highest scan number, inclusive
	Tolerance spectrum.Tolerance
	// IntensityThreshold is the minimum intensity of the most abundant
	// isotope peak. It is ignored in binary mode.
	IntensityThreshold float64
	// Binary marks a cell present as soon as the peak is found, with value 1
	Binary bool
	// MinMatchedIsotopes is the minimum number of envelope isotopes that
	// must be found for a cell to be present. Values below 1 mean 1.
	MinMatchedIsotopes int
	// Concurrency bounds the number of scans fetched in parallel.
	// Values below 1 select the number of CPUs.
	Concurrency int
}

// Validate checks p for a search at the given neutral mass
func (p Params) Validate(mass float64) error {
	switch {
	case math.IsNaN(mass) || math.IsInf(mass, 0) || mass <= 0:
		return fmt.Errorf("%w: mass %v", ErrInvalidInput, mass)
	case p.MinCharge < 1:
		return fmt.Errorf("%w: charge %d", ErrInvalidInput, p.MinCharge)
	case p.MaxCharge < p.MinCharge:
		return fmt.Errorf("%w: charge range %d:%d", ErrInvalidInput, p.MinCharge, p.MaxCharge)
	case p.MinScan < 0 || p.MaxScan < p.MinScan:
		return fmt.Errorf("%w: scan range %d:%d", ErrInvalidInput, p.MinScan, p.MaxScan)
	case math.IsNaN(p.IntensityThreshold) || p.IntensityThreshold < 0:
		return fmt.Errorf("%w: intensity threshold %v", ErrInvalidInput, p.IntensityThreshold)
	}
	if err := p.Tolerance.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Builder builds signal matrices from the spectra of one run.
// A Builder is safe for concurrent use.
type Builder struct {
	provider spectrum.Provider
	model    *isotope.Model
	logger   *slog.Logger
	ms1      []int
}

// NewBuilder returns a Builder reading spectra from provider and envelopes
// from model. A nil model selects isotope.Default(), a nil logger
// slog.Default().
func NewBuilder(provider spectrum.Provider, model *isotope.Model, logger *slog.Logger) *Builder {
	if model == nil {
		model = isotope.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		provider: provider,
		model:    model,
		logger:   logger,
		ms1:      provider.ScanNumbersOfLevel(1),
	}
}

// Model returns the envelope model of the builder
func (b *Builder) Model() *isotope.Model { return b.model }

// Build returns the signal matrix of a neutral mass.
// Scans without a spectrum contribute zero intensity. Any other provider
// error fails the build.
func (b *Builder) Build(ctx context.Context, mass float64, p Params) (*Matrix, error) {
	if err := p.Validate(mass); err != nil {
		return nil, err
	}
	minMatched := max(p.MinMatchedIsotopes, 1)
	concurrency := p.Concurrency
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}

	charges := make([]int, 0, p.MaxCharge-p.MinCharge+1)
	for z := p.MinCharge; z <= p.MaxCharge; z++ {
		charges = append(charges, z)
	}
	var scanNums []int
	for _, s := range b.ms1 {
		if s >= p.MinScan && s <= p.MaxScan {
			scanNums = append(scanNums, s)
		}
	}
	env := b.model.Envelope(mass)
	m := newMatrix(mass, env, charges, scanNums)

	// Theoretical m/z of every isotope at every charge, row major
	nIso := env.Len()
	apex := env.MostAbundantPosition()
	theoMz := make([]float64, len(charges)*nIso)
	for r, z := range charges {
		for k, iso := range env.Isotopes {
			theoMz[r*nIso+k] = env.IsotopeMz(iso.Index, z)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for c := range scanNums {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return b.fillColumn(m, c, theoMz, apex, minMatched, p)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	b.logger.Debug("matrix built", "mass", mass, "charges", len(charges),
		"scans", len(scanNums), "present", m.PresentCount())
	return m, nil
}

// fillColumn fills all cells of column c. Columns are disjoint regions of
// the matrix arrays, so columns can be filled concurrently.
func (b *Builder) fillColumn(m *Matrix, c int, theoMz []float64, apex int, minMatched int, p Params) error {
	scanNum := m.scanNums[c]
	rt, err := b.provider.ElutionTime(scanNum)
	if err != nil {
		return fmt.Errorf("elution time of scan %d: %w", scanNum, err)
	}
	m.rts[c] = rt

	peaks, err := b.provider.SpectrumPeaks(scanNum)
	if errors.Is(err, spectrum.ErrNoSpectrum) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("spectrum of scan %d: %w", scanNum, err)
	}

	cols, nIso := len(m.scanNums), m.env.Len()
	for r := range m.charges {
		cell := r*cols + c
		sum := 0.0
		matched := 0
		for k := 0; k < nIso; k++ {
			peak, ok := spectrum.ClosestPeak(peaks, theoMz[r*nIso+k], p.Tolerance)
			if !ok || peak.Intens <= 0 {
				continue
			}
			m.isoIntens[cell*nIso+k] = peak.Intens
			m.isoMz[cell*nIso+k] = peak.Mz
			sum += peak.Intens
			matched++
		}
		m.matched[cell] = matched

		apexIntens := m.isoIntens[cell*nIso+apex]
		if apexIntens <= 0 || matched < minMatched {
			continue
		}
		if p.Binary {
			m.present[cell] = true
			m.value[cell] = 1
		} else if apexIntens > p.IntensityThreshold {
			m.present[cell] = true
			m.value[cell] = sum
		}
	}
	return nil
}
