// Package synth generates synthetic LC-MS runs with known features, for
// tests and benchmarks of the detection pipeline.
package synth

import (
	"math"
	"math/rand"
	"sort"

	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/spectrum"
)

// Feature describes one simulated species
type Feature struct {
	Mass     float64
	Charges  []int
	ApexScan int
	Sigma    float64 // elution peak width in scans
	Height   float64 // apex intensity of the most abundant isotope at full weight
	// ChargeWeights scales the intensity per charge, parallel to Charges.
	// Nil means equal weights.
	ChargeWeights []float64
	// MzShiftPpm shifts all peaks of the feature, simulating a
	// calibration error
	MzShiftPpm float64
}

// Run accumulates simulated scans. Scan numbers run from 0 to NumScans-1,
// retention time is scan number times RtStep.
type Run struct {
	NumScans int
	RtStep   float64
	model    *isotope.Model
	levels   map[int]int
	peaks    map[int][]spectrum.Peak
}

// NewRun returns an empty run with numScans MS1 scans
func NewRun(numScans int) *Run {
	return &Run{
		NumScans: numScans,
		RtStep:   1.5,
		model:    isotope.Default(),
		levels:   make(map[int]int),
		peaks:    make(map[int][]spectrum.Peak),
	}
}

// SetLevel changes the MS level of a scan. Non MS1 scans keep no peaks.
func (r *Run) SetLevel(scanNum, level int) {
	r.levels[scanNum] = level
}

// Level returns the MS level of a scan
func (r *Run) Level(scanNum int) int {
	if l, ok := r.levels[scanNum]; ok {
		return l
	}
	return 1
}

// AddFeature adds the isotope peaks of f to all scans where its elution
// profile exceeds 0.1% of the apex
func (r *Run) AddFeature(f Feature) {
	env := r.model.Envelope(f.Mass)
	apexAbund := env.Isotopes[env.MostAbundantPosition()].Abundance
	for s := 0; s < r.NumScans; s++ {
		if r.Level(s) != 1 {
			continue
		}
		d := float64(s-f.ApexScan) / f.Sigma
		shape := math.Exp(-d * d / 2)
		if shape < 1e-3 {
			continue
		}
		for i, z := range f.Charges {
			w := 1.0
			if f.ChargeWeights != nil {
				w = f.ChargeWeights[i]
			}
			for _, iso := range env.Isotopes {
				r.peaks[s] = append(r.peaks[s], spectrum.Peak{
					Mz:     env.IsotopeMz(iso.Index, z) * (1 + f.MzShiftPpm/1e6),
					Intens: f.Height * w * shape * iso.Abundance / apexAbund,
				})
			}
		}
	}
}

// AddNoise adds n random peaks per MS1 scan, uniformly distributed in m/z
// and intensity
func (r *Run) AddNoise(seed int64, n int, minMz, maxMz, maxIntens float64) {
	rnd := rand.New(rand.NewSource(seed))
	for s := 0; s < r.NumScans; s++ {
		if r.Level(s) != 1 {
			continue
		}
		for i := 0; i < n; i++ {
			r.peaks[s] = append(r.peaks[s], spectrum.Peak{
				Mz:     minMz + rnd.Float64()*(maxMz-minMz),
				Intens: rnd.Float64() * maxIntens,
			})
		}
	}
}

// Provider returns an in-memory provider holding the simulated scans
func (r *Run) Provider() *spectrum.Memory {
	m := spectrum.NewMemory()
	for s := 0; s < r.NumScans; s++ {
		peaks := r.peaks[s]
		sort.Slice(peaks, func(i, j int) bool { return peaks[i].Mz < peaks[j].Mz })
		m.AddScan(s, r.Level(s), float64(s)*r.RtStep, peaks)
	}
	return m
}
