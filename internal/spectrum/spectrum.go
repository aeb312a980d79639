// Package spectrum defines the peak data that feature detection consumes
// and the interface through which it is obtained.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MassProton is the mass of a proton, used to convert neutral masses to m/z
const MassProton = float64(1.007276466879)

var (
	// ErrNoSpectrum means the scan exists in the run but has no spectrum
	// that can be used (e.g. it was not acquired at the requested level).
	// Callers treat it as zero intensity, not as a failure.
	ErrNoSpectrum = errors.New("spectrum: no spectrum for scan")
	// ErrInvalidScanNum means a scan number outside the run was requested
	ErrInvalidScanNum = errors.New("spectrum: invalid scan number")
	// ErrInvalidTolerance means a tolerance that is not a positive finite value
	ErrInvalidTolerance = errors.New("spectrum: invalid tolerance")
)

// Peak contains the actual ms peak info
type Peak struct {
	Mz     float64
	Intens float64
}

// Provider gives read access to the spectra of one LC-MS run.
// Implementations must allow concurrent calls of all methods.
type Provider interface {
	// SpectrumPeaks returns the peaks of a scan, ordered by m/z
	SpectrumPeaks(scanNum int) ([]Peak, error)
	// ScanNumbersOfLevel returns the ordered scan numbers of the given MS level
	ScanNumbersOfLevel(level int) []int
	// ElutionTime returns the retention time of a scan in seconds
	ElutionTime(scanNum int) (float64, error)
}

// ToleranceUnit selects how a Tolerance value is interpreted
type ToleranceUnit int

const (
	// Ppm is a relative tolerance in parts per million
	Ppm ToleranceUnit = iota
	// Th is an absolute tolerance in m/z units
	Th
)

func (u ToleranceUnit) String() string {
	switch u {
	case Ppm:
		return "ppm"
	case Th:
		return "Th"
	}
	return fmt.Sprintf("ToleranceUnit(%d)", int(u))
}

// Tolerance is an m/z matching window
type Tolerance struct {
	Value float64
	Unit  ToleranceUnit
}

// NewPpm returns a tolerance of v parts per million
func NewPpm(v float64) Tolerance {
	return Tolerance{Value: v, Unit: Ppm}
}

// Validate checks that the tolerance can be used for matching
func (t Tolerance) Validate() error {
	if math.IsNaN(t.Value) || math.IsInf(t.Value, 0) || t.Value <= 0 {
		return fmt.Errorf("%w: %v %s", ErrInvalidTolerance, t.Value, t.Unit)
	}
	if t.Unit != Ppm && t.Unit != Th {
		return fmt.Errorf("%w: unknown unit %s", ErrInvalidTolerance, t.Unit)
	}
	return nil
}

// Window returns the half width in m/z of the tolerance window around mz
func (t Tolerance) Window(mz float64) float64 {
	if t.Unit == Th {
		return t.Value
	}
	return t.Value * mz / 1000000.0
}

// Ppm returns the tolerance expressed in ppm at the given m/z
func (t Tolerance) Ppm(mz float64) float64 {
	if t.Unit == Ppm {
		return t.Value
	}
	return t.Value / mz * 1000000.0
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%g %s", t.Value, t.Unit)
}

// ClosestPeak returns the peak closest to mz within tolerance.
// Peaks must be ordered by mz prior to calling this function.
// If no peak was found, ok is false.
func ClosestPeak(peaks []Peak, mz float64, tol Tolerance) (peak Peak, ok bool) {
	w := tol.Window(mz)
	i1 := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mz >= mz-w })
	i2 := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mz > mz+w })

	best := math.MaxFloat64
	for i := i1; i < i2; i++ {
		d := math.Abs(peaks[i].Mz - mz)
		// On equal distance the most intense peak wins
		if d < best || (d == best && peaks[i].Intens > peak.Intens) {
			best = d
			peak = peaks[i]
			ok = true
		}
	}
	return peak, ok
}

// MaxPeakInWindow returns the highest intensity peak within tolerance of mz.
// Peaks must be ordered by mz prior to calling this function.
// If no peak was found, peak.Intens will be 0
func MaxPeakInWindow(peaks []Peak, mz float64, tol Tolerance) Peak {
	w := tol.Window(mz)
	i1 := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mz >= mz-w })
	i2 := sort.Search(len(peaks), func(i int) bool { return peaks[i].Mz > mz+w })

	var peak Peak
	for i := i1; i < i2; i++ {
		if peaks[i].Intens > peak.Intens {
			peak = peaks[i]
		}
	}
	return peak
}

// SortPeaks sorts peaks by m/z in ascending order
func SortPeaks(peaks []Peak) {
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Mz < peaks[j].Mz })
}

// PeaksSorted reports whether peaks are ordered by m/z
func PeaksSorted(peaks []Peak) bool {
	return sort.SliceIsSorted(peaks, func(i, j int) bool { return peaks[i].Mz < peaks[j].Mz })
}

// MzFromMass converts a neutral mass to the m/z at the given charge
func MzFromMass(mass float64, charge int) float64 {
	fCharge := float64(charge)
	return (mass + fCharge*MassProton) / fCharge
}

// MassFromMz converts an m/z at the given charge to a neutral mass
func MassFromMz(mz float64, charge int) float64 {
	return mz*float64(charge) - float64(charge)*MassProton
}
