// Package xic extracts and compares ion chromatograms: the intensity of one
// m/z over successive LC scans.
package xic

import (
	"errors"
	"fmt"

	"github.com/524D/mzfeat/internal/spectrum"
	"github.com/524D/mzfeat/internal/stats"
)

// Point is one sample of a chromatogram
type Point struct {
	ScanNum   int
	Intensity float64
}

// Xic is an extracted ion chromatogram, ordered by scan number.
// An Xic is never modified after construction.
type Xic struct {
	Mz     float64
	Points []Point
}

// Extract builds the Xic of mz over scanNums, taking for every scan the
// highest peak within tol. Scans without a spectrum contribute a zero
// intensity; other provider errors are returned.
func Extract(p spectrum.Provider, mz float64, tol spectrum.Tolerance, scanNums []int) (Xic, error) {
	if err := tol.Validate(); err != nil {
		return Xic{}, err
	}
	x := Xic{Mz: mz, Points: make([]Point, len(scanNums))}
	for i, scanNum := range scanNums {
		x.Points[i].ScanNum = scanNum
		peaks, err := p.SpectrumPeaks(scanNum)
		if errors.Is(err, spectrum.ErrNoSpectrum) {
			continue
		}
		if err != nil {
			return Xic{}, fmt.Errorf("xic at m/z %.4f: %w", mz, err)
		}
		x.Points[i].Intensity = spectrum.MaxPeakInWindow(peaks, mz, tol).Intens
	}
	return x, nil
}

// FromIntensities builds an Xic from parallel scan number and intensity slices
func FromIntensities(mz float64, scanNums []int, intensities []float64) Xic {
	n := min(len(scanNums), len(intensities))
	x := Xic{Mz: mz, Points: make([]Point, n)}
	for i := 0; i < n; i++ {
		x.Points[i] = Point{ScanNum: scanNums[i], Intensity: intensities[i]}
	}
	return x
}

// Len returns the number of points
func (x Xic) Len() int {
	return len(x.Points)
}

// Intensities returns the intensities in scan order
func (x Xic) Intensities() []float64 {
	v := make([]float64, len(x.Points))
	for i, p := range x.Points {
		v[i] = p.Intensity
	}
	return v
}

// Sum returns the total intensity, a crude abundance estimate
func (x Xic) Sum() float64 {
	s := 0.0
	for _, p := range x.Points {
		s += p.Intensity
	}
	return s
}

// Apex returns the point with the highest intensity. ok is false if the
// Xic contains no positive intensity.
func (x Xic) Apex() (apex Point, ok bool) {
	for _, p := range x.Points {
		if p.Intensity > apex.Intensity {
			apex = p
			ok = true
		}
	}
	return apex, ok
}

// NonZero returns the number of points with positive intensity
func (x Xic) NonZero() int {
	n := 0
	for _, p := range x.Points {
		if p.Intensity > 0 {
			n++
		}
	}
	return n
}

// Correlation returns the Pearson correlation of two chromatograms, aligned
// on scan number. Scans present in only one of them count as zero in the
// other. Degenerate input yields stats.NoCorrelation.
func Correlation(a, b Xic) float64 {
	va, vb := align(a, b)
	return stats.Pearson(va, vb)
}

// align merges the scan axes of a and b. Both must be ordered by scan number.
func align(a, b Xic) (va, vb []float64) {
	i, j := 0, 0
	for i < len(a.Points) || j < len(b.Points) {
		switch {
		case j >= len(b.Points) || (i < len(a.Points) && a.Points[i].ScanNum < b.Points[j].ScanNum):
			va = append(va, a.Points[i].Intensity)
			vb = append(vb, 0)
			i++
		case i >= len(a.Points) || b.Points[j].ScanNum < a.Points[i].ScanNum:
			va = append(va, 0)
			vb = append(vb, b.Points[j].Intensity)
			j++
		default:
			va = append(va, a.Points[i].Intensity)
			vb = append(vb, b.Points[j].Intensity)
			i++
			j++
		}
	}
	return va, vb
}
