// Package signal builds the charge × scan signal matrix of one neutral mass
// hypothesis: for every charge state and MS1 scan, how much of the
// theoretical isotope envelope is observed.
package signal

import (
	"fmt"
	"strings"

	"github.com/524D/mzfeat/internal/isotope"
	"github.com/524D/mzfeat/internal/xic"
)

// Matrix is the signal grid of one mass hypothesis. Rows are charge states
// in ascending order, columns are MS1 scans in ascending order.
// All cell data is kept in flat arrays indexed by row*cols+col; per isotope
// data is indexed by (row*cols+col)*numIsotopes+isotope.
// A Matrix is owned by the search that built it and not modified afterwards.
type Matrix struct {
	mass     float64
	env      isotope.Envelope
	charges  []int
	scanNums []int
	rts      []float64

	value   []float64
	present []bool
	matched []int

	isoIntens []float64
	isoMz     []float64
}

func newMatrix(mass float64, env isotope.Envelope, charges []int, scanNums []int) *Matrix {
	rows, cols, nIso := len(charges), len(scanNums), env.Len()
	return &Matrix{
		mass:      mass,
		env:       env,
		charges:   charges,
		scanNums:  scanNums,
		rts:       make([]float64, cols),
		value:     make([]float64, rows*cols),
		present:   make([]bool, rows*cols),
		matched:   make([]int, rows*cols),
		isoIntens: make([]float64, rows*cols*nIso),
		isoMz:     make([]float64, rows*cols*nIso),
	}
}

// Mass returns the neutral mass hypothesis of the matrix
func (m *Matrix) Mass() float64 { return m.mass }

// Envelope returns the theoretical envelope used to build the matrix
func (m *Matrix) Envelope() isotope.Envelope { return m.env }

// Rows returns the number of charge states
func (m *Matrix) Rows() int { return len(m.charges) }

// Cols returns the number of scans
func (m *Matrix) Cols() int { return len(m.scanNums) }

// NumIsotopes returns the number of envelope isotopes tracked per cell
func (m *Matrix) NumIsotopes() int { return m.env.Len() }

// Charge returns the charge state of row r
func (m *Matrix) Charge(r int) int { return m.charges[r] }

// ScanNum returns the scan number of column c
func (m *Matrix) ScanNum(c int) int { return m.scanNums[c] }

// ElutionTime returns the retention time of column c
func (m *Matrix) ElutionTime(c int) float64 { return m.rts[c] }

// Present reports whether cell (r, c) holds signal
func (m *Matrix) Present(r, c int) bool {
	return m.present[r*len(m.scanNums)+c]
}

// Value returns the isotope-explained intensity of cell (r, c), or 1 for
// a present cell of a binary matrix. Absent cells have value 0.
func (m *Matrix) Value(r, c int) float64 {
	return m.value[r*len(m.scanNums)+c]
}

// Matched returns the number of envelope isotopes found in cell (r, c)
func (m *Matrix) Matched(r, c int) int {
	return m.matched[r*len(m.scanNums)+c]
}

// IsotopeIntensities returns the observed intensity of every envelope
// isotope in cell (r, c), in envelope order. The slice must not be modified.
func (m *Matrix) IsotopeIntensities(r, c int) []float64 {
	n := m.env.Len()
	i := (r*len(m.scanNums) + c) * n
	return m.isoIntens[i : i+n : i+n]
}

// IsotopeMz returns the observed m/z of envelope isotope at position k in
// cell (r, c), or 0 if it was not found
func (m *Matrix) IsotopeMz(r, c, k int) float64 {
	return m.isoMz[(r*len(m.scanNums)+c)*m.env.Len()+k]
}

// PresentCount returns the number of present cells
func (m *Matrix) PresentCount() int {
	n := 0
	for _, p := range m.present {
		if p {
			n++
		}
	}
	return n
}

// Xic returns the chromatogram of envelope isotope k of row r over columns
// fromCol to toCol inclusive
func (m *Matrix) Xic(r, k, fromCol, toCol int) xic.Xic {
	n := m.env.Len()
	mz := m.env.IsotopeMz(m.env.Isotopes[k].Index, m.charges[r])
	x := xic.Xic{Mz: mz, Points: make([]xic.Point, 0, toCol-fromCol+1)}
	for c := fromCol; c <= toCol; c++ {
		x.Points = append(x.Points, xic.Point{
			ScanNum:   m.scanNums[c],
			Intensity: m.isoIntens[(r*len(m.scanNums)+c)*n+k],
		})
	}
	return x
}

// String renders the matrix as an ASCII grid, one line per charge state,
// '#' for present cells and '.' for absent ones
func (m *Matrix) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "mass:%f charges:%d scans:%d", m.mass, len(m.charges), len(m.scanNums))
	if len(m.scanNums) > 0 {
		fmt.Fprintf(&sb, " [%d:%d]", m.scanNums[0], m.scanNums[len(m.scanNums)-1])
	}
	sb.WriteByte('\n')
	for r, z := range m.charges {
		fmt.Fprintf(&sb, "%3d ", z)
		for c := range m.scanNums {
			if m.Present(r, c) {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
