// Package binning discretizes a mass or m/z axis into integer bins, so that
// masses can be used as map keys and neighbouring bins enumerated directly.
//
// Two binners are provided. BitBinner keeps the top mantissa bits of the
// IEEE-754 representation of a value, which gives bins with a constant
// relative width (comparable to a ppm tolerance). WidthBinner uses bins of a
// fixed absolute width. Both satisfy BinNumber(BinStart(b)) == b exactly.
package binning

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBinner means a binner with unusable parameters was requested
var ErrInvalidBinner = errors.New("binning: invalid binner parameters")

// Binner maps values to bins and back.
type Binner interface {
	// BinNumber returns the bin that contains v
	BinNumber(v float64) int
	// BinStart returns the lowest value in bin b
	BinStart(b int) float64
	// BinEnd returns the first value after bin b
	BinEnd(b int) float64
}

// BitBinner bins positive values on their sign, exponent and the first
// Bits mantissa bits. The bin width is value * 2^-Bits, approximately.
type BitBinner struct {
	Bits  uint
	shift uint
}

// NewBitBinner returns a BitBinner with the given mantissa resolution (1-52)
func NewBitBinner(bits uint) (BitBinner, error) {
	if bits < 1 || bits > 52 {
		return BitBinner{}, fmt.Errorf("%w: %d mantissa bits", ErrInvalidBinner, bits)
	}
	return BitBinner{Bits: bits, shift: 52 - bits}, nil
}

// BinNumber implements Binner. v must be positive and finite.
func (bb BitBinner) BinNumber(v float64) int {
	return int(math.Float64bits(v) >> bb.shift)
}

// BinStart implements Binner
func (bb BitBinner) BinStart(b int) float64 {
	return math.Float64frombits(uint64(b) << bb.shift)
}

// BinEnd implements Binner
func (bb BitBinner) BinEnd(b int) float64 {
	return bb.BinStart(b + 1)
}

// PpmWidth returns the relative bin width in ppm, at worst
func (bb BitBinner) PpmWidth() float64 {
	return math.Ldexp(1, -int(bb.Bits)) * 1e6
}

// WidthBinner bins values in consecutive intervals [b*Width, (b+1)*Width)
type WidthBinner struct {
	Width float64
}

// NewWidthBinner returns a WidthBinner with the given positive bin width
func NewWidthBinner(width float64) (WidthBinner, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return WidthBinner{}, fmt.Errorf("%w: width %v", ErrInvalidBinner, width)
	}
	return WidthBinner{Width: width}, nil
}

// BinNumber implements Binner.
// Bin boundaries are defined by BinStart, so the division is corrected by
// at most one bin in either direction to stay consistent with it.
func (wb WidthBinner) BinNumber(v float64) int {
	b := int(math.Floor(v / wb.Width))
	if wb.BinStart(b) > v {
		b--
	} else if wb.BinStart(b+1) <= v {
		b++
	}
	return b
}

// BinStart implements Binner
func (wb WidthBinner) BinStart(b int) float64 {
	return float64(b) * wb.Width
}

// BinEnd implements Binner
func (wb WidthBinner) BinEnd(b int) float64 {
	return wb.BinStart(b + 1)
}

// Center returns the value halfway bin b
func Center(bn Binner, b int) float64 {
	return (bn.BinStart(b) + bn.BinEnd(b)) / 2
}

// Range returns the first and last bin that overlap [min, max]
func Range(bn Binner, min, max float64) (first, last int) {
	return bn.BinNumber(min), bn.BinNumber(max)
}
