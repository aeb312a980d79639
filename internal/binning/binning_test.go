package binning

import (
	"errors"
	"math"
	"testing"
)

func testBinners(t *testing.T) map[string]Binner {
	t.Helper()
	bb, err := NewBitBinner(20)
	if err != nil {
		t.Fatalf("NewBitBinner: %v", err)
	}
	wb, err := NewWidthBinner(0.01)
	if err != nil {
		t.Fatalf("NewWidthBinner: %v", err)
	}
	return map[string]Binner{"bits": bb, "width": wb}
}

func TestBinStartRoundTrip(t *testing.T) {
	for name, bn := range testBinners(t) {
		first, last := Range(bn, 500, 501)
		for b := first; b <= last; b++ {
			if got := bn.BinNumber(bn.BinStart(b)); got != b {
				t.Fatalf("%s: BinNumber(BinStart(%d)) = %d", name, b, got)
			}
			if bn.BinEnd(b) <= bn.BinStart(b) {
				t.Fatalf("%s: empty bin %d", name, b)
			}
			if bn.BinEnd(b) != bn.BinStart(b+1) {
				t.Fatalf("%s: gap between bin %d and %d", name, b, b+1)
			}
		}
	}
}

func TestBinMonotonic(t *testing.T) {
	for name, bn := range testBinners(t) {
		prev := bn.BinNumber(400)
		for v := 400.0; v < 2000; v += 0.0013 {
			b := bn.BinNumber(v)
			if b < prev {
				t.Fatalf("%s: bin decreased at %f: %d < %d", name, v, b, prev)
			}
			if v < bn.BinStart(b) || v >= bn.BinEnd(b) {
				t.Fatalf("%s: %f outside its bin [%f,%f)", name, v, bn.BinStart(b), bn.BinEnd(b))
			}
			prev = b
		}
	}
}

func TestBinSameAndAdjacent(t *testing.T) {
	for name, bn := range testBinners(t) {
		b := bn.BinNumber(1234.5678)
		start, end := bn.BinStart(b), bn.BinEnd(b)
		v1 := start + (end-start)*0.25
		v2 := start + (end-start)*0.75
		if bn.BinNumber(v1) != bn.BinNumber(v2) {
			t.Errorf("%s: values in the same bin map to different bins", name)
		}
		v3 := end + (end-start)*0.5
		if bn.BinNumber(v3) != bn.BinNumber(v1)+1 {
			t.Errorf("%s: value in next bin maps to %d, expected %d", name, bn.BinNumber(v3), b+1)
		}
		if c := Center(bn, b); bn.BinNumber(c) != b {
			t.Errorf("%s: center of bin %d maps to %d", name, b, bn.BinNumber(c))
		}
	}
}

func TestBitBinnerWidth(t *testing.T) {
	bb, err := NewBitBinner(17)
	if err != nil {
		t.Fatal(err)
	}
	b := bb.BinNumber(1000)
	rel := (bb.BinEnd(b) - bb.BinStart(b)) / bb.BinStart(b) * 1e6
	if rel > bb.PpmWidth() || rel < bb.PpmWidth()/2 {
		t.Errorf("relative bin width %f ppm, expected about %f", rel, bb.PpmWidth())
	}
}

func TestInvalidBinner(t *testing.T) {
	if _, err := NewBitBinner(0); !errors.Is(err, ErrInvalidBinner) {
		t.Errorf("Expected ErrInvalidBinner, got: %v", err)
	}
	if _, err := NewBitBinner(53); !errors.Is(err, ErrInvalidBinner) {
		t.Errorf("Expected ErrInvalidBinner, got: %v", err)
	}
	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewWidthBinner(w); !errors.Is(err, ErrInvalidBinner) {
			t.Errorf("width %v: expected ErrInvalidBinner, got: %v", w, err)
		}
	}
}

func TestRangeWindow(t *testing.T) {
	bn, err := NewWidthBinner(0.5)
	if err != nil {
		t.Fatal(err)
	}
	// A window around a bin centre covers the bin and its neighbours
	first, last := Range(bn, Center(bn, 7)-0.5, Center(bn, 7)+0.5)
	if first != 6 || last != 8 {
		t.Errorf("Expected bins 6:8, got %d:%d", first, last)
	}
}
