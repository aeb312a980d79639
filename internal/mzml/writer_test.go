package mzml

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestWriteRead(t *testing.T) {
	f := New("test_run")
	f.AppendSoftwareInfo("mzFeat", "0.1")
	if _, err := f.AddSpectrum(1, 12.5, testPeaks, true); err != nil {
		t.Fatalf("AddSpectrum: error return %v", err)
	}
	if _, err := f.AddSpectrum(2, 13.0, nil, true); err != nil {
		t.Fatalf("AddSpectrum: error return %v", err)
	}
	index, err := f.AddSpectrum(1, 14.0, testPeaks[:1], false)
	if err != nil || index != 2 {
		t.Fatalf("AddSpectrum: index %d error %v, should be 2", index, err)
	}

	path := filepath.Join(t.TempDir(), "write_1.mzML")
	if err := f.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: error return %v", err)
	}
	g, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: error return %v", err)
	}
	if g.NumSpecs() != 3 {
		t.Fatalf("NumSpecs: %d, should be 3", g.NumSpecs())
	}
	p, err := g.ReadScan(0)
	if err != nil {
		t.Fatalf("ReadScan: error return %v", err)
	}
	for i := range testPeaks {
		// m/z is written with 64 bits, intensity with 32
		if p[i].Mz != testPeaks[i].Mz {
			t.Errorf("ReadScan: peak %d mz %v, should be %v", i, p[i].Mz, testPeaks[i].Mz)
		}
		if math.Abs(p[i].Intens-testPeaks[i].Intens) > 1e-3 {
			t.Errorf("ReadScan: peak %d intens %v, should be %v", i, p[i].Intens, testPeaks[i].Intens)
		}
	}
	p, err = g.ReadScan(1)
	if err != nil || len(p) != 0 {
		t.Errorf("ReadScan(1): %v %v, should be empty", p, err)
	}
	if lvl, _ := g.MSLevel(1); lvl != 2 {
		t.Errorf("MSLevel: %d, should be 2", lvl)
	}
	if rt, _ := g.RetentionTime(2); rt != 14.0 {
		t.Errorf("RetentionTime: %v, should be 14", rt)
	}
	if c, _ := g.Centroid(2); c {
		t.Error("Centroid: true, should be false")
	}
	if id, _ := g.ScanID(2); id != "scan=3" {
		t.Errorf("ScanID: %q, should be scan=3", id)
	}
	if sw := g.Software(); len(sw) != 1 || sw[0][0] != "mzFeat" {
		t.Errorf("Software: %v", sw)
	}
}

func TestWriteError(t *testing.T) {
	f := New("r")
	if err := f.WriteFile(filepath.Join(t.TempDir(), "missing", "x.mzML")); err == nil {
		t.Error("WriteFile: expected error for missing directory")
	}
	var b bytes.Buffer
	if err := f.Write(&b); err != nil {
		t.Fatalf("Write: error return %v", err)
	}
	g, err := Read(&b)
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	if g.NumSpecs() != 0 {
		t.Errorf("NumSpecs: %d, should be 0", g.NumSpecs())
	}
	if _, err := g.ReadScan(0); !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("ReadScan: error return %v", err)
	}
}

func TestEncodeBinary(t *testing.T) {
	for _, c := range []struct{ zlib, bits64, mz bool }{
		{false, false, true}, {true, false, false}, {false, true, true}, {true, true, false},
	} {
		s, err := encodeBinary(testPeaks, c.zlib, c.bits64, c.mz)
		if err != nil {
			t.Fatalf("encodeBinary %+v: %v", c, err)
		}
		b := binaryDataArray{Binary: s}
		v, err := decodeFloats(&b, binaryEncoding{zlib: c.zlib, bits64: c.bits64})
		if err != nil {
			t.Fatalf("decodeFloats %+v: %v", c, err)
		}
		if len(v) != len(testPeaks) {
			t.Fatalf("decodeFloats %+v: %d values", c, len(v))
		}
		for i, x := range v {
			want := testPeaks[i].Intens
			if c.mz {
				want = testPeaks[i].Mz
			}
			if !c.bits64 {
				want = float64(float32(want))
			}
			if x != want {
				t.Errorf("%+v value %d: %v, should be %v", c, i, x, want)
			}
		}
	}
}
