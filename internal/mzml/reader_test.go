package mzml

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/524D/mzfeat/internal/spectrum"
)

var testPeaks = []spectrum.Peak{{Mz: 699.6955, Intens: 120}, {Mz: 700.1, Intens: 8.5}, {Mz: 701.25, Intens: 3e4}}

// testDoc builds an indexedmzML document with one uncompressed 32-bit
// spectrum (retention time in minutes) and one MS2 spectrum using
// compression cvTerm.
func testDoc(t *testing.T, compression string) string {
	t.Helper()
	mz, err := encodeBinary(testPeaks, false, false, true)
	if err != nil {
		t.Fatal(err)
	}
	intens, err := encodeBinary(testPeaks, false, false, false)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="ISO-8859-1"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
 <softwareList count="1"><software id="pwiz" version="3.0"/></softwareList>
 <run id="r1">
  <spectrumList count="2">
   <spectrum index="0" id="scan=1" defaultArrayLength="3">
    <cvParam accession="MS:1000511" name="ms level" value="1"/>
    <cvParam accession="MS:1000128" name="profile spectrum"/>
    <scanList count="1"><scan>
     <cvParam accession="MS:1000016" name="scan start time" value="2.5" unitAccession="UO:0000031"/>
    </scan></scanList>
    <binaryDataArrayList count="2">
     <binaryDataArray><cvParam accession="MS:1000521"/><cvParam accession="MS:1000576"/><cvParam accession="MS:1000514"/><binary>%s</binary></binaryDataArray>
     <binaryDataArray><cvParam accession="MS:1000521"/><cvParam accession="MS:1000576"/><cvParam accession="MS:1000515"/><binary>%s</binary></binaryDataArray>
    </binaryDataArrayList>
   </spectrum>
   <spectrum index="1" id="scan=2" defaultArrayLength="3">
    <cvParam accession="MS:1000511" name="ms level" value="2"/>
    <cvParam accession="MS:1000127" name="centroid spectrum"/>
    <binaryDataArrayList count="1">
     <binaryDataArray><cvParam accession="%s"/><cvParam accession="MS:1000514"/><binary>AAAA</binary></binaryDataArray>
    </binaryDataArrayList>
   </spectrum>
  </spectrumList>
 </run>
</mzML>
<indexList count="0"/>
</indexedmzML>
`, mz, intens, compression)
}

func TestRead(t *testing.T) {
	f, err := Read(strings.NewReader(testDoc(t, "MS:1002312")))
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	if f.NumSpecs() != 2 {
		t.Fatalf("NumSpecs: %d, should be 2", f.NumSpecs())
	}
	p, err := f.ReadScan(0)
	if err != nil {
		t.Fatalf("ReadScan: error return %v", err)
	}
	if len(p) != len(testPeaks) {
		t.Fatalf("ReadScan: %d peaks, should be %d", len(p), len(testPeaks))
	}
	for i := range p {
		// 32 bit precision
		if math.Abs(p[i].Mz-testPeaks[i].Mz) > 1e-4 || math.Abs(p[i].Intens-testPeaks[i].Intens) > 1e-3 {
			t.Errorf("ReadScan: peak %d is %v, should be %v", i, p[i], testPeaks[i])
		}
	}

	rt, err := f.RetentionTime(0)
	if err != nil || rt != 150 {
		t.Errorf("RetentionTime: %v %v, should be 150 seconds", rt, err)
	}
	rt, err = f.RetentionTime(1)
	if err != nil || rt != -1 {
		t.Errorf("RetentionTime: %v %v, should be -1", rt, err)
	}

	centroid, err := f.Centroid(0)
	if err != nil || centroid {
		t.Errorf("Centroid(0): %v %v, should be false", centroid, err)
	}
	centroid, err = f.Centroid(1)
	if err != nil || !centroid {
		t.Errorf("Centroid(1): %v %v, should be true", centroid, err)
	}
	msLevel, err := f.MSLevel(1)
	if err != nil || msLevel != 2 {
		t.Errorf("MSLevel: %d %v, should be 2", msLevel, err)
	}

	scanIndex, err := f.ScanIndex("scan=2")
	if err != nil || scanIndex != 1 {
		t.Errorf("ScanIndex: %d %v, should be 1", scanIndex, err)
	}
	if _, err = f.ScanIndex("scan=3"); err != ErrInvalidScanID {
		t.Errorf("ScanIndex: error return %v, should be ErrInvalidScanID", err)
	}
	id, err := f.ScanID(0)
	if err != nil || id != "scan=1" {
		t.Errorf("ScanID: %q %v, should be scan=1", id, err)
	}

	if sw := f.Software(); len(sw) != 1 || sw[0] != [2]string{"pwiz", "3.0"} {
		t.Errorf("Software: %v", sw)
	}
}

func TestInvalidScanIndex(t *testing.T) {
	f, err := Read(strings.NewReader(testDoc(t, "MS:1000576")))
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	for _, i := range []int{-1, 2} {
		if _, err := f.ReadScan(i); err != ErrInvalidScanIndex {
			t.Errorf("ReadScan(%d): error return %v, should be ErrInvalidScanIndex", i, err)
		}
		if _, err := f.Centroid(i); err != ErrInvalidScanIndex {
			t.Errorf("Centroid(%d): error return %v, should be ErrInvalidScanIndex", i, err)
		}
		if _, err := f.MSLevel(i); err != ErrInvalidScanIndex {
			t.Errorf("MSLevel(%d): error return %v, should be ErrInvalidScanIndex", i, err)
		}
		if _, err := f.RetentionTime(i); err != ErrInvalidScanIndex {
			t.Errorf("RetentionTime(%d): error return %v, should be ErrInvalidScanIndex", i, err)
		}
	}
}

func TestUnsupportedCompression(t *testing.T) {
	f, err := Read(strings.NewReader(testDoc(t, "MS:1002746")))
	if err != nil {
		t.Fatalf("Read: error return %v", err)
	}
	if _, err = f.ReadScan(1); !errors.Is(err, ErrUnsupportedCompression) {
		t.Errorf("ReadScan: error return %v, should be ErrUnsupportedCompression", err)
	}
}

func TestReadMismatchedIndex(t *testing.T) {
	doc := strings.Replace(testDoc(t, "MS:1000576"), `index="1"`, `index="7"`, 1)
	if _, err := Read(strings.NewReader(doc)); !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Read: error return %v, should be ErrInvalidScanIndex", err)
	}
}

func TestReadTruncated(t *testing.T) {
	doc := testDoc(t, "MS:1000576")
	if _, err := Read(strings.NewReader(doc[:len(doc)/2])); err == nil {
		t.Error("Read: expected error for truncated file")
	}
}
