package mzidentml

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMzIdentML = `<?xml version="1.0" encoding="ISO-8859-1"?>
<MzIdentML id="test" version="1.1.0">
  <SequenceCollection>
    <Peptide id="PEP_1">
      <PeptideSequence>SAMPLER</PeptideSequence>
    </Peptide>
    <Peptide id="PEP_2">
      <PeptideSequence>PEPTIDEK</PeptideSequence>
      <Modification location="0" monoisotopicMassDelta="42.010565"/>
      <Modification location="3" monoisotopicMassDelta="0.984016"/>
    </Peptide>
  </SequenceCollection>
  <DataCollection>
    <AnalysisData>
      <SpectrumIdentificationList id="SIL_1">
        <SpectrumIdentificationResult id="SIR_1" spectrumID="index=10">
          <SpectrumIdentificationItem id="SII_1" chargeState="2" peptide_ref="PEP_1">
            <cvParam accession="MS:1002257" name="Comet:expectation value" value="1.5e-4"/>
          </SpectrumIdentificationItem>
          <SpectrumIdentificationItem id="SII_2" chargeState="3" peptide_ref="PEP_2">
            <cvParam accession="MS:1002257" name="Comet:expectation value" value="0.5"/>
          </SpectrumIdentificationItem>
          <cvParam accession="MS:1000894" name="retention time" value="100.0" unitAccession="UO:0000010"/>
          <cvParam accession="MS:1000016" name="scan start time" value="2.0" unitAccession="UO:0000031"/>
        </SpectrumIdentificationResult>
        <SpectrumIdentificationResult id="SIR_2" spectrumID="index=20">
          <SpectrumIdentificationItem id="SII_3" chargeState="2" peptide_ref="PEP_2">
            <cvParam accession="MS:1002257" name="Comet:expectation value" value="1e-3"/>
          </SpectrumIdentificationItem>
        </SpectrumIdentificationResult>
      </SpectrumIdentificationList>
    </AnalysisData>
  </DataCollection>
</MzIdentML>
`

func TestRead(t *testing.T) {
	m, err := Read(strings.NewReader(testMzIdentML))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n := m.NumIdents(); n != 3 {
		t.Fatalf("NumIdents is %d, expected 3", n)
	}

	ident, err := m.Ident(0)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	if ident.PepSeq != "SAMPLER" || ident.Charge != 2 || ident.SpecID != "index=10" {
		t.Errorf("unexpected identification %+v", ident)
	}
	// Scan start time has priority and is in minutes
	if ident.RetentionTime != 120 {
		t.Errorf("Expected retention time 120, got: %f", ident.RetentionTime)
	}
	if len(ident.Cv) != 1 || ident.Cv[0].Value != "1.5e-4" {
		t.Errorf("unexpected scores %+v", ident.Cv)
	}

	ident, err = m.Ident(1)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	if math.Abs(ident.ModMass-42.994581) > 1e-9 {
		t.Errorf("Expected modification mass 42.994581, got: %f", ident.ModMass)
	}

	ident, err = m.Ident(2)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	if ident.RetentionTime != NoRetentionTime {
		t.Errorf("Expected no retention time, got: %f", ident.RetentionTime)
	}

	if _, err = m.Ident(3); !errors.Is(err, ErrInvalidIdentIndex) {
		t.Errorf("Expected ErrInvalidIdentIndex, got: %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mzid")
	if err := os.WriteFile(path, []byte(testMzIdentML), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if m.NumIdents() != 3 {
		t.Errorf("NumIdents is %d, expected 3", m.NumIdents())
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.mzid")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadInvalid(t *testing.T) {
	if _, err := Read(strings.NewReader("<MzIdentML><unclosed>")); err == nil {
		t.Error("Expected error for truncated XML")
	}
	broken := strings.Replace(testMzIdentML, `peptide_ref="PEP_1"`, `peptide_ref="PEP_X"`, 1)
	m, err := Read(strings.NewReader(broken))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := m.Ident(0); !errors.Is(err, ErrUnknownPeptide) {
		t.Errorf("Expected ErrUnknownPeptide, got: %v", err)
	}
}
