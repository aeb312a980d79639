package mzidentml

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"golang.org/x/net/html/charset"
)

// Read reads mzIdentML content from io.reader
func Read(reader io.Reader) (MzIdentML, error) {
	var mzIdentML MzIdentML
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&mzIdentML.content); err != nil {
		return mzIdentML, fmt.Errorf("decoding mzIdentML: %w", err)
	}
	mzIdentML.buildPepID2Sequence()
	mzIdentML.buildIdentList()
	return mzIdentML, nil
}

// ReadFile reads the mzIdentML file at path
func ReadFile(path string) (MzIdentML, error) {
	f, err := os.Open(path)
	if err != nil {
		return MzIdentML{}, err
	}
	defer f.Close()
	return Read(f)
}

func (m *MzIdentML) buildPepID2Sequence() {
	m.seqID2PepIdx = make(map[string]int, len(m.content.Peptide))
	for i, p := range m.content.Peptide {
		m.seqID2PepIdx[p.ID] = i
	}
}

func (m *MzIdentML) buildIdentList() {
	for i, res := range m.content.SpectrumIdentificationResult {
		for j := range res.SpectrumIdentificationItem {
			m.identList = append(m.identList, identRef{specIDIdx: i, specResultIdx: j})
		}
	}
}

// NumIdents returns the total number of identifications in the mzIdentML file.
// Some spectra may have more than one identification.
// Identifications are accessed with Ident(i), for i from 0 to NumIdents()-1
func (m *MzIdentML) NumIdents() int {
	return len(m.identList)
}

// Retention time CV terms in order of decreasing preference
var rtPriority = map[string]int{
	"MS:1000016": 1, // scan start time
	"MS:1000894": 2, // retention time
	"MS:1000826": 3, // elution time
	"MS:1001114": 4, // retention time (deprecated)
}

// retentionTime returns the retention time in seconds from the most
// preferred CV term, or NoRetentionTime
func retentionTime(cvs []CVParam) (float64, error) {
	rt := NoRetentionTime
	prio := math.MaxInt32
	for _, cv := range cvs {
		p, ok := rtPriority[cv.Accession]
		if !ok || p >= prio {
			continue
		}
		t, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return NoRetentionTime, fmt.Errorf("retention time %q: %w", cv.Value, err)
		}
		// Minutes, otherwise assume seconds
		if cv.UnitAccession == "UO:0000031" || cv.UnitAccession == "MS:1000038" {
			t *= 60
		}
		prio = p
		rt = t
	}
	return rt, nil
}

// Ident returns identification i, for i from 0 to NumIdents()-1
func (m *MzIdentML) Ident(i int) (Identification, error) {
	var ident Identification
	if i < 0 || i >= len(m.identList) {
		return ident, ErrInvalidIdentIndex
	}
	res := m.content.SpectrumIdentificationResult[m.identList[i].specIDIdx]
	item := res.SpectrumIdentificationItem[m.identList[i].specResultIdx]

	pepIdx, ok := m.seqID2PepIdx[item.PeptideRef]
	if !ok {
		return ident, fmt.Errorf("%w %s", ErrUnknownPeptide, item.PeptideRef)
	}
	pep := m.content.Peptide[pepIdx]
	ident.PepSeq = pep.PeptideSequence
	ident.PepID = pep.ID
	ident.Charge = item.ChargeState
	for _, mod := range pep.Modification {
		ident.ModMass += mod.MonoisotopicMassDelta
	}
	ident.SpecID = res.SpectrumID

	rt, err := retentionTime(res.CvPar)
	if err != nil {
		return ident, err
	}
	ident.RetentionTime = rt
	ident.Cv = append(ident.Cv, item.CvPar...)
	return ident, nil
}
