package mzidentml

import (
	"encoding/xml"
	"errors"
)

// Types for parsing mzIdentML

// MzIdentML holds only the part of mzIdentML files
// needed to derive target masses
type MzIdentML struct {
	seqID2PepIdx map[string]int
	identList    []identRef
	content      mzIdentMLContent
}

type identRef struct {
	specIDIdx     int // Index into SpectrumIdentificationResult
	specResultIdx int // Index into SpectrumIdentificationItem
}

// Identification is one peptide-spectrum match
type Identification struct {
	PepSeq  string
	PepID   string
	Charge  int
	ModMass float64 // summed mass delta of all modifications
	SpecID  string
	// RetentionTime in seconds, NoRetentionTime if the file has none
	RetentionTime float64
	Cv            []CVParam // scores of the match
}

// NoRetentionTime marks an identification without retention time
const NoRetentionTime = float64(-1)

// CVParam is a controlled vocabulary term with its value
type CVParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	Peptide                      []peptide                      `xml:"SequenceCollection>Peptide"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type peptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	// monoisotopicMassDelta is optional according to the schema, but no
	// other attribute or cvParam carries the mass shift
	MonoisotopicMassDelta float64 `xml:"monoisotopicMassDelta,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
	CvPar                      []CVParam `xml:"cvParam"`
}

type spectrumIdentificationItem struct {
	ChargeState int       `xml:"chargeState,attr"`
	PeptideRef  string    `xml:"peptide_ref,attr"`
	CvPar       []CVParam `xml:"cvParam"`
}

var (
	// ErrInvalidIdentIndex is returned by Ident for an index out of range
	ErrInvalidIdentIndex = errors.New("mzIdentML: invalid identification index")
	// ErrUnknownPeptide is returned for a match referring to a missing peptide
	ErrUnknownPeptide = errors.New("mzIdentML: unknown peptide reference")
)
