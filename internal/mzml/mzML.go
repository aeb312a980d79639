package mzml

import (
	"encoding/xml"
	"errors"
)

// MzML wraps the contents of the mzML file
type MzML struct {
	content  mzMLContent
	index2id []string
	id2Index map[string]int
}

// The mzML content that we read. Only the spectra and the software list
// are parsed; everything else is skipped.
type mzMLContent struct {
	XMLName      xml.Name      `xml:"http://psi.hupo.org/ms/mzml mzML"`
	Version      string        `xml:"version,attr,omitempty"`
	SoftwareList *softwareList `xml:"softwareList,omitempty"`
	Run          run           `xml:"run"`
}

type softwareList struct {
	Count    int        `xml:"count,attr,omitempty"`
	Software []software `xml:"software"`
}

type software struct {
	ID      string    `xml:"id,attr,omitempty"`
	Version string    `xml:"version,attr,omitempty"`
	CvPar   []CVParam `xml:"cvParam,omitempty"`
}

type run struct {
	ID           string       `xml:"id,attr,omitempty"`
	SpectrumList spectrumList `xml:"spectrumList,omitempty"`
}

type spectrumList struct {
	Count    int           `xml:"count,attr"`
	Spectrum []xmlSpectrum `xml:"spectrum,omitempty"`
}

type xmlSpectrum struct {
	Index               int                 `xml:"index,attr"`
	ID                  string              `xml:"id,attr"`
	DefaultArrayLength  int64               `xml:"defaultArrayLength,attr"`
	CvPar               []CVParam           `xml:"cvParam,omitempty"`
	ScanList            scanList            `xml:"scanList"`
	BinaryDataArrayList binaryDataArrayList `xml:"binaryDataArrayList"`
}

type binaryDataArrayList struct {
	Count           int               `xml:"count,attr,omitempty"`
	BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
}

type binaryDataArray struct {
	EncodedLength int       `xml:"encodedLength,attr,omitempty"`
	ArrayLength   int       `xml:"arrayLength,attr,omitempty"`
	CvPar         []CVParam `xml:"cvParam,omitempty"`
	Binary        string    `xml:"binary"`
}

type scanList struct {
	Count int       `xml:"count,attr,omitempty"`
	CvPar []CVParam `xml:"cvParam,omitempty"`
	Scan  []scan    `xml:"scan"`
}

type scan struct {
	CvPar []CVParam `xml:"cvParam,omitempty"`
}

// CVParam contains values and attributes of a mzML Controlled Vocabulary term
// (http://www.peptideatlas.org/tmp/mzML1.1.0.html)
type CVParam struct {
	Accession     string `xml:"accession,attr,omitempty"`
	Name          string `xml:"name,attr,omitempty"`
	Value         string `xml:"value,attr,omitempty"`
	UnitCvRef     string `xml:"unitCvRef,attr,omitempty"`
	UnitAccession string `xml:"unitAccession,attr,omitempty"`
	UnitName      string `xml:"unitName,attr,omitempty"`
}

// CV terms used when reading and writing spectra
const (
	cvMSLevel          = `MS:1000511`
	cvCentroid         = `MS:1000127`
	cvProfile          = `MS:1000128`
	cvScanStartTime    = `MS:1000016`
	cvMzArray          = `MS:1000514`
	cvIntensityArray   = `MS:1000515`
	cvFloat32          = `MS:1000521`
	cvFloat64          = `MS:1000523`
	cvZlib             = `MS:1000574`
	cvNoCompression    = `MS:1000576`
	unitSecond         = `UO:0000010`
	unitMinute         = `UO:0000031`
	unitMinuteDeprecat = `MS:1000038`
)

var (
	// ErrInvalidScanID means an invalid scan id is supplied
	ErrInvalidScanID = errors.New("MzML: invalid scan id")
	// ErrInvalidScanIndex means an invalid scan index is supplied
	ErrInvalidScanIndex = errors.New("MzML: invalid scan index")
	// ErrUnsupportedCompression means the binary data uses a compression
	// that can't be decoded (MS-Numpress)
	ErrUnsupportedCompression = errors.New("MzML: unsupported compression")
)
