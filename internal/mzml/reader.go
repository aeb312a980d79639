package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/524D/mzfeat/internal/spectrum"
)

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (*MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// We are only interested in mzML content, so skip over indexedmzML
	// and everything else
	for {
		t, tokenErr := d.Token()
		if tokenErr == io.EOF {
			break
		}
		if tokenErr != nil {
			return nil, tokenErr
		}
		if se, ok := t.(xml.StartElement); ok && se.Name.Local == "mzML" {
			if err := d.DecodeElement(&mzML.content, &se); err != nil {
				return nil, err
			}
		}
	}

	if err := mzML.traverseScan(); err != nil {
		return nil, err
	}
	return &mzML, nil
}

// ReadFile reads the mzML file at path
func ReadFile(path string) (*MzML, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// binaryEncoding describes the content of a mzML binarydata section
//
// CV Terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 No Compression
// MS:1002312 MS-Numpress linear prediction compression
// MS:1002313 MS-Numpress positive integer compression
// MS:1002314 MS-Numpress short logged float compression
// MS:1002746 MS-Numpress linear prediction compression followed by zlib compression
// MS:1002747 MS-Numpress positive integer compression followed by zlib compression
// MS:1002748 MS-Numpress short logged float compression followed by zlib compression
//
// CV Terms for binary data array types
// MS:1000514 m/z array
// MS:1000515 intensity array
//
// CV Terms for binary-data-type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
type binaryEncoding struct {
	zlib           bool
	bits64         bool
	mzArray        bool
	intensityArray bool
}

func binaryDataPars(b *binaryDataArray) (binaryEncoding, error) {
	var enc binaryEncoding // Default: no compression, 32 bits
	for _, cvParam := range b.CvPar {
		switch cvParam.Accession {
		case cvZlib:
			enc.zlib = true
		case cvMzArray:
			enc.mzArray = true
		case cvIntensityArray:
			enc.intensityArray = true
		case cvFloat64:
			enc.bits64 = true
		case `MS:1002312`, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			return enc, fmt.Errorf("%w (CV term %s)", ErrUnsupportedCompression, cvParam.Accession)
		}
	}
	return enc, nil
}

// decodeFloats decodes base64, optionally zlib compressed, little endian floats
func decodeFloats(b *binaryDataArray, enc binaryEncoding) ([]float64, error) {
	data, err := base64.StdEncoding.DecodeString(b.Binary)
	if err != nil {
		return nil, err
	}
	if enc.zlib {
		z, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		if data, err = io.ReadAll(z); err != nil {
			return nil, err
		}
	}
	if enc.bits64 {
		v := make([]float64, len(data)/8)
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return v, nil
	}
	v := make([]float64, len(data)/4)
	for i := range v {
		v[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return v, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// RetentionTime returns the retention time of a spectrum in seconds,
// or -1 if the spectrum has none
func (f *MzML) RetentionTime(scanIndex int) (float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0.0, ErrInvalidScanIndex
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == cvScanStartTime {
				retentionTime, err := strconv.ParseFloat(cvParam.Value, 64)
				// Check if the retention time is in minutes, otherwise assume it's seconds
				if cvParam.UnitAccession == unitMinute ||
					cvParam.UnitAccession == unitMinuteDeprecat {
					retentionTime *= 60
				}
				return retentionTime, err
			}
		}
	}
	return -1.0, nil
}

// ReadScan reads the peaks of a single scan, in file order.
// scanIndex is the sequence number of the scan in the mzML file,
// which is not the same as the scan id in the mzML file.
// To read a scan by its id, use ReadScan(ScanIndex(scanID)).
// A spectrum without m/z array gives spectrum.ErrNoSpectrum.
func (f *MzML) ReadScan(scanIndex int) ([]spectrum.Peak, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	spec := &f.content.Run.SpectrumList.Spectrum[scanIndex]
	var mzs, intens []float64
	for i := range spec.BinaryDataArrayList.BinaryDataArray {
		b := &spec.BinaryDataArrayList.BinaryDataArray[i]
		enc, err := binaryDataPars(b)
		if err != nil {
			return nil, err
		}
		// We are only interested in mz and intensity
		if !enc.mzArray && !enc.intensityArray {
			continue
		}
		v, err := decodeFloats(b, enc)
		if err != nil {
			return nil, fmt.Errorf("scan %d: %w", scanIndex, err)
		}
		if enc.mzArray {
			mzs = v
		} else {
			intens = v
		}
	}
	if mzs == nil {
		return nil, spectrum.ErrNoSpectrum
	}
	p := make([]spectrum.Peak, len(mzs))
	for i, mz := range mzs {
		p[i].Mz = mz
		if i < len(intens) {
			p[i].Intens = intens[i]
		}
	}
	return p, nil
}

// Centroid returns true is the spectrum contains centroid peaks
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == cvCentroid {
			return true, nil
		}
	}
	return false, nil
}

// MSLevel returns the MS level of a scan
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, ErrInvalidScanIndex
	}
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == cvMSLevel {
			msLevel, err := strconv.Atoi(cvParam.Value)
			return msLevel, err
		}
	}
	return 1, nil // If nothing else, guess it's MS1
}

// traverseScan fills f.index2id and f.id2Index to make scans accessible
// by id
func (f *MzML) traverseScan() error {
	f.index2id = make([]string, f.NumSpecs())
	f.id2Index = make(map[string]int, f.NumSpecs())
	for i, spec := range f.content.Run.SpectrumList.Spectrum {
		if i != spec.Index {
			return fmt.Errorf("%w: spectrum %s has index %d at position %d",
				ErrInvalidScanIndex, spec.ID, spec.Index, i)
		}
		f.index2id[i] = spec.ID
		f.id2Index[spec.ID] = i
	}
	return nil
}

// ScanIndex converts a scan identifier (the string used in the mzML file)
// into an index that is used to access the scans
func (f *MzML) ScanIndex(scanID string) (int, error) {
	if index, ok := f.id2Index[scanID]; ok {
		return index, nil
	}
	return 0, ErrInvalidScanID
}

// ScanID converts a scan index (used to access the scan data) into a scan id
// (used in the mzML file)
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex >= 0 && scanIndex < f.NumSpecs() {
		return f.index2id[scanIndex], nil
	}
	return "", ErrInvalidScanIndex
}

// Software returns the id and version of every software in the software list
func (f *MzML) Software() [][2]string {
	if f.content.SoftwareList == nil {
		return nil
	}
	var sw [][2]string
	for _, s := range f.content.SoftwareList.Software {
		sw = append(sw, [2]string{s.ID, s.Version})
	}
	return sw
}
