package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/524D/mzfeat/internal/spectrum"
)

// New returns an empty mzML document for run runID. Spectra are added
// with AddSpectrum.
func New(runID string) *MzML {
	f := &MzML{id2Index: make(map[string]int)}
	f.content.XMLName = xml.Name{Space: "http://psi.hupo.org/ms/mzml", Local: "mzML"}
	f.content.Version = "1.1.0"
	f.content.Run.ID = runID
	return f
}

// AppendSoftwareInfo adds info to the SoftwareList tag of the mzML file
func (f *MzML) AppendSoftwareInfo(id string, version string) {
	if f.content.SoftwareList == nil {
		f.content.SoftwareList = &softwareList{}
	}
	f.content.SoftwareList.Count++
	f.content.SoftwareList.Software = append(f.content.SoftwareList.Software,
		software{ID: id, Version: version})
}

// AddSpectrum appends a spectrum with MS level msLevel and retention time
// rt (seconds) and returns its scan index. The m/z array is stored as
// 64-bit floats, intensities as 32-bit floats, both zlib compressed.
func (f *MzML) AddSpectrum(msLevel int, rt float64, p []spectrum.Peak, centroid bool) (int, error) {
	index := f.NumSpecs()
	id := "scan=" + strconv.Itoa(index+1)

	mode := CVParam{Accession: cvProfile, Name: "profile spectrum"}
	if centroid {
		mode = CVParam{Accession: cvCentroid, Name: "centroid spectrum"}
	}
	spec := xmlSpectrum{
		Index:              index,
		ID:                 id,
		DefaultArrayLength: int64(len(p)),
		CvPar: []CVParam{
			{Accession: cvMSLevel, Name: "ms level", Value: strconv.Itoa(msLevel)},
			mode,
		},
		ScanList: scanList{
			Count: 1,
			Scan: []scan{{CvPar: []CVParam{{
				Accession:     cvScanStartTime,
				Name:          "scan start time",
				Value:         strconv.FormatFloat(rt, 'f', -1, 64),
				UnitCvRef:     "UO",
				UnitAccession: unitSecond,
				UnitName:      "second",
			}}}},
		},
	}
	for _, arr := range []struct {
		mz     bool
		bits64 bool
		cv     CVParam
	}{
		{true, true, CVParam{Accession: cvMzArray, Name: "m/z array"}},
		{false, false, CVParam{Accession: cvIntensityArray, Name: "intensity array"}},
	} {
		b64, err := encodeBinary(p, true, arr.bits64, arr.mz)
		if err != nil {
			return 0, err
		}
		bitsCV := CVParam{Accession: cvFloat32, Name: "32-bit float"}
		if arr.bits64 {
			bitsCV = CVParam{Accession: cvFloat64, Name: "64-bit float"}
		}
		spec.BinaryDataArrayList.BinaryDataArray = append(spec.BinaryDataArrayList.BinaryDataArray,
			binaryDataArray{
				EncodedLength: len(b64),
				ArrayLength:   len(p),
				CvPar:         []CVParam{bitsCV, {Accession: cvZlib, Name: "zlib compression"}, arr.cv},
				Binary:        b64,
			})
	}
	spec.BinaryDataArrayList.Count = len(spec.BinaryDataArrayList.BinaryDataArray)

	sl := &f.content.Run.SpectrumList
	sl.Spectrum = append(sl.Spectrum, spec)
	sl.Count = len(sl.Spectrum)
	f.index2id = append(f.index2id, id)
	f.id2Index[id] = index
	return index, nil
}

// Write writes the document as mzML
func (f *MzML) Write(writer io.Writer) error {
	if _, err := io.WriteString(writer, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(writer)
	enc.Indent(``, `  `)
	if err := enc.Encode(&f.content); err != nil {
		return err
	}
	_, err := io.WriteString(writer, "\n")
	return err
}

// WriteFile writes the document to path
func (f *MzML) WriteFile(path string) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = f.Write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func encodeBinary(p []spectrum.Peak, zlibCompression bool, bits64 bool, mzArray bool) (
	string, error) {

	var raw []byte

	value := func(peak spectrum.Peak) float64 {
		if mzArray {
			return peak.Mz
		}
		return peak.Intens
	}
	if bits64 {
		raw = make([]byte, len(p)*8)
		for i, peak := range p {
			binary.LittleEndian.PutUint64(raw[(8*i):], math.Float64bits(value(peak)))
		}
	} else {
		raw = make([]byte, len(p)*4)
		for i, peak := range p {
			binary.LittleEndian.PutUint32(raw[(4*i):], math.Float32bits(float32(value(peak))))
		}
	}
	if zlibCompression {
		var b bytes.Buffer
		z := zlib.NewWriter(&b)
		if _, err := z.Write(raw); err != nil {
			return "", err
		}
		// zlib writer must explicitly be closed here, otherwise result is invalid
		if err := z.Close(); err != nil {
			return "", err
		}
		raw = b.Bytes()
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
