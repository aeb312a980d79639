// Package store writes detected features to disk: an indented JSON
// document that can be read back, and an SQLite database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/feature"
	"github.com/524D/mzfeat/internal/finder"
)

// FormatVersion is the version of the JSON document layout
const FormatVersion = 1

// ErrFormatVersion means a JSON document of an unknown layout version
var ErrFormatVersion = errors.New("store: unsupported format version")

// Document is the JSON output of a detection run
type Document struct {
	// Version of the document layout, used when loading documents
	// written by other versions of the software
	FormatVersion  int
	Program        string
	ProgramVersion string
	Source         string         // mzML file the features were detected in
	Params         *config.Config `json:",omitempty"`
	Stats          finder.SweepStats
	Features       []feature.Feature
}

// WriteJSON writes doc to path. A zero FormatVersion is set to the
// current one.
func WriteJSON(path string, doc Document) error {
	if doc.FormatVersion == 0 {
		doc.FormatVersion = FormatVersion
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	e := json.NewEncoder(f)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	if err := e.Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}

// ReadJSON reads a document written by WriteJSON
func ReadJSON(path string) (Document, error) {
	var doc Document
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	d := json.NewDecoder(f)
	if err := d.Decode(&doc); err != nil {
		return doc, fmt.Errorf("decoding %s: %w", path, err)
	}
	if doc.FormatVersion != FormatVersion {
		return doc, fmt.Errorf("%w %d in %s", ErrFormatVersion, doc.FormatVersion, path)
	}
	return doc, nil
}
