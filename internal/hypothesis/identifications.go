package hypothesis

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"

	"github.com/524D/mzfeat/internal/config"
	"github.com/524D/mzfeat/internal/mzidentml"
)

// ErrInvalidAminoAcid is returned for a peptide with an unknown residue
var ErrInvalidAminoAcid = errors.New("invalid amino acid")

const massH2O = float64(18.0105647)

// Masses of amino acids (minus H2O)
var aaMass = map[rune]float64{
	'A': 71.0371138,
	'C': 103.0091848,
	'D': 115.0269430,
	'E': 129.0425931,
	'F': 147.0684139,
	'G': 57.0214637,
	'H': 137.0589119,
	'I': 113.0840640,
	'K': 128.0949630,
	'L': 113.0840640,
	'M': 131.0404849,
	'N': 114.0429274,
	'P': 97.0527638,
	'O': 237.1477269, // Pyrrolysine
	'Q': 128.0585775,
	'R': 156.1011110,
	'S': 87.0320284,
	'T': 101.0476785,
	'U': 144.9595902, // Selenocysteine
	'V': 99.0684139,
	'W': 186.0793129,
	'Y': 163.0633285,
}

// PepMass computes the monoisotopic mass of an unmodified peptide
func PepMass(pepSeq string) (float64, error) {
	m := massH2O
	for _, aa := range pepSeq {
		aam, ok := aaMass[aa]
		if !ok {
			return 0, fmt.Errorf("%w %q in %s", ErrInvalidAminoAcid, aa, pepSeq)
		}
		m += aam
	}
	return m, nil
}

type scoreRange struct {
	minScore float64 // Minimum score to accept
	maxScore float64 // Maximum score to accept
	priority int     // Priority of the score, lowest is best
}

// ScoreFilter selects identifications by score. Keys are CV accessions or
// score names.
type ScoreFilter map[string]scoreRange

var scoreFilterRe = regexp.MustCompile(`([^\(]+)\(([^\)]*)\)`)

// ParseScoreFilter parses a filter like "MS:1002257(0.0:1e-2)MS:1002466(0.99:)".
// When several scores are present in an identification, the one listed
// first in the filter is used.
func ParseScoreFilter(s string) (ScoreFilter, error) {
	filt := make(ScoreFilter)
	for n, m := range scoreFilterRe.FindAllStringSubmatch(s, -1) {
		name, rangeStr := m[1], m[2]
		if _, ok := filt[name]; ok {
			return nil, fmt.Errorf("score %s defined more than once", name)
		}
		minScore, maxScore, err := config.ParseFloat64Range(rangeStr, -math.MaxFloat64, math.MaxFloat64)
		if err != nil {
			return nil, fmt.Errorf("invalid range for score %s: %w", name, err)
		}
		filt[name] = scoreRange{minScore: minScore, maxScore: maxScore, priority: n}
	}
	return filt, nil
}

// accepts reports whether the highest priority score of ident that is in
// the filter lies within its range
func (f ScoreFilter) accepts(ident mzidentml.Identification) (bool, error) {
	ok := false
	curPrio := math.MaxInt32
	for _, cv := range ident.Cv {
		filt, found := f[cv.Accession]
		if !found {
			filt, found = f[cv.Name]
		}
		if !found || filt.priority >= curPrio {
			continue
		}
		score, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return false, fmt.Errorf("invalid score value %s", cv.Value)
		}
		curPrio = filt.priority
		ok = score >= filt.minScore && score <= filt.maxScore
	}
	return ok, nil
}

// FromIdentifications returns a hypothesis for every identified peptide
// that passes the score filter. The retention time window of each
// hypothesis is the identification time plus [rtLow, rtUp]. Peptides of
// the same mass are merged into one hypothesis. Identifications whose
// peptide mass cannot be computed are skipped.
func FromIdentifications(m *mzidentml.MzIdentML, filt ScoreFilter, rtLow, rtUp float64, logger *slog.Logger) ([]Hypothesis, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hyps := make([]Hypothesis, 0, m.NumIdents())
	for i := 0; i < m.NumIdents(); i++ {
		ident, err := m.Ident(i)
		if err != nil {
			return nil, err
		}
		ok, err := filt.accepts(ident)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		mass, err := PepMass(ident.PepSeq)
		if err != nil {
			logger.Debug("skipping identification", "peptide", ident.PepID, "err", err)
			continue
		}
		h := Hypothesis{Mass: mass + ident.ModMass, Name: ident.PepID}
		if ident.RetentionTime >= 0 {
			h.MinRT = ident.RetentionTime + rtLow
			h.MaxRT = ident.RetentionTime + rtUp
		}
		hyps = append(hyps, h)
	}
	if len(hyps) == 0 {
		logger.Warn("no identifications pass the score filter. Is the specified score filter applicable for this file?")
	}
	return merge(hyps), nil
}
