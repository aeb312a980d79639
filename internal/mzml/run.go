package mzml

import (
	"fmt"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/524D/mzfeat/internal/spectrum"
)

// DefaultCacheSize is the number of decoded spectra kept by a Run
const DefaultCacheSize = 2048

// Run serves the spectra of a parsed mzML file as a spectrum.Provider.
// Scan numbers are scan indices. Decoded peak lists are kept in an LRU
// cache; a Run is safe for concurrent use.
type Run struct {
	file   *MzML
	levels map[int][]int
	rts    []float64
	cache  *lru.Cache[int, []spectrum.Peak]
	logger *slog.Logger
}

// NewRun indexes the MS levels and retention times of f. A cacheSize
// <= 0 selects DefaultCacheSize.
func NewRun(f *MzML, cacheSize int, logger *slog.Logger) (*Run, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[int, []spectrum.Peak](cacheSize)
	if err != nil {
		return nil, err
	}
	r := &Run{
		file:   f,
		levels: make(map[int][]int),
		rts:    make([]float64, f.NumSpecs()),
		cache:  cache,
		logger: logger,
	}
	for i := 0; i < f.NumSpecs(); i++ {
		level, err := f.MSLevel(i)
		if err != nil {
			return nil, fmt.Errorf("scan %d: ms level: %w", i, err)
		}
		rt, err := f.RetentionTime(i)
		if err != nil {
			return nil, fmt.Errorf("scan %d: retention time: %w", i, err)
		}
		r.levels[level] = append(r.levels[level], i)
		r.rts[i] = rt
	}
	logger.Debug("mzML run indexed", "spectra", f.NumSpecs(), "ms1", len(r.levels[1]))
	return r, nil
}

// OpenRun reads the mzML file at path and returns it as a Run
func OpenRun(path string, cacheSize int, logger *slog.Logger) (*Run, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return NewRun(f, cacheSize, logger)
}

// File returns the underlying mzML document
func (r *Run) File() *MzML {
	return r.file
}

// SpectrumPeaks implements spectrum.Provider. The returned slice is
// shared with the cache and must not be modified.
func (r *Run) SpectrumPeaks(scanNum int) ([]spectrum.Peak, error) {
	if scanNum < 0 || scanNum >= r.file.NumSpecs() {
		return nil, fmt.Errorf("%w: %d", spectrum.ErrInvalidScanNum, scanNum)
	}
	if p, ok := r.cache.Get(scanNum); ok {
		return p, nil
	}
	p, err := r.file.ReadScan(scanNum)
	if err != nil {
		return nil, err
	}
	if !spectrum.PeaksSorted(p) {
		spectrum.SortPeaks(p)
	}
	r.cache.Add(scanNum, p)
	return p, nil
}

// ScanNumbersOfLevel implements spectrum.Provider
func (r *Run) ScanNumbersOfLevel(level int) []int {
	nums := make([]int, len(r.levels[level]))
	copy(nums, r.levels[level])
	sort.Ints(nums)
	return nums
}

// ElutionTime implements spectrum.Provider. Spectra without retention
// time give -1.
func (r *Run) ElutionTime(scanNum int) (float64, error) {
	if scanNum < 0 || scanNum >= len(r.rts) {
		return 0, fmt.Errorf("%w: %d", spectrum.ErrInvalidScanNum, scanNum)
	}
	return r.rts[scanNum], nil
}

// ProfileScans returns the number of spectra of level that are not
// flagged as centroided
func (r *Run) ProfileScans(level int) int {
	n := 0
	for _, i := range r.levels[level] {
		if c, err := r.file.Centroid(i); err == nil && !c {
			n++
		}
	}
	return n
}
