package spectrum

import (
	"sort"
	"sync"
)

// Memory is a Provider that keeps all spectra in memory.
// It is safe for concurrent use; spectra may be added while no search
// is running.
type Memory struct {
	mu     sync.RWMutex
	scans  map[int]memScan
	levels map[int][]int
}

type memScan struct {
	level int
	rt    float64
	peaks []Peak
}

// NewMemory returns an empty in-memory provider
func NewMemory() *Memory {
	return &Memory{
		scans:  make(map[int]memScan),
		levels: make(map[int][]int),
	}
}

// AddScan stores a scan. Peaks are copied and sorted by m/z.
// Adding a scan number twice replaces the earlier scan.
func (m *Memory) AddScan(scanNum int, level int, rt float64, peaks []Peak) {
	p := make([]Peak, len(peaks))
	copy(p, peaks)
	if !PeaksSorted(p) {
		SortPeaks(p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.scans[scanNum]; ok {
		m.levels[old.level] = removeInt(m.levels[old.level], scanNum)
	}
	m.scans[scanNum] = memScan{level: level, rt: rt, peaks: p}
	nums := append(m.levels[level], scanNum)
	sort.Ints(nums)
	m.levels[level] = nums
}

// SpectrumPeaks implements Provider. The returned slice must not be modified.
func (m *Memory) SpectrumPeaks(scanNum int) ([]Peak, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scans[scanNum]
	if !ok {
		return nil, ErrNoSpectrum
	}
	return s.peaks, nil
}

// ScanNumbersOfLevel implements Provider
func (m *Memory) ScanNumbersOfLevel(level int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nums := make([]int, len(m.levels[level]))
	copy(nums, m.levels[level])
	return nums
}

// ElutionTime implements Provider
func (m *Memory) ElutionTime(scanNum int) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scans[scanNum]
	if !ok {
		return 0, ErrInvalidScanNum
	}
	return s.rt, nil
}

func removeInt(s []int, v int) []int {
	k := 0
	for _, x := range s {
		if x != v {
			s[k] = x
			k++
		}
	}
	return s[:k]
}
