// Package cluster partitions the present cells of a signal grid into
// 8-connected clusters (flood fill connected-component labeling).
//
// Two present cells belong to the same cluster if and only if a path of
// present cells connects them, where each step moves at most one row and
// one column. Every present cell belongs to exactly one cluster.
package cluster

import (
	"sort"
)

// Grid is the read-only view of a signal matrix needed for segmentation
type Grid interface {
	Rows() int
	Cols() int
	Present(r, c int) bool
}

// Cell is a (row, column) position in a Grid. Row is the charge index,
// column the scan index.
type Cell struct {
	Row int
	Col int
}

// Cluster is a set of connected cells, listed in discovery order
type Cluster struct {
	Cells []Cell
}

// Size returns the number of cells
func (cl Cluster) Size() int {
	return len(cl.Cells)
}

// ColRange returns the lowest and highest column of the cluster.
// Both are -1 for an empty cluster.
func (cl Cluster) ColRange() (min, max int) {
	if len(cl.Cells) == 0 {
		return -1, -1
	}
	min, max = cl.Cells[0].Col, cl.Cells[0].Col
	for _, c := range cl.Cells[1:] {
		if c.Col < min {
			min = c.Col
		}
		if c.Col > max {
			max = c.Col
		}
	}
	return min, max
}

// RowRange returns the lowest and highest row of the cluster.
// Both are -1 for an empty cluster.
func (cl Cluster) RowRange() (min, max int) {
	if len(cl.Cells) == 0 {
		return -1, -1
	}
	min, max = cl.Cells[0].Row, cl.Cells[0].Row
	for _, c := range cl.Cells[1:] {
		if c.Row < min {
			min = c.Row
		}
		if c.Row > max {
			max = c.Row
		}
	}
	return min, max
}

// Rows returns the distinct rows of the cluster in ascending order
func (cl Cluster) Rows() []int {
	seen := make(map[int]bool)
	var rows []int
	for _, c := range cl.Cells {
		if !seen[c.Row] {
			seen[c.Row] = true
			rows = append(rows, c.Row)
		}
	}
	sort.Ints(rows)
	return rows
}

// Contains reports whether the cluster holds cell (r, c)
func (cl Cluster) Contains(r, c int) bool {
	for _, cell := range cl.Cells {
		if cell.Row == r && cell.Col == c {
			return true
		}
	}
	return false
}

// Eight-connected neighbour offsets as {row, col}
var conn8 = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}

// Segment returns the 8-connected clusters of the present cells of g,
// largest first. Clusters of equal size keep the row-major order of their
// first cell. A grid without present cells gives no clusters.
//
// Time: O(rows·cols·8). Memory: O(rows·cols) for the visited flags, which
// are local to the call.
func Segment(g Grid) []Cluster {
	rows, cols := g.Rows(), g.Cols()
	seen := make([]bool, rows*cols)
	var clusters []Cluster
	var queue []int

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i0 := r*cols + c
			if seen[i0] || !g.Present(r, c) {
				continue
			}
			// BFS from this cell
			seen[i0] = true
			queue = append(queue[:0], i0)
			var cells []Cell
			for qi := 0; qi < len(queue); qi++ {
				u := queue[qi]
				ur, uc := u/cols, u%cols
				cells = append(cells, Cell{Row: ur, Col: uc})
				for _, d := range conn8 {
					vr, vc := ur+d[0], uc+d[1]
					if vr < 0 || vr >= rows || vc < 0 || vc >= cols {
						continue
					}
					vi := vr*cols + vc
					if !seen[vi] && g.Present(vr, vc) {
						seen[vi] = true
						queue = append(queue, vi)
					}
				}
			}
			clusters = append(clusters, Cluster{Cells: cells})
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Cells) > len(clusters[j].Cells)
	})
	return clusters
}

// Filter returns the clusters with at least minSize cells, at most maxCount
// of them. maxCount < 1 means no limit. Order is preserved.
func Filter(clusters []Cluster, minSize int, maxCount int) []Cluster {
	var out []Cluster
	for _, cl := range clusters {
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		if cl.Size() >= minSize {
			out = append(out, cl)
		}
	}
	return out
}
