// Package index builds immutable per-page spatial indices over text spans
// and answers point queries against them.
package index

import (
	"fmt"
	"math"
	"sort"

	"pdf-layout-server/internal/domain"
)

// DefaultResolution is the grid cell count per axis when none is configured.
const DefaultResolution = 32

// Grid is a coarse 2D bucket index over one page's text spans. It is built
// once from the span collection and read-only afterwards; rebuilding from
// the same spans yields an identical structure.
type Grid struct {
	spans  []domain.TextSpan
	bounds domain.BoundingBox

	cols, rows   int
	cellW, cellH float64
	// cells holds span indices per cell, row-major. A span appears in every
	// cell its bounding box overlaps.
	cells [][]int
}

// Build constructs a grid index from a page's spans. Spans with malformed
// bounding boxes fail construction with a permanent index-build error.
// A page with zero spans yields a valid empty index.
func Build(spans []domain.TextSpan, resolution int) (*Grid, error) {
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	for _, s := range spans {
		if !s.Box.Valid() {
			return nil, domain.NewIndexBuildError(
				fmt.Errorf("span %d has malformed bounding box (%.2f,%.2f)-(%.2f,%.2f)",
					s.Seq, s.Box.MinX, s.Box.MinY, s.Box.MaxX, s.Box.MaxY))
		}
	}

	ordered := make([]domain.TextSpan, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	g := &Grid{spans: ordered}
	if len(ordered) == 0 {
		return g, nil
	}

	bounds := ordered[0].Box
	for _, s := range ordered[1:] {
		bounds = bounds.Union(s.Box)
	}
	g.bounds = bounds
	g.cols = resolution
	g.rows = resolution
	g.cellW = (bounds.MaxX - bounds.MinX) / float64(g.cols)
	g.cellH = (bounds.MaxY - bounds.MinY) / float64(g.rows)
	// Degenerate pages (single point, single line) collapse to one cell on
	// the flat axis.
	if g.cellW <= 0 {
		g.cols = 1
		g.cellW = 1
	}
	if g.cellH <= 0 {
		g.rows = 1
		g.cellH = 1
	}

	g.cells = make([][]int, g.cols*g.rows)
	for i, s := range ordered {
		c0, r0 := g.cellAt(s.Box.MinX, s.Box.MinY)
		c1, r1 := g.cellAt(s.Box.MaxX, s.Box.MaxY)
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				idx := r*g.cols + c
				g.cells[idx] = append(g.cells[idx], i)
			}
		}
	}

	return g, nil
}

// Len returns the number of indexed spans.
func (g *Grid) Len() int {
	return len(g.spans)
}

// Bounds returns the union bounding box of all indexed spans.
func (g *Grid) Bounds() domain.BoundingBox {
	return g.bounds
}

// cellAt maps a point to cell coordinates, clamped to the grid.
func (g *Grid) cellAt(x, y float64) (col, row int) {
	col = int((x - g.bounds.MinX) / g.cellW)
	row = int((y - g.bounds.MinY) / g.cellH)
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}

// Query returns the span at the given page coordinate. Containment wins,
// with ties broken by smaller box area and then lower sequence index. When
// no span contains the point the nearest span by Euclidean distance is
// returned, ties again broken by sequence index. A page with no spans
// returns ErrNoTextOnPage.
func (g *Grid) Query(x, y float64) (domain.TextSpan, error) {
	if len(g.spans) == 0 {
		return domain.TextSpan{}, domain.ErrNoTextOnPage
	}

	// Containment candidates all overlap the cell holding the point, so a
	// single bucket scan suffices when the point is inside the page bounds.
	if g.bounds.Contains(x, y) {
		col, row := g.cellAt(x, y)
		best := -1
		for _, i := range g.cells[row*g.cols+col] {
			s := g.spans[i]
			if !s.Box.Contains(x, y) {
				continue
			}
			if best == -1 || betterContainment(s, g.spans[best]) {
				best = i
			}
		}
		if best >= 0 {
			return g.spans[best], nil
		}
	}

	return g.nearest(x, y), nil
}

func betterContainment(a, b domain.TextSpan) bool {
	if a.Box.Area() != b.Box.Area() {
		return a.Box.Area() < b.Box.Area()
	}
	return a.Seq < b.Seq
}

// nearest finds the span with minimum edge distance to the point by
// expanding rings of cells outward from the point's (clamped) cell. The
// search stops once no unvisited ring can hold a closer span.
func (g *Grid) nearest(x, y float64) domain.TextSpan {
	col, row := g.cellAt(x, y)

	best := -1
	bestDist := math.Inf(1)
	consider := func(i int) {
		s := g.spans[i]
		d := s.Box.DistanceTo(x, y)
		if d < bestDist || (d == bestDist && (best == -1 || s.Seq < g.spans[best].Seq)) {
			best = i
			bestDist = d
		}
	}

	maxRing := g.cols
	if g.rows > maxRing {
		maxRing = g.rows
	}
	for ring := 0; ring <= maxRing; ring++ {
		if best >= 0 && g.ringDistance(col, row, ring, x, y) > bestDist {
			break
		}
		for _, cell := range g.ringCells(col, row, ring) {
			for _, i := range g.cells[cell] {
				consider(i)
			}
		}
	}
	return g.spans[best]
}

// ringDistance is a lower bound on the distance from the point to any span
// whose box overlaps a cell in the given ring.
func (g *Grid) ringDistance(col, row, ring int, x, y float64) float64 {
	if ring == 0 {
		return 0
	}
	dx := math.Max(0, float64(ring-1)) * g.cellW
	dy := math.Max(0, float64(ring-1)) * g.cellH
	// Nearest point of the ring's inner boundary relative to the cell that
	// holds the query point.
	cx := g.bounds.MinX + float64(col)*g.cellW
	cy := g.bounds.MinY + float64(row)*g.cellH
	distX := math.Max(math.Max(cx-dx-x, 0), x-(cx+g.cellW+dx))
	distY := math.Max(math.Max(cy-dy-y, 0), y-(cy+g.cellH+dy))
	return math.Hypot(distX, distY)
}

// ringCells lists the cell indices of the square ring at the given radius
// around (col, row), clipped to the grid.
func (g *Grid) ringCells(col, row, ring int) []int {
	var out []int
	add := func(c, r int) {
		if c >= 0 && c < g.cols && r >= 0 && r < g.rows {
			out = append(out, r*g.cols+c)
		}
	}
	if ring == 0 {
		add(col, row)
		return out
	}
	for c := col - ring; c <= col+ring; c++ {
		add(c, row-ring)
		add(c, row+ring)
	}
	for r := row - ring + 1; r <= row+ring-1; r++ {
		add(col-ring, r)
		add(col+ring, r)
	}
	return out
}
