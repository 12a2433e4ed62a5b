// Package spatial provides cache-efficient spatial data structures used by
// the arena's tick pipeline for neighbor queries: same-owner push-out, the
// eating dominance check, merge-pair detection, and bot target acquisition.
//
// Structures use preallocated slices with integer entity ids (not pointers)
// to minimize GC pressure and maximize cache locality.
package spatial

import "math"

// Grid provides O(1) average spatial queries via fixed-size cells.
//
// Cell size should equal (or slightly exceed) the largest query radius used
// against it in a given tick. The arena uses one grid per entity kind
// (cells, pellets) rebuilt fresh every tick, exactly as the teacher's
// engine rebuilds its spatial grid once per tick before running physics.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col]).
type Grid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]int64
	scratch     []int64
	maxEntities int
}

// NewGrid creates a grid for the given world bounds. maxEntities sizes the
// initial per-cell capacity to avoid reallocation during a typical tick.
func NewGrid(worldWidth, worldHeight, cellSize float64, maxEntities int) *Grid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]int64, cols*rows)
	avgPerCell := maxEntities / len(cells)
	if avgPerCell < 4 {
		avgPerCell = 4
	}
	for i := range cells {
		cells[i] = make([]int64, 0, avgPerCell)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]int64, 0, 64),
		maxEntities: maxEntities,
	}
}

// Clear resets all cells without deallocating underlying memory. O(cells),
// not O(entities).
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an entity id at position (x, y). O(1).
func (g *Grid) Insert(entityID int64, x, y float64) {
	idx := g.cellIndex(x, y)
	g.cells[idx] = append(g.cells[idx], entityID)
}

func (g *Grid) cellIndex(x, y float64) int {
	col := int(x * g.invCellSize)
	row := int(y * g.invCellSize)
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
	return row*g.cols + col
}

// QueryRadius returns candidate entity ids that may lie within radius of
// (cx, cy). The returned slice is reused across calls — copy it if you need
// it to outlive the next QueryRadius call. Candidates are over-inclusive by
// cell granularity; callers must apply an exact distance check.
func (g *Grid) QueryRadius(cx, cy, radius float64) []int64 {
	g.scratch = g.scratch[:0]

	minCol := int((cx - radius) * g.invCellSize)
	maxCol := int((cx + radius) * g.invCellSize)
	minRow := int((cy - radius) * g.invCellSize)
	maxRow := int((cy + radius) * g.invCellSize)

	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= g.cols {
		maxCol = g.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= g.rows {
		maxRow = g.rows - 1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.scratch = append(g.scratch, g.cells[idx]...)
		}
	}
	return g.scratch
}

// Stats reports grid occupancy, useful for tuning cell size.
func (g *Grid) Stats() GridStats {
	var totalEntities, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		count := len(cell)
		totalEntities += count
		if count > maxInCell {
			maxInCell = count
		}
		if count > 0 {
			nonEmpty++
		}
	}
	avg := 0.0
	if nonEmpty > 0 {
		avg = float64(totalEntities) / float64(nonEmpty)
	}
	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntities:  totalEntities,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avg,
	}
}

// GridStats contains grid occupancy statistics for debugging.
type GridStats struct {
	TotalCells     int
	NonEmptyCells  int
	TotalEntities  int
	MaxInCell      int
	AvgPerNonEmpty float64
}
