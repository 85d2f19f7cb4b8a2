package reveal

import (
	"math"

	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

// MaxGridSize bounds the grid. A preview grid never needs more than 64×64
// cells, and the grid endpoint is unauthenticated.
const MaxGridSize = 64

// Cell is a row/column position in a reveal grid.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CellAt maps a row-major index to its grid position.
func CellAt(idx, gridSize int) Cell {
	return Cell{Row: idx / gridSize, Col: idx % gridSize}
}

// State is the projection of a trust score onto a grid. It is recomputed on
// demand and never stored.
type State struct {
	GridSize int         `json:"grid_size"`
	Level    trust.Level `json:"level"`
	Fraction float64     `json:"fraction"`
	Revealed []int       `json:"revealed"`
}

// CountRevealed returns round(gridSize² × fraction), rounding half away from zero.
func CountRevealed(fraction float64, gridSize int) (int, error) {
	if gridSize < 1 || gridSize > MaxGridSize {
		return 0, sentinel.Invalid("grid_size", "must be within [1,%d], got %d", MaxGridSize, gridSize)
	}
	if math.IsNaN(fraction) || fraction < 0 || fraction > 1 {
		return 0, sentinel.Invalid("fraction", "must be within [0,1], got %v", fraction)
	}
	total := gridSize * gridSize
	return int(math.Round(float64(total) * fraction)), nil
}

// RevealedCells selects which cells show the real image: the first N cells in
// row-major order. A cell revealed at one fraction stays revealed at every
// larger fraction for the same grid.
func RevealedCells(fraction float64, gridSize int) ([]int, error) {
	n, err := CountRevealed(fraction, gridSize)
	if err != nil {
		return nil, err
	}
	return firstN(n), nil
}

func firstN(n int) []int {
	cells := make([]int, n)
	for i := range cells {
		cells[i] = i
	}
	return cells
}

// StateForScore composes the level policy with the grid selection.
func StateForScore(score, gridSize int) (State, error) {
	if err := trust.ValidateScore(score); err != nil {
		return State{}, err
	}
	level := trust.LevelFromScore(score)
	cells, err := RevealedCells(level.Fraction(), gridSize)
	if err != nil {
		return State{}, err
	}
	return State{
		GridSize: gridSize,
		Level:    level,
		Fraction: level.Fraction(),
		Revealed: cells,
	}, nil
}

// IsRevealed reports whether the cell at idx shows the real image.
func (s State) IsRevealed(idx int) bool {
	// Revealed is always a row-major prefix.
	return idx >= 0 && idx < len(s.Revealed)
}

// Cell maps a row-major index of this grid to its position.
func (s State) Cell(idx int) Cell {
	return CellAt(idx, s.GridSize)
}

// Mask returns the grid as rows of revealed flags.
func (s State) Mask() [][]bool {
	rows := make([][]bool, s.GridSize)
	for r := range rows {
		rows[r] = make([]bool, s.GridSize)
	}
	for idx := 0; idx < s.GridSize*s.GridSize; idx++ {
		c := s.Cell(idx)
		rows[c.Row][c.Col] = s.IsRevealed(idx)
	}
	return rows
}
