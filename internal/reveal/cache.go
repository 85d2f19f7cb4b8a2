package reveal

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

type gridKey struct {
	count    int
	gridSize int
}

// GridCache memoizes cell selections per (count, gridSize). Selections are a
// pure function of their key, so a cached entry never goes stale. Hits return
// the cached slice itself, so repeated grid renders allocate nothing.
type GridCache struct {
	cells  *lru.Cache[gridKey, []int]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewGridCache(size int) (*GridCache, error) {
	c, err := lru.New[gridKey, []int](size)
	if err != nil {
		return nil, fmt.Errorf("create grid cache: %w", err)
	}
	return &GridCache{cells: c}, nil
}

// RevealedCells behaves like the package-level RevealedCells. The returned
// slice is shared with other callers and must not be modified.
func (g *GridCache) RevealedCells(fraction float64, gridSize int) ([]int, error) {
	n, err := CountRevealed(fraction, gridSize)
	if err != nil {
		return nil, err
	}
	key := gridKey{count: n, gridSize: gridSize}
	if cells, ok := g.cells.Get(key); ok {
		g.hits.Add(1)
		return cells, nil
	}
	g.misses.Add(1)
	cells := firstN(n)
	g.cells.Add(key, cells)
	return cells, nil
}

// StateForScore is the cached counterpart of StateForScore.
func (g *GridCache) StateForScore(score, gridSize int) (State, error) {
	if err := trust.ValidateScore(score); err != nil {
		return State{}, err
	}
	level := trust.LevelFromScore(score)
	cells, err := g.RevealedCells(level.Fraction(), gridSize)
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

// Stats returns cumulative hit and miss counts.
func (g *GridCache) Stats() (hits, misses uint64) {
	return g.hits.Load(), g.misses.Load()
}

func (g *GridCache) Len() int {
	return g.cells.Len()
}
