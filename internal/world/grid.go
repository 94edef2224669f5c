package world

import (
	"math"
	"slices"
)

// GridCellSize is at least the widest collision distance in the arena
// (big asteroid plus player), so a 3x3 neighbourhood of cells covers every
// possible contact.
const GridCellSize = 40.0

type cellKey struct {
	cx, cy int32
}

func toCell(v float64) int32 {
	return int32(math.Floor(v / GridCellSize))
}

// Grid buckets entity ids by cell for broadphase collision checks. Rebuilt
// every step from the game loop; no locks.
type Grid struct {
	cells map[cellKey][]uint32
}

func NewGrid() *Grid {
	return &Grid{cells: make(map[cellKey][]uint32)}
}

func (g *Grid) Reset() {
	clear(g.cells)
}

func (g *Grid) Add(id uint32, pos Vec2) {
	k := cellKey{toCell(pos.X), toCell(pos.Y)}
	g.cells[k] = append(g.cells[k], id)
}

// Nearby returns ids in the 3x3 neighbourhood around pos, ascending.
// Caller does the exact distance check.
func (g *Grid) Nearby(pos Vec2) []uint32 {
	cx, cy := toCell(pos.X), toCell(pos.Y)
	var out []uint32
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			out = append(out, g.cells[cellKey{cx + dx, cy + dy}]...)
		}
	}
	slices.Sort(out)
	return out
}

// AsteroidGrid indexes the world's current asteroids.
func (w *World) AsteroidGrid(g *Grid) *Grid {
	if g == nil {
		g = NewGrid()
	}
	g.Reset()
	for id, a := range w.Asteroids {
		g.Add(id, a.Pos)
	}
	return g
}
