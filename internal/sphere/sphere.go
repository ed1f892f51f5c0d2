// Package sphere places portal cells on the unit sphere and allocates them
// to joining players, reusing a player's previous cell when it presents a
// still-known resume token.
package sphere

import (
	"math"
	"math/rand"

	"github.com/andersfylling/pinball-deepspace/internal/vec3"
)

// goldenAngle is PI * (3 - sqrt(5)) radians, pre-computed since sqrt isn't
// usable in a const expression.
const goldenAngle = 2.399963229728653

// FibonacciSphere generates m evenly-distributed unit vectors on the sphere
// using a Fibonacci spiral.
func FibonacciSphere(m int) []vec3.Vec3 {
	points := make([]vec3.Vec3, m)
	for i := 0; i < m; i++ {
		y := 1.0 - (2.0*(float64(i)+0.5))/float64(m)
		r := math.Sqrt(1.0 - y*y)
		phi := float64(i) * goldenAngle

		x := math.Cos(phi) * r
		z := math.Sin(phi) * r

		points[i] = vec3.Normalize(vec3.New(x, y, z))
	}
	return points
}

// PortalPlacement manages cell allocation for players on the sphere.
type PortalPlacement struct {
	cellCenters []vec3.Vec3
	freeCells   []int
	tokenToCell map[string]int
}

// NewPortalPlacement builds a placement table of cellCount Fibonacci-sphere
// cells, with the free list shuffled using rng.
func NewPortalPlacement(cellCount int, rng *rand.Rand) *PortalPlacement {
	cellCenters := FibonacciSphere(cellCount)

	freeCells := make([]int, cellCount)
	for i := range freeCells {
		freeCells[i] = i
	}
	rng.Shuffle(len(freeCells), func(i, j int) {
		freeCells[i], freeCells[j] = freeCells[j], freeCells[i]
	})

	return &PortalPlacement{
		cellCenters: cellCenters,
		freeCells:   freeCells,
		tokenToCell: make(map[string]int),
	}
}

// Allocate reserves a cell for a player. When resumeToken names a
// previously allocated cell that is still free, that exact cell is
// reassigned; otherwise an arbitrary free cell is popped off the shuffled
// list. Returns (cellIndex, true), or (0, false) when no cells remain.
func (p *PortalPlacement) Allocate(resumeToken string) (int, bool) {
	if resumeToken != "" {
		if prevCell, ok := p.tokenToCell[resumeToken]; ok {
			for idx, c := range p.freeCells {
				if c == prevCell {
					p.swapRemove(idx)
					return prevCell, true
				}
			}
		}
	}

	if len(p.freeCells) == 0 {
		return 0, false
	}
	last := len(p.freeCells) - 1
	cellIndex := p.freeCells[last]
	p.freeCells = p.freeCells[:last]

	if resumeToken != "" {
		p.tokenToCell[resumeToken] = cellIndex
	}

	return cellIndex, true
}

func (p *PortalPlacement) swapRemove(idx int) {
	last := len(p.freeCells) - 1
	p.freeCells[idx] = p.freeCells[last]
	p.freeCells = p.freeCells[:last]
}

// Release returns cellIndex to the free pool, if it isn't already there.
func (p *PortalPlacement) Release(cellIndex int) {
	for _, c := range p.freeCells {
		if c == cellIndex {
			return
		}
	}
	p.freeCells = append(p.freeCells, cellIndex)
}

// PortalPos returns the sphere position of a cell.
func (p *PortalPlacement) PortalPos(cellIndex int) vec3.Vec3 {
	return p.cellCenters[cellIndex]
}

// AvailableCount returns the number of unallocated cells.
func (p *PortalPlacement) AvailableCount() int {
	return len(p.freeCells)
}

// TotalCount returns the total number of cells.
func (p *PortalPlacement) TotalCount() int {
	return len(p.cellCenters)
}
