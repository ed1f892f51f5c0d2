// Package game owns the player table and wires the sphere, deep-space and
// bot subsystems into a single per-process session.
package game

import (
	"math"

	"github.com/andersfylling/pinball-deepspace/internal/vec3"
	"github.com/lucasb-eyer/go-colorful"
)

// Player is a connected portal on the sphere.
type Player struct {
	ID            uint32
	CellIndex     uint32
	PortalPos     vec3.Vec3
	Color         uint32
	Paused        bool
	BallsProduced uint32
	IsBot         bool
}

// ColorFromID derives a stable display color from a player ID using a
// golden-angle hue distribution so adjacent IDs get visually distinct hues.
func ColorFromID(id uint32) uint32 {
	hue := float64((id * 137) % 360)
	c := colorful.Hsv(hue, 0.55, 0.95)
	r := uint32(math.Round(c.R * 255))
	g := uint32(math.Round(c.G * 255))
	b := uint32(math.Round(c.B * 255))
	return (r << 16) | (g << 8) | b
}
