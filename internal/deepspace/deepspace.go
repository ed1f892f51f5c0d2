// Package deepspace simulates balls drifting along great circles on the
// unit sphere between players' portals: per-tick advance, capture detection
// against every unpaused portal, and smooth reroute transitions toward a
// newly chosen target portal.
package deepspace

import (
	"math"
	"math/rand"

	"github.com/andersfylling/pinball-deepspace/internal/config"
	"github.com/andersfylling/pinball-deepspace/internal/game"
	"github.com/andersfylling/pinball-deepspace/internal/vec3"
)

// rerouteTransitionDuration is the nominal duration, in seconds, of a
// smooth reroute transition.
const rerouteTransitionDuration = 4.0

// SpaceBall3D is a ball drifting on the sphere surface.
type SpaceBall3D struct {
	ID              uint32
	OwnerID         uint32
	Pos             vec3.Vec3
	Axis            vec3.Vec3
	Omega           float64
	Age             float64
	TimeSinceHit    float64
	RerouteCooldown float64

	// RerouteTargetAxis is the target axis of an in-progress reroute
	// transition, or nil when no transition is running.
	RerouteTargetAxis  *vec3.Vec3
	RerouteProgress    float64
	RerouteTargetOmega float64
}

// CaptureEvent reports a ball entering a portal: the minimal data needed to
// hand the ball back to the capturing player's local board.
type CaptureEvent struct {
	BallID      uint32
	PlayerID    uint32
	BallOwnerID uint32
	BallColor   uint32
	Vx          float64
	Vy          float64
}

// SphereDeepSpace is the tick-driven ball simulation.
type SphereDeepSpace struct {
	cfg            config.DeepSpaceConfig
	cosPortalAlpha float64
	balls          map[uint32]*SpaceBall3D
	players        []game.Player
	nextBallID     uint32
	captureSpeed   float64
}

// New builds a simulation with the given physics configuration. captureSpeed
// is the 2-D speed (m/s) a captured ball re-enters the local board at.
func New(cfg config.DeepSpaceConfig, captureSpeed float64) *SphereDeepSpace {
	return &SphereDeepSpace{
		cfg:            cfg,
		cosPortalAlpha: math.Cos(cfg.PortalAlpha),
		balls:          make(map[uint32]*SpaceBall3D),
		nextBallID:     1,
		captureSpeed:   captureSpeed,
	}
}

// SetPlayers replaces the player roster consulted for capture/reroute
// targets.
func (s *SphereDeepSpace) SetPlayers(players []game.Player) {
	s.players = players
}

// AddBall introduces a ball escaping from ownerID's portal with local 2-D
// velocity (vx, vy), returning its assigned ID.
func (s *SphereDeepSpace) AddBall(ownerID uint32, portalPos vec3.Vec3, vx, vy float64, rng *rand.Rand) uint32 {
	id := s.nextBallID
	s.nextBallID++

	e1, e2 := vec3.BuildTangentBasis(portalPos)
	tangent := vec3.Map2DToTangent(vx, vy, e1, e2)

	crossVec := vec3.Cross(portalPos, tangent)
	crossLen := vec3.Length(crossVec)

	var axis vec3.Vec3
	if crossLen < 0.01 {
		axis = vec3.ArbitraryOrthogonal(portalPos)
	} else {
		axis = vec3.Scale(crossVec, 1/crossLen)
	}

	omega := s.cfg.OmegaMin + rng.Float64()*(s.cfg.OmegaMax-s.cfg.OmegaMin)

	ball := &SpaceBall3D{
		ID:      id,
		OwnerID: ownerID,
		Pos:     vec3.Normalize(portalPos),
		Axis:    axis,
		Omega:   omega,
	}

	s.balls[id] = ball
	return id
}

// GetBalls returns every ball currently in deep space, in no particular
// order.
func (s *SphereDeepSpace) GetBalls() []*SpaceBall3D {
	out := make([]*SpaceBall3D, 0, len(s.balls))
	for _, b := range s.balls {
		out = append(out, b)
	}
	return out
}

// GetBall looks up a single ball by ID.
func (s *SphereDeepSpace) GetBall(id uint32) (*SpaceBall3D, bool) {
	b, ok := s.balls[id]
	return b, ok
}

// BallCount returns the number of balls currently in deep space.
func (s *SphereDeepSpace) BallCount() int {
	return len(s.balls)
}

// Tick advances every ball by dt seconds, returning the captures that
// occurred this tick. Captured balls are removed from the simulation.
func (s *SphereDeepSpace) Tick(dt float64, rng *rand.Rand) []CaptureEvent {
	var captures []CaptureEvent

	for _, ball := range s.balls {
		vec3.RotateNormalizeInPlace(&ball.Pos, ball.Axis, ball.Omega*dt)

		ball.Age += dt
		ball.TimeSinceHit += dt
		ball.RerouteCooldown = math.Max(ball.RerouteCooldown-dt, 0)

		captured := false
		if ball.Age >= s.cfg.MinAgeForCapture {
			var bestPlayer *game.Player
			bestDot := math.Inf(-1)
			for i := range s.players {
				p := &s.players[i]
				if p.Paused {
					continue
				}
				if p.IsBot && p.ID == ball.OwnerID {
					continue
				}
				d := vec3.Dot(ball.Pos, p.PortalPos)
				if d >= s.cosPortalAlpha && d > bestDot {
					bestDot = d
					bestPlayer = p
				}
			}
			if bestPlayer != nil {
				velDir := vec3.VelocityDirection(ball.Pos, ball.Axis, ball.Omega)
				e1, e2 := vec3.BuildTangentBasis(bestPlayer.PortalPos)
				dx, dy := vec3.MapTangentTo2D(velDir, e1, e2)
				length := math.Sqrt(dx*dx + dy*dy)

				var vx, vy float64
				if length < 0.01 {
					vx, vy = 0, s.captureSpeed
				} else {
					vx = (dx / length) * s.captureSpeed
					vy = math.Abs(dy/length) * s.captureSpeed
				}

				ballColor := uint32(0xffffff)
				for i := range s.players {
					if s.players[i].ID == ball.OwnerID {
						ballColor = s.players[i].Color
						break
					}
				}

				captures = append(captures, CaptureEvent{
					BallID:      ball.ID,
					PlayerID:    bestPlayer.ID,
					BallOwnerID: ball.OwnerID,
					BallColor:   ballColor,
					Vx:          vx,
					Vy:          vy,
				})
				captured = true
			}
		}

		if ball.RerouteTargetAxis != nil {
			ball.RerouteProgress += dt / rerouteTransitionDuration

			if ball.RerouteProgress >= 1.0 {
				ball.Axis = *ball.RerouteTargetAxis
				ball.Omega = ball.RerouteTargetOmega
				ball.RerouteTargetAxis = nil
				ball.RerouteProgress = 0
				ball.RerouteTargetOmega = 0
			} else {
				t := ball.RerouteProgress
				smoothT := t * t * t * (t*(t*6-15) + 10)
				blend := smoothT * 0.03

				ball.Axis = vec3.Normalize(vec3.Slerp(ball.Axis, *ball.RerouteTargetAxis, blend))
				ball.Omega += (ball.RerouteTargetOmega - ball.Omega) * blend
			}
		}

		if !captured && ball.RerouteTargetAxis == nil &&
			ball.Age >= s.cfg.MinAgeForReroute &&
			ball.TimeSinceHit >= s.cfg.RerouteAfter &&
			ball.RerouteCooldown <= 0 &&
			len(s.players) > 0 {

			targetIdx := rng.Intn(len(s.players))
			targetPos := s.players[targetIdx].PortalPos

			dotPosTarget := vec3.Dot(ball.Pos, targetPos)
			if dotPosTarget > 0.99 {
				ball.RerouteCooldown = s.cfg.RerouteCooldown
			} else {
				crossVec := vec3.Cross(ball.Pos, targetPos)
				crossLen := vec3.Length(crossVec)

				var newAxis vec3.Vec3
				if crossLen < 0.01 {
					newAxis = vec3.ArbitraryOrthogonal(ball.Pos)
				} else {
					newAxis = vec3.Scale(crossVec, 1/crossLen)
				}

				delta := vec3.AngularDistance(ball.Pos, targetPos)
				arrival := s.cfg.RerouteArrivalTimeMin + rng.Float64()*(s.cfg.RerouteArrivalTimeMax-s.cfg.RerouteArrivalTimeMin)
				newOmega := clamp(delta/arrival, s.cfg.OmegaMin, s.cfg.OmegaMax)

				target := newAxis
				ball.RerouteTargetAxis = &target
				ball.RerouteTargetOmega = newOmega
				ball.RerouteProgress = 0

				ball.TimeSinceHit = 0
				ball.RerouteCooldown = s.cfg.RerouteCooldown
			}
		}
	}

	for _, cap := range captures {
		delete(s.balls, cap.BallID)
	}

	return captures
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
