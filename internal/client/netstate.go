// Package client implements the network-facing half of the game client: the
// snapshot interpolation buffer that turns an irregular stream of server
// snapshots into a smooth, extrapolation-tolerant render position for every
// ball on the sphere.
package client

import (
	"math"

	"github.com/andersfylling/pinball-deepspace/internal/vec3"
)

const (
	maxSnapshotBuffer    = 8
	snapshotEpsilonSecs  = 1e-6
	interpolationDelay   = 0.2
	maxExtrapolationSecs = 0.2
	offsetSmoothUpAlpha  = 0.02
)

// BallSnapshot is one ball's state as carried by a single server snapshot.
type BallSnapshot struct {
	ID    uint32
	Pos   vec3.Vec3
	Axis  vec3.Vec3
	Omega float64
}

// snapshot is one received space_state frame, time-stamped by both the
// server's clock and the local receive clock.
type snapshot struct {
	serverTime float64
	recvTime   float64
	balls      []BallSnapshot
	idToIndex  map[uint32]int
}

func newSnapshot(serverTime, recvTime float64, balls []BallSnapshot) snapshot {
	idx := make(map[uint32]int, len(balls))
	for i, b := range balls {
		idx[b.ID] = i
	}
	return snapshot{serverTime: serverTime, recvTime: recvTime, balls: balls, idToIndex: idx}
}

func (s snapshot) find(id uint32) (BallSnapshot, bool) {
	i, ok := s.idToIndex[id]
	if !ok {
		return BallSnapshot{}, false
	}
	return s.balls[i], true
}

// RenderBall is a ball's interpolated/extrapolated position for one frame.
type RenderBall struct {
	ID  uint32
	Pos vec3.Vec3
}

// NetState maintains a bounded ring of server snapshots, an estimate of the
// server-clock offset, and produces interpolated render positions.
type NetState struct {
	snapshots []snapshot
	hasOffset bool
	offset    float64
}

// NewNetState builds an empty interpolation buffer.
func NewNetState() *NetState {
	return &NetState{}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// PushSnapshot admits a new server snapshot. Non-finite timestamps are
// rejected. A server_time that regresses by more than the epsilon clears the
// ring (a timeline reset, e.g. a server restart); a server_time within the
// epsilon of the current tail is treated as a duplicate and replaces it.
func (n *NetState) PushSnapshot(serverTime, recvTime float64, balls []BallSnapshot) {
	if !isFinite(serverTime) || !isFinite(recvTime) {
		return
	}

	if len(n.snapshots) > 0 {
		tail := n.snapshots[len(n.snapshots)-1]
		if serverTime < tail.serverTime-snapshotEpsilonSecs {
			n.snapshots = nil
		} else if math.Abs(serverTime-tail.serverTime) <= snapshotEpsilonSecs {
			n.snapshots = n.snapshots[:len(n.snapshots)-1]
		}
	}

	n.snapshots = append(n.snapshots, newSnapshot(serverTime, recvTime, balls))
	if len(n.snapshots) > maxSnapshotBuffer {
		n.snapshots = n.snapshots[len(n.snapshots)-maxSnapshotBuffer:]
	}

	sample := recvTime - serverTime
	if !n.hasOffset {
		n.offset = sample
		n.hasOffset = true
	} else if sample < n.offset {
		n.offset = sample
	} else {
		n.offset += (sample - n.offset) * offsetSmoothUpAlpha
	}
}

// UpdateInterpolation computes the render position of every known ball at
// local time now.
func (n *NetState) UpdateInterpolation(now float64) []RenderBall {
	switch len(n.snapshots) {
	case 0:
		return nil
	case 1:
		return n.extrapolateSingle(n.snapshots[0], now)
	default:
		return n.interpolateMulti(now)
	}
}

func (n *NetState) extrapolateSingle(s snapshot, now float64) []RenderBall {
	dt := clamp(now-s.recvTime, 0, maxExtrapolationSecs)
	out := make([]RenderBall, len(s.balls))
	for i, b := range s.balls {
		pos := b.Pos
		vec3.RotateNormalizeInPlace(&pos, b.Axis, b.Omega*dt)
		out[i] = RenderBall{ID: b.ID, Pos: pos}
	}
	return out
}

func (n *NetState) interpolateMulti(now float64) []RenderBall {
	oldest := n.snapshots[0]
	newest := n.snapshots[len(n.snapshots)-1]
	renderTime := now - n.offset - interpolationDelay

	if renderTime <= oldest.serverTime {
		out := make([]RenderBall, len(oldest.balls))
		for i, b := range oldest.balls {
			out[i] = RenderBall{ID: b.ID, Pos: b.Pos}
		}
		return out
	}

	if renderTime >= newest.serverTime {
		dt := clamp(renderTime-newest.serverTime, 0, maxExtrapolationSecs)
		out := make([]RenderBall, len(newest.balls))
		for i, b := range newest.balls {
			pos := b.Pos
			vec3.RotateNormalizeInPlace(&pos, b.Axis, b.Omega*dt)
			out[i] = RenderBall{ID: b.ID, Pos: pos}
		}
		return out
	}

	older, newer := n.snapshots[0], n.snapshots[0]
	for i := 0; i < len(n.snapshots)-1; i++ {
		a, b := n.snapshots[i], n.snapshots[i+1]
		if a.serverTime <= renderTime && renderTime <= b.serverTime {
			older, newer = a, b
			break
		}
	}

	span := newer.serverTime - older.serverTime
	t := 0.0
	if span > 0 {
		t = clamp((renderTime-older.serverTime)/span, 0, 1)
	}

	out := make([]RenderBall, len(newer.balls))
	for i, nb := range newer.balls {
		if ob, ok := older.find(nb.ID); ok {
			out[i] = RenderBall{ID: nb.ID, Pos: vec3.Slerp(ob.Pos, nb.Pos, t)}
		} else {
			out[i] = RenderBall{ID: nb.ID, Pos: nb.Pos}
		}
	}
	return out
}

// SnapshotCount returns the number of snapshots currently buffered.
func (n *NetState) SnapshotCount() int {
	return len(n.snapshots)
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
