package game

import (
	"fmt"
	"math/rand"

	"github.com/andersfylling/pinball-deepspace/internal/bot"
	"github.com/andersfylling/pinball-deepspace/internal/config"
	"github.com/andersfylling/pinball-deepspace/internal/deepspace"
	"github.com/andersfylling/pinball-deepspace/internal/sphere"
	"go.uber.org/zap"
)

// State wires the portal placement, deep-space engine and bot manager
// together and owns the player table for one running server.
type State struct {
	placement  *sphere.PortalPlacement
	deepSpace  *deepspace.SphereDeepSpace
	bots       *bot.Manager
	rng        *rand.Rand
	players    map[uint32]*Player
	nextPlayer uint32
}

// New builds a game state ready to accept players. cellCount sizes the
// portal placement table; dsCfg tunes the deep-space engine; captureSpeed is
// the 2-D speed a captured ball re-enters its destination board at; seed
// drives every random choice the state makes, for reproducible servers.
func New(cellCount int, dsCfg config.DeepSpaceConfig, captureSpeed float64, seed uint64, logger *zap.Logger) *State {
	rng := rand.New(rand.NewSource(int64(seed)))
	return &State{
		placement:  sphere.NewPortalPlacement(cellCount, rng),
		deepSpace:  deepspace.New(dsCfg, captureSpeed),
		bots:       bot.NewManager(logger),
		rng:        rng,
		players:    make(map[uint32]*Player),
		nextPlayer: 1,
	}
}

// ErrNoFreeCells is returned by AddPlayer when the portal placement table
// has no free cell left to allocate.
var ErrNoFreeCells = fmt.Errorf("game: no free cells")

// AddPlayer allocates a portal cell and inserts a new player, resyncing the
// deep-space engine's player roster. resumeToken may be empty.
func (s *State) AddPlayer(resumeToken string) (*Player, error) {
	cellIndex, ok := s.placement.Allocate(resumeToken)
	if !ok {
		return nil, ErrNoFreeCells
	}

	id := s.nextPlayer
	s.nextPlayer++

	p := &Player{
		ID:        id,
		CellIndex: uint32(cellIndex),
		PortalPos: s.placement.PortalPos(cellIndex),
		Color:     ColorFromID(id),
	}
	s.players[id] = p
	s.syncPlayers()
	return p, nil
}

// AddBotPlayer allocates a portal and wires it to a server-side bot
// personality instead of a network connection.
func (s *State) AddBotPlayer() (*Player, error) {
	p, err := s.AddPlayer("")
	if err != nil {
		return nil, err
	}
	p.IsBot = true
	s.bots.AddBot(*p, s.rng)
	s.syncPlayers()
	return p, nil
}

// RemovePlayer releases id's cell and drops it from the table.
func (s *State) RemovePlayer(id uint32) {
	p, ok := s.players[id]
	if !ok {
		return
	}
	s.placement.Release(int(p.CellIndex))
	s.bots.RemoveBot(id)
	delete(s.players, id)
	s.syncPlayers()
}

// SetPaused flips whether id's portal can capture balls.
func (s *State) SetPaused(id uint32, paused bool) {
	p, ok := s.players[id]
	if !ok {
		return
	}
	p.Paused = paused
	s.syncPlayers()
}

// BallEscaped injects a ball escaping ownerID's board into deep space,
// returning its assigned ball id.
func (s *State) BallEscaped(ownerID uint32, vx, vy float64) (uint32, error) {
	p, ok := s.players[ownerID]
	if !ok {
		return 0, fmt.Errorf("game: unknown player %d", ownerID)
	}
	p.BallsProduced++
	return s.deepSpace.AddBall(ownerID, p.PortalPos, vx, vy, s.rng), nil
}

// Tick advances deep space and every bot by dt seconds, feeding bot
// re-escapes back into deep space and routing bot-destined captures to the
// bot manager instead of the network layer. Returns the captures destined
// for real (non-bot) players this tick.
func (s *State) Tick(dt float64) []deepspace.CaptureEvent {
	for _, escape := range s.bots.Tick(dt, s.rng) {
		p, ok := s.players[escape.PlayerID]
		if !ok {
			continue
		}
		p.BallsProduced++
		s.deepSpace.AddBall(escape.PlayerID, p.PortalPos, escape.Vx, escape.Vy, s.rng)
	}

	captures := s.deepSpace.Tick(dt, s.rng)

	var forNetwork []deepspace.CaptureEvent
	for _, c := range captures {
		if s.bots.IsBot(c.PlayerID) {
			s.bots.HandleCapture(c.PlayerID, c.Vx, c.Vy, s.rng)
			continue
		}
		forNetwork = append(forNetwork, c)
	}
	return forNetwork
}

// GetPlayer looks up a player by id.
func (s *State) GetPlayer(id uint32) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// PlayersSnapshot returns every player's current state.
func (s *State) PlayersSnapshot() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

// BallsInFlight returns the number of balls in deep space owned by id.
func (s *State) BallsInFlight(id uint32) uint32 {
	var n uint32
	for _, b := range s.deepSpace.GetBalls() {
		if b.OwnerID == id {
			n++
		}
	}
	return n
}

// SpaceBalls returns every ball currently in deep space.
func (s *State) SpaceBalls() []*deepspace.SpaceBall3D {
	return s.deepSpace.GetBalls()
}

// PlayerCount returns the number of connected (human or bot) players.
func (s *State) PlayerCount() int {
	return len(s.players)
}

// DeepSpaceBallCount returns the number of balls currently in deep space.
func (s *State) DeepSpaceBallCount() int {
	return s.deepSpace.BallCount()
}

func (s *State) syncPlayers() {
	players := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	s.deepSpace.SetPlayers(players)
}
