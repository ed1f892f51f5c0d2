// Package bot simulates human-like behavior for bot-seeded players: each
// bot queues captured balls and sends them back to deep space after a
// personality-driven delay, so solo sessions and load tests have traffic
// without a human on the other end of every portal.
package bot

import (
	"math"
	"math/rand"

	"github.com/andersfylling/pinball-deepspace/internal/game"
	"go.uber.org/zap"
)

// Personality affects a bot's reaction timing and return-velocity jitter.
type Personality int

const (
	Eager Personality = iota
	Relaxed
	Chaotic
)

func (p Personality) String() string {
	switch p {
	case Eager:
		return "Eager"
	case Relaxed:
		return "Relaxed"
	case Chaotic:
		return "Chaotic"
	default:
		return "Unknown"
	}
}

func (p Personality) delayRange() (min, max float64) {
	switch p {
	case Eager:
		return 0.3, 0.8
	case Relaxed:
		return 1.5, 4.0
	default: // Chaotic
		return 0.2, 6.0
	}
}

func (p Personality) randomDelay(rng *rand.Rand) float64 {
	min, max := p.delayRange()
	return min + rng.Float64()*(max-min)
}

func (p Personality) velocityFactor(rng *rand.Rand) float64 {
	switch p {
	case Eager:
		return 0.9 + rng.Float64()*0.2
	case Relaxed:
		return 0.8 + rng.Float64()*0.3
	default: // Chaotic
		return 0.5 + rng.Float64()*1.0
	}
}

// RandomPersonality picks a personality uniformly at random.
func RandomPersonality(rng *rand.Rand) Personality {
	switch rng.Intn(3) {
	case 0:
		return Eager
	case 1:
		return Relaxed
	default:
		return Chaotic
	}
}

type pendingBall struct {
	vx, vy float64
	delay  float64
}

// Player is a single bot-controlled portal.
type Player struct {
	PlayerID         uint32
	Personality      Personality
	pendingBalls     []pendingBall
	initialBallDelay *float64
}

// NewPlayer creates a bot for playerID. Bots send an initial ball after a
// random 2-8 second delay to seed empty sessions with traffic.
func NewPlayer(playerID uint32, personality Personality, rng *rand.Rand) *Player {
	initialDelay := 2.0 + rng.Float64()*6.0
	return &Player{
		PlayerID:         playerID,
		Personality:      personality,
		initialBallDelay: &initialDelay,
	}
}

// ReceiveBall queues a captured ball for a personality-delayed return.
func (b *Player) ReceiveBall(vx, vy float64, rng *rand.Rand) {
	delay := b.Personality.randomDelay(rng)
	b.pendingBalls = append(b.pendingBalls, pendingBall{vx: vx, vy: vy, delay: delay})
}

// Tick advances the bot's timers by dt seconds. Returns (vx, vy, true) if
// the bot wants to send a ball back to deep space this tick.
func (b *Player) Tick(dt float64, rng *rand.Rand) (float64, float64, bool) {
	if b.initialBallDelay != nil {
		*b.initialBallDelay -= dt
		if *b.initialBallDelay <= 0 {
			b.initialBallDelay = nil
			vx := rng.Float64()*4 - 2
			vy := 1 + rng.Float64()*2
			return vx, vy, true
		}
	}

	for i := range b.pendingBalls {
		b.pendingBalls[i].delay -= dt
	}

	for i, pb := range b.pendingBalls {
		if pb.delay <= 0 {
			b.pendingBalls = append(b.pendingBalls[:i], b.pendingBalls[i+1:]...)

			factor := b.Personality.velocityFactor(rng)

			var vx, vy float64
			if b.Personality == Chaotic {
				angleOffset := rng.Float64()*1.0 - 0.5
				speed := math.Sqrt(pb.vx*pb.vx+pb.vy*pb.vy) * factor
				baseAngle := math.Atan2(pb.vy, pb.vx)
				newAngle := baseAngle + angleOffset
				vx = speed * math.Cos(newAngle)
				vy = speed * math.Abs(math.Sin(newAngle))
			} else {
				vx = pb.vx * factor
				vy = math.Abs(pb.vy) * factor
			}

			return vx, math.Max(math.Abs(vy), 0.5), true
		}
	}

	return 0, 0, false
}

// PendingCount returns the number of balls queued for return.
func (b *Player) PendingCount() int {
	return len(b.pendingBalls)
}

// Config controls bot seeding on server start.
type Config struct {
	Count            int
	SendInitialBalls bool
}

// DefaultConfig mirrors the original's default of 3 bots.
func DefaultConfig() Config {
	return Config{Count: 3, SendInitialBalls: true}
}

// Manager owns every active bot player.
type Manager struct {
	bots   []*Player
	logger *zap.Logger
}

// NewManager creates an empty bot manager. logger may be nil to discard
// bot-lifecycle log lines (tests commonly pass nil).
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// AddBot spawns a bot for player with a random personality.
func (m *Manager) AddBot(player game.Player, rng *rand.Rand) {
	personality := RandomPersonality(rng)
	bot := NewPlayer(player.ID, personality, rng)
	m.logger.Info("bot created",
		zap.Uint32("playerId", player.ID),
		zap.String("personality", personality.String()),
	)
	m.bots = append(m.bots, bot)
}

// RemoveBot removes the bot for playerID, if any.
func (m *Manager) RemoveBot(playerID uint32) {
	for i, b := range m.bots {
		if b.PlayerID == playerID {
			m.bots = append(m.bots[:i], m.bots[i+1:]...)
			return
		}
	}
}

// HandleCapture routes a capture to the owning bot, if playerID is a bot.
func (m *Manager) HandleCapture(playerID uint32, vx, vy float64, rng *rand.Rand) {
	for _, b := range m.bots {
		if b.PlayerID == playerID {
			b.ReceiveBall(vx, vy, rng)
			return
		}
	}
}

// IsBot reports whether playerID belongs to a bot.
func (m *Manager) IsBot(playerID uint32) bool {
	for _, b := range m.bots {
		if b.PlayerID == playerID {
			return true
		}
	}
	return false
}

// Escape is one ball a bot sends back to deep space.
type Escape struct {
	PlayerID uint32
	Vx, Vy   float64
}

// Tick advances every bot by dt seconds, returning (playerID, vx, vy) for
// every ball a bot wants to send back to deep space this tick.
func (m *Manager) Tick(dt float64, rng *rand.Rand) []Escape {
	var results []Escape
	for _, b := range m.bots {
		if vx, vy, ok := b.Tick(dt, rng); ok {
			results = append(results, Escape{PlayerID: b.PlayerID, Vx: vx, Vy: vy})
		}
	}
	return results
}

// BotCount returns the number of active bots.
func (m *Manager) BotCount() int {
	return len(m.bots)
}

// BotIDs returns the player IDs of every active bot.
func (m *Manager) BotIDs() []uint32 {
	ids := make([]uint32, len(m.bots))
	for i, b := range m.bots {
		ids[i] = b.PlayerID
	}
	return ids
}
