package bot

import (
	"math"
	"math/rand"
	"testing"

	"github.com/andersfylling/pinball-deepspace/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func newTestPlayer(personality Personality) *Player {
	b := NewPlayer(1, personality, testRNG())
	b.initialBallDelay = nil
	return b
}

func TestBotReceivesAndSendsBall(t *testing.T) {
	rng := testRNG()
	b := newTestPlayer(Eager)
	b.ReceiveBall(1.0, 2.0, rng)
	require.Equal(t, 1, b.PendingCount())

	var sent bool
	for i := 0; i < 100; i++ {
		_, _, ok := b.Tick(0.1, rng)
		if ok {
			sent = true
			break
		}
	}
	assert.True(t, sent, "expected bot to send ball within 10s")
	assert.Equal(t, 0, b.PendingCount())
}

func TestEagerBotSendsQuickly(t *testing.T) {
	rng := testRNG()
	b := newTestPlayer(Eager)
	b.ReceiveBall(0, 1.0, rng)

	elapsed := 0.0
	for i := 0; i < 20; i++ {
		elapsed += 0.1
		if _, _, ok := b.Tick(0.1, rng); ok {
			assert.LessOrEqual(t, elapsed, 0.9)
			return
		}
	}
	t.Fatal("eager bot never sent ball")
}

func TestRelaxedBotWaitsLonger(t *testing.T) {
	rng := testRNG()
	b := newTestPlayer(Relaxed)
	b.ReceiveBall(0, 1.0, rng)

	// Should not fire in the first 1 second.
	for elapsed := 0.0; elapsed < 1.0; elapsed += 0.1 {
		_, _, ok := b.Tick(0.1, rng)
		assert.False(t, ok)
	}
}

func TestBotSendsInitialBall(t *testing.T) {
	rng := testRNG()
	b := NewPlayer(1, Eager, rng)
	require.NotNil(t, b.initialBallDelay)

	var sent bool
	for i := 0; i < 100; i++ {
		_, _, ok := b.Tick(0.1, rng)
		if ok {
			sent = true
			break
		}
	}
	assert.True(t, sent)
	assert.Nil(t, b.initialBallDelay)
}

func TestBotManagerRoutesCaptures(t *testing.T) {
	rng := testRNG()
	mgr := NewManager(nil)
	mgr.AddBot(game.Player{ID: 7}, rng)
	require.True(t, mgr.IsBot(7))
	require.False(t, mgr.IsBot(8))

	mgr.HandleCapture(7, 1.0, 2.0, rng)
	mgr.HandleCapture(8, 1.0, 2.0, rng) // not a bot, no-op

	found := false
	for _, b := range mgr.bots {
		if b.PlayerID == 7 {
			found = b.PendingCount() == 1
		}
	}
	assert.True(t, found)
}

func TestBotManagerTickReturnsBalls(t *testing.T) {
	rng := testRNG()
	mgr := NewManager(nil)
	mgr.AddBot(game.Player{ID: 7}, rng)
	mgr.bots[0].initialBallDelay = nil
	mgr.HandleCapture(7, 1.0, 2.0, rng)

	var escapes []Escape
	for i := 0; i < 100 && len(escapes) == 0; i++ {
		escapes = mgr.Tick(0.1, rng)
	}
	require.Len(t, escapes, 1)
	assert.Equal(t, uint32(7), escapes[0].PlayerID)
}

func TestVelocityIsAlwaysValid(t *testing.T) {
	rng := testRNG()
	for _, p := range []Personality{Eager, Relaxed, Chaotic} {
		b := newTestPlayer(p)
		b.ReceiveBall(1.0, 1.0, rng)
		for i := 0; i < 100; i++ {
			vx, vy, ok := b.Tick(0.1, rng)
			if ok {
				assert.False(t, math.IsNaN(vx))
				assert.False(t, math.IsNaN(vy))
				assert.GreaterOrEqual(t, vy, 0.5)
				break
			}
		}
	}
}

func TestChaoticBotHasVariableTiming(t *testing.T) {
	min, max := Chaotic.delayRange()
	assert.Equal(t, 0.2, min)
	assert.Equal(t, 6.0, max)
}

func TestChaoticBotModifiesVelocityDirection(t *testing.T) {
	rng := testRNG()
	b := newTestPlayer(Chaotic)
	b.ReceiveBall(0, 1.0, rng)

	for i := 0; i < 100; i++ {
		vx, vy, ok := b.Tick(0.1, rng)
		if ok {
			// The random angle offset turns the ball away from straight up,
			// so vx moves away from the original 0.
			assert.NotEqual(t, 0.0, vx)
			assert.GreaterOrEqual(t, vy, 0.5)
			return
		}
	}
	t.Fatal("chaotic bot never sent ball")
}

func TestRemoveBotWorks(t *testing.T) {
	rng := testRNG()
	mgr := NewManager(nil)
	mgr.AddBot(game.Player{ID: 1}, rng)
	mgr.AddBot(game.Player{ID: 2}, rng)
	require.Equal(t, 2, mgr.BotCount())

	mgr.RemoveBot(1)
	assert.Equal(t, 1, mgr.BotCount())
	assert.False(t, mgr.IsBot(1))
	assert.True(t, mgr.IsBot(2))
}

func TestRemoveNonexistentBotIsSafe(t *testing.T) {
	mgr := NewManager(nil)
	assert.NotPanics(t, func() {
		mgr.RemoveBot(999)
	})
}

func TestBotHandlesMultiplePendingBalls(t *testing.T) {
	rng := testRNG()
	b := newTestPlayer(Eager)
	b.ReceiveBall(1.0, 1.0, rng)
	b.ReceiveBall(2.0, 2.0, rng)
	b.ReceiveBall(3.0, 3.0, rng)
	require.Equal(t, 3, b.PendingCount())

	sentCount := 0
	for i := 0; i < 200 && sentCount < 3; i++ {
		if _, _, ok := b.Tick(0.1, rng); ok {
			sentCount++
		}
	}
	assert.Equal(t, 3, sentCount)
	assert.Equal(t, 0, b.PendingCount())
}

func TestBotInitialBallFiresAfterDelay(t *testing.T) {
	rng := testRNG()
	b := NewPlayer(1, Eager, rng)
	delay := *b.initialBallDelay
	require.GreaterOrEqual(t, delay, 2.0)
	require.LessOrEqual(t, delay, 8.0)

	elapsed := 0.0
	var fired bool
	for elapsed < 8.5 {
		elapsed += 0.1
		if _, _, ok := b.Tick(0.1, rng); ok {
			fired = true
			break
		}
	}
	assert.True(t, fired)
}

func TestBotIDsReturnsAllBotIDs(t *testing.T) {
	rng := testRNG()
	mgr := NewManager(nil)
	mgr.AddBot(game.Player{ID: 3}, rng)
	mgr.AddBot(game.Player{ID: 5}, rng)
	ids := mgr.BotIDs()
	assert.ElementsMatch(t, []uint32{3, 5}, ids)
}
