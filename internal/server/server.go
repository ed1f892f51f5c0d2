// Package server runs the authoritative tick loop, the per-client reliable
// channel, the lossy world-state broadcast, and the WebSocket handler that
// ties a connection to a game session.
package server

import (
	"encoding/json"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/andersfylling/pinball-deepspace/internal/config"
	"github.com/andersfylling/pinball-deepspace/internal/deepspace"
	"github.com/andersfylling/pinball-deepspace/internal/game"
	"github.com/andersfylling/pinball-deepspace/internal/lobby"
	"github.com/andersfylling/pinball-deepspace/internal/network"
	"github.com/andersfylling/pinball-deepspace/internal/protocol"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// reliableChannelSize is the bounded capacity of each client's guaranteed
// delivery inbox (transfer_in, players_state). A transfer_in that finds it
// full means the client cannot keep up with guaranteed messages and is
// evicted; a players_state that finds it full is dropped.
const reliableChannelSize = 32

// broadcastChannelSize is the per-subscriber capacity of the lossy
// space_state fan-out.
const broadcastChannelSize = 4

// ServerVersion is reported to clients in welcome for diagnostics.
var ServerVersion = "dev"

// command is the union of requests a connection goroutine may send to the
// single game-loop goroutine. Only the payload fields that kind uses are
// set.
type command struct {
	kind        commandKind
	resumeToken string
	playerID    uint32
	vx, vy      float64
	paused      bool
	reply       chan joinResult
}

type commandKind int

const (
	cmdJoin commandKind = iota
	cmdLeave
	cmdBallEscaped
	cmdSetPaused
	cmdActivity
)

type joinResult struct {
	player     *game.Player
	reliableCh chan []byte
	players    []protocol.PlayerWire
	err        error
}

// Server owns the game state and every connected session's channels. Game
// state is touched only by the goroutine running Run; every other method
// communicates with it over cmdCh.
type Server struct {
	cfg    config.ServerConfig
	dsCfg  config.DeepSpaceConfig
	state  *game.State
	logger *zap.Logger
	tokens *lobby.TokenMinter

	cmdCh chan command
	hub   *broadcastHub

	reliable map[uint32]chan []byte
	limiters map[uint32]*rate.Limiter

	tick      uint64
	startedAt time.Time
	quitCh    chan struct{}
	doneCh    chan struct{}

	// connCount mirrors len(reliable); read from connection goroutines
	// without touching game state, written only from the loop goroutine.
	connCount atomic.Int64
}

// New builds a server ready to Run. Bot players configured by
// cfg.BotCount are seeded immediately.
func New(cfg config.ServerConfig, dsCfg config.DeepSpaceConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		dsCfg:    dsCfg,
		state:    game.New(cfg.CellCount, dsCfg, cfg.CaptureSpeed, cfg.RngSeed, logger),
		logger:   logger,
		tokens:   lobby.NewTokenMinter(),
		cmdCh:    make(chan command, 256),
		hub:      newBroadcastHub(),
		reliable: make(map[uint32]chan []byte),
		limiters: make(map[uint32]*rate.Limiter),
		quitCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for i := 0; i < cfg.BotCount; i++ {
		if _, err := s.state.AddBotPlayer(); err != nil {
			logger.Warn("could not seed bot player", zap.Error(err))
			break
		}
	}
	return s
}

// Run executes the tick loop on the calling goroutine until Stop is called.
// This is the single writer of game state.
func (s *Server) Run() {
	defer close(s.doneCh)
	s.startedAt = time.Now()

	tickInterval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticksPerBroadcast := (s.cfg.TickRateHz + s.cfg.BroadcastRateHz - 1) / s.cfg.BroadcastRateHz
	if ticksPerBroadcast < 1 {
		ticksPerBroadcast = 1
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	dt := tickInterval.Seconds()
	ticksSinceBroadcast := 0

	for {
		select {
		case <-s.quitCh:
			return
		case cmd := <-s.cmdCh:
			s.handleCommand(cmd)
		case <-ticker.C:
			s.drainCommands()
			s.runTick(dt)

			ticksSinceBroadcast++
			if ticksSinceBroadcast >= ticksPerBroadcast {
				ticksSinceBroadcast = 0
				s.broadcastSpaceState()
			}
		}
	}
}

// drainCommands processes every command currently queued without blocking,
// so a tick never waits on slow producers.
func (s *Server) drainCommands() {
	for {
		select {
		case cmd := <-s.cmdCh:
			s.handleCommand(cmd)
		default:
			return
		}
	}
}

func (s *Server) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdJoin:
		player, err := s.state.AddPlayer(cmd.resumeToken)
		if err != nil {
			cmd.reply <- joinResult{err: err}
			return
		}
		ch := make(chan []byte, reliableChannelSize)
		s.reliable[player.ID] = ch
		s.limiters[player.ID] = rate.NewLimiter(rate.Limit(s.cfg.MaxBallEscapedPerSec), s.cfg.MaxBallEscapedPerSec)
		s.connCount.Add(1)
		playersWire := s.playersWire()
		s.broadcastPlayersState()
		cmd.reply <- joinResult{player: player, reliableCh: ch, players: playersWire}
	case cmdLeave:
		s.state.RemovePlayer(cmd.playerID)
		s.tokens.Release(cmd.playerID)
		s.hub.unsubscribe(cmd.playerID)
		if _, ok := s.reliable[cmd.playerID]; ok {
			s.connCount.Add(-1)
		}
		delete(s.reliable, cmd.playerID)
		delete(s.limiters, cmd.playerID)
		s.broadcastPlayersState()
	case cmdBallEscaped:
		if limiter, ok := s.limiters[cmd.playerID]; ok && !limiter.Allow() {
			return
		}
		if s.state.DeepSpaceBallCount() >= s.cfg.MaxBallsGlobal {
			s.logger.Debug("ball_escaped dropped: global ball cap reached", zap.Uint32("playerId", cmd.playerID))
			return
		}
		if _, err := s.state.BallEscaped(cmd.playerID, cmd.vx, cmd.vy); err != nil {
			s.logger.Debug("ball_escaped for unknown player", zap.Uint32("playerId", cmd.playerID))
		}
	case cmdSetPaused:
		s.state.SetPaused(cmd.playerID, cmd.paused)
		s.broadcastPlayersState()
	case cmdActivity:
		// Liveness hint only; no server-side timeout is driven by it.
	}
}

func (s *Server) runTick(dt float64) {
	s.tick++
	for _, c := range s.state.Tick(dt) {
		s.deliverCapture(c)
	}
}

// deliverCapture encodes a capture as transfer_in and enqueues it on its
// destination player's reliable channel, evicting the session if that
// channel is already full. Must only be called from the tick-loop goroutine.
func (s *Server) deliverCapture(c deepspace.CaptureEvent) {
	ch, ok := s.reliable[c.PlayerID]
	if !ok {
		return
	}
	data, err := protocol.EncodeServerMsg(protocol.TransferIn{
		Vx: c.Vx, Vy: c.Vy, OwnerID: c.BallOwnerID, Color: c.BallColor,
	})
	if err != nil {
		s.logger.Warn("failed to encode transfer_in", zap.Error(err))
		return
	}
	select {
	case ch <- data:
	default:
		s.logger.Info("evicting session: reliable channel overflow", zap.Uint32("playerId", c.PlayerID))
		s.state.RemovePlayer(c.PlayerID)
		s.tokens.Release(c.PlayerID)
		s.hub.unsubscribe(c.PlayerID)
		delete(s.reliable, c.PlayerID)
		delete(s.limiters, c.PlayerID)
		s.connCount.Add(-1)
		s.broadcastPlayersState()
	}
}

func (s *Server) broadcastSpaceState() {
	balls := s.state.SpaceBalls()
	wire := make([]protocol.BallWire, len(balls))
	for i, b := range balls {
		wire[i] = protocol.BallWire{
			ID:      b.ID,
			OwnerID: b.OwnerID,
			Pos:     [3]float64{b.Pos.X, b.Pos.Y, b.Pos.Z},
			Axis:    [3]float64{b.Axis.X, b.Axis.Y, b.Axis.Z},
			Omega:   b.Omega,
		}
	}
	data, err := protocol.EncodeServerMsg(protocol.SpaceState{Balls: wire})
	if err != nil {
		s.logger.Warn("failed to encode space_state", zap.Error(err))
		return
	}
	s.hub.publish(data)
}

// playersWire builds the wire form of every connected player's current
// state. Must only be called from the tick-loop goroutine.
func (s *Server) playersWire() []protocol.PlayerWire {
	players := s.state.PlayersSnapshot()
	wire := make([]protocol.PlayerWire, len(players))
	for i, p := range players {
		wire[i] = protocol.PlayerWire{
			ID:            p.ID,
			CellIndex:     p.CellIndex,
			PortalPos:     [3]float64{p.PortalPos.X, p.PortalPos.Y, p.PortalPos.Z},
			Color:         p.Color,
			Paused:        p.Paused,
			BallsProduced: p.BallsProduced,
			BallsInFlight: s.state.BallsInFlight(p.ID),
		}
	}
	return wire
}

func (s *Server) broadcastPlayersState() {
	data, err := protocol.EncodeServerMsg(protocol.PlayersState{Players: s.playersWire()})
	if err != nil {
		s.logger.Warn("failed to encode players_state", zap.Error(err))
		return
	}
	for id, ch := range s.reliable {
		select {
		case ch <- data:
		default:
			// players_state is superseded by the next broadcast, so a full
			// channel here just drops this frame rather than evicting; the
			// session gets a fresh roster next time the player set changes.
			s.logger.Info("dropping players_state frame: reliable channel full", zap.Uint32("playerId", id))
		}
	}
}

// Stop signals the tick loop to exit and waits for it.
func (s *Server) Stop() {
	close(s.quitCh)
	<-s.doneCh
}

// Tick returns the current tick count.
func (s *Server) Tick() uint64 {
	return s.tick
}

// PlayerCount returns the number of connected players, for /healthz. Safe to
// call from any goroutine: it reads the atomic mirror of session count
// rather than touching game state.
func (s *Server) PlayerCount() int {
	return int(s.connCount.Load())
}

// join registers a new session and returns its assigned player, the
// reliable channel the connection goroutine should drain, and a snapshot of
// every connected player for the welcome frame. Blocks until the game loop
// processes the request.
func (s *Server) join(resumeToken string) (*game.Player, <-chan []byte, []protocol.PlayerWire, error) {
	reply := make(chan joinResult, 1)
	s.cmdCh <- command{kind: cmdJoin, resumeToken: resumeToken, reply: reply}
	result := <-reply
	if result.err != nil {
		return nil, nil, nil, result.err
	}
	return result.player, result.reliableCh, result.players, nil
}

// HandleWebSocket upgrades an HTTP request to a WebSocket session and runs
// it until the connection closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.PlayerCount() >= s.cfg.MaxConnections {
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	conn, err := network.Upgrade(w, r, s.cfg.AllowedOrigins)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	resumeToken := r.URL.Query().Get("resume")
	player, reliableCh, playersWire, err := s.join(resumeToken)
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		_ = conn.Send(data)
		_ = conn.Close()
		return
	}

	resumeToken = s.tokens.Mint(player.ID)
	subCh := s.hub.subscribe(player.ID, broadcastChannelSize)

	welcome := protocol.Welcome{
		ProtocolVersion: protocol.Version,
		ServerVersion:   ServerVersion,
		SelfID:          player.ID,
		ResumeToken:     resumeToken,
		Players:         playersWire,
		Config:          protocol.NewDeepSpaceConfigWire(s.dsCfg),
	}
	welcomeData, err := protocol.EncodeServerMsg(welcome)
	if err != nil {
		s.logger.Warn("failed to encode welcome", zap.Error(err))
		_ = conn.Close()
		return
	}
	if err := conn.Send(welcomeData); err != nil {
		_ = conn.Close()
		return
	}

	s.runSession(player.ID, conn, reliableCh, subCh)
}

// runSession drains both the reliable and lossy channels into the socket
// and reads incoming client frames, until either side closes.
func (s *Server) runSession(playerID uint32, conn *network.WSConnection, reliableCh, subCh <-chan []byte) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("recovered panic in session writer", zap.Uint32("playerId", playerID), zap.Any("panic", r))
			}
		}()
		pingTicker := time.NewTicker(network.PingInterval())
		defer pingTicker.Stop()
		for {
			select {
			case data, ok := <-reliableCh:
				if !ok {
					return
				}
				if err := conn.Send(data); err != nil {
					return
				}
			case data, ok := <-subCh:
				if !ok {
					return
				}
				if err := conn.Send(data); err != nil {
					return
				}
			case <-pingTicker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			}
		}
	}()

	// These run on function return (normal or recovered-panic) so a panic in
	// the reader loop below still tears down the socket, waits for the
	// writer, and releases the session's slot instead of leaking it.
	defer func() {
		_ = conn.Close()
		<-writerDone
		s.cmdCh <- command{kind: cmdLeave, playerID: playerID}
	}()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic in session reader", zap.Uint32("playerId", playerID), zap.Any("panic", r))
		}
	}()

	for {
		data, err := conn.Recv()
		if err != nil {
			break
		}
		s.handleClientFrame(playerID, data)
	}
}

func (s *Server) handleClientFrame(playerID uint32, data []byte) {
	msg, err := protocol.DecodeClientMsg(data)
	if err != nil {
		s.logger.Debug("dropping malformed client frame", zap.Uint32("playerId", playerID), zap.Error(err))
		return
	}

	switch msg.Type {
	case protocol.TypeBallEscaped:
		vx, vy := msg.BallEscaped.Vx, msg.BallEscaped.Vy
		if !isFinite(vx) || !isFinite(vy) {
			return
		}
		if abs(vx) > s.cfg.MaxVelocity || abs(vy) > s.cfg.MaxVelocity {
			return
		}
		s.cmdCh <- command{kind: cmdBallEscaped, playerID: playerID, vx: vx, vy: vy}
	case protocol.TypeSetPaused:
		s.cmdCh <- command{kind: cmdSetPaused, playerID: playerID, paused: msg.SetPaused.Paused}
	case protocol.TypeActivity:
		s.cmdCh <- command{kind: cmdActivity, playerID: playerID}
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func abs(f float64) float64 {
	return math.Abs(f)
}
