package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/andersfylling/pinball-deepspace/internal/config"
)

// PlayerWire is the over-the-wire representation of a player, sent inside
// welcome and players_state.
type PlayerWire struct {
	ID            uint32     `json:"id"`
	CellIndex     uint32     `json:"cellIndex"`
	PortalPos     [3]float64 `json:"portalPos"`
	Color         uint32     `json:"color"`
	Paused        bool       `json:"paused"`
	BallsProduced uint32     `json:"ballsProduced"`
	BallsInFlight uint32     `json:"ballsInFlight"`
}

// BallWire is the over-the-wire representation of a single deep-space ball,
// sent inside space_state.
type BallWire struct {
	ID      uint32     `json:"id"`
	OwnerID uint32     `json:"ownerId"`
	Pos     [3]float64 `json:"pos"`
	Axis    [3]float64 `json:"axis"`
	Omega   float64    `json:"omega"`
}

// DeepSpaceConfigWire echoes the physics envelope to clients for HUDs and
// diagnostics.
type DeepSpaceConfigWire struct {
	PortalAlpha           float64 `json:"portalAlpha"`
	OmegaMin              float64 `json:"omegaMin"`
	OmegaMax              float64 `json:"omegaMax"`
	RerouteAfter          float64 `json:"rerouteAfter"`
	RerouteCooldown       float64 `json:"rerouteCooldown"`
	MinAgeForCapture      float64 `json:"minAgeForCapture"`
	MinAgeForReroute      float64 `json:"minAgeForReroute"`
	RerouteArrivalTimeMin float64 `json:"rerouteArrivalTimeMin"`
	RerouteArrivalTimeMax float64 `json:"rerouteArrivalTimeMax"`
}

// NewDeepSpaceConfigWire builds the wire form of a DeepSpaceConfig.
func NewDeepSpaceConfigWire(cfg config.DeepSpaceConfig) DeepSpaceConfigWire {
	return DeepSpaceConfigWire{
		PortalAlpha:           cfg.PortalAlpha,
		OmegaMin:              cfg.OmegaMin,
		OmegaMax:              cfg.OmegaMax,
		RerouteAfter:          cfg.RerouteAfter,
		RerouteCooldown:       cfg.RerouteCooldown,
		MinAgeForCapture:      cfg.MinAgeForCapture,
		MinAgeForReroute:      cfg.MinAgeForReroute,
		RerouteArrivalTimeMin: cfg.RerouteArrivalTimeMin,
		RerouteArrivalTimeMax: cfg.RerouteArrivalTimeMax,
	}
}

// Server -> client message type tags.
const (
	TypeWelcome      = "welcome"
	TypePlayersState = "players_state"
	TypeSpaceState   = "space_state"
	TypeTransferIn   = "transfer_in"
)

// Client -> server message type tags.
const (
	TypeBallEscaped = "ball_escaped"
	TypeSetPaused   = "set_paused"
	TypeActivity    = "activity"
)

// Welcome is sent once, immediately after a successful join.
type Welcome struct {
	ProtocolVersion int                 `json:"protocolVersion"`
	ServerVersion   string              `json:"serverVersion"`
	SelfID          uint32              `json:"selfId"`
	ResumeToken     string              `json:"resumeToken"`
	Players         []PlayerWire        `json:"players"`
	Config          DeepSpaceConfigWire `json:"config"`
}

// PlayersState is broadcast whenever the player set changes.
type PlayersState struct {
	Players []PlayerWire `json:"players"`
}

// SpaceState is broadcast at broadcast_rate_hz with every ball's current
// sphere position.
type SpaceState struct {
	Balls []BallWire `json:"balls"`
}

// TransferIn is delivered reliably to the player whose portal captured a
// ball, instructing their board to spawn it.
type TransferIn struct {
	Vx      float64 `json:"vx"`
	Vy      float64 `json:"vy"`
	OwnerID uint32  `json:"ownerId"`
	Color   uint32  `json:"color"`
}

// BallEscaped is sent by the client when a ball drains off the bottom of
// its local board.
type BallEscaped struct {
	Vx float64 `json:"vx"`
	Vy float64 `json:"vy"`
}

// SetPaused toggles whether the sending player's portal can capture balls.
type SetPaused struct {
	Paused bool `json:"paused"`
}

// Activity is a liveness heartbeat; it carries no payload.
type Activity struct{}

// envelope is the shape used to discover a message's tag before decoding
// its payload, and to inject the tag when encoding.
type envelope struct {
	Type string `json:"type"`
}

// EncodeServerMsg marshals a server->client message with its "type" tag,
// rounding portal positions, ball positions, axes, omegas and transfer
// velocities to 4 decimal places first (§6 of the wire contract). The
// config echoed in welcome is sent unrounded.
func EncodeServerMsg(msg interface{}) ([]byte, error) {
	var tag string
	switch v := msg.(type) {
	case Welcome:
		tag = TypeWelcome
		roundPlayers(v.Players)
	case *Welcome:
		tag = TypeWelcome
		roundPlayers(v.Players)
	case PlayersState:
		tag = TypePlayersState
		roundPlayers(v.Players)
	case *PlayersState:
		tag = TypePlayersState
		roundPlayers(v.Players)
	case SpaceState:
		tag = TypeSpaceState
		roundBalls(v.Balls)
	case *SpaceState:
		tag = TypeSpaceState
		roundBalls(v.Balls)
	case TransferIn:
		tag = TypeTransferIn
		v.Vx, v.Vy = Round4(v.Vx), Round4(v.Vy)
		return encodeTagged(tag, v)
	case *TransferIn:
		tag = TypeTransferIn
		v.Vx, v.Vy = Round4(v.Vx), Round4(v.Vy)
		return encodeTagged(tag, v)
	default:
		return nil, fmt.Errorf("protocol: unknown server message type %T", msg)
	}
	return encodeTagged(tag, msg)
}

func encodeTagged(tag string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	tagBytes, _ := json.Marshal(tag)
	m["type"] = tagBytes
	return json.Marshal(m)
}

func roundPlayers(players []PlayerWire) {
	for i := range players {
		for j := range players[i].PortalPos {
			players[i].PortalPos[j] = Round4(players[i].PortalPos[j])
		}
	}
}

func roundBalls(balls []BallWire) {
	for i := range balls {
		for j := range balls[i].Pos {
			balls[i].Pos[j] = Round4(balls[i].Pos[j])
			balls[i].Axis[j] = Round4(balls[i].Axis[j])
		}
		balls[i].Omega = Round4(balls[i].Omega)
	}
}

// ClientMsg is the decoded form of any client->server message.
type ClientMsg struct {
	Type        string
	BallEscaped BallEscaped
	SetPaused   SetPaused
}

// DecodeClientMsg parses a raw text frame into a tagged ClientMsg.
func DecodeClientMsg(data []byte) (ClientMsg, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientMsg{}, fmt.Errorf("protocol: malformed json: %w", err)
	}
	switch env.Type {
	case TypeBallEscaped:
		var payload BallEscaped
		if err := json.Unmarshal(data, &payload); err != nil {
			return ClientMsg{}, fmt.Errorf("protocol: bad ball_escaped: %w", err)
		}
		return ClientMsg{Type: env.Type, BallEscaped: payload}, nil
	case TypeSetPaused:
		var payload SetPaused
		if err := json.Unmarshal(data, &payload); err != nil {
			return ClientMsg{}, fmt.Errorf("protocol: bad set_paused: %w", err)
		}
		return ClientMsg{Type: env.Type, SetPaused: payload}, nil
	case TypeActivity:
		return ClientMsg{Type: env.Type}, nil
	default:
		return ClientMsg{}, fmt.Errorf("protocol: unknown message type %q", env.Type)
	}
}
