package protocol

import (
	"encoding/json"
	"testing"

	"github.com/andersfylling/pinball-deepspace/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound4(t *testing.T) {
	assert.InDelta(t, 1.2346, Round4(1.23456789), 1e-9)
	assert.InDelta(t, -0.0001, Round4(-0.00005001), 1e-9)
}

func TestEncodeWelcomeHasTypeTag(t *testing.T) {
	w := Welcome{
		ProtocolVersion: Version,
		ServerVersion:   "test",
		SelfID:          1,
		ResumeToken:     "abc",
		Players: []PlayerWire{
			{ID: 1, PortalPos: [3]float64{1.0 / 3.0, 0, 0}},
		},
		Config: NewDeepSpaceConfigWire(config.DefaultDeepSpaceConfig()),
	}
	data, err := EncodeServerMsg(w)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeWelcome, decoded["type"])
	assert.Equal(t, "test", decoded["serverVersion"])
}

func TestEncodeSpaceStateRoundsFloats(t *testing.T) {
	s := SpaceState{Balls: []BallWire{
		{ID: 1, OwnerID: 2, Pos: [3]float64{0.123456789, 0, 0}, Axis: [3]float64{0, 1, 0}, Omega: 0.987654321},
	}}
	data, err := EncodeServerMsg(s)
	require.NoError(t, err)

	var decoded struct {
		Type  string `json:"type"`
		Balls []struct {
			Pos   [3]float64 `json:"pos"`
			Omega float64    `json:"omega"`
		} `json:"balls"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeSpaceState, decoded.Type)
	assert.InDelta(t, 0.1235, decoded.Balls[0].Pos[0], 1e-9)
	assert.InDelta(t, 0.9877, decoded.Balls[0].Omega, 1e-9)
}

func TestDecodeBallEscaped(t *testing.T) {
	msg, err := DecodeClientMsg([]byte(`{"type":"ball_escaped","vx":1.5,"vy":-2.5}`))
	require.NoError(t, err)
	assert.Equal(t, TypeBallEscaped, msg.Type)
	assert.Equal(t, 1.5, msg.BallEscaped.Vx)
	assert.Equal(t, -2.5, msg.BallEscaped.Vy)
}

func TestDecodeSetPaused(t *testing.T) {
	msg, err := DecodeClientMsg([]byte(`{"type":"set_paused","paused":true}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSetPaused, msg.Type)
	assert.True(t, msg.SetPaused.Paused)
}

func TestDecodeActivity(t *testing.T) {
	msg, err := DecodeClientMsg([]byte(`{"type":"activity"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeActivity, msg.Type)
}

func TestDecodeUnknownTypeErrors(t *testing.T) {
	_, err := DecodeClientMsg([]byte(`{"type":"bogus"}`))
	assert.Error(t, err)
}

func TestDecodeMalformedJSONErrors(t *testing.T) {
	_, err := DecodeClientMsg([]byte(`not json`))
	assert.Error(t, err)
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(Version))
	assert.False(t, Compatible(Version+1))
}
