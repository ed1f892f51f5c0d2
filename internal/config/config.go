// Package config holds the server's tunable parameters: deep-space physics
// constants and the process-level ServerConfig, both loadable from the
// environment via godotenv for local development.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DeepSpaceConfig tunes the sphere deep-space simulation.
type DeepSpaceConfig struct {
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

// DefaultDeepSpaceConfig returns the stock physics tuning.
func DefaultDeepSpaceConfig() DeepSpaceConfig {
	return DeepSpaceConfig{
		PortalAlpha:           0.15,
		OmegaMin:              0.5,
		OmegaMax:              1.0,
		RerouteAfter:          12.0,
		RerouteCooldown:       6.0,
		MinAgeForCapture:      15.0,
		MinAgeForReroute:      2.0,
		RerouteArrivalTimeMin: 4.0,
		RerouteArrivalTimeMax: 10.0,
	}
}

// Validate reports the first invalid field, if any.
func (c DeepSpaceConfig) Validate() error {
	if !isFinite(c.PortalAlpha) || c.PortalAlpha <= 0 {
		return fmt.Errorf("portalAlpha must be finite and > 0")
	}
	if c.PortalAlpha > math.Pi {
		return fmt.Errorf("portalAlpha must be <= pi")
	}
	if !isFinite(c.OmegaMin) || c.OmegaMin < 0 {
		return fmt.Errorf("omegaMin must be finite and >= 0")
	}
	if !isFinite(c.OmegaMax) || c.OmegaMax < c.OmegaMin {
		return fmt.Errorf("omegaMax must be finite and >= omegaMin")
	}
	if !isFinite(c.MinAgeForCapture) || c.MinAgeForCapture < 0 {
		return fmt.Errorf("minAgeForCapture must be finite and >= 0")
	}
	return nil
}

// BotConfig controls bot seeding on server start.
type BotConfig struct {
	Count            int
	SendInitialBalls bool
}

// DefaultBotConfig mirrors the original server's default of 3 bots.
func DefaultBotConfig() BotConfig {
	return BotConfig{Count: 3, SendInitialBalls: true}
}

// ServerConfig holds process-level server configuration.
type ServerConfig struct {
	ListenAddr           string
	TickRateHz           int
	BroadcastRateHz      int
	CellCount            int
	RngSeed              uint64
	MaxVelocity          float64
	MaxBallEscapedPerSec int
	MaxConnections       int
	MaxBallsGlobal       int
	AllowedOrigins       []string
	BotCount             int
	CaptureSpeed         float64
}

// DefaultServerConfig mirrors the original server's defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:           "0.0.0.0:9001",
		TickRateHz:           60,
		BroadcastRateHz:      10,
		CellCount:            2048,
		RngSeed:              42,
		MaxVelocity:          10.0,
		MaxBallEscapedPerSec: 30,
		MaxConnections:       1000,
		MaxBallsGlobal:       1000,
		AllowedOrigins:       nil,
		BotCount:             3,
		CaptureSpeed:         1.5,
	}
}

// Validate reports the first invalid field, if any.
func (c ServerConfig) Validate() error {
	if c.TickRateHz <= 0 {
		return fmt.Errorf("tickRateHz must be > 0")
	}
	if c.BroadcastRateHz <= 0 {
		return fmt.Errorf("broadcastRateHz must be > 0")
	}
	if c.CellCount <= 0 {
		return fmt.Errorf("cellCount must be > 0")
	}
	if !isFinite(c.MaxVelocity) || c.MaxVelocity <= 0 {
		return fmt.Errorf("maxVelocity must be finite and > 0")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("maxConnections must be > 0")
	}
	if c.MaxBallsGlobal <= 0 {
		return fmt.Errorf("maxBallsGlobal must be > 0")
	}
	if c.CellCount < c.MaxConnections {
		return fmt.Errorf("cellCount must be >= maxConnections")
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// LoadServerConfig loads a .env file if present (missing files are not an
// error) and overlays environment variables onto the default ServerConfig.
func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	cfg := DefaultServerConfig()

	if v := os.Getenv("PINBALL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := envInt("PINBALL_TICK_RATE_HZ"); ok {
		cfg.TickRateHz = v
	}
	if v, ok := envInt("PINBALL_BROADCAST_RATE_HZ"); ok {
		cfg.BroadcastRateHz = v
	}
	if v, ok := envInt("PINBALL_CELL_COUNT"); ok {
		cfg.CellCount = v
	}
	if v, ok := envUint64("PINBALL_RNG_SEED"); ok {
		cfg.RngSeed = v
	}
	if v, ok := envFloat("PINBALL_MAX_VELOCITY"); ok {
		cfg.MaxVelocity = v
	}
	if v, ok := envInt("PINBALL_MAX_BALL_ESCAPED_PER_SEC"); ok {
		cfg.MaxBallEscapedPerSec = v
	}
	if v, ok := envInt("PINBALL_MAX_CONNECTIONS"); ok {
		cfg.MaxConnections = v
	}
	if v, ok := envInt("PINBALL_MAX_BALLS_GLOBAL"); ok {
		cfg.MaxBallsGlobal = v
	}
	if v := os.Getenv("PINBALL_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	if v, ok := envInt("PINBALL_BOT_COUNT"); ok {
		cfg.BotCount = v
	}

	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envUint64(key string) (uint64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
