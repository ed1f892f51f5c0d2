// Command pinball-loadtest spawns many fake WebSocket clients against a
// running server: each connects, periodically sends ball_escaped, and
// counts the space_state broadcasts it receives, to exercise the tick
// loop and the broadcast hub under realistic connection counts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andersfylling/pinball-deepspace/internal/network"
	"github.com/andersfylling/pinball-deepspace/internal/protocol"
	"go.uber.org/zap"
)

// ballEscapedFrame is the wire shape of a client->server ball_escaped
// message, constructed by hand since encoding a client frame is this
// binary's job alone; the server side only ever decodes one.
type ballEscapedFrame struct {
	Type string  `json:"type"`
	Vx   float64 `json:"vx"`
	Vy   float64 `json:"vy"`
}

type serverEnvelope struct {
	Type string `json:"type"`
}

func main() {
	clients := flag.Int("clients", 100, "number of fake clients to spawn")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	escapeRate := flag.Float64("escape-rate", 0.5, "ball escapes per second per client")
	url := flag.String("url", "ws://127.0.0.1:9001/ws", "server URL")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var connected, spaceStates, ballsSent, errors atomic.Int64

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(id, *url, *escapeRate, stop, &connected, &spaceStates, &ballsSent, &errors, logger)
		}(i)
	}

	logger.Info("load test starting",
		zap.Int("clients", *clients),
		zap.Duration("duration", *duration),
		zap.Float64("escapeRate", *escapeRate),
		zap.String("url", *url),
	)

	time.Sleep(*duration)
	close(stop)
	wg.Wait()

	fmt.Printf("clients connected: %d/%d\n", connected.Load(), *clients)
	fmt.Printf("space_state frames received: %d\n", spaceStates.Load())
	fmt.Printf("ball_escaped frames sent: %d\n", ballsSent.Load())
	fmt.Printf("errors: %d\n", errors.Load())
}

func runClient(id int, url string, escapeRate float64, stop <-chan struct{}, connected, spaceStates, ballsSent, errors *atomic.Int64, logger *zap.Logger) {
	conn, err := network.Dial(url)
	if err != nil {
		logger.Warn("client failed to connect", zap.Int("client", id), zap.Error(err))
		errors.Add(1)
		return
	}
	defer conn.Close()
	connected.Add(1)

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		for {
			data, err := conn.Recv()
			if err != nil {
				return
			}
			var env serverEnvelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			if env.Type == protocol.TypeSpaceState {
				spaceStates.Add(1)
			}
		}
	}()

	var interval time.Duration
	if escapeRate > 0 {
		interval = time.Duration(float64(time.Second) / escapeRate)
	} else {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-recvDone:
			return
		case <-ticker.C:
			data, err := json.Marshal(ballEscapedFrame{
				Type: protocol.TypeBallEscaped,
				Vx:   rng.Float64()*2 - 1,
				Vy:   rng.Float64()*2 - 1,
			})
			if err != nil {
				continue
			}
			if err := conn.Send(data); err != nil {
				errors.Add(1)
				return
			}
			ballsSent.Add(1)
		}
	}
}
