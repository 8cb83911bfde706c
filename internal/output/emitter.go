package output

import (
	"context"
	"time"

	"costsim/internal/simulator"
	"costsim/internal/websocket"
	"costsim/pkg/logging"
	"costsim/pkg/ratelimit"
)

// pollInterval is how often the emitter checks for a fresh Result.
// It is well under one second so a new publish is pushed promptly;
// the rate limiter below caps how often a broadcast actually fires.
const pollInterval = 100 * time.Millisecond

// republishRate is the steady-state broadcast rate per spec.md §5's
// ~1Hz Output role.
const republishRate = 1.0

// Emitter polls the Simulator for a fresh Result and pushes it to the
// Hub, at most once every fresh publish and at least once per second
// (the periodic re-publish spec.md §5 requires so a client that
// missed the last push still converges). Broadcast rate is capped by
// pkg/ratelimit so a burst of parameter changes can't flood
// subscribers faster than the Output role's stated cadence.
type Emitter struct {
	sim     *simulator.Simulator
	hub     *websocket.Hub
	limiter *ratelimit.RateLimiter
	log     *logging.Logger

	lastTimestamp time.Time
	lastForced    time.Time
}

// NewEmitter builds an Emitter pushing sim's Result to hub.
func NewEmitter(sim *simulator.Simulator, hub *websocket.Hub) *Emitter {
	return &Emitter{
		sim:     sim,
		hub:     hub,
		limiter: ratelimit.NewRateLimiter(republishRate, 1),
		log:     logging.L().WithComponent("output.emitter"),
	}
}

// Run blocks, polling and broadcasting until ctx is cancelled.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Emitter) tick() {
	result, ok := e.sim.Results()
	if !ok {
		return
	}

	fresh := result.Timestamp.After(e.lastTimestamp)
	periodic := time.Since(e.lastForced) >= time.Second
	if !fresh && !periodic {
		return
	}
	if !e.limiter.Allow() {
		return
	}

	e.hub.BroadcastResultUpdate(result)
	e.lastTimestamp = result.Timestamp
	e.lastForced = time.Now()
}
