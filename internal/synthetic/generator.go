package synthetic

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
)

const readingBuffer = 16

// Generator is a domain.Source producing one reading per interval. Each tick
// advances the simulated timeline by one second; the timeline wraps at the
// cycle length.
type Generator struct {
	profile  Profile
	clock    clockwork.Clock
	interval time.Duration
	cycle    int
	rng      Rand

	dropped atomic.Int64
}

// NewGenerator creates a generator. cycle is the simulated session length;
// values under one second fall back to the profile's recovery start plus three
// minutes, which is the default ten-minute loop.
func NewGenerator(profile Profile, clock clockwork.Clock, interval, cycle time.Duration, rng Rand) *Generator {
	steps := int(cycle / time.Second)
	if steps < 1 {
		steps = profile.CoolDownEnd + 180
	}
	if rng == nil {
		rng = NewRand(uint64(clock.Now().UnixNano()))
	}
	return &Generator{
		profile:  profile,
		clock:    clock,
		interval: interval,
		cycle:    steps,
		rng:      rng,
	}
}

// Readings starts the generator. The channel closes when ctx is cancelled.
func (g *Generator) Readings(ctx context.Context) <-chan domain.Reading {
	out := make(chan domain.Reading, readingBuffer)
	go g.run(ctx, out)
	return out
}

// Dropped returns how many readings were discarded because the consumer fell
// behind.
func (g *Generator) Dropped() int64 {
	return g.dropped.Load()
}

func (g *Generator) run(ctx context.Context, out chan<- domain.Reading) {
	defer close(out)

	ticker := g.clock.NewTicker(g.interval)
	defer ticker.Stop()

	slog.Info("Synthetic generator started", "interval", g.interval, "cycle_seconds", g.cycle)

	elapsed := 0
	for {
		r := Vitals(elapsed, g.rng, g.profile)
		select {
		case out <- r:
		default:
			n := g.dropped.Add(1)
			slog.Debug("Reading dropped, bridge is behind", "elapsed", elapsed, "dropped", n)
		}

		elapsed++
		if elapsed >= g.cycle {
			elapsed = 0
			slog.Info("Restarting simulation cycle")
		}

		select {
		case <-ctx.Done():
			slog.Info("Synthetic generator stopped")
			return
		case <-ticker.Chan():
		}
	}
}
