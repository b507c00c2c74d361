package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
)

const (
	defaultQueueSize = 64
	publishTimeout   = 2 * time.Second
)

// ErrQueueFull is returned when the mirror cannot keep up with the bridge.
var ErrQueueFull = errors.New("mirror queue full")

// Publisher sends a payload to a pub/sub channel. *Client implements it.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// MirrorConfig tunes the mirror. Zero values pick defaults.
type MirrorConfig struct {
	Channel          string
	QueueSize        int
	FailureThreshold uint
	BreakerDelay     time.Duration
}

// Mirror is a FrameSink that republishes frames on a Redis channel. Frames
// are queued and published from Run so the bridge never waits on Redis.
type Mirror struct {
	pub     Publisher
	channel string
	queue   chan []byte
	breaker circuitbreaker.CircuitBreaker[any]
	metrics *metrics.MirrorMetrics
}

// NewMirror creates a mirror. m may be nil.
func NewMirror(pub Publisher, cfg MirrorConfig, m *metrics.MirrorMetrics) *Mirror {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 30 * time.Second
	}

	mirror := &Mirror{
		pub:     pub,
		channel: cfg.Channel,
		queue:   make(chan []byte, cfg.QueueSize),
		metrics: m,
	}
	mirror.breaker = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(cfg.FailureThreshold).
		WithDelay(cfg.BreakerDelay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "redis_mirror",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if m != nil {
				m.BreakerState.Set(stateToFloat(e.NewState))
			}
		}).
		Build()

	return mirror
}

// PublishFrame queues data without blocking.
func (m *Mirror) PublishFrame(_ context.Context, data []byte) error {
	select {
	case m.queue <- data:
		return nil
	default:
		m.drop()
		return ErrQueueFull
	}
}

// Run publishes queued frames until ctx is cancelled. Frames still queued at
// that point are discarded.
func (m *Mirror) Run(ctx context.Context) {
	slog.Info("Redis mirror started", "channel", m.channel)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Redis mirror stopped", "pending", len(m.queue))
			return
		case data := <-m.queue:
			if err := m.publish(ctx, data); err != nil {
				slog.Debug("Mirror publish failed", "channel", m.channel, "error", err)
			}
		}
	}
}

// BreakerOpen reports whether publishing is currently short-circuited.
func (m *Mirror) BreakerOpen() bool {
	return m.breaker.IsOpen()
}

func (m *Mirror) publish(ctx context.Context, data []byte) error {
	if !m.breaker.TryAcquirePermit() {
		m.drop()
		return fmt.Errorf("redis mirror: %w", circuitbreaker.ErrOpen)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := m.pub.Publish(pubCtx, m.channel, data); err != nil {
		m.breaker.RecordError(err)
		if m.metrics != nil {
			m.metrics.Errors.Inc()
		}
		return err
	}

	m.breaker.RecordSuccess()
	if m.metrics != nil {
		m.metrics.Published.Inc()
	}
	return nil
}

func (m *Mirror) drop() {
	if m.metrics != nil {
		m.metrics.Dropped.Inc()
	}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
