package app

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
)

const (
	broadcastLogEvery = 10
	sinkTimeout       = 2 * time.Second
)

// BroadcastMetrics receives fan-out measurements.
type BroadcastMetrics interface {
	FrameBroadcast(fanOut time.Duration)
	FrameDiscarded()
	DeliveryFailed(reason string)
	SinkPublishFailed()
}

// Bridge fans readings from a single source out to every registered viewer.
type Bridge struct {
	source   domain.Source
	registry *Registry
	clock    clockwork.Clock
	metrics  BroadcastMetrics
	sinks    []domain.FrameSink

	lastStamp  time.Time
	broadcasts atomic.Int64
}

// NewBridge creates a bridge. m may be nil. Sinks receive every encoded frame,
// including frames no viewer was connected for.
func NewBridge(source domain.Source, registry *Registry, clock clockwork.Clock, m BroadcastMetrics, sinks ...domain.FrameSink) *Bridge {
	return &Bridge{
		source:   source,
		registry: registry,
		clock:    clock,
		metrics:  m,
		sinks:    sinks,
	}
}

// Run drains the source until ctx is cancelled or the source closes its
// channel. Delivery failures never stop the loop.
func (b *Bridge) Run(ctx context.Context) {
	readings := b.source.Readings(ctx)
	slog.Info("Bridge started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Bridge stopped", "broadcasts", b.broadcasts.Load())
			return
		case r, ok := <-readings:
			if !ok {
				slog.Info("Source closed, bridge stopping", "broadcasts", b.broadcasts.Load())
				return
			}
			b.broadcast(ctx, r)
		}
	}
}

// Broadcasts returns how many frames reached at least one viewer.
func (b *Bridge) Broadcasts() int64 {
	return b.broadcasts.Load()
}

func (b *Bridge) broadcast(ctx context.Context, r domain.Reading) {
	frame := domain.NewFrame(r, b.stamp())
	data, err := frame.Encode()
	if err != nil {
		slog.Error("Failed to encode frame", "error", err)
		return
	}

	defer b.publishToSinks(ctx, data)

	viewers := b.registry.Snapshot()
	if len(viewers) == 0 {
		if b.metrics != nil {
			b.metrics.FrameDiscarded()
		}
		return
	}

	start := b.clock.Now()
	for _, v := range viewers {
		if err := v.Send(data); err != nil {
			b.dropViewer(v, err)
		}
	}

	count := b.broadcasts.Add(1)
	if b.metrics != nil {
		b.metrics.FrameBroadcast(b.clock.Since(start))
	}

	if count%broadcastLogEvery == 0 {
		slog.Info("Broadcast",
			"count", count,
			"phase", frame.Phase,
			"hr", frame.HR,
			"rr", frame.RR,
			"sweat", frame.Sweat,
			"clients", len(viewers),
		)
	}
}

// stamp returns the emission time, never earlier than the previous one.
func (b *Bridge) stamp() time.Time {
	now := b.clock.Now()
	if now.Before(b.lastStamp) {
		now = b.lastStamp
	}
	b.lastStamp = now
	return now
}

// dropViewer unregisters v off the broadcast path so a slow Close never
// delays the other viewers.
func (b *Bridge) dropViewer(v domain.Viewer, cause error) {
	reason := "send failed"
	label := "error"
	switch {
	case errors.Is(cause, domain.ErrViewerSlow):
		reason, label = "viewer too slow", "slow"
	case errors.Is(cause, domain.ErrViewerClosed):
		reason, label = "viewer closed", "closed"
	}

	if b.metrics != nil {
		b.metrics.DeliveryFailed(label)
	}
	slog.Warn("Dropping viewer after failed delivery", "conn_id", v.ID(), "error", cause)

	go b.registry.Unregister(v, reason)
}

// ReportWriteFailure is the callback viewers use when their own writer fails.
func (b *Bridge) ReportWriteFailure(v domain.Viewer, cause error) {
	b.dropViewer(v, cause)
}

func (b *Bridge) publishToSinks(ctx context.Context, data []byte) {
	for _, sink := range b.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := sink.PublishFrame(sinkCtx, data)
		cancel()
		if err != nil {
			if b.metrics != nil {
				b.metrics.SinkPublishFailed()
			}
			slog.Debug("Frame sink rejected frame", "error", err)
		}
	}
}
