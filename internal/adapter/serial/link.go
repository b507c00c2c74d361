package serial

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
)

const (
	readingBuffer = 16
	readChunk     = 256
	idleYield     = 10 * time.Millisecond
	sampleEvery   = 20
	previewLength = 80
)

// LinkState is the connection state of the serial link.
type LinkState int32

const (
	Disconnected LinkState = iota
	Connected
)

func (s LinkState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// Link is a domain.Source backed by a serial device. It reopens the device
// after any I/O failure and never gives up until its context is cancelled.
type Link struct {
	device     string
	opener     Opener
	clock      clockwork.Clock
	retryDelay time.Duration
	metrics    *metrics.SerialMetrics

	state       atomic.Int32
	framer      lineFramer
	malformed   atomic.Int64
	diagnostics atomic.Int64
	dropped     atomic.Int64
}

// NewLink creates a link for device. m may be nil.
func NewLink(device string, opener Opener, clock clockwork.Clock, retryDelay time.Duration, m *metrics.SerialMetrics) *Link {
	return &Link{
		device:     device,
		opener:     opener,
		clock:      clock,
		retryDelay: retryDelay,
		metrics:    m,
	}
}

// Readings starts the link. The channel closes once ctx is cancelled and the
// port has been closed.
func (l *Link) Readings(ctx context.Context) <-chan domain.Reading {
	out := make(chan domain.Reading, readingBuffer)
	go l.run(ctx, out)
	return out
}

// State reports the current link state.
func (l *Link) State() LinkState {
	return LinkState(l.state.Load())
}

// Connected reports whether the device is open.
func (l *Link) Connected() bool {
	return l.State() == Connected
}

// Malformed returns how many JSON-looking lines failed to decode.
func (l *Link) Malformed() int64 {
	return l.malformed.Load()
}

func (l *Link) setState(s LinkState) {
	l.state.Store(int32(s))
	if l.metrics != nil {
		l.metrics.LinkConnected.Set(float64(s))
	}
}

func (l *Link) run(ctx context.Context, out chan<- domain.Reading) {
	defer close(out)

	failures := 0
	everConnected := false

	for {
		if ctx.Err() != nil {
			slog.Info("Serial link stopped", "device", l.device)
			return
		}

		port, err := l.opener.Open(l.device)
		if err != nil {
			failures++
			if l.metrics != nil {
				l.metrics.OpenFailures.Inc()
			}
			uerr := apperrors.UpstreamError("open serial port", err).WithContext("device", l.device)
			if failures == 1 {
				slog.Error("Serial port unavailable, retrying", "error", uerr, "retry_in", l.retryDelay)
			} else {
				slog.Debug("Serial port still unavailable", "error", uerr, "attempt", failures)
			}
			if !l.wait(ctx, l.retryDelay) {
				slog.Info("Serial link stopped", "device", l.device)
				return
			}
			continue
		}

		if everConnected && l.metrics != nil {
			l.metrics.Reconnects.Inc()
		}
		everConnected = true
		failures = 0
		l.framer.reset()
		l.setState(Connected)
		slog.Info("Serial port connected", "device", l.device)

		err = l.readLoop(ctx, port, out)
		l.setState(Disconnected)

		if ctx.Err() != nil {
			slog.Info("Serial link stopped", "device", l.device)
			return
		}
		slog.Warn("Serial link lost, reconnecting", "device", l.device, "error", err, "retry_in", l.retryDelay)
		if !l.wait(ctx, l.retryDelay) {
			slog.Info("Serial link stopped", "device", l.device)
			return
		}
	}
}

// readLoop reads until an I/O error or cancellation. The port is always
// closed on return; cancellation closes it immediately to unblock Read.
func (l *Link) readLoop(ctx context.Context, port Port, out chan<- domain.Reading) error {
	var closeOnce sync.Once
	closePort := func() {
		closeOnce.Do(func() {
			if err := port.Close(); err != nil {
				slog.Debug("Closing serial port failed", "device", l.device, "error", err)
			}
		})
	}
	stop := context.AfterFunc(ctx, closePort)
	defer func() {
		stop()
		closePort()
	}()

	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := port.Read(buf)
		if n > 0 {
			discarded := l.framer.feed(buf[:n], func(line string) {
				l.handleLine(line, out)
			})
			if discarded > 0 && l.metrics != nil {
				l.metrics.LinesRead.WithLabelValues("overlong").Add(float64(discarded))
			}
		}
		if err != nil {
			return apperrors.UpstreamError("read serial port", err).WithContext("device", l.device)
		}
		if n == 0 && !l.wait(ctx, idleYield) {
			return ctx.Err()
		}
	}
}

func (l *Link) handleLine(line string, out chan<- domain.Reading) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if !strings.HasPrefix(line, "{") {
		n := l.diagnostics.Add(1)
		l.countLine("diagnostic")
		if n%sampleEvery == 0 {
			slog.Debug("Device output", "line", preview(line), "seen", n)
		}
		return
	}

	r, err := decodeLine(line)
	if err != nil {
		n := l.malformed.Add(1)
		l.countLine("malformed")
		if n%sampleEvery == 0 {
			slog.Warn("Discarding malformed device line",
				"error", apperrors.DecodeError("device line", err),
				"line", preview(line),
				"seen", n,
			)
		}
		return
	}

	l.countLine("reading")
	select {
	case out <- r:
		if l.metrics != nil {
			l.metrics.ReadingsQueued.Inc()
		}
	default:
		n := l.dropped.Add(1)
		if l.metrics != nil {
			l.metrics.ReadingsDropped.Inc()
		}
		slog.Debug("Reading dropped, bridge is behind", "dropped", n)
	}
}

func (l *Link) countLine(kind string) {
	if l.metrics != nil {
		l.metrics.LinesRead.WithLabelValues(kind).Inc()
	}
}

// wait sleeps on the link's clock. It returns false if ctx ended first.
func (l *Link) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-l.clock.After(d):
		return true
	}
}

func preview(line string) string {
	if len(line) <= previewLength {
		return line
	}
	return line[:previewLength] + "..."
}
