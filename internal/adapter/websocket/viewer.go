// Package websocket carries telemetry frames to browser dashboards over
// gorilla/websocket connections.
package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// FailureFunc is told when a viewer's own writer fails. It must not block.
type FailureFunc func(v domain.Viewer, err error)

// Viewer is one dashboard connection with its own writer goroutine. Frames
// queued with Send are written in order.
type Viewer struct {
	id         string
	connection *websocket.Conn
	clock      clockwork.Clock
	metrics    *metrics.WebSocketMetrics
	onFailure  FailureFunc

	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewViewer starts the writer for connection. m and onFailure may be nil.
func NewViewer(connection *websocket.Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics, onFailure FailureFunc) *Viewer {
	v := &Viewer{
		id:          uuid.NewString(),
		connection:  connection,
		clock:       clock,
		metrics:     m,
		onFailure:   onFailure,
		sendChannel: make(chan []byte, messageBufferSize),
		doneChannel: make(chan struct{}),
	}
	v.configurePongHandler()
	v.wg.Add(1)
	go v.run()
	return v
}

// ID implements domain.Viewer.
func (v *Viewer) ID() string {
	return v.id
}

// Send implements domain.Viewer. It never blocks.
func (v *Viewer) Send(data []byte) error {
	select {
	case <-v.doneChannel:
		return domain.ErrViewerClosed
	default:
	}

	select {
	case v.sendChannel <- data:
		return nil
	default:
		return domain.ErrViewerSlow
	}
}

// Close stops the writer, sends a close frame with reason and closes the
// connection. Later calls are no-ops.
func (v *Viewer) Close(reason string) {
	v.stopOnce.Do(func() {
		close(v.doneChannel)

		// The writer must be gone before the close frame is written.
		v.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		v.updateWriteDeadline()
		_ = v.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = v.connection.Close()
	})
}

func (v *Viewer) run() {
	ticker := v.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer v.wg.Done()

	for {
		select {
		case msg := <-v.sendChannel:
			start := v.clock.Now()
			v.updateWriteDeadline()
			if err := v.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				v.fail(apperrors.TransportError("write frame", err))
				return
			}
			if v.metrics != nil {
				v.metrics.MessagesSent.Inc()
				v.metrics.MessageSendDuration.Observe(v.clock.Since(start).Seconds())
			}
		case <-ticker.Chan():
			v.updateWriteDeadline()
			if err := v.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				if v.metrics != nil {
					v.metrics.PingFailures.Inc()
				}
				v.fail(apperrors.TransportError("write ping", err))
				return
			}
		case <-v.doneChannel:
			return
		}
	}
}

// fail reports a write error unless the viewer is already being closed.
func (v *Viewer) fail(err error) {
	select {
	case <-v.doneChannel:
		return
	default:
	}
	if v.onFailure != nil {
		v.onFailure(v, err)
	}
}

func (v *Viewer) configurePongHandler() {
	v.updateReadDeadline()
	v.connection.SetPongHandler(func(string) error {
		v.updateReadDeadline()
		return nil
	})
}

func (v *Viewer) updateWriteDeadline() {
	_ = v.connection.SetWriteDeadline(v.clock.Now().Add(writeDeadline))
}

func (v *Viewer) updateReadDeadline() {
	_ = v.connection.SetReadDeadline(v.clock.Now().Add(pongDeadline))
}
