package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
	apperrors "github.com/sebbywestside/exercise-monitoring-vest/internal/errors"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/platform/correlation"
)

const (
	maxMessageSize = 4096
	// DefaultWelcome is the handshake message when none is configured.
	DefaultWelcome = "Connected to Exercise Monitoring Vest bridge"
)

// Registrar is the part of the viewer registry the acceptor uses.
type Registrar interface {
	Register(v domain.Viewer) bool
	Unregister(v domain.Viewer, reason string) bool
}

// AcceptorConfig holds the acceptor's collaborators. Only Limits and Clock are
// required.
type AcceptorConfig struct {
	Limits         *ConnectionLimits
	CheckOrigin    func(r *http.Request) bool
	Clock          clockwork.Clock
	Metrics        *metrics.WebSocketMetrics
	OnWriteFailure FailureFunc
	Welcome        string
}

// Acceptor upgrades viewer connections, registers them and runs their
// receive loop until the remote end goes away.
type Acceptor struct {
	registry       Registrar
	limits         *ConnectionLimits
	upgrader       websocket.Upgrader
	clock          clockwork.Clock
	metrics        *metrics.WebSocketMetrics
	onWriteFailure FailureFunc
	welcome        string
}

// NewAcceptor creates an acceptor registering viewers with registry.
func NewAcceptor(registry Registrar, cfg AcceptorConfig) *Acceptor {
	welcome := cfg.Welcome
	if welcome == "" {
		welcome = DefaultWelcome
	}
	return &Acceptor{
		registry: registry,
		limits:   cfg.Limits,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clock:          cfg.Clock,
		metrics:        cfg.Metrics,
		onWriteFailure: cfg.OnWriteFailure,
		welcome:        welcome,
	}
}

// ServeHTTP blocks for the lifetime of the viewer connection.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ok, reason := a.limits.Acquire(ip); !ok {
		a.reject(w, r, ip, reason)
		return
	}
	defer a.limits.Release(ip)

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.Debug("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	viewer := NewViewer(conn, a.clock, a.metrics, a.onWriteFailure)
	ctx := correlation.WithID(r.Context(), viewer.ID())

	if a.metrics != nil {
		a.metrics.ConnectionsTotal.Inc()
		a.metrics.ActiveConnections.Inc()
		defer a.metrics.ActiveConnections.Dec()
	}

	// Queue the welcome before registering so it is always the first message.
	if err := viewer.Send(a.welcomeEnvelope()); err != nil {
		slog.WarnContext(ctx, "Failed to queue welcome", "error", err)
	}
	a.registry.Register(viewer)
	slog.InfoContext(ctx, "Viewer connected", "remote_addr", r.RemoteAddr)

	a.receiveLoop(ctx, conn)

	a.registry.Unregister(viewer, "connection closed")
	slog.InfoContext(ctx, "Viewer disconnected", "remote_addr", r.RemoteAddr)
}

func (a *Acceptor) reject(w http.ResponseWriter, r *http.Request, ip string, reason LimitReason) {
	if a.metrics != nil {
		a.metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
	}

	rejected := apperrors.RejectedError("too many connections").WithContext("reason", string(reason))
	if reason == LimitReasonGlobal {
		rejected = rejected.WithStatus(http.StatusServiceUnavailable)
	}
	slog.Warn("Viewer rejected", "ip", ip, "reason", reason, "path", r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rejected.HTTPStatus())
	_ = json.NewEncoder(w).Encode(rejected.ToResponse())
}

func (a *Acceptor) welcomeEnvelope() []byte {
	data, _ := json.Marshal(domain.Envelope{
		Type:       domain.EnvelopeConnection,
		Message:    a.welcome,
		ServerTime: a.clock.Now().UTC().Format(domain.ServerTimeLayout),
	})
	return data
}

// receiveLoop returns when the connection fails or is closed from either side.
func (a *Acceptor) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "Viewer read failed", "error", apperrors.TransportError("read", err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		a.handleMessage(ctx, data)
	}
}

func (a *Acceptor) handleMessage(ctx context.Context, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.DebugContext(ctx, "Ignoring viewer message", "error", apperrors.DecodeError("viewer message", err))
		return
	}

	if env.Type != domain.EnvelopeCommand {
		slog.DebugContext(ctx, "Ignoring viewer message", "type", env.Type)
		return
	}

	if a.metrics != nil {
		a.metrics.CommandsReceived.Inc()
	}
	slog.InfoContext(ctx, "Received command from viewer", "command", env.Command)
}
