package domain

import "context"

// Viewer is one live downstream connection.
type Viewer interface {
	// ID is an opaque identity used in logs only.
	ID() string
	// Send queues an encoded frame without blocking. It returns
	// ErrViewerClosed or ErrViewerSlow when the frame cannot be queued.
	Send(data []byte) error
	// Close tears down the connection. Safe to call more than once.
	Close(reason string)
}

// Source produces readings until ctx is cancelled, then closes the channel.
type Source interface {
	Readings(ctx context.Context) <-chan Reading
}

// FrameSink receives every encoded frame after fan-out.
type FrameSink interface {
	PublishFrame(ctx context.Context, data []byte) error
}
