package domain

import "errors"

var (
	ErrViewerClosed   = errors.New("viewer closed")
	ErrViewerSlow     = errors.New("viewer send buffer full")
	ErrMalformedFrame = errors.New("malformed telemetry object")
)
