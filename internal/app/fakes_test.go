package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
)

type fakeViewer struct {
	id      string
	sendErr error

	mu          sync.Mutex
	frames      [][]byte
	closeCount  int
	closeReason string
}

func newFakeViewer() *fakeViewer {
	return &fakeViewer{id: uuid.NewString()}
}

func (v *fakeViewer) ID() string { return v.id }

func (v *fakeViewer) Send(data []byte) error {
	if v.sendErr != nil {
		return v.sendErr
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = append(v.frames, data)
	return nil
}

func (v *fakeViewer) Close(reason string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCount++
	v.closeReason = reason
}

func (v *fakeViewer) received() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.frames))
	copy(out, v.frames)
	return out
}

func (v *fakeViewer) closes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closeCount
}

// chanSource hands out a channel the test writes readings into.
type chanSource struct {
	ch chan domain.Reading
}

func newChanSource() *chanSource {
	return &chanSource{ch: make(chan domain.Reading)}
}

func (s *chanSource) Readings(_ context.Context) <-chan domain.Reading {
	return s.ch
}

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (s *recordingSink) PublishFrame(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (v *fakeViewer) reason() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closeReason
}
