package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/synthetic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type midRand struct{}

func (midRand) Float64() float64 { return 0.5 }
func (midRand) IntN(n int) int   { return n / 2 }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func (b *syncBuffer) readings() int {
	n := 0
	for _, l := range b.lines() {
		if strings.HasPrefix(l, "{") {
			n++
		}
	}
	return n
}

func newSession(out *syncBuffer, clock clockwork.Clock, duration time.Duration) *session {
	return &session{
		out:      out,
		clock:    clock,
		profile:  synthetic.DefaultProfile(),
		rng:      midRand{},
		interval: time.Second,
		duration: duration,
	}
}

func TestSession_WritesDeviceFormatWithProgress(t *testing.T) {
	out := &syncBuffer{}
	clock := clockwork.NewFakeClock()
	s := newSession(out, clock, 65*time.Second)

	type result struct {
		lines int
		err   error
	}
	done := make(chan result, 1)
	go func() {
		n, err := s.run(context.Background())
		done <- result{n, err}
	}()

	require.Eventually(t, func() bool { return out.readings() == 1 }, time.Second, time.Millisecond)
	for i := 1; i <= 65; i++ {
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return out.readings() == i+1 }, time.Second, time.Millisecond)
	}
	clock.Advance(time.Second)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 66, r.lines)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}

	var progress []string
	for _, line := range out.lines() {
		if strings.HasPrefix(line, "#") {
			progress = append(progress, line)
			continue
		}
		var fields map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &fields), line)
		assert.Len(t, fields, 4)
		assert.Contains(t, fields, "hr")
		assert.Contains(t, fields, "leadOff")
	}
	assert.Equal(t, []string{
		"# Progress: 30s / 65s - Phase: REST",
		"# Progress: 60s / 65s - Phase: WARM-UP",
	}, progress)
}

func TestSession_StopsOnCancel(t *testing.T) {
	out := &syncBuffer{}
	s := newSession(out, clockwork.NewFakeClock(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		n, _ := s.run(ctx)
		done <- n
	}()

	require.Eventually(t, func() bool { return out.readings() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case n := <-done:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
}

func TestSession_RestReadingIsBaseline(t *testing.T) {
	out := &syncBuffer{}
	s := newSession(out, clockwork.NewFakeClock(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _, _ = s.run(ctx) }()
	require.Eventually(t, func() bool { return out.readings() == 1 }, time.Second, time.Millisecond)
	cancel()

	var line deviceLine
	require.NoError(t, json.Unmarshal([]byte(out.lines()[0]), &line))
	assert.Equal(t, 70, line.HR)
	assert.Equal(t, 14, line.RR)
	assert.Equal(t, 0, line.Sweat)
}
