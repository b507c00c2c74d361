package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/adapter/metrics"
	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const retryDelay = 5 * time.Second

type linkHarness struct {
	link     *Link
	clock    *clockwork.FakeClock
	metrics  *metrics.SerialMetrics
	readings <-chan domain.Reading
	ctx      context.Context
	cancel   context.CancelFunc
}

func startLink(t *testing.T, opener *fakeOpener) *linkHarness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := &linkHarness{
		clock:   clockwork.NewFakeClock(),
		metrics: metrics.NewSerialMetrics(prometheus.NewRegistry()),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.link = NewLink("/dev/ttyTEST", opener, h.clock, retryDelay, h.metrics)
	h.readings = h.link.Readings(ctx)

	t.Cleanup(func() {
		cancel()
		for range h.readings {
		}
	})
	return h
}

func (h *linkHarness) waitState(t *testing.T, want LinkState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.link.State() == want
	}, time.Second, 5*time.Millisecond, "link never became %s", want)
}

// advanceRetry waits for the link to start its retry wait, then ends it.
func (h *linkHarness) advanceRetry(t *testing.T) {
	t.Helper()
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))
	h.clock.Advance(retryDelay)
}

func (h *linkHarness) next(t *testing.T) domain.Reading {
	t.Helper()
	select {
	case r := <-h.readings:
		return r
	case <-time.After(time.Second):
		t.Fatal("no reading received")
		return domain.Reading{}
	}
}

func (h *linkHarness) assertNoReading(t *testing.T) {
	t.Helper()
	select {
	case r := <-h.readings:
		t.Fatalf("unexpected reading %+v", r)
	default:
	}
}

func TestLink_RelaysDecodedLines(t *testing.T) {
	port := newFakePort()
	h := startLink(t, &fakeOpener{results: []openResult{{port: port}}})
	h.waitState(t, Connected)

	port.reads <- []byte("{\"hr\":72,\"rr\":14,\"sweat\":0,\"leadOff\":false}\r\n")

	r := h.next(t)
	assert.Equal(t, domain.Reading{HR: 72, RR: 14}, r)
	assert.True(t, h.link.Connected())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.LinkConnected))
}

func TestLink_RelaysLinesWithSurroundingWhitespace(t *testing.T) {
	port := newFakePort()
	h := startLink(t, &fakeOpener{results: []openResult{{port: port}}})
	h.waitState(t, Connected)

	port.reads <- []byte("  {\"hr\":72,\"rr\":14,\"sweat\":0,\"leadOff\":false}\r\n")
	port.reads <- []byte("\t{\"hr\":75,\"rr\":15,\"sweat\":1,\"leadOff\":false}  \n")
	port.reads <- []byte("   \r\n")

	assert.Equal(t, domain.Reading{HR: 72, RR: 14}, h.next(t))
	assert.Equal(t, domain.Reading{HR: 75, RR: 15, Sweat: 1}, h.next(t))
	h.assertNoReading(t)
	assert.Zero(t, testutil.ToFloat64(h.metrics.LinesRead.WithLabelValues("diagnostic")))
}

func TestLink_MalformedLinesNeverBroadcast(t *testing.T) {
	port := newFakePort()
	h := startLink(t, &fakeOpener{results: []openResult{{port: port}}})
	h.waitState(t, Connected)

	port.reads <- []byte("{\"hr\":72,\"rr\n")
	port.reads <- []byte("# Sensor warming up\n")
	port.reads <- []byte("{not json at all}\n")
	port.reads <- []byte("{\"hr\":90,\"rr\":20,\"sweat\":2,\"leadOff\":1}\n")

	r := h.next(t)
	assert.Equal(t, domain.Reading{HR: 90, RR: 20, Sweat: 2, LeadOff: true}, r)
	h.assertNoReading(t)

	assert.Equal(t, int64(2), h.link.Malformed())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.LinesRead.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.LinesRead.WithLabelValues("diagnostic")))
	assert.Equal(t, Connected, h.link.State())
}

func TestLink_EmptyReadIsNotAnError(t *testing.T) {
	port := newFakePort()
	opener := &fakeOpener{results: []openResult{{port: port}}}
	h := startLink(t, opener)
	h.waitState(t, Connected)

	port.reads <- []byte{}
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))
	h.clock.Advance(idleYield)

	port.reads <- []byte("{\"hr\":66}\n")
	assert.Equal(t, 66, h.next(t).HR)
	assert.Equal(t, 1, opener.callCount(), "no reconnect after an empty read")
}

func TestLink_ReconnectsAfterIOFailure(t *testing.T) {
	first, second := newFakePort(), newFakePort()
	opener := &fakeOpener{results: []openResult{{port: first}, {port: second}}}
	h := startLink(t, opener)
	h.waitState(t, Connected)

	// A partial line from the lost port must not leak into the next one.
	first.reads <- []byte(`{"hr":1`)
	first.fail <- errors.New("read /dev/ttyTEST: input/output error")

	h.waitState(t, Disconnected)
	assert.True(t, first.isClosed())
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.LinkConnected))

	h.advanceRetry(t)
	h.waitState(t, Connected)

	second.reads <- []byte("{\"hr\":77}\n")
	assert.Equal(t, 77, h.next(t).HR)
	assert.Equal(t, 2, opener.callCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Reconnects))
}

func TestLink_RetriesOpenWithConstantDelay(t *testing.T) {
	port := newFakePort()
	opener := &fakeOpener{results: []openResult{
		{err: errors.New("no such file or directory")},
		{err: errors.New("permission denied")},
		{port: port},
	}}
	h := startLink(t, opener)

	h.advanceRetry(t)
	h.advanceRetry(t)
	h.waitState(t, Connected)

	assert.Equal(t, 3, opener.callCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.OpenFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Reconnects), "first successful open is not a reconnect")
}

func TestLink_DoesNotRetryBeforeDelay(t *testing.T) {
	opener := &fakeOpener{}
	h := startLink(t, opener)

	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))
	h.clock.Advance(retryDelay - time.Millisecond)

	assert.Never(t, func() bool {
		return opener.callCount() > 1
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestLink_CancelClosesPort(t *testing.T) {
	port := newFakePort()
	h := startLink(t, &fakeOpener{results: []openResult{{port: port}}})
	h.waitState(t, Connected)

	h.cancel()

	select {
	case _, ok := <-h.readings:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("readings channel not closed after cancel")
	}
	assert.True(t, port.isClosed())
	assert.Equal(t, Disconnected, h.link.State())
}

func TestLink_CancelDuringRetryWait(t *testing.T) {
	h := startLink(t, &fakeOpener{})
	require.NoError(t, h.clock.BlockUntilContext(h.ctx, 1))

	h.cancel()

	select {
	case _, ok := <-h.readings:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("readings channel not closed after cancel")
	}
}

func TestLinkState_String(t *testing.T) {
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "disconnected", Disconnected.String())
}
