package app

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	v := newFakeViewer()

	assert.True(t, r.Register(v))
	assert.False(t, r.Register(v), "second register of the same viewer is a no-op")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_UnregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	v := newFakeViewer()

	assert.False(t, r.Unregister(v, "never registered"))
	assert.Equal(t, 0, v.closes(), "absent viewer must not be closed")
}

func TestRegistry_UnregisterTwice(t *testing.T) {
	r := NewRegistry(nil)
	v := newFakeViewer()
	require.True(t, r.Register(v))

	assert.True(t, r.Unregister(v, "gone"))
	assert.False(t, r.Unregister(v, "gone again"))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, v.closes(), "viewer is closed exactly once")
}

func TestRegistry_KeyedByIdentity(t *testing.T) {
	r := NewRegistry(nil)
	a := newFakeViewer()
	b := newFakeViewer()
	b.id = a.id

	assert.True(t, r.Register(a))
	assert.True(t, r.Register(b), "same ID but different connection is a different member")
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry(nil)
	v1, v2 := newFakeViewer(), newFakeViewer()
	r.Register(v1)
	r.Register(v2)

	snap := r.Snapshot()
	require.Len(t, snap, 2)

	r.Unregister(v1, "left")
	assert.Len(t, snap, 2, "snapshot must not change after removal")
	assert.ElementsMatch(t, []domain.Viewer{v2}, r.Snapshot())
}

func TestRegistry_OnChangeReportsCounts(t *testing.T) {
	var counts []int
	r := NewRegistry(func(n int) { counts = append(counts, n) })
	v1, v2 := newFakeViewer(), newFakeViewer()

	r.Register(v1)
	r.Register(v2)
	r.Register(v2)
	r.Unregister(v1, "bye")
	r.Unregister(v1, "bye")

	assert.Equal(t, []int{1, 2, 1}, counts)
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(nil)
	viewers := []*fakeViewer{newFakeViewer(), newFakeViewer(), newFakeViewer()}
	for _, v := range viewers {
		r.Register(v)
	}

	closed := r.CloseAll("Server shutting down")

	assert.Equal(t, 3, closed)
	assert.Equal(t, 0, r.Len())
	for _, v := range viewers {
		assert.Equal(t, 1, v.closes())
		assert.Equal(t, "Server shutting down", v.closeReason)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	viewers := make([]*fakeViewer, 100)
	for i := range viewers {
		viewers[i] = newFakeViewer()
	}

	var wg sync.WaitGroup
	for _, v := range viewers {
		wg.Add(3)
		go func() {
			defer wg.Done()
			r.Register(v)
		}()
		go func() {
			defer wg.Done()
			_ = r.Snapshot()
		}()
		go func() {
			defer wg.Done()
			r.Unregister(v, "churn")
		}()
	}
	wg.Wait()

	for _, v := range viewers {
		r.Unregister(v, "cleanup")
		assert.LessOrEqual(t, v.closes(), 1)
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DoesNotLogMembershipChanges(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	r := NewRegistry(nil)
	v := newFakeViewer()
	require.True(t, r.Register(v))
	require.True(t, r.Unregister(v, "connection closed"))

	assert.Empty(t, buf.String())
}
