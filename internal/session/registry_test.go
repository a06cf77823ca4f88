package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmtrv/minefield/internal/model"
	"github.com/dmtrv/minefield/internal/world"
)

// fakeStore is an in-memory PlayerStore.
type fakeStore struct {
	mu      sync.Mutex
	players map[string]model.Player
	touched map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players: make(map[string]model.Player),
		touched: make(map[string]int),
	}
}

func (f *fakeStore) FindOrCreatePlayer(_ context.Context, id string) (model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		p = model.Player{ID: id, LastSeen: time.Now()}
		f.players[id] = p
	}
	return p, nil
}

func (f *fakeStore) TouchPlayer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id]++
	return nil
}

// fakeTransport records enqueued messages.
type fakeTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (f *fakeTransport) Enqueue(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestRegistry_AddRemove_Lockstep(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store)
	ctx := context.Background()

	tr := &fakeTransport{}
	sess, err := reg.Add(ctx, tr)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.PlayerID())
	assert.Equal(t, 1, reg.Count())

	// Both mappings point at the same session.
	id, ok := reg.Lookup(tr)
	require.True(t, ok)
	assert.Equal(t, sess.PlayerID(), id)
	assert.Same(t, sess, reg.Get(id))

	// Initial cursor is the map centre.
	x, y := sess.Cursor()
	assert.Equal(t, world.Width/2, x)
	assert.Equal(t, world.Height/2, y)

	removed := reg.Remove(ctx, tr)
	require.Same(t, sess, removed)
	assert.Equal(t, 0, reg.Count())
	assert.Nil(t, reg.Get(id))
	_, ok = reg.Lookup(tr)
	assert.False(t, ok)
	assert.Equal(t, 1, store.touched[id])

	// Removing twice is a no-op.
	assert.Nil(t, reg.Remove(ctx, tr))
}

func TestRegistry_EachConnectMintsFreshID(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	ctx := context.Background()

	a, err := reg.Add(ctx, &fakeTransport{})
	require.NoError(t, err)
	b, err := reg.Add(ctx, &fakeTransport{})
	require.NoError(t, err)

	assert.NotEqual(t, a.PlayerID(), b.PlayerID())
}

func TestRegistry_UpdateCursor_Clamps(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	sess, err := reg.Add(context.Background(), &fakeTransport{})
	require.NoError(t, err)

	reg.UpdateCursor(sess.PlayerID(), -17.5, 99999)
	x, y := sess.Cursor()
	assert.Equal(t, 0, x)
	assert.Equal(t, world.Height-1, y)

	reg.UpdateCursor(sess.PlayerID(), 100.9, 200.1)
	x, y = sess.Cursor()
	assert.Equal(t, 100, x)
	assert.Equal(t, 200, y)

	// Unknown player is ignored.
	reg.UpdateCursor("no-such-player", 1, 1)
}

func TestRegistry_UpdateCachedScore(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	sess, err := reg.Add(context.Background(), &fakeTransport{})
	require.NoError(t, err)

	reg.UpdateCachedScore(sess.PlayerID(), -50)
	assert.EqualValues(t, -50, sess.Score())
}

func TestRegistry_SessionsInRegion(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	ctx := context.Background()

	a, err := reg.Add(ctx, &fakeTransport{})
	require.NoError(t, err)
	b, err := reg.Add(ctx, &fakeTransport{})
	require.NoError(t, err)
	c, err := reg.Add(ctx, &fakeTransport{})
	require.NoError(t, err)

	reg.UpdateCursor(a.PlayerID(), 100, 100)
	reg.UpdateCursor(b.PlayerID(), 110, 110)
	reg.UpdateCursor(c.PlayerID(), 500, 500)

	got := reg.SessionsInRegion(world.Viewport(105, 105), "")
	ids := make(map[string]bool)
	for _, s := range got {
		ids[s.PlayerID] = true
	}
	assert.True(t, ids[a.PlayerID()])
	assert.True(t, ids[b.PlayerID()])
	assert.False(t, ids[c.PlayerID()])

	// Exclusion drops a single id.
	got = reg.SessionsInRegion(world.Viewport(105, 105), a.PlayerID())
	require.Len(t, got, 1)
	assert.Equal(t, b.PlayerID(), got[0].PlayerID)
}

func TestRegistry_SessionsInRegion_WrappedSeam(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	ctx := context.Background()

	edge, err := reg.Add(ctx, &fakeTransport{})
	require.NoError(t, err)
	reg.UpdateCursor(edge.PlayerID(), world.Width-1, world.Height-1)

	// A viewport centred on the origin wraps across both seams.
	got := reg.SessionsInRegion(world.Viewport(0, 0), "")
	require.Len(t, got, 1)
	assert.Equal(t, edge.PlayerID(), got[0].PlayerID)
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry(newFakeStore())
	ctx := context.Background()

	t1 := &fakeTransport{}
	t2 := &fakeTransport{}
	_, err := reg.Add(ctx, t1)
	require.NoError(t, err)
	_, err = reg.Add(ctx, t2)
	require.NoError(t, err)

	reg.CloseAll()
	assert.True(t, t1.closed)
	assert.True(t, t2.closed)
}
