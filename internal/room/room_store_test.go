package room

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	mu    sync.Mutex
	rooms map[string]models.Room
	err   error
	calls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{rooms: make(map[string]models.Room)}
}

func (c *fakeCache) Get(_ context.Context, id string) (models.Room, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return models.Room{}, false, c.err
	}
	r, ok := c.rooms[id]
	return r.Clone(), ok, nil
}

func (c *fakeCache) Set(_ context.Context, room models.Room) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return c.err
	}
	c.rooms[room.ID] = room.Clone()
	return nil
}

func (c *fakeCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return c.err
	}
	delete(c.rooms, id)
	return nil
}

func (c *fakeCache) List(_ context.Context) ([]models.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make([]models.Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		out = append(out, r.Clone())
	}
	return out, nil
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	room := models.Room{ID: "r1", MaxPlayers: 4, Members: []string{"a"}}

	s.Set(ctx, room)
	room.Members[0] = "mutated"

	got, ok := s.Get(ctx, "r1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.Members)
	assert.Equal(t, models.RoomSchemaVersion, got.Version)

	got.Members[0] = "mutated"
	again, _ := s.Get(ctx, "r1")
	assert.Equal(t, "a", again.Members[0])

	assert.Len(t, s.List(ctx), 1)
	s.Delete(ctx, "r1")
	_, ok = s.Get(ctx, "r1")
	assert.False(t, ok)
	assert.Empty(t, s.List(ctx))
}

func TestFallbackStoreHealthy(t *testing.T) {
	remote := newFakeCache()
	s := NewFallbackStore(remote, quietLogger())
	ctx := context.Background()

	s.Set(ctx, models.Room{ID: "r1", Members: []string{"a"}})
	_, inRemote := remote.rooms["r1"]
	assert.True(t, inRemote)

	got, ok := s.Get(ctx, "r1")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
	assert.Len(t, s.List(ctx), 1)
	assert.False(t, s.Degraded())
}

func TestFallbackStoreDegradesOnFirstError(t *testing.T) {
	remote := newFakeCache()
	s := NewFallbackStore(remote, quietLogger())
	ctx := context.Background()

	s.Set(ctx, models.Room{ID: "r1", Members: []string{"a"}})
	remote.err = errors.New("connection refused")

	// The local mirror answers once the cache fails.
	got, ok := s.Get(ctx, "r1")
	require.True(t, ok)
	assert.Equal(t, "r1", got.ID)
	assert.True(t, s.Degraded())

	calls := remote.calls
	s.Set(ctx, models.Room{ID: "r2", Members: []string{"b"}})
	s.Delete(ctx, "r1")
	assert.Len(t, s.List(ctx), 1)
	assert.Equal(t, calls, remote.calls, "degraded store stops calling the cache")
}

func TestNewStoreNilClient(t *testing.T) {
	s := NewStore(context.Background(), nil, quietLogger())
	assert.IsType(t, &MemoryStore{}, s)
}

func TestNewStoreUnreachable(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("dial tcp: connection refused"))

	s := NewStore(context.Background(), rdb, quietLogger())
	assert.IsType(t, &MemoryStore{}, s)
}

func TestNewStoreReachable(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	s := NewStore(context.Background(), rdb, quietLogger())
	assert.IsType(t, &FallbackStore{}, s)
}
