// internal/room/room_store.go
package room

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jason-s-yu/naijaplay/internal/cache"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store maps room ids to room state. Implementations never surface backend
// errors; callers serialize read-modify-write per room themselves.
type Store interface {
	Get(ctx context.Context, id string) (models.Room, bool)
	Set(ctx context.Context, room models.Room)
	Delete(ctx context.Context, id string)
	List(ctx context.Context) []models.Room
}

// MemoryStore keeps rooms in process memory. State is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]models.Room
}

// NewMemoryStore initializes and returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]models.Room),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return models.Room{}, false
	}
	return r.Clone(), true
}

func (s *MemoryStore) Set(_ context.Context, room models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room.Version = models.RoomSchemaVersion
	s.rooms[room.ID] = room.Clone()
}

func (s *MemoryStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// List returns copies of every stored room, in no particular order.
func (s *MemoryStore) List(_ context.Context) []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r.Clone())
	}
	return out
}

// roomCache is the subset of cache.RoomCache the fallback store needs.
type roomCache interface {
	Get(ctx context.Context, id string) (models.Room, bool, error)
	Set(ctx context.Context, room models.Room) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Room, error)
}

// FallbackStore reads from a shared cache while it is healthy and mirrors every
// write into memory. The first cache error logs one warning and pins the store
// to memory mode for the rest of the process lifetime.
type FallbackStore struct {
	remote   roomCache
	local    *MemoryStore
	logger   *logrus.Logger
	degraded atomic.Bool
	warnOnce sync.Once
}

func NewFallbackStore(remote roomCache, logger *logrus.Logger) *FallbackStore {
	return &FallbackStore{
		remote: remote,
		local:  NewMemoryStore(),
		logger: logger,
	}
}

// Degraded reports whether the store has fallen back to memory.
func (s *FallbackStore) Degraded() bool {
	return s.degraded.Load()
}

// fail pins the store to memory. Errors caused by the caller's own context
// ending say nothing about cache health and are ignored.
func (s *FallbackStore) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.degraded.Store(true)
	s.warnOnce.Do(func() {
		s.logger.WithError(err).WithField("op", op).Warn("Room cache unavailable, falling back to in-memory rooms")
	})
}

func (s *FallbackStore) Get(ctx context.Context, id string) (models.Room, bool) {
	if !s.degraded.Load() {
		r, ok, err := s.remote.Get(ctx, id)
		if err == nil {
			return r, ok
		}
		s.fail(ctx, "get", err)
	}
	return s.local.Get(ctx, id)
}

func (s *FallbackStore) Set(ctx context.Context, room models.Room) {
	s.local.Set(ctx, room)
	if s.degraded.Load() {
		return
	}
	if err := s.remote.Set(ctx, room); err != nil {
		s.fail(ctx, "set", err)
	}
}

func (s *FallbackStore) Delete(ctx context.Context, id string) {
	s.local.Delete(ctx, id)
	if s.degraded.Load() {
		return
	}
	if err := s.remote.Delete(ctx, id); err != nil {
		s.fail(ctx, "delete", err)
	}
}

func (s *FallbackStore) List(ctx context.Context) []models.Room {
	if !s.degraded.Load() {
		rooms, err := s.remote.List(ctx)
		if err == nil {
			return rooms
		}
		s.fail(ctx, "list", err)
	}
	return s.local.List(ctx)
}

// NewStore picks a backend: a nil client gives a MemoryStore, an unreachable
// Redis gives a MemoryStore plus one warning, otherwise a FallbackStore over Redis.
func NewStore(ctx context.Context, rdb *redis.Client, logger *logrus.Logger) Store {
	if rdb == nil {
		logger.Info("No room cache configured, rooms live in process memory")
		return NewMemoryStore()
	}
	if err := cache.Ping(ctx, rdb); err != nil {
		logger.WithError(err).Warn("Room cache unreachable, falling back to in-memory rooms")
		return NewMemoryStore()
	}
	logger.Infof("Room cache connected at %s", rdb.Options().Addr)
	return NewFallbackStore(cache.NewRoomCache(rdb), logger)
}
