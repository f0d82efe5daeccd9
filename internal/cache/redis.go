// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// RoomKeyPrefix namespaces room keys: room:<id>.
	RoomKeyPrefix = "room:"

	// RoomTTL bounds how long an abandoned room can linger if its owning instance dies.
	RoomTTL = 6 * time.Hour

	scanBatch = 100
)

// NewClient builds a Redis client from a redis:// URL or a bare host:port address.
// It does not contact the server; use Ping to check reachability.
func NewClient(url string, db int) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	if db != 0 {
		opts.DB = db
	}
	opts.MaxRetries = 1
	opts.DialTimeout = 2 * time.Second
	return redis.NewClient(opts)
}

// Ping checks the connection with a short timeout.
func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", rdb.Options().Addr, err)
	}
	return nil
}

// RoomKey returns the cache key of a room.
func RoomKey(id string) string {
	return RoomKeyPrefix + id
}

// RoomCache persists rooms as JSON documents, one key per room.
type RoomCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRoomCache(rdb *redis.Client) *RoomCache {
	return &RoomCache{rdb: rdb, ttl: RoomTTL}
}

// Get loads a room. The bool is false when the key does not exist.
func (c *RoomCache) Get(ctx context.Context, id string) (models.Room, bool, error) {
	raw, err := c.rdb.Get(ctx, RoomKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Room{}, false, nil
	}
	if err != nil {
		return models.Room{}, false, fmt.Errorf("get %s: %w", RoomKey(id), err)
	}
	room, err := decodeRoom(raw)
	if err != nil {
		return models.Room{}, false, err
	}
	return room, true, nil
}

// Set writes the whole room document, refreshing its TTL.
func (c *RoomCache) Set(ctx context.Context, room models.Room) error {
	room.Version = models.RoomSchemaVersion
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s: %w", room.ID, err)
	}
	if err := c.rdb.Set(ctx, RoomKey(room.ID), string(data), c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", RoomKey(room.ID), err)
	}
	return nil
}

func (c *RoomCache) Delete(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, RoomKey(id)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", RoomKey(id), err)
	}
	return nil
}

// List returns every cached room. Keys that vanish between SCAN and MGET are skipped.
func (c *RoomCache) List(ctx context.Context) ([]models.Room, error) {
	var (
		rooms  []models.Room
		cursor uint64
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, RoomKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rooms: %w", err)
		}
		if len(keys) > 0 {
			vals, err := c.rdb.MGet(ctx, keys...).Result()
			if err != nil {
				return nil, fmt.Errorf("mget rooms: %w", err)
			}
			for _, v := range vals {
				s, ok := v.(string)
				if !ok {
					continue
				}
				room, err := decodeRoom(s)
				if err != nil {
					continue
				}
				rooms = append(rooms, room)
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return rooms, nil
}

func decodeRoom(raw string) (models.Room, error) {
	var room models.Room
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return models.Room{}, fmt.Errorf("invalid room record: %w", err)
	}
	if room.Version > models.RoomSchemaVersion {
		return models.Room{}, fmt.Errorf("room %s has unsupported schema version %d", room.ID, room.Version)
	}
	return room, nil
}
