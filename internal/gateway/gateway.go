// internal/gateway/gateway.go

// Package gateway tracks live connections and routes their events to the
// matchmaking queue and the room manager.
package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/matchmaking"
	"github.com/jason-s-yu/naijaplay/internal/metrics"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/jason-s-yu/naijaplay/internal/room"
	"github.com/sirupsen/logrus"
)

const (
	DefaultStatsInterval = 5 * time.Second
	DefaultOutboxSize    = 32
)

// Options tunes a Gateway. Zero values select the defaults.
type Options struct {
	QueueTimeout  time.Duration
	StatsInterval time.Duration
	OutboxSize    int
}

// Stats is a point-in-time snapshot of server activity.
type Stats struct {
	Players int `json:"players"`
	Queued  int `json:"queued"`
	Games   int `json:"games"`
}

// Gateway owns the connection registry and the connection→room index, and
// implements events.Notifier for the managers it wires together.
type Gateway struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	roomOf map[string]string

	rooms  *room.Manager
	queue  *matchmaking.QueueManager
	logger *logrus.Logger

	statsInterval time.Duration
	outboxSize    int
}

// New builds a Gateway along with the room and queue managers it drives.
func New(store room.Store, logger *logrus.Logger, opts Options) *Gateway {
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOutboxSize
	}
	g := &Gateway{
		conns:         make(map[string]*Connection),
		roomOf:        make(map[string]string),
		logger:        logger,
		statsInterval: opts.StatsInterval,
		outboxSize:    opts.OutboxSize,
	}
	g.rooms = room.NewManager(store, g, logger)
	g.queue = matchmaking.NewQueueManager(g.rooms, g, logger, opts.QueueTimeout)
	g.queue.OnMatch = g.recordMatch
	return g
}

func (g *Gateway) Rooms() *room.Manager {
	return g.rooms
}

func (g *Gateway) Queue() *matchmaking.QueueManager {
	return g.queue
}

// Connect registers a new peer under a fresh connection id.
func (g *Gateway) Connect(profile models.Profile) *Connection {
	id := uuid.NewString()
	c := newConnection(id, profile.WithDefaults(id), g.outboxSize, g.logger)

	g.mu.Lock()
	g.conns[id] = c
	n := len(g.conns)
	g.mu.Unlock()
	metrics.SetConnections(n)

	g.logger.WithFields(logrus.Fields{
		"conn":     id,
		"playerId": c.Profile.PlayerID,
		"username": c.Profile.Username,
	}).Info("Peer connected")
	return c
}

// Disconnect removes every trace of connID: its queue entry, its room seat and
// its registry entry. Calling it twice is harmless.
func (g *Gateway) Disconnect(ctx context.Context, connID string) {
	g.mu.Lock()
	c, ok := g.conns[connID]
	if !ok {
		g.mu.Unlock()
		return
	}
	roomID := g.roomOf[connID]
	delete(g.roomOf, connID)
	delete(g.conns, connID)
	n := len(g.conns)
	g.mu.Unlock()

	g.queue.LeaveQueue(connID)
	if roomID != "" {
		g.rooms.RemovePlayer(ctx, roomID, connID)
	}
	c.close()
	metrics.SetConnections(n)

	g.logger.WithFields(logrus.Fields{"conn": connID, "room": roomID}).Info("Peer disconnected")
}

// CurrentRoom returns the room connID is seated in, if any.
func (g *Gateway) CurrentRoom(connID string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.roomOf[connID]
	return id, ok
}

// Send implements events.Notifier.
func (g *Gateway) Send(connID string, msg events.Message) {
	g.mu.RLock()
	c := g.conns[connID]
	g.mu.RUnlock()
	if c != nil {
		c.Write(msg)
	}
}

// Broadcast implements events.Notifier.
func (g *Gateway) Broadcast(msg events.Message) {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()
	for _, c := range conns {
		c.Write(msg)
	}
}

// Stats snapshots the number of peers, queued entries and live games.
func (g *Gateway) Stats(ctx context.Context) Stats {
	g.mu.RLock()
	players := len(g.conns)
	g.mu.RUnlock()
	return Stats{
		Players: players,
		Queued:  g.queue.Len(),
		Games:   g.rooms.Count(ctx),
	}
}

// Run broadcasts online_stats every stats interval until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s := g.Stats(ctx)
			metrics.SetRoomsActive(s.Games)
			g.Broadcast(events.Message{
				Type:    events.OnlineStats,
				Payload: events.OnlineStatsPayload{Players: s.Players, Games: s.Games},
			})
		}
	}
}

// Close stops queue timers. Connections are torn down by their transports.
func (g *Gateway) Close() {
	g.queue.Stop()
}

// recordMatch indexes the members of a freshly paired room. Members that
// vanished or sat down elsewhere while the room was being created are removed
// from it again.
func (g *Gateway) recordMatch(r models.Room) {
	var gone []string
	g.mu.Lock()
	for _, connID := range r.Members {
		_, live := g.conns[connID]
		current, seated := g.roomOf[connID]
		if !live || (seated && current != r.ID) {
			gone = append(gone, connID)
			continue
		}
		g.roomOf[connID] = r.ID
	}
	g.mu.Unlock()

	for _, connID := range gone {
		g.logger.WithFields(logrus.Fields{"conn": connID, "room": r.ID}).Warn("Matched peer left before the room was ready")
		g.rooms.RemovePlayer(context.Background(), r.ID, connID)
	}
}

// setRoom points connID at roomID after an explicit create or join. A peer
// that disconnected meanwhile is taken out of roomID again, and a seat
// recorded concurrently by a match is given up, so every room membership
// stays reachable from the index.
func (g *Gateway) setRoom(ctx context.Context, connID, roomID string) {
	g.mu.Lock()
	_, live := g.conns[connID]
	prev := g.roomOf[connID]
	if live {
		g.roomOf[connID] = roomID
	}
	g.mu.Unlock()

	switch {
	case !live:
		g.logger.WithFields(logrus.Fields{"conn": connID, "room": roomID}).Warn("Peer left before its room was ready")
		g.rooms.RemovePlayer(ctx, roomID, connID)
	case prev != "" && prev != roomID:
		g.logger.WithFields(logrus.Fields{"conn": connID, "room": prev}).Warn("Dropping seat taken while a create or join was in flight")
		g.rooms.RemovePlayer(ctx, prev, connID)
	}
}

// clearRoom drops index entries that still point at roomID.
func (g *Gateway) clearRoom(roomID string, members ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, connID := range members {
		if g.roomOf[connID] == roomID {
			delete(g.roomOf, connID)
		}
	}
}

// leaveCurrentRoom removes c from the room it is seated in, if any.
func (g *Gateway) leaveCurrentRoom(ctx context.Context, c *Connection) {
	roomID, ok := g.CurrentRoom(c.ID)
	if !ok {
		return
	}
	g.clearRoom(roomID, c.ID)
	g.rooms.RemovePlayer(ctx, roomID, c.ID)
}

func isUserError(err error) bool {
	return errors.Is(err, models.ErrInvalidGameType) ||
		errors.Is(err, models.ErrRoomFull) ||
		errors.Is(err, room.ErrRoomNotFound) ||
		errors.Is(err, room.ErrRoomNotJoinable) ||
		errors.Is(err, room.ErrNotMember) ||
		errors.Is(err, room.ErrNotHost) ||
		errors.Is(err, room.ErrNotEnoughPlayers) ||
		errors.Is(err, room.ErrNotInProgress) ||
		errors.Is(err, room.ErrInvalidMaxPlayers) ||
		errors.Is(err, room.ErrInvalidStake) ||
		errors.Is(err, matchmaking.ErrAlreadyQueued) ||
		errors.Is(err, matchmaking.ErrInvalidStake)
}
