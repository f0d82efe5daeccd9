// internal/room/room_manager.go

package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/metrics"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxPlayers = 4
	MinPlayers        = 2
	MaxPlayersLimit   = 8
	maxNameLength     = 30
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomNotJoinable   = errors.New("game already in progress")
	ErrNotMember         = errors.New("you are not in this room")
	ErrNotHost           = errors.New("only the host can do that")
	ErrNotEnoughPlayers  = errors.New("need at least two players to start")
	ErrNotInProgress     = errors.New("game has not started")
	ErrInvalidMaxPlayers = fmt.Errorf("maxPlayers must be between %d and %d", MinPlayers, MaxPlayersLimit)
	ErrInvalidStake      = errors.New("stake cannot be negative")
)

// ListingPublisher tells other instances that the room listing changed.
type ListingPublisher interface {
	Publish(ctx context.Context) error
}

// Manager creates, mutates and tears down rooms. All mutations of one room are
// serialized through a per-room lock; the Store stays the source of truth.
type Manager struct {
	store    Store
	notifier events.Notifier
	logger   *logrus.Logger
	locks    *roomLocks
	bus      ListingPublisher

	// listMu orders listing snapshots with their broadcasts so the last
	// rooms_list a peer receives reflects the latest state.
	listMu sync.Mutex

	now func() time.Time
}

// NewManager creates and returns a new room Manager.
func NewManager(store Store, notifier events.Notifier, logger *logrus.Logger) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		logger:   logger,
		locks:    newRoomLocks(),
		now:      time.Now,
	}
}

// SetListingBus enables cross-instance listing notices.
func (m *Manager) SetListingBus(bus ListingPublisher) {
	m.bus = bus
}

// CreateParams describes an explicit create_room request.
type CreateParams struct {
	ConnectionID string
	Name         string
	GameType     string
	IsPrivate    bool
	Stake        int
	MaxPlayers   int
	Host         models.Profile
}

// CreateRoom opens a room with the requester as its only member, sends
// room_created to the requester and refreshes everyone's listing.
func (m *Manager) CreateRoom(ctx context.Context, p CreateParams) (models.Room, error) {
	gt, err := models.ParseGameType(p.GameType)
	if err != nil {
		metrics.TrackRoomOperation("create", "invalid")
		return models.Room{}, err
	}
	if p.Stake < 0 {
		metrics.TrackRoomOperation("create", "invalid")
		return models.Room{}, ErrInvalidStake
	}
	maxPlayers := p.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if maxPlayers < MinPlayers || maxPlayers > MaxPlayersLimit {
		metrics.TrackRoomOperation("create", "invalid")
		return models.Room{}, ErrInvalidMaxPlayers
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = fmt.Sprintf("%s Room", gt)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}

	room := models.Room{
		Version:     models.RoomSchemaVersion,
		ID:          m.newRoomID(ctx),
		Name:        name,
		GameType:    gt,
		Stake:       p.Stake,
		Status:      models.StatusWaiting,
		IsPrivate:   p.IsPrivate,
		MaxPlayers:  maxPlayers,
		Members:     []string{p.ConnectionID},
		PlayerCount: 1,
		HostName:    p.Host.Username,
		HostAvatar:  p.Host.Avatar,
		CreatedAt:   m.now(),
	}

	unlock := m.locks.lock(room.ID)
	m.store.Set(ctx, room)
	m.notifier.Send(p.ConnectionID, events.Message{Type: events.RoomCreated, Payload: events.RoomPayload{Room: room.Clone()}})
	unlock()

	m.logger.WithFields(logrus.Fields{
		"room":       room.ID,
		"conn":       p.ConnectionID,
		"gameType":   gt,
		"stake":      p.Stake,
		"maxPlayers": maxPlayers,
		"private":    p.IsPrivate,
	}).Info("Room created")
	metrics.TrackRoomOperation("create", "ok")

	m.BroadcastListing(ctx)
	return room, nil
}

// CreateMatchRoom opens a room for entries paired by the queue. Members keep
// queue order and the room seats exactly that many players.
func (m *Manager) CreateMatchRoom(ctx context.Context, gameType models.GameType, stake int, entries []models.QueueEntry) (models.Room, error) {
	if len(entries) < MinPlayers {
		return models.Room{}, ErrNotEnoughPlayers
	}
	members := make([]string, 0, len(entries))
	for _, e := range entries {
		members = append(members, e.ConnectionID)
	}
	host := entries[0]

	room := models.Room{
		Version:     models.RoomSchemaVersion,
		ID:          m.newRoomID(ctx),
		Name:        fmt.Sprintf("%s Battle", gameType),
		GameType:    gameType,
		Stake:       stake,
		Status:      models.StatusWaiting,
		MaxPlayers:  len(members),
		Members:     members,
		PlayerCount: len(members),
		HostName:    host.Username,
		HostAvatar:  host.Avatar,
		CreatedAt:   m.now(),
	}

	unlock := m.locks.lock(room.ID)
	m.store.Set(ctx, room)
	unlock()

	m.logger.WithFields(logrus.Fields{
		"room":     room.ID,
		"gameType": gameType,
		"stake":    stake,
		"members":  members,
	}).Info("Match room created")
	metrics.TrackRoomOperation("match", "ok")

	m.BroadcastListing(ctx)
	return room, nil
}

// JoinRoom appends connID to the room. ErrAlreadyMember is returned together
// with the unchanged room and must be treated as a no-op by callers.
func (m *Manager) JoinRoom(ctx context.Context, connID, roomID string) (models.Room, error) {
	unlock := m.locks.lock(roomID)

	room, ok := m.store.Get(ctx, roomID)
	if !ok || room.Status == models.StatusFinished {
		unlock()
		metrics.TrackRoomOperation("join", "not_found")
		return models.Room{}, ErrRoomNotFound
	}
	if room.Status != models.StatusWaiting {
		unlock()
		metrics.TrackRoomOperation("join", "in_progress")
		return models.Room{}, ErrRoomNotJoinable
	}
	if err := room.AddMember(connID); err != nil {
		unlock()
		if errors.Is(err, models.ErrAlreadyMember) {
			m.logger.WithFields(logrus.Fields{"room": roomID, "conn": connID}).Warn("Ignoring duplicate join")
			return room, err
		}
		metrics.TrackRoomOperation("join", "full")
		return models.Room{}, err
	}

	m.store.Set(ctx, room)
	m.sendToMembers(room, events.Message{Type: events.RoomUpdated, Payload: events.RoomPayload{Room: room.Clone()}})
	m.notifier.Send(connID, events.Message{Type: events.JoinSuccess, Payload: events.RoomPayload{Room: room.Clone()}})
	unlock()

	m.logger.WithFields(logrus.Fields{
		"room":    roomID,
		"conn":    connID,
		"players": room.PlayerCount,
	}).Info("Player joined room")
	metrics.TrackRoomOperation("join", "ok")

	m.BroadcastListing(ctx)
	return room, nil
}

// RemovePlayer drops connID from the room, deleting the room once it is empty.
// It reports whether anything changed, so repeated calls are harmless.
func (m *Manager) RemovePlayer(ctx context.Context, roomID, connID string) bool {
	unlock := m.locks.lock(roomID)

	room, ok := m.store.Get(ctx, roomID)
	if !ok || !room.RemoveMember(connID) {
		unlock()
		return false
	}

	fields := logrus.Fields{"room": roomID, "conn": connID, "players": room.PlayerCount}
	if len(room.Members) == 0 {
		m.store.Delete(ctx, roomID)
		unlock()
		m.logger.WithFields(fields).Info("Last player left, room removed")
	} else {
		m.store.Set(ctx, room)
		m.sendToMembers(room, events.Message{Type: events.RoomUpdated, Payload: events.RoomPayload{Room: room.Clone()}})
		unlock()
		m.logger.WithFields(fields).Info("Player left room")
	}
	metrics.TrackRoomOperation("leave", "ok")

	m.BroadcastListing(ctx)
	return true
}

// StartRoom moves a waiting room into play. Only the host may start it.
func (m *Manager) StartRoom(ctx context.Context, roomID, connID string) (models.Room, error) {
	unlock := m.locks.lock(roomID)

	room, ok := m.store.Get(ctx, roomID)
	if !ok {
		unlock()
		return models.Room{}, ErrRoomNotFound
	}
	switch {
	case !room.HasMember(connID):
		unlock()
		return models.Room{}, ErrNotMember
	case room.Host() != connID:
		unlock()
		return models.Room{}, ErrNotHost
	case room.Status != models.StatusWaiting:
		unlock()
		return models.Room{}, ErrRoomNotJoinable
	case len(room.Members) < MinPlayers:
		unlock()
		return models.Room{}, ErrNotEnoughPlayers
	}

	room.Status = models.StatusInProgress
	m.store.Set(ctx, room)
	m.sendToMembers(room, events.Message{Type: events.RoomUpdated, Payload: events.RoomPayload{Room: room.Clone()}})
	unlock()

	m.logger.WithFields(logrus.Fields{"room": roomID, "players": room.PlayerCount}).Info("Game started")
	metrics.TrackRoomOperation("start", "ok")

	m.BroadcastListing(ctx)
	return room, nil
}

// FinishRoom marks the room FINISHED, tells its members and removes it from
// the store. It returns the members that were seated so indices can be cleared.
func (m *Manager) FinishRoom(ctx context.Context, roomID string) ([]string, error) {
	return m.finish(ctx, roomID, nil)
}

// EndGame is FinishRoom on behalf of a peer: only the host of a room in play may end it.
func (m *Manager) EndGame(ctx context.Context, roomID, connID string) ([]string, error) {
	return m.finish(ctx, roomID, func(room models.Room) error {
		if !room.HasMember(connID) {
			return ErrNotMember
		}
		if room.Host() != connID {
			return ErrNotHost
		}
		if room.Status != models.StatusInProgress {
			return ErrNotInProgress
		}
		return nil
	})
}

func (m *Manager) finish(ctx context.Context, roomID string, check func(models.Room) error) ([]string, error) {
	unlock := m.locks.lock(roomID)

	room, ok := m.store.Get(ctx, roomID)
	if !ok {
		unlock()
		return nil, ErrRoomNotFound
	}
	if check != nil {
		if err := check(room); err != nil {
			unlock()
			return nil, err
		}
	}

	room.Status = models.StatusFinished
	m.sendToMembers(room, events.Message{Type: events.RoomUpdated, Payload: events.RoomPayload{Room: room.Clone()}})
	m.store.Delete(ctx, roomID)
	unlock()

	m.logger.WithFields(logrus.Fields{"room": roomID, "players": room.PlayerCount}).Info("Game finished, room removed")
	metrics.TrackRoomOperation("finish", "ok")

	m.BroadcastListing(ctx)
	return room.Members, nil
}

// GetRoom is a plain read against the store.
func (m *Manager) GetRoom(ctx context.Context, roomID string) (models.Room, bool) {
	return m.store.Get(ctx, roomID)
}

// GetAllRooms returns every room that is not finished, in no particular order.
func (m *Manager) GetAllRooms(ctx context.Context) []models.Room {
	all := m.store.List(ctx)
	out := make([]models.Room, 0, len(all))
	for _, r := range all {
		if r.Status == models.StatusFinished || len(r.Members) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Count is the number of rooms that are not finished.
func (m *Manager) Count(ctx context.Context) int {
	return len(m.GetAllRooms(ctx))
}

// BroadcastListing pushes rooms_list to every local peer and notifies other instances.
func (m *Manager) BroadcastListing(ctx context.Context) {
	m.broadcastLocalListing(ctx)
	if m.bus != nil {
		if err := m.bus.Publish(ctx); err != nil {
			m.logger.WithError(err).Debug("Failed to publish listing change")
		}
	}
}

// RefreshListing re-broadcasts the listing to local peers only. It is the
// handler for notices arriving from other instances.
func (m *Manager) RefreshListing(ctx context.Context) {
	m.broadcastLocalListing(ctx)
}

// SendListing pushes the current listing to a single connection.
func (m *Manager) SendListing(ctx context.Context, connID string) {
	rooms := m.GetAllRooms(ctx)
	m.notifier.Send(connID, events.Message{Type: events.RoomsList, Payload: events.RoomsListPayload{Rooms: rooms}})
}

func (m *Manager) broadcastLocalListing(ctx context.Context) {
	m.listMu.Lock()
	defer m.listMu.Unlock()
	rooms := m.GetAllRooms(ctx)
	m.notifier.Broadcast(events.Message{Type: events.RoomsList, Payload: events.RoomsListPayload{Rooms: rooms}})
}

// sendToMembers delivers msg to every member. Callers hold the room lock so
// members observe room events in mutation order.
func (m *Manager) sendToMembers(room models.Room, msg events.Message) {
	for _, connID := range room.Members {
		m.notifier.Send(connID, msg)
	}
}

// newRoomID returns room_<8 hex>, retrying on the unlikely clash with a live room.
func (m *Manager) newRoomID(ctx context.Context) string {
	var id string
	for i := 0; i < 5; i++ {
		id = "room_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if _, exists := m.store.Get(ctx, id); !exists {
			return id
		}
	}
	return id
}
