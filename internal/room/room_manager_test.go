// internal/room/room_manager_test.go
package room

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to  string // "" for broadcast
	msg events.Message
}

// recordingNotifier captures every outbound event for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []sent
}

func (n *recordingNotifier) Send(connID string, msg events.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{to: connID, msg: msg})
}

func (n *recordingNotifier) Broadcast(msg events.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, sent{msg: msg})
}

func (n *recordingNotifier) to(connID string) []events.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []events.Message
	for _, s := range n.msgs {
		if s.to == connID {
			out = append(out, s.msg)
		}
	}
	return out
}

func (n *recordingNotifier) types(connID string) []string {
	var out []string
	for _, m := range n.to(connID) {
		out = append(out, m.Type)
	}
	return out
}

func (n *recordingNotifier) lastBroadcast() (events.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.msgs) - 1; i >= 0; i-- {
		if n.msgs[i].to == "" {
			return n.msgs[i].msg, true
		}
	}
	return events.Message{}, false
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = nil
}

type countingBus struct {
	mu    sync.Mutex
	count int
}

func (b *countingBus) Publish(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestManager() (*Manager, *recordingNotifier) {
	n := &recordingNotifier{}
	return NewManager(NewMemoryStore(), n, quietLogger()), n
}

func createRoom(t *testing.T, m *Manager, connID string, maxPlayers int) models.Room {
	t.Helper()
	r, err := m.CreateRoom(context.Background(), CreateParams{
		ConnectionID: connID,
		Name:         "Friday night",
		GameType:     "npat",
		MaxPlayers:   maxPlayers,
		Host:         models.Profile{PlayerID: "p-" + connID, Username: connID},
	})
	require.NoError(t, err)
	return r
}

func TestCreateRoom(t *testing.T) {
	m, n := newTestManager()
	ctx := context.Background()

	r := createRoom(t, m, "a", 0)

	assert.True(t, strings.HasPrefix(r.ID, "room_"))
	assert.Len(t, r.ID, len("room_")+8)
	assert.Equal(t, models.GameNPAT, r.GameType)
	assert.Equal(t, models.StatusWaiting, r.Status)
	assert.Equal(t, DefaultMaxPlayers, r.MaxPlayers)
	assert.Equal(t, []string{"a"}, r.Members)
	assert.Equal(t, 1, r.PlayerCount)
	assert.Equal(t, "a", r.HostName)

	assert.Equal(t, []string{events.RoomCreated}, n.types("a"))
	b, ok := n.lastBroadcast()
	require.True(t, ok)
	assert.Equal(t, events.RoomsList, b.Type)
	assert.Len(t, b.Payload.(events.RoomsListPayload).Rooms, 1)

	got, ok := m.GetRoom(ctx, r.ID)
	require.True(t, ok)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, 1, m.Count(ctx))
}

func TestCreateRoomValidation(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.CreateRoom(ctx, CreateParams{ConnectionID: "a", GameType: "CHESS"})
	assert.ErrorIs(t, err, models.ErrInvalidGameType)

	_, err = m.CreateRoom(ctx, CreateParams{ConnectionID: "a", GameType: "NPAT", Stake: -1})
	assert.ErrorIs(t, err, ErrInvalidStake)

	_, err = m.CreateRoom(ctx, CreateParams{ConnectionID: "a", GameType: "NPAT", MaxPlayers: 9})
	assert.ErrorIs(t, err, ErrInvalidMaxPlayers)

	_, err = m.CreateRoom(ctx, CreateParams{ConnectionID: "a", GameType: "NPAT", MaxPlayers: 1})
	assert.ErrorIs(t, err, ErrInvalidMaxPlayers)

	assert.Zero(t, m.Count(ctx))
}

func TestCreateRoomNameDefaults(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	r, err := m.CreateRoom(ctx, CreateParams{ConnectionID: "a", GameType: "TINKO", Name: "   "})
	require.NoError(t, err)
	assert.Equal(t, "TINKO Room", r.Name)

	r, err = m.CreateRoom(ctx, CreateParams{ConnectionID: "b", GameType: "TINKO", Name: strings.Repeat("é", 40)})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 30), r.Name)
}

func TestCreateMatchRoom(t *testing.T) {
	m, n := newTestManager()
	entries := []models.QueueEntry{
		{ConnectionID: "a", Username: "ada", Avatar: "a.png", GameType: models.GameAfter, Stake: 100},
		{ConnectionID: "b", Username: "bola", GameType: models.GameAfter, Stake: 100},
	}

	r, err := m.CreateMatchRoom(context.Background(), models.GameAfter, 100, entries)
	require.NoError(t, err)

	assert.Equal(t, "AFTER Battle", r.Name)
	assert.Equal(t, []string{"a", "b"}, r.Members)
	assert.Equal(t, 2, r.MaxPlayers)
	assert.Equal(t, 100, r.Stake)
	assert.Equal(t, "ada", r.HostName)
	assert.Equal(t, "a.png", r.HostAvatar)
	assert.Equal(t, models.StatusWaiting, r.Status)

	// match_found is the queue's job; the manager only refreshes the listing.
	assert.Empty(t, n.to("a"))
	assert.Empty(t, n.to("b"))
	_, ok := n.lastBroadcast()
	assert.True(t, ok)

	_, err = m.CreateMatchRoom(context.Background(), models.GameAfter, 100, entries[:1])
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestJoinRoom(t *testing.T) {
	m, n := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 2)
	n.reset()

	joined, err := m.JoinRoom(ctx, "b", r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, joined.Members)
	assert.Equal(t, 2, joined.PlayerCount)

	assert.Equal(t, []string{events.RoomUpdated}, n.types("a"))
	assert.Equal(t, []string{events.RoomUpdated, events.JoinSuccess}, n.types("b"))

	_, err = m.JoinRoom(ctx, "c", r.ID)
	assert.ErrorIs(t, err, models.ErrRoomFull)

	_, err = m.JoinRoom(ctx, "c", "room_missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomDuplicateIsNoop(t *testing.T) {
	m, n := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 4)
	n.reset()

	got, err := m.JoinRoom(ctx, "a", r.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyMember)
	assert.Equal(t, []string{"a"}, got.Members)
	assert.Empty(t, n.msgs)
}

func TestJoinRoomRejectedInProgress(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 4)
	_, err := m.JoinRoom(ctx, "b", r.ID)
	require.NoError(t, err)
	_, err = m.StartRoom(ctx, r.ID, "a")
	require.NoError(t, err)

	_, err = m.JoinRoom(ctx, "c", r.ID)
	assert.ErrorIs(t, err, ErrRoomNotJoinable)
}

func TestRemovePlayer(t *testing.T) {
	m, n := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 4)
	_, err := m.JoinRoom(ctx, "b", r.ID)
	require.NoError(t, err)
	n.reset()

	assert.True(t, m.RemovePlayer(ctx, r.ID, "a"))
	got, ok := m.GetRoom(ctx, r.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"b"}, got.Members)
	assert.Equal(t, "b", got.Host())
	assert.Equal(t, "a", got.HostName)
	assert.Equal(t, []string{events.RoomUpdated}, n.types("b"))
	assert.Empty(t, n.to("a"))

	assert.False(t, m.RemovePlayer(ctx, r.ID, "a"), "second removal is a no-op")

	assert.True(t, m.RemovePlayer(ctx, r.ID, "b"))
	_, ok = m.GetRoom(ctx, r.ID)
	assert.False(t, ok, "empty room is deleted")
	assert.Zero(t, m.Count(ctx))

	assert.False(t, m.RemovePlayer(ctx, "room_missing", "b"))
}

func TestStartRoom(t *testing.T) {
	m, n := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 4)

	_, err := m.StartRoom(ctx, r.ID, "a")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = m.JoinRoom(ctx, "b", r.ID)
	require.NoError(t, err)

	_, err = m.StartRoom(ctx, r.ID, "b")
	assert.ErrorIs(t, err, ErrNotHost)

	_, err = m.StartRoom(ctx, r.ID, "z")
	assert.ErrorIs(t, err, ErrNotMember)

	n.reset()
	started, err := m.StartRoom(ctx, r.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)
	for _, c := range []string{"a", "b"} {
		msgs := n.to(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, events.RoomUpdated, msgs[0].Type)
		assert.Equal(t, models.StatusInProgress, msgs[0].Payload.(events.RoomPayload).Room.Status)
	}

	_, err = m.StartRoom(ctx, r.ID, "a")
	assert.ErrorIs(t, err, ErrRoomNotJoinable)
}

func TestFinishRoom(t *testing.T) {
	m, n := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 2)
	_, err := m.JoinRoom(ctx, "b", r.ID)
	require.NoError(t, err)
	n.reset()

	members, err := m.FinishRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	for _, c := range members {
		msgs := n.to(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, models.StatusFinished, msgs[0].Payload.(events.RoomPayload).Room.Status)
	}
	_, ok := m.GetRoom(ctx, r.ID)
	assert.False(t, ok)

	_, err = m.FinishRoom(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestEndGame(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "a", 2)
	_, err := m.JoinRoom(ctx, "b", r.ID)
	require.NoError(t, err)

	_, err = m.EndGame(ctx, r.ID, "a")
	assert.ErrorIs(t, err, ErrNotInProgress)

	_, err = m.StartRoom(ctx, r.ID, "a")
	require.NoError(t, err)

	_, err = m.EndGame(ctx, r.ID, "b")
	assert.ErrorIs(t, err, ErrNotHost)

	members, err := m.EndGame(ctx, r.ID, "a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)
}

func TestGetAllRoomsSkipsFinished(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, &recordingNotifier{}, quietLogger())
	ctx := context.Background()

	store.Set(ctx, models.Room{ID: "live", Status: models.StatusWaiting, MaxPlayers: 2, Members: []string{"a"}})
	store.Set(ctx, models.Room{ID: "done", Status: models.StatusFinished, MaxPlayers: 2, Members: []string{"b"}})

	rooms := m.GetAllRooms(ctx)
	require.Len(t, rooms, 1)
	assert.Equal(t, "live", rooms[0].ID)
	assert.Equal(t, 1, m.Count(ctx))
}

func TestBroadcastListingPublishes(t *testing.T) {
	m, _ := newTestManager()
	bus := &countingBus{}
	m.SetListingBus(bus)

	createRoom(t, m, "a", 2)
	m.RefreshListing(context.Background())

	assert.Equal(t, 1, bus.count, "refreshes from peers are not re-published")
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	r := createRoom(t, m, "host", 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := m.JoinRoom(ctx, "c"+string(rune('a'+i)), r.ID); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	got, ok := m.GetRoom(ctx, r.ID)
	require.True(t, ok)
	assert.Equal(t, 3, accepted)
	assert.Len(t, got.Members, 4)
	assert.Equal(t, 4, got.PlayerCount)
	assert.Zero(t, m.locks.size())
}
