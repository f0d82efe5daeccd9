// Package events defines the message envelope exchanged with peers and the
// typed payload carried by each event.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/naijaplay/internal/models"
)

// Inbound event types.
const (
	JoinQueue  = "join_queue"
	LeaveQueue = "leave_queue"
	CreateRoom = "create_room"
	JoinRoom   = "join_room"
	LeaveRoom  = "leave_room"
	GetRooms   = "get_rooms"
	StartGame  = "start_game"
	FinishGame = "finish_game"
	Ping       = "ping"
)

// Outbound event types.
const (
	QueueJoined  = "queue_joined"
	QueueError   = "queue_error"
	QueueTimeout = "queue_timeout"
	MatchFound   = "match_found"
	RoomCreated  = "room_created"
	JoinSuccess  = "join_success"
	RoomUpdated  = "room_updated"
	RoomsList    = "rooms_list"
	OnlineStats  = "online_stats"
	Error        = "error"
	Pong         = "pong"
)

// Inbound is a raw message from a peer. Payload is decoded lazily by the handler
// that owns the event type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (in Inbound) Decode(v interface{}) error {
	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(in.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", in.Type, err)
	}
	return nil
}

// Message is a single outbound event.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Notifier delivers outbound events to live connections.
type Notifier interface {
	// Send pushes msg to a single connection; unknown ids are ignored.
	Send(connID string, msg Message)
	// Broadcast pushes msg to every connected peer.
	Broadcast(msg Message)
}

// Inbound payloads.

type JoinQueuePayload struct {
	GameType string `json:"gameType"`
	Stake    int    `json:"stake"`
	Rank     *int   `json:"rank,omitempty"`
}

type CreateRoomPayload struct {
	Name       string `json:"name"`
	GameType   string `json:"gameType"`
	IsPrivate  bool   `json:"isPrivate"`
	Stake      int    `json:"stake"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

// RoomRefPayload addresses a room by id. join_room also accepts a bare JSON string.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

// UnmarshalJSON accepts either {"roomId": "..."} or "...".
func (p *RoomRefPayload) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		p.RoomID = id
		return nil
	}
	type plain RoomRefPayload
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = RoomRefPayload(v)
	return nil
}

// Outbound payloads.

type QueueJoinedPayload struct {
	GameType      models.GameType `json:"gameType"`
	Stake         int             `json:"stake"`
	Position      int             `json:"position"`
	EstimatedWait int             `json:"estimatedWait"`
}

type QueueTimeoutPayload struct {
	GameType models.GameType `json:"gameType"`
	Stake    int             `json:"stake"`
	Message  string          `json:"message"`
}

type MatchFoundPayload struct {
	RoomID string      `json:"roomId"`
	Room   models.Room `json:"room"`
}

type RoomPayload struct {
	Room models.Room `json:"room"`
}

type RoomsListPayload struct {
	Rooms []models.Room `json:"rooms"`
}

type OnlineStatsPayload struct {
	Players int `json:"players"`
	Games   int `json:"games"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewError builds a generic error event.
func NewError(msg string) Message {
	return Message{Type: Error, Payload: ErrorPayload{Message: msg}}
}

// NewQueueError builds a rejected-enqueue event.
func NewQueueError(msg string) Message {
	return Message{Type: QueueError, Payload: ErrorPayload{Message: msg}}
}
