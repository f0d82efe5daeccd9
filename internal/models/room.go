package models

import (
	"errors"
	"time"
)

// RoomSchemaVersion is bumped whenever the persisted Room layout changes.
const RoomSchemaVersion = 1

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "WAITING"
	StatusInProgress RoomStatus = "IN_PROGRESS"
	StatusFinished   RoomStatus = "FINISHED"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyMember = errors.New("connection is already a member of the room")
)

// Room is an ephemeral group of connections playing one session together.
// Members holds connection ids in join order; the first member is the host.
type Room struct {
	Version     int        `json:"v"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	GameType    GameType   `json:"gameType"`
	Stake       int        `json:"stake"`
	Status      RoomStatus `json:"status"`
	IsPrivate   bool       `json:"isPrivate"`
	MaxPlayers  int        `json:"maxPlayers"`
	Members     []string   `json:"members"`
	PlayerCount int        `json:"playerCount"`
	HostName    string     `json:"hostName"`
	HostAvatar  string     `json:"hostAvatar"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// AddMember appends connID, keeping len(Members) <= MaxPlayers and rejecting duplicates.
func (r *Room) AddMember(connID string) error {
	if r.HasMember(connID) {
		return ErrAlreadyMember
	}
	if r.IsFull() {
		return ErrRoomFull
	}
	r.Members = append(r.Members, connID)
	r.PlayerCount = len(r.Members)
	return nil
}

// RemoveMember drops connID and reports whether it was present.
func (r *Room) RemoveMember(connID string) bool {
	for i, m := range r.Members {
		if m == connID {
			r.Members = append(r.Members[:i:i], r.Members[i+1:]...)
			r.PlayerCount = len(r.Members)
			return true
		}
	}
	return false
}

func (r *Room) HasMember(connID string) bool {
	for _, m := range r.Members {
		if m == connID {
			return true
		}
	}
	return false
}

// Host returns the connection id of the current host, or "" for an empty room.
func (r *Room) Host() string {
	if len(r.Members) == 0 {
		return ""
	}
	return r.Members[0]
}

// IsFull reports whether the room has no free seat left.
func (r *Room) IsFull() bool {
	return len(r.Members) >= r.MaxPlayers
}

// Clone returns a deep copy so callers never share the Members backing array.
func (r *Room) Clone() Room {
	c := *r
	c.Members = append([]string(nil), r.Members...)
	return c
}
