package models

import (
	"fmt"
	"time"
)

// QueueEntry is one connection waiting in a (GameType, Stake) bucket.
type QueueEntry struct {
	ConnectionID string    `json:"connectionId"`
	PlayerID     string    `json:"playerId,omitempty"`
	Username     string    `json:"username"`
	Avatar       string    `json:"avatar"`
	GameType     GameType  `json:"gameType"`
	Stake        int       `json:"stake"`
	Rank         *int      `json:"rank,omitempty"` // accepted but not used for pairing yet
	EnqueuedAt   time.Time `json:"enqueuedAt"`
}

// BucketKey identifies a FIFO waiting list.
type BucketKey struct {
	GameType GameType
	Stake    int
}

func (k BucketKey) String() string {
	return fmt.Sprintf("%s:%d", k.GameType, k.Stake)
}

// Bucket returns the key of the waiting list this entry belongs to.
func (e QueueEntry) Bucket() BucketKey {
	return BucketKey{GameType: e.GameType, Stake: e.Stake}
}
