// internal/matchmaking/queue_manager.go

// Package matchmaking pairs peers waiting for the same game and stake.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/metrics"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout is the wait ceiling applied when none is configured.
	DefaultTimeout = 2 * time.Minute

	// waitPerPair is the rough time it takes the queue ahead of a peer to clear one pair.
	waitPerPair = 30 * time.Second

	matchSize = 2
)

var (
	ErrAlreadyQueued = errors.New("already in queue")
	ErrInvalidStake  = errors.New("stake cannot be negative")
)

// RoomCreator opens the room a freshly paired set of entries is seated in.
type RoomCreator interface {
	CreateMatchRoom(ctx context.Context, gameType models.GameType, stake int, entries []models.QueueEntry) (models.Room, error)
}

// waiting is a queued entry plus the timer enforcing its wait ceiling.
type waiting struct {
	entry models.QueueEntry
	timer *time.Timer
}

// QueueManager keeps one FIFO list per (GameType, Stake) bucket. A connection is
// in at most one bucket at a time.
type QueueManager struct {
	mu      sync.Mutex
	buckets map[models.BucketKey][]*waiting
	byConn  map[string]*waiting

	rooms    RoomCreator
	notifier events.Notifier
	logger   *logrus.Logger
	timeout  time.Duration

	// OnMatch runs after a paired room exists and before match_found is sent,
	// so the caller can index the new members first.
	OnMatch func(room models.Room)

	now func() time.Time
}

// NewQueueManager creates a manager whose entries are dropped after timeout.
// A non-positive timeout selects DefaultTimeout.
func NewQueueManager(rooms RoomCreator, notifier events.Notifier, logger *logrus.Logger, timeout time.Duration) *QueueManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &QueueManager{
		buckets:  make(map[models.BucketKey][]*waiting),
		byConn:   make(map[string]*waiting),
		rooms:    rooms,
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
		now:      time.Now,
	}
}

// JoinQueue appends entry to its bucket, acknowledges with queue_joined and
// pairs the bucket. A connection that is already queued anywhere is rejected
// without touching its existing timer.
func (q *QueueManager) JoinQueue(ctx context.Context, entry models.QueueEntry) error {
	gt, err := models.ParseGameType(string(entry.GameType))
	if err != nil {
		return err
	}
	if entry.Stake < 0 {
		return ErrInvalidStake
	}
	entry.GameType = gt

	q.mu.Lock()
	if _, ok := q.byConn[entry.ConnectionID]; ok {
		q.mu.Unlock()
		return ErrAlreadyQueued
	}

	entry.EnqueuedAt = q.now()
	w := &waiting{entry: entry}
	key := entry.Bucket()
	q.buckets[key] = append(q.buckets[key], w)
	q.byConn[entry.ConnectionID] = w
	position := len(q.buckets[key])

	q.notifier.Send(entry.ConnectionID, events.Message{
		Type: events.QueueJoined,
		Payload: events.QueueJoinedPayload{
			GameType:      gt,
			Stake:         entry.Stake,
			Position:      position,
			EstimatedWait: EstimatedWait(position),
		},
	})
	w.timer = time.AfterFunc(q.timeout, func() { q.expire(w) })

	pairs := q.popPairsLocked(key)
	q.reportLengthLocked(key)
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"conn":     entry.ConnectionID,
		"gameType": gt,
		"stake":    entry.Stake,
		"position": position,
	}).Info("Player joined queue")

	// Room creation must not be cut short by the requester going away mid-pair.
	matchCtx := context.WithoutCancel(ctx)
	for _, pair := range pairs {
		q.seat(matchCtx, key, pair)
	}
	return nil
}

// LeaveQueue removes connID from whichever bucket holds it. It reports whether
// an entry was removed; calling it for an unqueued connection is a no-op.
func (q *QueueManager) LeaveQueue(connID string) bool {
	q.mu.Lock()
	w, ok := q.byConn[connID]
	if !ok {
		q.mu.Unlock()
		return false
	}
	q.removeLocked(w)
	q.mu.Unlock()

	q.logger.WithFields(logrus.Fields{
		"conn":     connID,
		"gameType": w.entry.GameType,
		"stake":    w.entry.Stake,
	}).Info("Player left queue")
	return true
}

func (q *QueueManager) IsQueued(connID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byConn[connID]
	return ok
}

// QueueLength is the number of entries waiting in one bucket.
func (q *QueueManager) QueueLength(gameType models.GameType, stake int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buckets[models.BucketKey{GameType: gameType, Stake: stake}])
}

// Len is the number of queued entries across every bucket.
func (q *QueueManager) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byConn)
}

// Stop cancels every pending timer and empties the queue.
func (q *QueueManager) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, w := range q.byConn {
		if w.timer != nil {
			w.timer.Stop()
		}
	}
	emptied := q.buckets
	q.buckets = make(map[models.BucketKey][]*waiting)
	q.byConn = make(map[string]*waiting)
	for key := range emptied {
		q.reportLengthLocked(key)
	}
}

// EstimatedWait returns the advisory wait, in whole seconds, for a 1-based position.
func EstimatedWait(position int) int {
	if position < 1 {
		position = 1
	}
	pairsAhead := (position + matchSize - 1) / matchSize
	return int((waitPerPair * time.Duration(pairsAhead)).Seconds())
}

// expire fires when an entry reaches the wait ceiling. Timers of entries that
// were already removed find a different (or no) entry indexed and do nothing.
func (q *QueueManager) expire(w *waiting) {
	q.mu.Lock()
	if q.byConn[w.entry.ConnectionID] != w {
		q.mu.Unlock()
		return
	}
	q.removeLocked(w)
	q.mu.Unlock()

	gt := w.entry.GameType
	q.notifier.Send(w.entry.ConnectionID, events.Message{
		Type: events.QueueTimeout,
		Payload: events.QueueTimeoutPayload{
			GameType: gt,
			Stake:    w.entry.Stake,
			Message:  fmt.Sprintf("No opponent found for %s within %s. Try again.", gt, q.timeout),
		},
	})
	metrics.IncQueueTimeouts(string(gt))

	q.logger.WithFields(logrus.Fields{
		"conn":     w.entry.ConnectionID,
		"gameType": gt,
		"stake":    w.entry.Stake,
	}).Info("Queue wait ceiling reached, entry removed")
}

// seat opens a room for a popped pair and tells both members about it.
func (q *QueueManager) seat(ctx context.Context, key models.BucketKey, pair []models.QueueEntry) {
	room, err := q.rooms.CreateMatchRoom(ctx, key.GameType, key.Stake, pair)
	if err != nil {
		q.logger.WithError(err).WithField("bucket", key.String()).Warn("Failed to create match room")
		for _, e := range pair {
			q.notifier.Send(e.ConnectionID, events.NewQueueError("Could not create a room for your match. Please queue again."))
		}
		return
	}

	if q.OnMatch != nil {
		q.OnMatch(room)
	}
	msg := events.Message{Type: events.MatchFound, Payload: events.MatchFoundPayload{RoomID: room.ID, Room: room}}
	for _, e := range pair {
		q.notifier.Send(e.ConnectionID, msg)
	}
	metrics.IncMatches(string(key.GameType))

	q.logger.WithFields(logrus.Fields{
		"room":     room.ID,
		"gameType": key.GameType,
		"stake":    key.Stake,
		"players":  []string{pair[0].ConnectionID, pair[1].ConnectionID},
	}).Info("Match found")
}

// popPairsLocked takes the oldest entries off the bucket two at a time.
func (q *QueueManager) popPairsLocked(key models.BucketKey) [][]models.QueueEntry {
	var pairs [][]models.QueueEntry
	for len(q.buckets[key]) >= matchSize {
		list := q.buckets[key]
		pair := make([]models.QueueEntry, 0, matchSize)
		for _, w := range list[:matchSize] {
			w.timer.Stop()
			delete(q.byConn, w.entry.ConnectionID)
			pair = append(pair, w.entry)
		}
		q.setBucketLocked(key, list[matchSize:])
		pairs = append(pairs, pair)
	}
	return pairs
}

func (q *QueueManager) removeLocked(w *waiting) {
	if w.timer != nil {
		w.timer.Stop()
	}
	delete(q.byConn, w.entry.ConnectionID)

	key := w.entry.Bucket()
	list := q.buckets[key]
	for i, cur := range list {
		if cur == w {
			q.setBucketLocked(key, append(list[:i:i], list[i+1:]...))
			break
		}
	}
	q.reportLengthLocked(key)
}

func (q *QueueManager) setBucketLocked(key models.BucketKey, list []*waiting) {
	if len(list) == 0 {
		delete(q.buckets, key)
		return
	}
	q.buckets[key] = list
}

// reportLengthLocked publishes the total waiting for key's game type across all stakes.
func (q *QueueManager) reportLengthLocked(key models.BucketKey) {
	n := 0
	for k, list := range q.buckets {
		if k.GameType == key.GameType {
			n += len(list)
		}
	}
	metrics.SetQueueLength(string(key.GameType), n)
}
