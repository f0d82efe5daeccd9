// internal/gateway/handle.go
package gateway

import (
	"context"
	"errors"

	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/jason-s-yu/naijaplay/internal/room"
	"github.com/sirupsen/logrus"
)

const (
	msgInvalidPayload = "Invalid payload"
	msgInternal       = "Something went wrong, please try again"
)

// Handle dispatches one inbound event from c. Calls for a single connection
// must not overlap; the transport's read pump guarantees that.
func (g *Gateway) Handle(ctx context.Context, c *Connection, in events.Inbound) {
	log := g.logger.WithFields(logrus.Fields{"conn": c.ID, "type": in.Type})
	log.Debug("Inbound event")

	switch in.Type {
	case events.JoinQueue:
		g.handleJoinQueue(ctx, c, in, log)
	case events.LeaveQueue:
		g.queue.LeaveQueue(c.ID)
	case events.CreateRoom:
		g.handleCreateRoom(ctx, c, in, log)
	case events.JoinRoom:
		g.handleJoinRoom(ctx, c, in, log)
	case events.LeaveRoom:
		g.leaveCurrentRoom(ctx, c)
	case events.GetRooms:
		g.rooms.SendListing(ctx, c.ID)
	case events.StartGame:
		g.handleStartGame(ctx, c, in, log)
	case events.FinishGame:
		g.handleFinishGame(ctx, c, in, log)
	case events.Ping:
		c.Write(events.Message{Type: events.Pong})
	default:
		log.Warn("Unknown event type")
		c.WriteError("Unknown event type: " + in.Type)
	}
}

func (g *Gateway) handleJoinQueue(ctx context.Context, c *Connection, in events.Inbound, log *logrus.Entry) {
	var p events.JoinQueuePayload
	if err := in.Decode(&p); err != nil {
		log.WithError(err).Warn("Bad join_queue payload")
		c.Write(events.NewQueueError(msgInvalidPayload))
		return
	}
	if _, seated := g.CurrentRoom(c.ID); seated {
		c.Write(events.NewQueueError("Leave your current room before joining the queue"))
		return
	}

	err := g.queue.JoinQueue(ctx, models.QueueEntry{
		ConnectionID: c.ID,
		PlayerID:     c.Profile.PlayerID,
		Username:     c.Profile.Username,
		Avatar:       c.Profile.Avatar,
		GameType:     models.GameType(p.GameType),
		Stake:        p.Stake,
		Rank:         p.Rank,
	})
	if err != nil {
		log.WithError(err).Info("Queue join rejected")
		c.Write(events.NewQueueError(userMessage(err)))
	}
}

func (g *Gateway) handleCreateRoom(ctx context.Context, c *Connection, in events.Inbound, log *logrus.Entry) {
	var p events.CreateRoomPayload
	if err := in.Decode(&p); err != nil {
		log.WithError(err).Warn("Bad create_room payload")
		c.WriteError(msgInvalidPayload)
		return
	}

	g.queue.LeaveQueue(c.ID)
	g.leaveCurrentRoom(ctx, c)

	r, err := g.rooms.CreateRoom(ctx, room.CreateParams{
		ConnectionID: c.ID,
		Name:         p.Name,
		GameType:     p.GameType,
		IsPrivate:    p.IsPrivate,
		Stake:        p.Stake,
		MaxPlayers:   p.MaxPlayers,
		Host:         c.Profile,
	})
	if err != nil {
		log.WithError(err).Info("Room creation rejected")
		c.WriteError(userMessage(err))
		return
	}
	g.setRoom(ctx, c.ID, r.ID)
}

func (g *Gateway) handleJoinRoom(ctx context.Context, c *Connection, in events.Inbound, log *logrus.Entry) {
	var p events.RoomRefPayload
	if err := in.Decode(&p); err != nil || p.RoomID == "" {
		c.WriteError("roomId is required")
		return
	}

	g.queue.LeaveQueue(c.ID)
	if current, seated := g.CurrentRoom(c.ID); seated && current != p.RoomID {
		g.leaveCurrentRoom(ctx, c)
	}

	r, err := g.rooms.JoinRoom(ctx, c.ID, p.RoomID)
	switch {
	case errors.Is(err, models.ErrAlreadyMember):
		return
	case err != nil:
		log.WithError(err).WithField("room", p.RoomID).Info("Room join rejected")
		c.WriteError(userMessage(err))
		return
	}
	g.setRoom(ctx, c.ID, r.ID)
}

func (g *Gateway) handleStartGame(ctx context.Context, c *Connection, in events.Inbound, log *logrus.Entry) {
	roomID, ok := g.targetRoom(c, in)
	if !ok {
		c.WriteError(room.ErrNotMember.Error())
		return
	}
	if _, err := g.rooms.StartRoom(ctx, roomID, c.ID); err != nil {
		log.WithError(err).WithField("room", roomID).Info("Start rejected")
		c.WriteError(userMessage(err))
	}
}

func (g *Gateway) handleFinishGame(ctx context.Context, c *Connection, in events.Inbound, log *logrus.Entry) {
	roomID, ok := g.targetRoom(c, in)
	if !ok {
		c.WriteError(room.ErrNotMember.Error())
		return
	}
	members, err := g.rooms.EndGame(ctx, roomID, c.ID)
	if err != nil {
		log.WithError(err).WithField("room", roomID).Info("Finish rejected")
		c.WriteError(userMessage(err))
		return
	}
	g.clearRoom(roomID, members...)
}

// targetRoom resolves the room an event addresses: the payload's roomId when
// given, otherwise the room c is seated in.
func (g *Gateway) targetRoom(c *Connection, in events.Inbound) (string, bool) {
	var p events.RoomRefPayload
	if err := in.Decode(&p); err == nil && p.RoomID != "" {
		return p.RoomID, true
	}
	return g.CurrentRoom(c.ID)
}

// userMessage hides anything that is not a validation error behind a generic message.
func userMessage(err error) string {
	if isUserError(err) {
		return err.Error()
	}
	return msgInternal
}
