// internal/gateway/connection.go
package gateway

import (
	"sync"
	"time"

	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/metrics"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/sirupsen/logrus"
)

// Connection is a single peer's presence on the server. The transport drains
// OutChan; everything else only ever writes to it through Write.
type Connection struct {
	ID          string
	Profile     models.Profile
	ConnectedAt time.Time
	OutChan     chan events.Message

	logger *logrus.Logger
	mu     sync.Mutex
	closed bool
}

func newConnection(id string, profile models.Profile, buffer int, logger *logrus.Logger) *Connection {
	return &Connection{
		ID:          id,
		Profile:     profile,
		ConnectedAt: time.Now(),
		OutChan:     make(chan events.Message, buffer),
		logger:      logger,
	}
}

// Write pushes a message onto OutChan without blocking. Messages for a closed
// connection or a full buffer are dropped and logged.
func (c *Connection) Write(msg events.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.OutChan <- msg:
	default:
		metrics.IncDropped()
		c.logger.WithFields(logrus.Fields{"conn": c.ID, "type": msg.Type}).Warn("Outbound buffer full, dropped message")
	}
}

// WriteError is a convenience to send an error event.
func (c *Connection) WriteError(msg string) {
	c.Write(events.NewError(msg))
}

// close stops further writes and closes OutChan so the write pump exits.
func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.OutChan)
}
