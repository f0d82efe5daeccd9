// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/naijaplay/internal/events"
	"github.com/jason-s-yu/naijaplay/internal/gateway"
	"github.com/jason-s-yu/naijaplay/internal/middleware"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
	cleanupGrace = 5 * time.Second
)

// WSHandler upgrades /ws, registers the peer with the gateway and pumps
// events until either side goes away. Open sockets are closed with
// ServerShutdownError once shutdown is done.
func WSHandler(shutdown context.Context, logger *logrus.Logger, gw *gateway.Gateway, profiles *ProfileResolver, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if r.Header.Get("Sec-WebSocket-Protocol") != "" && c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the naijaplay subprotocol")
			return
		}

		profile, err := profiles.Resolve(r)
		if err != nil {
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(shutdown, func() {
			c.Close(ServerShutdownError, "server shutting down")
		})
		defer stop()

		conn := gw.Connect(profile)
		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, gw, conn, logger)

		// The request context may already be gone; cleanup gets its own deadline.
		cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupGrace)
		gw.Disconnect(cleanupCtx, conn.ID)
		cleanupCancel()

		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, readErr)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump decodes inbound envelopes and hands them to the gateway one at a time.
// It returns the read error that ended the connection, or nil on a clean close.
func readPump(ctx context.Context, c *websocket.Conn, gw *gateway.Gateway, conn *gateway.Connection, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			logger.WithFields(logrus.Fields{"conn": conn.ID, "status": status}).Debugf("Read error: %v", err)
			return err
		}
		if typ != websocket.MessageText {
			logger.WithField("conn", conn.ID).Warnf("Received non-text message type %d. Ignoring.", typ)
			continue
		}

		var in events.Inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			logger.WithField("conn", conn.ID).Warnf("Invalid json: %v", err)
			conn.WriteError("Invalid JSON format")
			continue
		}
		gw.Handle(ctx, conn, in)
	}
}

// writePump drains the connection's outbound buffer and keeps the socket alive with pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *gateway.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("Failed to marshal outgoing %s: %v", msg.Type, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("Failed to write to websocket: %v", err)
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.WithField("conn", conn.ID).Warnf("Failed to send ping: %v. Assuming disconnect.", err)
				c.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}
