// internal/handlers/ws_codes.go
package handlers

import "github.com/coder/websocket"

// Subprotocol is the optional websocket subprotocol peers may request.
const Subprotocol = "naijaplay"

// Custom WebSocket close codes used by the /ws handler.
const (
	BadSubprotocolError   websocket.StatusCode = 3000 // Client requested subprotocols, none of them ours.
	InvalidAuthTokenError websocket.StatusCode = 3001 // A token was presented but failed verification.
	ServerShutdownError   websocket.StatusCode = 3002 // Server is going down; the client should reconnect.
)
