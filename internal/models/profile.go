package models

import "fmt"

// Profile is the advisory identity a peer presents when it connects.
// It is descriptive metadata only; nothing in matchmaking trusts it for access control.
type Profile struct {
	PlayerID string `json:"playerId,omitempty"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// WithDefaults fills in a guest name derived from connID when no username was presented.
func (p Profile) WithDefaults(connID string) Profile {
	if p.Username == "" {
		short := connID
		if len(short) > 4 {
			short = short[:4]
		}
		p.Username = fmt.Sprintf("Guest_%s", short)
	}
	return p
}
