// internal/handlers/profile.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jason-s-yu/naijaplay/internal/auth"
	"github.com/jason-s-yu/naijaplay/internal/models"
	"github.com/sirupsen/logrus"
)

var errBadToken = errors.New("invalid auth token")

// ProfileLookup resolves a player id to stored display details.
type ProfileLookup interface {
	LookupProfile(ctx context.Context, playerID string) (models.Profile, error)
}

// ProfileResolver builds the advisory profile a peer connects with. A verified
// token supplies the player id; stored details, when available, override the
// username and avatar query parameters.
type ProfileResolver struct {
	secret   string
	profiles ProfileLookup
	logger   *logrus.Logger
}

// NewProfileResolver returns a resolver. An empty secret disables token
// verification and profiles may be nil.
func NewProfileResolver(secret string, profiles ProfileLookup, logger *logrus.Logger) *ProfileResolver {
	return &ProfileResolver{secret: secret, profiles: profiles, logger: logger}
}

// Resolve fails only when a token is present, a secret is configured and the
// token does not verify.
func (pr *ProfileResolver) Resolve(r *http.Request) (models.Profile, error) {
	q := r.URL.Query()
	p := models.Profile{
		PlayerID: q.Get("playerId"),
		Username: q.Get("username"),
		Avatar:   q.Get("avatar"),
	}

	if token := requestToken(r); token != "" && pr.secret != "" {
		id, err := auth.PlayerIDFromToken(pr.secret, token)
		if err != nil {
			pr.logger.WithError(err).WithField("remote", r.RemoteAddr).Warn("Rejected websocket token")
			return models.Profile{}, errBadToken
		}
		p.PlayerID = id
	}

	if pr.profiles != nil && p.PlayerID != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		stored, err := pr.profiles.LookupProfile(ctx, p.PlayerID)
		if err != nil {
			pr.logger.WithError(err).WithField("playerId", p.PlayerID).Debug("Profile lookup failed, using presented profile")
			return p, nil
		}
		if stored.Username != "" {
			p.Username = stored.Username
		}
		if stored.Avatar != "" {
			p.Avatar = stored.Avatar
		}
	}
	return p, nil
}
