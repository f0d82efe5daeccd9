package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/naijaplay/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// Querier is the part of pgxpool.Pool the profile lookup needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ProfileStore reads display names and avatars owned by the account service.
type ProfileStore struct {
	db Querier
}

func NewProfileStore(db Querier) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileQuery = `
	SELECT username, COALESCE(avatar_url, '')
	FROM users
	WHERE id = $1
`

// LookupProfile returns the stored profile for playerID.
func (s *ProfileStore) LookupProfile(ctx context.Context, playerID string) (models.Profile, error) {
	p := models.Profile{PlayerID: playerID}
	err := s.db.QueryRow(ctx, profileQuery, playerID).Scan(&p.Username, &p.Avatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to load profile %s: %w", playerID, err)
	}
	return p, nil
}
