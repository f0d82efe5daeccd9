package models

import (
	"errors"
	"strings"
)

// GameType identifies one of the street games a player can queue for or host.
type GameType string

const (
	GameNPAT    GameType = "NPAT"
	GameAfter   GameType = "AFTER"
	GameTinko   GameType = "TINKO"
	GameCatcher GameType = "CATCHER"
	GameGarden  GameType = "GARDEN"
	GameSuwe    GameType = "SUWE"
)

// ErrInvalidGameType is returned for any identifier outside the fixed game set.
var ErrInvalidGameType = errors.New("invalid game type")

// GameTypes lists every playable game in display order.
var GameTypes = []GameType{GameNPAT, GameAfter, GameTinko, GameCatcher, GameGarden, GameSuwe}

var validGameTypes = map[GameType]bool{
	GameNPAT:    true,
	GameAfter:   true,
	GameTinko:   true,
	GameCatcher: true,
	GameGarden:  true,
	GameSuwe:    true,
}

// ParseGameType normalizes s and checks it against the game set.
func ParseGameType(s string) (GameType, error) {
	gt := GameType(strings.ToUpper(strings.TrimSpace(s)))
	if !validGameTypes[gt] {
		return "", ErrInvalidGameType
	}
	return gt, nil
}

// Valid reports whether gt is one of the known games.
func (gt GameType) Valid() bool {
	return validGameTypes[gt]
}
