// internal/auth/session.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSecret     = errors.New("no jwt secret configured")
	ErrMissingClaim = errors.New("missing userId in jwt")
)

// CreateToken signs an HS256 token carrying userId and sub = playerID.
// A zero ttl produces a token without an exp claim.
func CreateToken(secret, playerID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	claims := jwt.MapClaims{
		"userId": playerID,
		"sub":    playerID,
		"iat":    time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// PlayerIDFromToken verifies tokenString and returns its userId claim,
// falling back to sub for tokens issued by other services.
func PlayerIDFromToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	if id, ok := claims["userId"].(string); ok && id != "" {
		return id, nil
	}
	if id, ok := claims["sub"].(string); ok && id != "" {
		return id, nil
	}
	return "", ErrMissingClaim
}
