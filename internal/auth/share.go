// Package auth mints and verifies share tokens: signed, expiring grants of
// read-only access to a single conversation.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gopherchat/gopherchat/internal/common"
)

type shareClaims struct {
	ConversationID string `json:"cid"`
	jwt.RegisteredClaims
}

// SignShareToken returns a token granting access to conversationID until
// expiresAt. expiresAt in the past is allowed; the token is simply born
// expired.
func SignShareToken(secret, conversationID string, expiresAt time.Time) (string, error) {
	claims := shareClaims{
		ConversationID: conversationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   conversationID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseShareToken validates the token and returns the conversation id it
// grants access to plus the time the grant was issued. Expired tokens map to
// common.ErrExpired, everything else invalid to common.ErrNotFound so callers
// never learn why a token failed.
func ParseShareToken(secret, token string) (string, time.Time, error) {
	var claims shareClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", time.Time{}, fmt.Errorf("%w: share link expired", common.ErrExpired)
		}
		return "", time.Time{}, fmt.Errorf("%w: share link invalid", common.ErrNotFound)
	}
	if claims.ConversationID == "" {
		return "", time.Time{}, fmt.Errorf("%w: share link invalid", common.ErrNotFound)
	}
	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	return claims.ConversationID, issuedAt, nil
}
