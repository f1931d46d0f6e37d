// Package session carries the authenticated user's context. It is built once
// at startup and handed to every component that needs the token or the
// current user's identity; nothing reads ambient global state.
package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"alumnichat/internal/domain"
)

// Session is the process-wide authentication context.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

// FromToken builds a session from a bearer token issued by the portal
// backend. The client does not hold the signing secret, so claims are
// extracted without signature verification; the server re-validates the
// token on every call.
func FromToken(token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", domain.ErrInvalidInput)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	s := &Session{Token: token}

	switch id := claims["id"].(type) {
	case float64:
		s.UserID = int64(id)
	case string:
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			s.UserID = n
		}
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		s.Username = sub
		if s.UserID == 0 {
			if n, err := strconv.ParseInt(sub, 10, 64); err == nil {
				s.UserID = n
			}
		}
	}
	if name, _ := claims["username"].(string); name != "" && s.Username == "" {
		s.Username = name
	}
	if exp, ok := claims["exp"].(float64); ok {
		s.ExpiresAt = time.Unix(int64(exp), 0)
	}

	if s.UserID == 0 {
		return nil, fmt.Errorf("token has no user id: %w", domain.ErrInvalidInput)
	}
	if s.Expired() {
		return nil, domain.ErrSessionExpired
	}
	return s, nil
}

// Expired reports whether the token's exp claim has passed. Tokens without
// an exp claim never expire client-side.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}
