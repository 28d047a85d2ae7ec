package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshNotFound = errors.New("refresh token not found")
)

// SessionRecord is one login. ExpiresAt bounds both the session and its
// current refresh token.
type SessionRecord struct {
	SID       string
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// AccessClaims are the verified contents of an access token whose session is
// still live.
type AccessClaims struct {
	SID       string
	UserID    string
	Role      string
	ExpiresAt time.Time
}

func (c AccessClaims) Identity() Identity {
	return Identity{UserID: c.UserID, SID: c.SID, Role: c.Role}
}

// AuthResult is returned by login and refresh. Me describes the caller the
// tokens were issued to.
type AuthResult struct {
	AccessToken   string
	RefreshToken  string
	AccessExpires time.Time
	Me            Me
}

type Me struct {
	ID   string
	Role string
}
