package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/numaken/genpost-sub001/internal/domain/enums"
	"github.com/numaken/genpost-sub001/internal/domain/rules"
)

const (
	MinRefreshTTL = 24 * time.Hour
	MaxRefreshTTL = 90 * 24 * time.Hour
)

// SessionStore persists sessions keyed by id and by the hash of their
// current refresh token. RotateRefresh must fail with ErrRefreshNotFound when
// oldHash is no longer current, so a refresh token works exactly once.
type SessionStore interface {
	Create(ctx context.Context, session SessionRecord, refreshHash string) error
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
	SessionByRefresh(ctx context.Context, refreshHash string) (SessionRecord, error)
	RotateRefresh(ctx context.Context, oldHash, newHash string, session SessionRecord) error
	DeleteSession(ctx context.Context, sid string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type Service struct {
	jwt        *JWTManager
	sessions   SessionStore
	assertions *AssertionVerifier
	superusers map[string]struct{}
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(jwtManager *JWTManager, sessions SessionStore, assertions *AssertionVerifier, refreshTTL time.Duration, superusers []string) *Service {
	refreshTTL = min(max(refreshTTL, MinRefreshTTL), MaxRefreshTTL)

	owners := make(map[string]struct{}, len(superusers))
	for _, email := range superusers {
		if id := rules.NormalizeUserID(email); id != "" {
			owners[id] = struct{}{}
		}
	}

	return &Service{
		jwt:        jwtManager,
		sessions:   sessions,
		assertions: assertions,
		superusers: owners,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// LoginIdentity exchanges a signed identity assertion for a new session.
func (s *Service) LoginIdentity(ctx context.Context, assertion string) (AuthResult, error) {
	if s.assertions == nil {
		return AuthResult{}, ErrUnauthorized
	}

	email, err := s.assertions.Verify(assertion)
	if err != nil {
		return AuthResult{}, err
	}

	userID := rules.NormalizeUserID(email)
	session := SessionRecord{
		SID:       NewSessionID(),
		UserID:    userID,
		Role:      s.roleFor(userID),
		ExpiresAt: s.now().Add(s.refreshTTL).UTC(),
	}

	refreshToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.sessions.Create(ctx, session, HashRefreshToken(refreshToken)); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	return s.result(session, refreshToken)
}

// Refresh trades a refresh token for a new pair and slides the session
// expiry. The role is re-derived so superuser changes apply on refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResult{}, ErrInvalidInput
	}
	oldHash := HashRefreshToken(refreshToken)

	session, err := s.sessions.SessionByRefresh(ctx, oldHash)
	if err != nil {
		if errors.Is(err, ErrRefreshNotFound) || errors.Is(err, ErrSessionNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if !s.now().Before(session.ExpiresAt) {
		return AuthResult{}, ErrUnauthorized
	}

	newToken, err := NewRefreshToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate refresh token: %w", err)
	}
	session.Role = s.roleFor(session.UserID)
	session.ExpiresAt = s.now().Add(s.refreshTTL).UTC()

	if err := s.sessions.RotateRefresh(ctx, oldHash, HashRefreshToken(newToken), session); err != nil {
		if errors.Is(err, ErrRefreshNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return s.result(session, newToken)
}

func (s *Service) Logout(ctx context.Context, sid string) error {
	if strings.TrimSpace(sid) == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	userID = rules.NormalizeUserID(userID)
	if userID == "" {
		return ErrInvalidInput
	}
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}

// ValidateAccessToken checks the token signature and that its session is
// still live with the same user and role.
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != claims.UserID || session.Role != claims.Role || !s.now().Before(session.ExpiresAt) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}

func (s *Service) roleFor(userID string) string {
	if _, ok := s.superusers[userID]; ok {
		return string(enums.RoleOwner)
	}
	return string(enums.RoleUser)
}

func (s *Service) result(session SessionRecord, refreshToken string) (AuthResult, error) {
	accessToken, accessExpires, err := s.jwt.GenerateAccessToken(session)
	if err != nil {
		return AuthResult{}, fmt.Errorf("generate access token: %w", err)
	}
	return AuthResult{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpires: accessExpires,
		Me: Me{
			ID:   session.UserID,
			Role: session.Role,
		},
	}, nil
}
