package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
)

const (
	authSessionPrefix = "auth:session:"
	authRefreshPrefix = "auth:refresh:"
	authUserPrefix    = "auth:user:"
)

// SessionRepo keeps one JSON document per session plus two indexes: refresh
// hash to session id, and user id to the set of session ids.
type SessionRepo struct {
	client *goredis.Client
}

type storedSession struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	RefreshHash string `json:"refresh_hash"`
	ExpiresAt   int64  `json:"expires_at"`
}

func NewSessionRepo(client *goredis.Client) *SessionRepo {
	return &SessionRepo{client: client}
}

func (r *SessionRepo) Create(ctx context.Context, session authsvc.SessionRecord, refreshHash string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(session.SID) == "" || strings.TrimSpace(session.UserID) == "" || strings.TrimSpace(refreshHash) == "" {
		return authsvc.ErrInvalidInput
	}

	doc, err := encodeSession(session, refreshHash)
	if err != nil {
		return err
	}

	ttl := ttlFor(session.ExpiresAt)
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, authSessionKey(session.SID), doc, ttl)
		pipe.Set(ctx, authRefreshKey(refreshHash), session.SID, ttl)
		pipe.SAdd(ctx, authUserKey(session.UserID), session.SID)
		pipe.Expire(ctx, authUserKey(session.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create redis session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, sid string) (authsvc.SessionRecord, error) {
	session, _, err := r.load(ctx, sid)
	return session, err
}

func (r *SessionRepo) SessionByRefresh(ctx context.Context, refreshHash string) (authsvc.SessionRecord, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, fmt.Errorf("redis client is nil")
	}

	sid, err := r.client.Get(ctx, authRefreshKey(refreshHash)).Result()
	if errors.Is(err, goredis.Nil) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, fmt.Errorf("get refresh index: %w", err)
	}

	session, current, err := r.load(ctx, sid)
	if errors.Is(err, authsvc.ErrSessionNotFound) || (err == nil && current != refreshHash) {
		return authsvc.SessionRecord{}, authsvc.ErrRefreshNotFound
	}
	return session, err
}

// RotateRefresh swaps the session's refresh hash under WATCH, so two
// concurrent refreshes with the same token cannot both win.
func (r *SessionRepo) RotateRefresh(ctx context.Context, oldHash, newHash string, session authsvc.SessionRecord) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(newHash) == "" || strings.TrimSpace(session.SID) == "" {
		return authsvc.ErrInvalidInput
	}

	oldKey := authRefreshKey(oldHash)
	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		sid, err := tx.Get(ctx, oldKey).Result()
		if errors.Is(err, goredis.Nil) || (err == nil && sid != session.SID) {
			return authsvc.ErrRefreshNotFound
		}
		if err != nil {
			return fmt.Errorf("get refresh index: %w", err)
		}

		doc, err := encodeSession(session, newHash)
		if err != nil {
			return err
		}
		ttl := ttlFor(session.ExpiresAt)

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, oldKey)
			pipe.Set(ctx, authRefreshKey(newHash), session.SID, ttl)
			pipe.Set(ctx, authSessionKey(session.SID), doc, ttl)
			pipe.SAdd(ctx, authUserKey(session.UserID), session.SID)
			pipe.Expire(ctx, authUserKey(session.UserID), ttl)
			return nil
		})
		return err
	}, oldKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return authsvc.ErrRefreshNotFound
	case errors.Is(err, authsvc.ErrRefreshNotFound):
		return err
	default:
		return fmt.Errorf("rotate refresh token: %w", err)
	}
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sid string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(sid) == "" {
		return nil
	}

	session, refreshHash, err := r.load(ctx, sid)
	if errors.Is(err, authsvc.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, authSessionKey(sid))
		pipe.Del(ctx, authRefreshKey(refreshHash))
		pipe.SRem(ctx, authUserKey(session.UserID), sid)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if strings.TrimSpace(userID) == "" {
		return authsvc.ErrInvalidInput
	}

	sids, err := r.client.SMembers(ctx, authUserKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	for _, sid := range sids {
		if err := r.DeleteSession(ctx, sid); err != nil {
			return err
		}
	}

	if err := r.client.Del(ctx, authUserKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete user session index: %w", err)
	}
	return nil
}

func (r *SessionRepo) load(ctx context.Context, sid string) (authsvc.SessionRecord, string, error) {
	if r.client == nil {
		return authsvc.SessionRecord{}, "", fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, authSessionKey(sid)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return authsvc.SessionRecord{}, "", authsvc.ErrSessionNotFound
	}
	if err != nil {
		return authsvc.SessionRecord{}, "", fmt.Errorf("get session: %w", err)
	}

	var doc storedSession
	if err := json.Unmarshal(raw, &doc); err != nil || strings.TrimSpace(doc.UserID) == "" {
		return authsvc.SessionRecord{}, "", authsvc.ErrSessionNotFound
	}

	return authsvc.SessionRecord{
		SID:       sid,
		UserID:    doc.UserID,
		Role:      doc.Role,
		ExpiresAt: time.Unix(doc.ExpiresAt, 0).UTC(),
	}, doc.RefreshHash, nil
}

func encodeSession(session authsvc.SessionRecord, refreshHash string) ([]byte, error) {
	doc, err := json.Marshal(storedSession{
		UserID:      session.UserID,
		Role:        session.Role,
		RefreshHash: refreshHash,
		ExpiresAt:   session.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return doc, nil
}

func ttlFor(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func authSessionKey(sid string) string {
	return authSessionPrefix + sid
}

func authRefreshKey(hash string) string {
	return authRefreshPrefix + hash
}

func authUserKey(userID string) string {
	return authUserPrefix + userID
}
