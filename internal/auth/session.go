package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recouvra/recouvra/internal/shared"
)

// SessionStore keeps bearer tokens in Redis. The stored value is the
// resolved principal, so token lookup needs no database round trip.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

type sessionPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Create mints a token for the principal.
func (s *SessionStore) Create(ctx context.Context, p shared.Principal) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(sessionPayload{UserID: p.ID, Email: p.Email, Role: string(p.Role)})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, sessionKey(token), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a token back to its principal and slides the TTL forward.
func (s *SessionStore) Resolve(ctx context.Context, token string) (shared.Principal, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Principal{}, shared.ErrInvalidCredentials
		}
		return shared.Principal{}, err
	}
	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return shared.Principal{}, err
	}
	_ = s.client.Expire(ctx, sessionKey(token), s.ttl).Err()
	return shared.Principal{ID: payload.UserID, Email: payload.Email, Role: shared.Role(payload.Role)}, nil
}

// Delete revokes a token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	err := s.client.Del(ctx, sessionKey(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func sessionKey(token string) string {
	return "session:" + token
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
