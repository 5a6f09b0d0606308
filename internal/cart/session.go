package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type sessionRedis interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SessionCartKey(sessionToken string) string
}

// SessionStore keeps anonymous carts in Redis as a JSON map of variant id
// to quantity under the cart-session token. Entries expire with the TTL so
// abandoned anonymous carts clean themselves up.
type SessionStore struct {
	redis sessionRedis
	ttl   time.Duration
}

// NewSessionStore builds a Redis-backed anonymous cart store.
func NewSessionStore(redis sessionRedis, ttl time.Duration) (*SessionStore, error) {
	if redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session cart ttl must be positive")
	}
	return &SessionStore{redis: redis, ttl: ttl}, nil
}

// Load returns the session cart, or an empty map when none exists.
func (s *SessionStore) Load(ctx context.Context, sessionToken string) (map[uuid.UUID]int, error) {
	raw, err := s.redis.Get(ctx, s.redis.SessionCartKey(sessionToken))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return map[uuid.UUID]int{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
	}

	var byString map[string]int
	if err := json.Unmarshal([]byte(raw), &byString); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode session cart")
	}

	lines := make(map[uuid.UUID]int, len(byString))
	for key, qty := range byString {
		id, err := uuid.Parse(key)
		if err != nil || qty <= 0 {
			// drop corrupt entries instead of poisoning the whole cart
			continue
		}
		lines[id] = qty
	}
	return lines, nil
}

// Save writes the full session cart, resetting the TTL. An empty map
// deletes the key.
func (s *SessionStore) Save(ctx context.Context, sessionToken string, lines map[uuid.UUID]int) error {
	key := s.redis.SessionCartKey(sessionToken)
	if len(lines) == 0 {
		if err := s.redis.Del(ctx, key); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear session cart")
		}
		return nil
	}

	byString := make(map[string]int, len(lines))
	for id, qty := range lines {
		byString[id.String()] = qty
	}
	payload, err := json.Marshal(byString)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session cart")
	}
	if err := s.redis.Set(ctx, key, string(payload), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save session cart")
	}
	return nil
}

// Delete removes the session cart key.
func (s *SessionStore) Delete(ctx context.Context, sessionToken string) error {
	if err := s.redis.Del(ctx, s.redis.SessionCartKey(sessionToken)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete session cart")
	}
	return nil
}
