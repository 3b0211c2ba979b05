package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key prefixes for session state. The activity stamp lives in its own
// key so touching it doesn't rewrite the session JSON on every request.
const (
	sessionKeyPrefix  = "session:"
	refreshKeyPrefix  = "refresh:"
	activityKeyPrefix = "activity:"
)

// activityResolution debounces activity writes: stamps closer together than
// this are coalesced, matching the watchdog-interval granularity the expiry
// check runs at anyway.
const activityResolution = time.Minute

// ErrSessionNotFound is returned when a session token resolves to nothing,
// either because it never existed or because it was destroyed.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists live sessions in Redis: the session record itself,
// a refresh-token index pointing back at it, and the last-activity stamp.
type SessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSessionStore creates a session store with the given record TTL. The
// TTL is an upper bound on session life; the inactivity watchdog usually
// wins long before Redis expiry does.
func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: rdb, ttl: ttl}
}

// Save writes the session record and its refresh-token index.
func (s *SessionStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl)
	pipe.Set(ctx, refreshKeyPrefix+session.RefreshToken, session.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing session in redis: %w", err)
	}
	return nil
}

// Get loads a session by ID. Returns ErrSessionNotFound for missing or
// destroyed sessions.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from redis: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// FindByRefreshToken resolves a refresh token to its session.
func (s *SessionStore) FindByRefreshToken(ctx context.Context, token string) (*Session, error) {
	id, err := s.redis.Get(ctx, refreshKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving refresh token: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete destroys a session and all its keys. Idempotent: deleting a
// session that is already gone is a no-op, so the two watchdogs and an
// explicit logout can race without harm.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.Del(ctx, refreshKeyPrefix+session.RefreshToken)
	pipe.Del(ctx, activityKeyPrefix+id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting session from redis: %w", err)
	}
	return nil
}

// DeleteRefreshIndex removes a stale refresh-token index after rotation.
func (s *SessionStore) DeleteRefreshIndex(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, refreshKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("deleting refresh index: %w", err)
	}
	return nil
}

// TouchActivity stamps the session's last-activity time, debounced to
// activityResolution. Callers only invoke this for OTP-verified sessions;
// pre-verification activity never moves the inactivity clock.
func (s *SessionStore) TouchActivity(ctx context.Context, id string, now time.Time) error {
	key := activityKeyPrefix + id

	last, err := s.LastActivity(ctx, id)
	if err == nil && now.Sub(last) < activityResolution {
		return nil
	}

	if err := s.redis.Set(ctx, key, strconv.FormatInt(now.UnixMilli(), 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("stamping activity: %w", err)
	}
	return nil
}

// LastActivity reads the session's last-activity stamp. Returns
// ErrSessionNotFound when no stamp exists.
func (s *SessionStore) LastActivity(ctx context.Context, id string) (time.Time, error) {
	raw, err := s.redis.Get(ctx, activityKeyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrSessionNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading activity stamp: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing activity stamp: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Each calls fn for every live session. Used by the watchdogs; iteration
// uses SCAN so it never blocks Redis. Sessions that disappear mid-scan are
// skipped silently.
func (s *SessionStore) Each(ctx context.Context, fn func(*Session)) error {
	iter := s.redis.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()[len(sessionKeyPrefix):]
		session, err := s.Get(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		fn(session)
	}
	return iter.Err()
}
