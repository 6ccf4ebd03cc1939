package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ger/backend/internal/session/domain"
)

// ErrRedisUnavailable wraps transport failures from the Redis store.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	fieldUserID       = "uid"
	fieldRefreshToken = "rt"
	fieldCreatedAt    = "ca"
)

const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "uid", ARGV[1], "rt", ARGV[2], "ca", ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var createSessionLua = redis.NewScript(createSessionScript)

const (
	replaceStatusNotFound int64 = 0
	replaceStatusSwapped  int64 = 1
	replaceStatusMismatch int64 = 2
)

const replaceRefreshScript = `
local current = redis.call("HGET", KEYS[1], "rt")
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 2
end
redis.call("HSET", KEYS[1], "rt", ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1
`

var replaceRefreshLua = redis.NewScript(replaceRefreshScript)

// RedisStore keeps each session in a hash under prefix:id. Keys expire after ttl,
// which is renewed on every rotation; a zero ttl keeps keys until deleted.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore returns a session store backed by the given Redis client.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "ger:session"
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

// Create stores a new session unless one already exists under id.
func (s *RedisStore) Create(ctx context.Context, id, userID, refreshToken string) error {
	created, err := createSessionLua.Run(ctx, s.redis, []string{s.key(id)},
		userID, refreshToken, s.now().UnixMilli(), s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if created == 0 {
		return ErrConflict
	}
	return nil
}

// Fetch returns the session for id, or ErrNotFound.
func (s *RedisStore) Fetch(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	token, ok := fields[fieldRefreshToken]
	if !ok {
		return nil, ErrNotFound
	}
	sess := &domain.Session{
		ID:           id,
		UserID:       fields[fieldUserID],
		RefreshToken: token,
	}
	if ms, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); err == nil {
		sess.CreatedAt = time.UnixMilli(ms).UTC()
	}
	return sess, nil
}

// ReplaceRefreshToken swaps the stored token inside a Lua script so that the
// compare and the write cannot interleave with another rotation.
func (s *RedisStore) ReplaceRefreshToken(ctx context.Context, id, expected, next string) error {
	status, err := replaceRefreshLua.Run(ctx, s.redis, []string{s.key(id)},
		expected, next, s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch status {
	case replaceStatusSwapped:
		return nil
	case replaceStatusNotFound:
		return ErrNotFound
	case replaceStatusMismatch:
		return ErrConflict
	default:
		return fmt.Errorf("replace refresh token: unexpected status %d", status)
	}
}

// Delete removes the listed sessions. Each key gets its own DEL in one pipeline so a
// cluster client can route keys that live in different slots.
func (s *RedisStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.Del(ctx, s.key(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
