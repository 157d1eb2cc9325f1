package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache entry not found")

// negativeUID is the sentinel stored for tokens confirmed invalid by the
// store, so repeated resolutions of a doomed token skip the database.
const negativeUID int64 = -1

// cacheEntry is the serialized session⋈user record kept in the look-aside
// cache. A UID of negativeUID marks a confirmed-invalid token; any other
// non-positive or unparseable payload is treated as invalid too, never as a
// user record.
type cacheEntry struct {
	UID           int64     `json:"uid"`
	Username      string    `json:"uname,omitempty"`
	PasswordHash  string    `json:"upass,omitempty"`
	Salt          string    `json:"usalt,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	FullName      string    `json:"fname,omitempty"`
	Site          string    `json:"site,omitempty"`
	SID           int64     `json:"sid,omitempty"`
	ExpireAt      time.Time `json:"expire,omitempty"`
}

func (e cacheEntry) negative() bool {
	return e.UID <= 0
}

func (e cacheEntry) sessionUser(token string) *SessionUser {
	return &SessionUser{
		UID:           e.UID,
		Username:      e.Username,
		PasswordHash:  e.PasswordHash,
		Salt:          e.Salt,
		Email:         e.Email,
		EmailVerified: e.EmailVerified,
		FullName:      e.FullName,
		Site:          e.Site,
		SID:           e.SID,
		Token:         token,
		ExpireAt:      e.ExpireAt,
	}
}

func newCacheEntry(su *SessionUser) cacheEntry {
	return cacheEntry{
		UID:           su.UID,
		Username:      su.Username,
		PasswordHash:  su.PasswordHash,
		Salt:          su.Salt,
		Email:         su.Email,
		EmailVerified: su.EmailVerified,
		FullName:      su.FullName,
		Site:          su.Site,
		SID:           su.SID,
		ExpireAt:      su.ExpireAt,
	}
}

func negativeCacheEntry() cacheEntry {
	return cacheEntry{UID: negativeUID}
}

func encodeCacheEntry(e cacheEntry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeCacheEntry(raw []byte) (cacheEntry, error) {
	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return cacheEntry{}, err
	}
	return e, nil
}

// RedisCache adapts a go-redis client to the Cache interface.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps client. The caller owns the client lifecycle.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return b, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
