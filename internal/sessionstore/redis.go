// Package sessionstore provides a Redis backed session store for scs so that sessions survive restarts and can
// be shared between instances.
package sessionstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/cdms/internal/errors"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "scs:session:"

// RedisStore implements scs.Store and scs.CtxStore on top of go-redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to the Redis server at addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second) //nolint:mnd // 2 seconds is plenty for a ping
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis", slog.String("addr", addr))
	}
	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: defaultPrefix}
}

func (s *RedisStore) key(token string) string {
	return s.prefix + token
}

// FindCtx returns the data for the session token. A missing or expired session is reported with found false.
func (s *RedisStore) FindCtx(ctx context.Context, token string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get session")
	}
	return b, true, nil
}

// CommitCtx stores the session data. Redis expires the key at expiry.
func (s *RedisStore) CommitCtx(ctx context.Context, token string, b []byte, expiry time.Time) error {
	ttl := time.Until(expiry)
	if ttl <= 0 {
		return errors.Wrap(s.DeleteCtx(ctx, token), "delete expired session")
	}
	if err := s.client.Set(ctx, s.key(token), b, ttl).Err(); err != nil {
		return errors.Wrap(err, "set session")
	}
	return nil
}

func (s *RedisStore) DeleteCtx(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// AllCtx returns every stored session keyed by token.
func (s *RedisStore) AllCtx(ctx context.Context) (map[string][]byte, error) {
	sessions := make(map[string][]byte)
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "get session", slog.String("key", key))
		}
		sessions[key[len(s.prefix):]] = b
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "scan sessions")
	}
	return sessions, nil
}

func (s *RedisStore) Find(token string) ([]byte, bool, error) {
	return s.FindCtx(context.Background(), token)
}

func (s *RedisStore) Commit(token string, b []byte, expiry time.Time) error {
	return s.CommitCtx(context.Background(), token, b, expiry)
}

func (s *RedisStore) Delete(token string) error {
	return s.DeleteCtx(context.Background(), token)
}

func (s *RedisStore) All() (map[string][]byte, error) {
	return s.AllCtx(context.Background())
}
