// Package redis is the managed-TTL session KeyStore. Consumption is a single
// Lua script so check-and-invalidate is atomic across replicas.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"civitas/internal/verification/session"
	id "civitas/pkg/domain"
	"civitas/pkg/platform/sentinel"
)

const (
	keyPrefix = "verification:session:"

	// DefaultGrace is how long tombstones outlive a session's expiry so that
	// consumed and expired stay distinguishable from unknown.
	DefaultGrace = 10 * time.Minute
)

// Script status values.
const (
	statusOK       = "ok"
	statusNotFound = "not_found"
	statusConsumed = "consumed"
	statusExpired  = "expired"
)

// setScript creates the session hash only if the key is absent.
var setScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 1 then
  return 0
end
redis.call('HSET', key, 'state', 'active', 'pub', ARGV[1], 'sealed', ARGV[2], 'created', ARGV[3], 'expires', ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return 1
`)

// consumeScript returns {status, pub, sealed, created, expires}.
// ARGV[1] is the caller's clock in unix milliseconds.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
if redis.call('EXISTS', key) == 0 then
  return {'not_found'}
end
local state = redis.call('HGET', key, 'state')
if state == 'consumed' then
  return {'consumed'}
end
if state == 'expired' then
  return {'expired'}
end
local expires = tonumber(redis.call('HGET', key, 'expires'))
if now >= expires then
  redis.call('HSET', key, 'state', 'expired')
  redis.call('HDEL', key, 'sealed')
  return {'expired'}
end
local vals = redis.call('HMGET', key, 'pub', 'sealed', 'created', 'expires')
redis.call('HSET', key, 'state', 'consumed')
redis.call('HDEL', key, 'sealed')
return {'ok', vals[1], vals[2], vals[3], vals[4]}
`)

// Store is a Redis-backed session KeyStore.
type Store struct {
	client *redis.Client
	grace  time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithGrace sets the tombstone retention after expiry.
func WithGrace(d time.Duration) Option {
	return func(s *Store) { s.grace = d }
}

// New constructs a Redis-backed session store.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, grace: DefaultGrace}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func key(sessionID id.SessionID) string {
	return keyPrefix + sessionID.String()
}

// Set writes the record and its key expiry atomically. An existing key is
// a conflict.
func (s *Store) Set(ctx context.Context, rec session.Record) error {
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt) + s.grace
	if ttl <= 0 {
		ttl = s.grace
	}
	created, err := setScript.Run(ctx, s.client, []string{key(rec.ID)},
		rec.PublicKey,
		rec.SealedPrivateKey,
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.UnixMilli(),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if created == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

// GetAndInvalidate atomically consumes the session.
func (s *Store) GetAndInvalidate(ctx context.Context, sessionID id.SessionID, now time.Time) (session.Record, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{key(sessionID)}, now.UnixMilli()).Slice()
	if err != nil {
		return session.Record{}, fmt.Errorf("consume session: %w", err)
	}
	if len(res) == 0 {
		return session.Record{}, fmt.Errorf("consume session: empty script result")
	}
	switch res[0] {
	case statusNotFound:
		return session.Record{}, sentinel.ErrNotFound
	case statusConsumed:
		return session.Record{}, sentinel.ErrAlreadyUsed
	case statusExpired:
		return session.Record{}, sentinel.ErrExpired
	case statusOK:
	default:
		return session.Record{}, fmt.Errorf("consume session: unexpected status %v", res[0])
	}
	if len(res) != 5 {
		return session.Record{}, fmt.Errorf("consume session: malformed script result")
	}

	pub, _ := res[1].(string)
	sealed, _ := res[2].(string)
	created, err := parseMillis(res[3])
	if err != nil {
		return session.Record{}, err
	}
	expires, err := parseMillis(res[4])
	if err != nil {
		return session.Record{}, err
	}
	return session.Record{
		ID:               sessionID,
		PublicKey:        []byte(pub),
		SealedPrivateKey: []byte(sealed),
		CreatedAt:        created,
		ExpiresAt:        expires,
	}, nil
}

func parseMillis(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("consume session: unexpected timestamp type %T", v)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("consume session: parse timestamp: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Health pings the backing Redis.
func (s *Store) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
