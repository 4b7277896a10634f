package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "concierge:session:"
	sessionIndexKey  = "concierge:sessions:by_login"
	defaultTTL       = 24 * time.Hour
)

// redisStore implements Store on Redis with a TTL per session and a sorted
// set indexing sessions by last-login time for the Latest lookup.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed Store. A non-positive ttl falls back
// to 24 hours.
func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *redisStore) Get(ctx context.Context, key string) (*model.GuestSession, error) {
	val, err := s.client.Get(ctx, sessionKeyPrefix+key).Result()
	if err == redis.Nil {
		return nil, goerr.Wrap(ErrSessionNotFound, "unknown session key", goerr.V("key", key))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get session", goerr.V("key", key))
	}

	var sess model.GuestSession
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session", goerr.V("key", key))
	}

	// Refresh TTL on read; failure here is not worth failing the lookup.
	_ = s.client.Expire(ctx, sessionKeyPrefix+key, s.ttl).Err()

	return &sess, nil
}

func (s *redisStore) Put(ctx context.Context, sess *model.GuestSession) error {
	if sess == nil || sess.Key == "" {
		return goerr.New("session key is empty")
	}

	val, err := json.Marshal(sess)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal session", goerr.V("key", sess.Key))
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+sess.Key, val, s.ttl).Err(); err != nil {
		return goerr.Wrap(err, "failed to set session", goerr.V("key", sess.Key))
	}

	score := float64(sess.LastLogin.Unix())
	if sess.LastLogin.IsZero() {
		score = 0
	}
	if err := s.client.ZAdd(ctx, sessionIndexKey, redis.Z{Score: score, Member: sess.Key}).Err(); err != nil {
		return goerr.Wrap(err, "failed to index session", goerr.V("key", sess.Key))
	}

	return nil
}

func (s *redisStore) Latest(ctx context.Context) (*model.GuestSession, error) {
	// Walk the index from newest down, skipping entries whose session key
	// already expired.
	keys, err := s.client.ZRevRange(ctx, sessionIndexKey, 0, 9).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session index")
	}

	for _, key := range keys {
		sess, err := s.Get(ctx, key)
		if err == nil {
			return sess, nil
		}
		// Expired session: drop the stale index entry and keep walking.
		_ = s.client.ZRem(ctx, sessionIndexKey, key).Err()
	}

	return nil, ErrNoSessions
}
