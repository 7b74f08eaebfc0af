package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/empire-labs/chad/internal/domain"
)

const redisKeyPrefix = "chad:session:"

// RedisStore keeps each session as a redis list of JSON-encoded turns
// with a rolling TTL. Idle expiry is delegated to redis, so
// EvictExpired is a no-op for this backend.
type RedisStore struct {
	client   *redis.Client
	maxTurns int
	ttl      time.Duration
}

type redisTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"ts"`
}

func NewRedisStore(client *redis.Client, maxTurns int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, maxTurns: maxTurns, ttl: ttl}
}

func (s *RedisStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	if id != "" {
		raw, err := s.client.LRange(ctx, redisKeyPrefix+id, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", id, err)
		}
		if len(raw) > 0 {
			sess := &domain.Session{ID: id, LastActive: time.Now()}
			for _, item := range raw {
				var rt redisTurn
				if err := json.Unmarshal([]byte(item), &rt); err != nil {
					return nil, fmt.Errorf("failed to decode session turn: %w", err)
				}
				sess.Turns = append(sess.Turns, domain.Turn{
					Role:      domain.Role(rt.Role),
					Content:   rt.Content,
					Timestamp: rt.Timestamp,
				})
			}
			return sess, nil
		}
	}

	return &domain.Session{ID: newSessionID(), LastActive: time.Now()}, nil
}

func (s *RedisStore) Append(ctx context.Context, id string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		raw, err := json.Marshal(redisTurn{
			Role:      string(t.Role),
			Content:   t.Content,
			Timestamp: t.Timestamp,
		})
		if err != nil {
			return fmt.Errorf("failed to encode session turn: %w", err)
		}
		values = append(values, raw)
	}

	key := redisKeyPrefix + id
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to session %s: %w", id, err)
	}
	return nil
}

// EvictExpired relies on the per-key TTL; redis removes idle sessions
// on its own.
func (s *RedisStore) EvictExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
