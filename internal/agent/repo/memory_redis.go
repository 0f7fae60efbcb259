package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	errx "github.com/defi-rag-assistant/server/internal/core/error"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

type RedisMemoryStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisMemoryStore(rdb redis.Cmdable, ttl time.Duration) *RedisMemoryStore {
	return &RedisMemoryStore{rdb: rdb, ttl: ttl}
}

func (r *RedisMemoryStore) memoryKey(sessionID string) string {
	return fmt.Sprintf("memory:%s:messages", sessionID)
}

// Record appends the input/output pair atomically and extends the session TTL.
func (r *RedisMemoryStore) Record(ctx context.Context, sessionID, input, output string) error {
	in, err := json.Marshal(schema.UserMessage(input))
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal input message")
		return fmt.Errorf("marshal input message: %w", err)
	}
	out, err := json.Marshal(schema.AssistantMessage(output, nil))
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal output message")
		return fmt.Errorf("marshal output message: %w", err)
	}
	key := r.memoryKey(sessionID)

	var expire *redis.BoolCmd
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, in, out)
		// extend TTL on touch
		if r.ttl > 0 {
			expire = pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to record memory in redis")
		return errx.WrapRedis(err)
	}
	if expire != nil && !expire.Val() {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on memory key")
	}
	return nil
}

func (r *RedisMemoryStore) Load(ctx context.Context, sessionID string) (*model.MemoryHistory, error) {
	key := r.memoryKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &model.MemoryHistory{SessionID: sessionID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load memory from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.MemoryHistory{SessionID: sessionID, Messages: msgs}, nil
}

func (r *RedisMemoryStore) Clear(ctx context.Context, sessionID string) error {
	key := r.memoryKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete memory from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisMemoryStore) Count(ctx context.Context, sessionID string) (int, error) {
	key := r.memoryKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get memory count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.MemoryStore = (*RedisMemoryStore)(nil)
