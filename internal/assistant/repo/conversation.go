package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plotpilot/server/internal/assistant/model"
	errx "github.com/plotpilot/server/internal/core/error"
	logx "github.com/plotpilot/server/pkg/logger"
)

// RedisConversationRepository keeps chat history as a Redis list of JSON rows
// with a TTL refreshed on every touch and a hard cap on retained messages.
// The cap is what makes this repository the "caller" that bounds the history
// handed to the orchestrator.
type RedisConversationRepository struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	maxMessages int
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration, maxMessages int) *RedisConversationRepository {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &RedisConversationRepository{rdb: rdb, ttl: ttl, maxMessages: maxMessages}
}

func conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisConversationRepository) AppendMessages(ctx context.Context, conversationID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	key := conversationKey(conversationID)

	rows := make([]any, 0, len(messages))
	for _, msg := range messages {
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		rows = append(rows, b)
	}

	if err := r.rdb.RPush(ctx, key, rows...).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push messages to redis")
		return errx.WrapRedis(err)
	}
	// Keep only the most recent window.
	if err := r.rdb.LTrim(ctx, key, int64(-r.maxMessages), -1).Err(); err != nil {
		logx.Warn().Err(err).Str("key", key).Msg("failed to trim conversation history")
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
		}
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, conversationID string) ([]model.ChatMessage, error) {
	key := conversationKey(conversationID)

	rows, err := r.rdb.LRange(ctx, key, int64(-r.maxMessages), -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.ChatMessage{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]model.ChatMessage, 0, len(rows))
	for i, s := range rows {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	key := conversationKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
