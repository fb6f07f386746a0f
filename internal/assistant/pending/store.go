package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/plotpilot/server/internal/assistant/model"
	errx "github.com/plotpilot/server/internal/core/error"
	logx "github.com/plotpilot/server/pkg/logger"
)

// DefaultTTL bounds how long a parked action stays confirmable.
const DefaultTTL = 300 * time.Second

// Cache is the slice of Redis this store needs. *redis.Client satisfies it.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store keeps pending write actions in a TTL-capable cache. Expiry is the
// cache's own; there is no separate sweep. Records are never updated in place.
type Store struct {
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(cache Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{cache: cache, ttl: ttl, now: time.Now}
}

func actionKey(actionID string) string {
	return fmt.Sprintf("pending_action:%s", actionID)
}

// Store parks a write action and returns its opaque id.
func (s *Store) Store(ctx context.Context, toolName, toolInput, description string, risk model.RiskLevel, farmID, blockID string) (*model.PendingAction, error) {
	now := s.now()
	action := &model.PendingAction{
		ActionID:    uuid.NewString(),
		ToolName:    toolName,
		ToolInput:   toolInput,
		Description: description,
		RiskLevel:   risk,
		FarmID:      farmID,
		BlockID:     blockID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	b, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("marshal pending action: %w", err)
	}
	if err := s.cache.Set(ctx, actionKey(action.ActionID), b, s.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("action_id", action.ActionID).Msg("failed to store pending action")
		return nil, errx.WrapRedis(err)
	}

	logx.Debug().
		Str("action_id", action.ActionID).
		Str("tool", toolName).
		Str("risk", string(risk)).
		Msg("pending action parked")
	return action, nil
}

// Load returns the record, or nil when it is absent or already expired.
func (s *Store) Load(ctx context.Context, actionID string) (*model.PendingAction, error) {
	raw, err := s.cache.Get(ctx, actionKey(actionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	return unmarshalAction(actionID, raw)
}

// Claim atomically deletes and returns the record, or nil when it is gone.
// When two confirmations race, at most one claim succeeds.
func (s *Store) Claim(ctx context.Context, actionID string) (*model.PendingAction, error) {
	raw, err := s.cache.GetDel(ctx, actionKey(actionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	return unmarshalAction(actionID, raw)
}

// Delete removes the record. Idempotent.
func (s *Store) Delete(ctx context.Context, actionID string) error {
	if err := s.cache.Del(ctx, actionKey(actionID)).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func unmarshalAction(actionID, raw string) (*model.PendingAction, error) {
	var action model.PendingAction
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return nil, fmt.Errorf("unmarshal pending action %s: %w", actionID, err)
	}
	return &action, nil
}
