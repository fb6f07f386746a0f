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

// RedisBlockRepository reads farm/block/crop documents stored as JSON keys and
// writes the device hub bundle back. The documents themselves are owned by the
// surrounding CRUD services; this repository is the narrow port the assistant
// core consumes them through.
type RedisBlockRepository struct {
	rdb redis.Cmdable
}

func NewRedisBlockRepository(rdb redis.Cmdable) *RedisBlockRepository {
	return &RedisBlockRepository{rdb: rdb}
}

func blockKey(farmID, blockID string) string {
	return fmt.Sprintf("farm:%s:block:%s", farmID, blockID)
}

func blockChildrenKey(farmID, parentID string) string {
	return fmt.Sprintf("farm:%s:block:%s:children", farmID, parentID)
}

func cropKey(cropID string) string {
	return fmt.Sprintf("crop:%s", cropID)
}

func (r *RedisBlockRepository) GetBlock(ctx context.Context, farmID, blockID string) (*model.Block, error) {
	raw, err := r.rdb.Get(ctx, blockKey(farmID, blockID)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	var block model.Block
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
		return nil, fmt.Errorf("unmarshal block %s: %w", blockID, err)
	}
	return &block, nil
}

func (r *RedisBlockRepository) ListChildBlocks(ctx context.Context, farmID, parentID string) ([]*model.Block, error) {
	ids, err := r.rdb.SMembers(ctx, blockChildrenKey(farmID, parentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errx.WrapRedis(err)
	}

	children := make([]*model.Block, 0, len(ids))
	for _, id := range ids {
		child, err := r.GetBlock(ctx, farmID, id)
		if err != nil {
			logx.Warn().Err(err).Str("block_id", id).Msg("child block listed but unreadable")
			continue
		}
		children = append(children, child)
	}
	return children, nil
}

func (r *RedisBlockRepository) GetCrop(ctx context.Context, cropID string) (*model.Crop, error) {
	raw, err := r.rdb.Get(ctx, cropKey(cropID)).Result()
	if err != nil {
		return nil, errx.WrapRedis(err)
	}
	var crop model.Crop
	if err := json.Unmarshal([]byte(raw), &crop); err != nil {
		return nil, fmt.Errorf("unmarshal crop %s: %w", cropID, err)
	}
	return &crop, nil
}

func (r *RedisBlockRepository) SaveDeviceHub(ctx context.Context, farmID, blockID string, creds *model.DeviceHubCredentials) error {
	return r.mutateBlock(ctx, farmID, blockID, func(block *model.Block) {
		if creds == nil {
			block.DeviceHub = &model.DeviceHubCredentials{ConnectionStatus: model.HubStatusDisconnected}
			return
		}
		block.DeviceHub = creds
	})
}

func (r *RedisBlockRepository) SaveDeviceHubToken(ctx context.Context, farmID, blockID, token string, expiresAt time.Time) error {
	return r.mutateBlock(ctx, farmID, blockID, func(block *model.Block) {
		if block.DeviceHub == nil {
			return
		}
		block.DeviceHub.CachedToken = token
		block.DeviceHub.TokenExpiresAt = expiresAt
	})
}

// mutateBlock reads, mutates, and rewrites the block document. Last write wins;
// the only contended field is the cached token, which converges.
func (r *RedisBlockRepository) mutateBlock(ctx context.Context, farmID, blockID string, mutate func(*model.Block)) error {
	block, err := r.GetBlock(ctx, farmID, blockID)
	if err != nil {
		return err
	}
	mutate(block)

	b, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block %s: %w", blockID, err)
	}
	if err := r.rdb.Set(ctx, blockKey(farmID, blockID), b, 0).Err(); err != nil {
		logx.Error().Err(err).Str("block_id", blockID).Msg("failed to save block")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.BlockRepository = (*RedisBlockRepository)(nil)
