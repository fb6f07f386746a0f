package orchestrator

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/plotpilot/server/internal/assistant/model"
	logx "github.com/plotpilot/server/pkg/logger"
)

const auditStream = "assistant:audit"

// streamAppender is the slice of Redis the audit log needs. *redis.Client
// satisfies it.
type streamAppender interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisAuditLog appends completed chat turns to a Redis stream. Failures are
// swallowed with a warning: observability must never become a liveness
// dependency for the chat path.
type RedisAuditLog struct {
	rdb    streamAppender
	maxLen int64
}

func NewRedisAuditLog(rdb streamAppender) *RedisAuditLog {
	return &RedisAuditLog{rdb: rdb, maxLen: 10000}
}

func (a *RedisAuditLog) Record(ctx context.Context, entry model.AuditEntry) {
	err := a.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: auditStream,
		MaxLen: a.maxLen,
		Approx: true,
		Values: map[string]any{
			"farm_id":           entry.FarmID,
			"block_id":          entry.BlockID,
			"conversation_id":   entry.ConversationID,
			"message":           entry.Message,
			"response_chars":    entry.ResponseChars,
			"tools_used":        strings.Join(entry.ToolsUsed, ","),
			"pending_action_id": entry.PendingActionID,
			"created_at":        entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	}).Err()
	if err != nil {
		logx.Warn().Err(err).Str("block_id", entry.BlockID).Msg("audit log write failed")
	}
}

var _ model.AuditLog = (*RedisAuditLog)(nil)
