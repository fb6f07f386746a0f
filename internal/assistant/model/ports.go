package model

import (
	"context"
	"time"
)

// BlockRepository is the narrow port onto the farm/block/crop document store.
// Block and crop documents are read-only here except for the device hub bundle,
// which this core owns end to end.
type BlockRepository interface {
	// GetBlock retrieves a block scoped to its farm.
	GetBlock(ctx context.Context, farmID, blockID string) (*Block, error)

	// ListChildBlocks returns the child plantings sharing a parent block's
	// physical footprint.
	ListChildBlocks(ctx context.Context, farmID, parentID string) ([]*Block, error)

	// GetCrop retrieves a crop document by id.
	GetCrop(ctx context.Context, cropID string) (*Crop, error)

	// SaveDeviceHub persists the credential bundle onto the block record.
	// A nil bundle clears stored credentials.
	SaveDeviceHub(ctx context.Context, farmID, blockID string, creds *DeviceHubCredentials) error

	// SaveDeviceHubToken writes a refreshed token and its expiry back onto the
	// block record without touching the rest of the bundle.
	SaveDeviceHubToken(ctx context.Context, farmID, blockID, token string, expiresAt time.Time) error
}

// ConversationRepository persists chat history between turns. It is the caller
// that enforces the history cap before handing messages to the orchestrator.
type ConversationRepository interface {
	// AppendMessages appends messages to the conversation and refreshes its TTL.
	AppendMessages(ctx context.Context, conversationID string, messages ...ChatMessage) error

	// LoadHistory returns the most recent messages, capped to the configured limit.
	LoadHistory(ctx context.Context, conversationID string) ([]ChatMessage, error)

	// ClearHistory removes the conversation.
	ClearHistory(ctx context.Context, conversationID string) error
}

// AuditLog records completed chat turns. Implementations swallow their own
// failures; observability must never become a liveness dependency.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry)
}
