package model

import "time"

// ChatRole identifies who produced a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is one entry of the caller-supplied conversation history.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatInput is one user utterance plus the prior turns the caller wants replayed.
// History is capped by the caller (HistoryMaxMessages), not by the core.
type ChatInput struct {
	ConversationID string        `json:"conversation_id"`
	Message        string        `json:"message"`
	History        []ChatMessage `json:"history,omitempty"`
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Message       string                `json:"message"`
	PendingAction *PendingActionSummary `json:"pending_action,omitempty"`
	GrowthStage   *GrowthStageInfo      `json:"growth_stage,omitempty"`
	ToolsUsed     []string              `json:"tools_used"`
}

// RiskLevel is the tier attached to a parked write action.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PendingAction is a parked write request awaiting explicit human approval.
// It lives at most PendingActionTTL and terminates by exactly one of
// confirmed-and-executed, denied, or expiry.
type PendingAction struct {
	ActionID    string    `json:"action_id"`
	ToolName    string    `json:"tool_name"`
	ToolInput   string    `json:"tool_input"`
	Description string    `json:"human_description"`
	RiskLevel   RiskLevel `json:"risk_level"`
	FarmID      string    `json:"farm_id"`
	BlockID     string    `json:"block_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PendingActionSummary is what the caller must present to a human for approval.
type PendingActionSummary struct {
	ActionID    string    `json:"action_id"`
	Description string    `json:"description"`
	RiskLevel   RiskLevel `json:"risk_level"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ConfirmStatus enumerates the terminal outcomes of a confirmation request.
type ConfirmStatus string

const (
	ConfirmExecuted  ConfirmStatus = "executed"
	ConfirmCancelled ConfirmStatus = "cancelled"
	ConfirmExpired   ConfirmStatus = "expired"
	ConfirmNotFound  ConfirmStatus = "not_found"
)

// ConfirmResult is the outcome of resolving a parked action.
type ConfirmResult struct {
	Status  ConfirmStatus `json:"status"`
	Message string        `json:"message"`
	Result  any           `json:"result,omitempty"`
}

// BlockContext is what the context builder hands the orchestrator: a rendered
// system prompt plus the structured stage summary when one could be derived.
type BlockContext struct {
	SystemPrompt string
	GrowthStage  *GrowthStageInfo
}

// AuditEntry records one completed chat turn for the audit trail.
type AuditEntry struct {
	FarmID          string
	BlockID         string
	ConversationID  string
	Message         string
	ResponseChars   int
	ToolsUsed       []string
	PendingActionID string
	CreatedAt       time.Time
}
