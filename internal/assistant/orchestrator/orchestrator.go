package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/plotpilot/server/internal/assistant/model"
	logx "github.com/plotpilot/server/pkg/logger"
)

const (
	// DefaultMaxToolRounds bounds model round trips within one chat turn.
	DefaultMaxToolRounds = 5

	noProviderMessage  = "The assistant is not configured with a language model provider yet. Ask an administrator to set GEMINI_API_KEY."
	providerErrMessage = "Sorry, I could not reach the language model right now. Please try again in a moment."
)

// ContextBuilder renders the grounded system prompt for one block.
type ContextBuilder interface {
	Build(ctx context.Context, farmID, blockID string) (*model.BlockContext, error)
}

// ToolExecutor classifies and runs tool calls.
type ToolExecutor interface {
	IsWrite(name string) bool
	ExecuteRead(ctx context.Context, farmID, blockID, name, argsJSON string) string
	ExecuteWrite(ctx context.Context, farmID, blockID, name, argsJSON string) (any, error)
	DescribeWrite(name, argsJSON string) (string, model.RiskLevel, error)
}

// PendingStore parks write actions behind human confirmation.
type PendingStore interface {
	Store(ctx context.Context, toolName, toolInput, description string, risk model.RiskLevel, farmID, blockID string) (*model.PendingAction, error)
	Load(ctx context.Context, actionID string) (*model.PendingAction, error)
	Claim(ctx context.Context, actionID string) (*model.PendingAction, error)
	Delete(ctx context.Context, actionID string) error
}

// Orchestrator coordinates one chat turn: grounded context, the bounded
// tool-use loop, and the separate confirmation path. Each call is an
// independent, stateless unit of work; cross-request coordination happens only
// through the pending store and the block record's stored token.
type Orchestrator struct {
	chatModel einomodel.ToolCallingChatModel // nil means no provider configured
	builder   ContextBuilder
	executor  ToolExecutor
	pending   PendingStore
	audit     model.AuditLog // optional
	maxRounds int
}

func New(chatModel einomodel.ToolCallingChatModel, builder ContextBuilder, executor ToolExecutor, pending PendingStore, audit model.AuditLog, cfg model.ChatConfig) *Orchestrator {
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	return &Orchestrator{
		chatModel: chatModel,
		builder:   builder,
		executor:  executor,
		pending:   pending,
		audit:     audit,
		maxRounds: maxRounds,
	}
}

// Chat runs one turn of the assistant for a block. Errors inside the tool-use
// loop are recovered locally and turned into model-visible data; only
// programming errors surface as Go errors.
func (o *Orchestrator) Chat(ctx context.Context, farmID, blockID string, in model.ChatInput) (*model.ChatResult, error) {
	if o.chatModel == nil {
		return &model.ChatResult{Message: noProviderMessage, ToolsUsed: []string{}}, nil
	}

	blockCtx := o.buildContext(ctx, farmID, blockID)
	messages := assembleMessages(blockCtx.SystemPrompt, in)

	result := &model.ChatResult{
		GrowthStage: blockCtx.GrowthStage,
		ToolsUsed:   []string{},
	}

	var (
		out     *schema.Message
		toolSeq int
	)
	for round := 0; round < o.maxRounds; round++ {
		var err error
		out, err = o.chatModel.Generate(ctx, messages)
		if err != nil {
			logx.Error().Err(err).Str("block_id", blockID).Int("round", round).Msg("model call failed")
			result.Message = providerErrMessage
			o.recordAudit(ctx, farmID, blockID, in, result)
			return result, nil
		}

		if len(out.ToolCalls) == 0 {
			break
		}

		// Tool results are batched back in a single round, preserving the
		// order the model requested them in.
		messages = append(messages, out)
		for _, tc := range out.ToolCalls {
			callID := tc.ID
			if callID == "" {
				// Some providers omit tool_call_id; synthesize a local one.
				toolSeq++
				callID = fmt.Sprintf("call_%d", toolSeq)
			}
			name := tc.Function.Name
			result.ToolsUsed = append(result.ToolsUsed, name)

			content := o.dispatch(ctx, farmID, blockID, name, tc.Function.Arguments, result)
			messages = append(messages, schema.ToolMessage(content, callID, schema.WithToolName(name)))
		}
	}

	// Round limit exhaustion is not an error: return the last response's
	// text, however partial, along with whatever tools were already used.
	if out != nil {
		result.Message = out.Content
	}
	if result.Message == "" && result.PendingAction != nil {
		result.Message = fmt.Sprintf("I have prepared an action that needs your approval: %s.", result.PendingAction.Description)
	}

	o.recordAudit(ctx, farmID, blockID, in, result)
	return result, nil
}

// dispatch classifies one function call. Write calls short-circuit into the
// pending store and a synthetic "pending confirmation" result is fed back so
// the model can describe the parked action; read calls execute for real.
func (o *Orchestrator) dispatch(ctx context.Context, farmID, blockID, name, argsJSON string, result *model.ChatResult) string {
	if !o.executor.IsWrite(name) {
		return o.executor.ExecuteRead(ctx, farmID, blockID, name, argsJSON)
	}

	desc, risk, err := o.executor.DescribeWrite(name, argsJSON)
	if err != nil {
		logx.Warn().Err(err).Str("tool", name).Msg("write call rejected")
		return toolErrorPayload(err)
	}

	action, err := o.pending.Store(ctx, name, argsJSON, desc, risk, farmID, blockID)
	if err != nil {
		logx.Error().Err(err).Str("tool", name).Msg("failed to park pending action")
		return toolErrorPayload(fmt.Errorf("could not queue the action for approval"))
	}

	if result.PendingAction == nil {
		result.PendingAction = &model.PendingActionSummary{
			ActionID:    action.ActionID,
			Description: action.Description,
			RiskLevel:   action.RiskLevel,
			ExpiresAt:   action.ExpiresAt,
		}
	}

	payload, _ := json.Marshal(map[string]any{
		"status":      "pending_confirmation",
		"action_id":   action.ActionID,
		"description": action.Description,
		"risk_level":  action.RiskLevel,
		"note":        "The action runs only after the user explicitly approves it. Tell the user what was requested and that it awaits their approval.",
	})
	return string(payload)
}

// buildContext degrades to a minimal prompt when block data is unavailable so
// a broken document store never takes the chat down with it.
func (o *Orchestrator) buildContext(ctx context.Context, farmID, blockID string) *model.BlockContext {
	blockCtx, err := o.builder.Build(ctx, farmID, blockID)
	if err != nil || blockCtx == nil {
		logx.Warn().Err(err).Str("farm_id", farmID).Str("block_id", blockID).Msg("context build failed, using fallback prompt")
		return &model.BlockContext{
			SystemPrompt: fmt.Sprintf("You are the operations assistant for farming block %q. Block data is currently unavailable; answer from device tools and general knowledge, and say so when asked about the crop.", blockID),
		}
	}
	return blockCtx
}

func (o *Orchestrator) recordAudit(ctx context.Context, farmID, blockID string, in model.ChatInput, result *model.ChatResult) {
	if o.audit == nil {
		return
	}
	entry := model.AuditEntry{
		FarmID:         farmID,
		BlockID:        blockID,
		ConversationID: in.ConversationID,
		Message:        in.Message,
		ResponseChars:  len(result.Message),
		ToolsUsed:      result.ToolsUsed,
		CreatedAt:      time.Now(),
	}
	if result.PendingAction != nil {
		entry.PendingActionID = result.PendingAction.ActionID
	}
	o.audit.Record(ctx, entry)
}

// assembleMessages turns the caller-supplied history into the model message
// sequence. The caller owns the history cap.
func assembleMessages(systemPrompt string, in model.ChatInput) []*schema.Message {
	messages := make([]*schema.Message, 0, len(in.History)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, msg := range in.History {
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, schema.UserMessage(msg.Content))
		case model.RoleModel:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		}
	}
	messages = append(messages, schema.UserMessage(in.Message))
	return messages
}

func toolErrorPayload(err error) string {
	b, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return `{"error":"tool call failed"}`
	}
	return string(b)
}
