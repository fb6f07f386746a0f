package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotpilot/server/internal/assistant/model"
)

// scriptedModel replays a fixed sequence of responses and records what it was
// asked.
type scriptedModel struct {
	responses []*schema.Message
	errs      []error
	calls     int
	received  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	i := m.calls
	m.calls++
	m.received = append(m.received, msgs)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	// Past the script, keep returning the last response.
	return m.responses[len(m.responses)-1], nil
}

func (m *scriptedModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported in tests")
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

type fakeExecutor struct {
	readCalls   []string
	readPayload string
	writeCalls  []string
	writeResult any
	writeErr    error
}

func (f *fakeExecutor) IsWrite(name string) bool {
	switch name {
	case "toggle_relay", "trigger_automation", "set_automation_enabled":
		return true
	}
	return false
}

func (f *fakeExecutor) ExecuteRead(_ context.Context, _, _, name, _ string) string {
	f.readCalls = append(f.readCalls, name)
	if f.readPayload != "" {
		return f.readPayload
	}
	return `{"ok":true}`
}

func (f *fakeExecutor) ExecuteWrite(_ context.Context, _, _, name, _ string) (any, error) {
	f.writeCalls = append(f.writeCalls, name)
	return f.writeResult, f.writeErr
}

func (f *fakeExecutor) DescribeWrite(name, _ string) (string, model.RiskLevel, error) {
	return "Switch ON channel 1 on equipment #12", model.RiskMedium, nil
}

// memPending is an in-memory pending store.
type memPending struct {
	actions map[string]*model.PendingAction
	seq     int
	stores  int
}

func newMemPending() *memPending {
	return &memPending{actions: map[string]*model.PendingAction{}}
}

func (p *memPending) Store(_ context.Context, toolName, toolInput, description string, risk model.RiskLevel, farmID, blockID string) (*model.PendingAction, error) {
	p.seq++
	p.stores++
	action := &model.PendingAction{
		ActionID:    fmt.Sprintf("action-%d", p.seq),
		ToolName:    toolName,
		ToolInput:   toolInput,
		Description: description,
		RiskLevel:   risk,
		FarmID:      farmID,
		BlockID:     blockID,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	}
	p.actions[action.ActionID] = action
	return action, nil
}

func (p *memPending) Load(_ context.Context, actionID string) (*model.PendingAction, error) {
	return p.actions[actionID], nil
}

func (p *memPending) Claim(_ context.Context, actionID string) (*model.PendingAction, error) {
	action := p.actions[actionID]
	delete(p.actions, actionID)
	return action, nil
}

func (p *memPending) Delete(_ context.Context, actionID string) error {
	delete(p.actions, actionID)
	return nil
}

type staticBuilder struct {
	ctx *model.BlockContext
	err error
}

func (b *staticBuilder) Build(context.Context, string, string) (*model.BlockContext, error) {
	return b.ctx, b.err
}

type memAudit struct {
	entries []model.AuditEntry
}

func (a *memAudit) Record(_ context.Context, entry model.AuditEntry) {
	a.entries = append(a.entries, entry)
}

func newTestOrchestrator(m einomodel.ToolCallingChatModel, exec *fakeExecutor, pending *memPending) (*Orchestrator, *memAudit) {
	audit := &memAudit{}
	builder := &staticBuilder{ctx: &model.BlockContext{
		SystemPrompt: "You are the operations assistant for Greenhouse A.",
		GrowthStage:  &model.GrowthStageInfo{Stage: model.StageVegetative, Day: 20},
	}}
	o := New(m, builder, exec, pending, audit, model.ChatConfig{MaxToolRounds: 5})
	return o, audit
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func TestChatWithoutProvider(t *testing.T) {
	o, _ := newTestOrchestrator(nil, &fakeExecutor{}, newMemPending())
	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "hello"})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "not configured")
	assert.Empty(t, result.ToolsUsed)
}

func TestChatPlainAnswer(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		schema.AssistantMessage("Your tomatoes are 20 days in, mid vegetative.", nil),
	}}
	exec := &fakeExecutor{}
	o, audit := newTestOrchestrator(m, exec, newMemPending())

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{
		ConversationID: "conv-1",
		Message:        "how is the crop doing?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Your tomatoes are 20 days in, mid vegetative.", result.Message)
	assert.Empty(t, result.ToolsUsed)
	assert.Equal(t, 1, m.calls)
	require.NotNil(t, result.GrowthStage)
	assert.Equal(t, model.StageVegetative, result.GrowthStage.Stage)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "conv-1", audit.entries[0].ConversationID)

	// First message in must be the grounded system prompt, last the user turn.
	msgs := m.received[0]
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Greenhouse A")
	assert.Equal(t, "how is the crop doing?", msgs[len(msgs)-1].Content)
}

func TestChatHistoryIsReplayedInOrder(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("ok", nil)}}
	o, _ := newTestOrchestrator(m, &fakeExecutor{}, newMemPending())

	_, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{
		Message: "and now?",
		History: []model.ChatMessage{
			{Role: model.RoleUser, Content: "turn on the pump"},
			{Role: model.RoleModel, Content: "That needs your approval first."},
		},
	})
	require.NoError(t, err)

	msgs := m.received[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "turn on the pump", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "and now?", msgs[3].Content)
}

func TestChatReadToolRound(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			toolCall("call-1", "list_equipment", "{}"),
		}},
		schema.AssistantMessage("You have one pump and it is online.", nil),
	}}
	exec := &fakeExecutor{readPayload: `[{"id":12,"name":"Pump A","online":true}]`}
	o, _ := newTestOrchestrator(m, exec, newMemPending())

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "what equipment is online?"})
	require.NoError(t, err)

	assert.Equal(t, "You have one pump and it is online.", result.Message)
	assert.Equal(t, []string{"list_equipment"}, result.ToolsUsed)
	assert.Equal(t, []string{"list_equipment"}, exec.readCalls)
	assert.Equal(t, 2, m.calls)

	// Second round sees the assistant's tool call plus its tool result.
	msgs := m.received[1]
	last := msgs[len(msgs)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, exec.readPayload, last.Content)
	assert.Equal(t, "call-1", last.ToolCallID)
}

func TestChatWriteCallIsParkedNotExecuted(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			toolCall("call-1", "toggle_relay", `{"equipment_id":12,"channel":1,"state":true}`),
		}},
		schema.AssistantMessage("I queued the pump switch for your approval.", nil),
	}}
	exec := &fakeExecutor{}
	pending := newMemPending()
	o, audit := newTestOrchestrator(m, exec, pending)

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "turn on the pump"})
	require.NoError(t, err)

	assert.Empty(t, exec.writeCalls, "write tools must never run inside the chat loop")
	assert.Equal(t, 1, pending.stores)
	require.NotNil(t, result.PendingAction)
	assert.Equal(t, "Switch ON channel 1 on equipment #12", result.PendingAction.Description)
	assert.Equal(t, model.RiskMedium, result.PendingAction.RiskLevel)

	// The model sees a synthetic pending-confirmation tool result.
	msgs := m.received[1]
	last := msgs[len(msgs)-1]
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.Content), &payload))
	assert.Equal(t, "pending_confirmation", payload["status"])
	assert.Equal(t, result.PendingAction.ActionID, payload["action_id"])

	require.Len(t, audit.entries, 1)
	assert.Equal(t, result.PendingAction.ActionID, audit.entries[0].PendingActionID)
}

func TestChatFirstPendingActionWins(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			toolCall("call-1", "toggle_relay", `{"equipment_id":1,"channel":1,"state":true}`),
			toolCall("call-2", "trigger_automation", `{"automation_id":7}`),
		}},
		schema.AssistantMessage("Two actions await your approval.", nil),
	}}
	pending := newMemPending()
	o, _ := newTestOrchestrator(m, &fakeExecutor{}, pending)

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "water everything"})
	require.NoError(t, err)

	// Both parked, but the summary surfaces the first one.
	assert.Equal(t, 2, pending.stores)
	require.NotNil(t, result.PendingAction)
	assert.Equal(t, "action-1", result.PendingAction.ActionID)
}

func TestChatRoundLimit(t *testing.T) {
	// The model asks for a tool on every round and never stops.
	m := &scriptedModel{responses: []*schema.Message{
		{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
			toolCall("", "list_equipment", "{}"),
		}},
	}}
	exec := &fakeExecutor{}
	o, _ := newTestOrchestrator(m, exec, newMemPending())

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "loop forever"})
	require.NoError(t, err)

	assert.Equal(t, 5, m.calls, "the loop must stop at the round limit")
	assert.Len(t, exec.readCalls, 5)
	assert.Len(t, result.ToolsUsed, 5)
}

func TestChatProviderFailureIsAnApologyNotAnError(t *testing.T) {
	m := &scriptedModel{
		responses: []*schema.Message{nil},
		errs:      []error{fmt.Errorf("rpc deadline exceeded")},
	}
	o, _ := newTestOrchestrator(m, &fakeExecutor{}, newMemPending())

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "hello"})
	require.NoError(t, err)
	assert.Contains(t, result.Message, "could not reach")
}

func TestChatContextFailureFallsBackToMinimalPrompt(t *testing.T) {
	m := &scriptedModel{responses: []*schema.Message{schema.AssistantMessage("hi", nil)}}
	audit := &memAudit{}
	builder := &staticBuilder{err: fmt.Errorf("document store down")}
	o := New(m, builder, &fakeExecutor{}, newMemPending(), audit, model.ChatConfig{MaxToolRounds: 5})

	result, err := o.Chat(context.Background(), "f1", "b1", model.ChatInput{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Message)
	assert.Nil(t, result.GrowthStage)

	msgs := m.received[0]
	assert.Contains(t, msgs[0].Content, `"b1"`)
	assert.Contains(t, msgs[0].Content, "unavailable")
}
