package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/plotpilot/server/internal/assistant/model"
	"github.com/plotpilot/server/internal/assistant/websearch"
	"github.com/plotpilot/server/internal/devicehub"
	logx "github.com/plotpilot/server/pkg/logger"
)

// HubClientSource rehydrates a device hub client for a (farm, block) pair from
// stored credentials. Implemented by the connection manager.
type HubClientSource interface {
	Client(ctx context.Context, farmID, blockID string) (*devicehub.Client, error)
}

// WebSearcher runs the search-grounded model call.
type WebSearcher interface {
	Search(ctx context.Context, query string) (*websearch.Result, error)
}

// Executor dispatches tool calls against the device hub client or the web
// search backend. Dispatch is a closed switch over tool names; unknown names
// fail closed.
type Executor struct {
	hubs   HubClientSource
	search WebSearcher
}

func NewExecutor(hubs HubClientSource, search WebSearcher) *Executor {
	return &Executor{hubs: hubs, search: search}
}

// IsWrite reports whether the named tool mutates device state.
func (e *Executor) IsWrite(name string) bool {
	return IsWriteTool(name)
}

// DescribeWrite renders a write call for the approval prompt.
func (e *Executor) DescribeWrite(name, argsJSON string) (string, model.RiskLevel, error) {
	return DescribeWrite(name, argsJSON)
}

type getSensorReadingsInput struct {
	EquipmentID int `json:"equipment_id"`
	Hours       int `json:"hours"`
}

type listAlertsInput struct {
	Severity string `json:"severity"`
}

type webSearchInput struct {
	Query string `json:"query"`
}

// ExecuteRead runs a read tool and returns its result as JSON text. Failures
// become an {"error": ...} payload fed back to the model as a normal tool
// result, never an error that aborts the turn.
func (e *Executor) ExecuteRead(ctx context.Context, farmID, blockID, name, argsJSON string) string {
	result, err := e.executeRead(ctx, farmID, blockID, name, argsJSON)
	if err != nil {
		logx.Warn().Err(err).Str("tool", name).Str("block_id", blockID).Msg("read tool failed")
		return errorPayload(err)
	}
	return marshalResult(result)
}

func (e *Executor) executeRead(ctx context.Context, farmID, blockID, name, argsJSON string) (any, error) {
	switch name {
	case ToolListEquipment:
		client, err := e.hubs.Client(ctx, farmID, blockID)
		if err != nil {
			return nil, err
		}
		return client.ListEquipment(ctx)

	case ToolGetSensorReadings:
		var in getSensorReadingsInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return nil, fmt.Errorf("get_sensor_readings input: %w", err)
		}
		if in.Hours <= 0 {
			in.Hours = 24
		}
		if in.Hours > 168 {
			in.Hours = 168
		}
		client, err := e.hubs.Client(ctx, farmID, blockID)
		if err != nil {
			return nil, err
		}
		return client.EquipmentHistory(ctx, in.EquipmentID, in.Hours)

	case ToolListAutomations:
		client, err := e.hubs.Client(ctx, farmID, blockID)
		if err != nil {
			return nil, err
		}
		return client.ListAutomations(ctx)

	case ToolListAlerts:
		var in listAlertsInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return nil, fmt.Errorf("list_alerts input: %w", err)
		}
		client, err := e.hubs.Client(ctx, farmID, blockID)
		if err != nil {
			return nil, err
		}
		return client.ListAlerts(ctx, in.Severity)

	case ToolGetSystemHealth:
		client, err := e.hubs.Client(ctx, farmID, blockID)
		if err != nil {
			return nil, err
		}
		return client.Health(ctx)

	case ToolWebSearch:
		var in webSearchInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return nil, fmt.Errorf("web_search input: %w", err)
		}
		if in.Query == "" {
			return nil, fmt.Errorf("query is required")
		}
		if e.search == nil {
			return nil, fmt.Errorf("web search is not configured")
		}
		return e.search.Search(ctx, in.Query)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// ExecuteWrite performs a previously confirmed write action against the hub.
// This is only ever reached through the confirmation path.
func (e *Executor) ExecuteWrite(ctx context.Context, farmID, blockID, name, argsJSON string) (any, error) {
	client, err := e.hubs.Client(ctx, farmID, blockID)
	if err != nil {
		return nil, err
	}

	switch name {
	case ToolToggleRelay:
		var in toggleRelayInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return nil, fmt.Errorf("toggle_relay input: %w", err)
		}
		return client.SetRelay(ctx, in.EquipmentID, in.Channel, in.State)

	case ToolTriggerAutomation:
		var in triggerAutomationInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return nil, fmt.Errorf("trigger_automation input: %w", err)
		}
		return client.TriggerAutomation(ctx, in.AutomationID)

	case ToolSetAutomationEnabled:
		var in setAutomationEnabledInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return nil, fmt.Errorf("set_automation_enabled input: %w", err)
		}
		return client.SetAutomationEnabled(ctx, in.AutomationID, in.Enabled)

	default:
		return nil, fmt.Errorf("not a write tool: %s", name)
	}
}

func errorPayload(err error) string {
	b, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return `{"error":"tool execution failed"}`
	}
	return string(b)
}

func marshalResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return errorPayload(fmt.Errorf("marshal tool result: %w", err))
	}
	return string(b)
}
