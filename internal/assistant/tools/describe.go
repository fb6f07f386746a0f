package tools

import (
	"encoding/json"
	"fmt"

	"github.com/plotpilot/server/internal/assistant/model"
)

type toggleRelayInput struct {
	EquipmentID int  `json:"equipment_id"`
	Channel     int  `json:"channel"`
	State       bool `json:"state"`
}

type triggerAutomationInput struct {
	AutomationID int `json:"automation_id"`
}

type setAutomationEnabledInput struct {
	AutomationID int  `json:"automation_id"`
	Enabled      bool `json:"enabled"`
}

// DescribeWrite renders a write tool call as a human-readable sentence plus a
// risk tier for the approval prompt. Unknown tool names and malformed inputs
// fail closed with an error.
func DescribeWrite(name, argsJSON string) (string, model.RiskLevel, error) {
	switch name {
	case ToolToggleRelay:
		var in toggleRelayInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return "", "", fmt.Errorf("toggle_relay input: %w", err)
		}
		verb := "OFF"
		if in.State {
			verb = "ON"
		}
		desc := fmt.Sprintf("Switch %s channel %d on equipment #%d", verb, in.Channel, in.EquipmentID)
		return desc, model.RiskMedium, nil

	case ToolTriggerAutomation:
		var in triggerAutomationInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return "", "", fmt.Errorf("trigger_automation input: %w", err)
		}
		return fmt.Sprintf("Run automation #%d once now", in.AutomationID), model.RiskMedium, nil

	case ToolSetAutomationEnabled:
		var in setAutomationEnabledInput
		if err := json.Unmarshal([]byte(argsJSON), &in); err != nil {
			return "", "", fmt.Errorf("set_automation_enabled input: %w", err)
		}
		verb := "Disable"
		if in.Enabled {
			verb = "Enable"
		}
		return fmt.Sprintf("%s automation #%d", verb, in.AutomationID), model.RiskLow, nil

	default:
		return "", "", fmt.Errorf("not a write tool: %s", name)
	}
}
