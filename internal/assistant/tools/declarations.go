package tools

import (
	"github.com/cloudwego/eino/schema"
)

// Read tools query device, telemetry, or web state and run inline.
const (
	ToolListEquipment     = "list_equipment"
	ToolGetSensorReadings = "get_sensor_readings"
	ToolListAutomations   = "list_automations"
	ToolListAlerts        = "list_alerts"
	ToolGetSystemHealth   = "get_system_health"
	ToolWebSearch         = "web_search"
)

// Write tools mutate device state and are always parked for human confirmation.
const (
	ToolToggleRelay          = "toggle_relay"
	ToolTriggerAutomation    = "trigger_automation"
	ToolSetAutomationEnabled = "set_automation_enabled"
)

// writeTools is the closed set of state-changing tool names. Classification
// happens against this set; unknown names fail closed as reads with an error
// payload, never as writes.
var writeTools = map[string]bool{
	ToolToggleRelay:          true,
	ToolTriggerAutomation:    true,
	ToolSetAutomationEnabled: true,
}

// IsWriteTool reports whether the named tool mutates device state.
func IsWriteTool(name string) bool {
	return writeTools[name]
}

// ReadToolNames lists the read tools in declaration order.
func ReadToolNames() []string {
	return []string{ToolListEquipment, ToolGetSensorReadings, ToolListAutomations, ToolListAlerts, ToolGetSystemHealth, ToolWebSearch}
}

// WriteToolNames lists the write tools in declaration order.
func WriteToolNames() []string {
	return []string{ToolToggleRelay, ToolTriggerAutomation, ToolSetAutomationEnabled}
}

// Declarations returns the full tool surface bound to the chat model.
func Declarations() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolListEquipment,
			Desc: "List all equipment registered with this block's device hub, including online status and relay channel states. Use this first when the grower asks what devices exist or whether something is running.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolGetSensorReadings,
			Desc: "Fetch a sensor's latest and historical readings (temperature, humidity, EC, pH, soil moisture) for one piece of equipment.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"equipment_id": {
					Type:     "integer",
					Desc:     "Equipment id from list_equipment results.",
					Required: true,
				},
				"hours": {
					Type: "integer",
					Desc: "How many hours of history to fetch (default 24, max 168).",
				},
			}),
		},
		{
			Name: ToolListAutomations,
			Desc: "List the automations configured on the device hub with their enabled state and last run time.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolListAlerts,
			Desc: "List active device hub alerts, optionally filtered by severity.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"severity": {
					Type: "string",
					Desc: "Optional severity filter: info, warning, or critical.",
				},
			}),
		},
		{
			Name: ToolGetSystemHealth,
			Desc: "Fetch the device hub's own health and version information.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		{
			Name: ToolWebSearch,
			Desc: "Search the web for agronomy knowledge that device data cannot answer (pests, diseases, growing practices, market context). Returns a digest with source citations.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     "string",
					Desc:     "What to search for, phrased as a specific question.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolToggleRelay,
			Desc: "Turn one relay channel on specific equipment ON or OFF (pumps, lights, fans, valves). The action is parked for the grower's approval and does not run immediately.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"equipment_id": {
					Type:     "integer",
					Desc:     "Equipment id from list_equipment results.",
					Required: true,
				},
				"channel": {
					Type:     "integer",
					Desc:     "Relay channel number on the equipment.",
					Required: true,
				},
				"state": {
					Type:     "boolean",
					Desc:     "true to switch the channel ON, false to switch it OFF.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolTriggerAutomation,
			Desc: "Run an automation once, right now. The action is parked for the grower's approval and does not run immediately.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"automation_id": {
					Type:     "integer",
					Desc:     "Automation id from list_automations results.",
					Required: true,
				},
			}),
		},
		{
			Name: ToolSetAutomationEnabled,
			Desc: "Enable or disable an automation. The action is parked for the grower's approval and does not run immediately.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"automation_id": {
					Type:     "integer",
					Desc:     "Automation id from list_automations results.",
					Required: true,
				},
				"enabled": {
					Type:     "boolean",
					Desc:     "true to enable the automation, false to disable it.",
					Required: true,
				},
			}),
		},
	}
}
