package devicehub

import "time"

// Health is the unauthenticated liveness probe response.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  int64  `json:"uptime,omitempty"`
}

// SetupStatus reports whether the hub has completed its own first-run setup.
type SetupStatus struct {
	SetupCompleted bool `json:"setupCompleted"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// RelayChannel is one controllable channel on a piece of equipment.
type RelayChannel struct {
	Channel int    `json:"channel"`
	Name    string `json:"name,omitempty"`
	State   bool   `json:"state"`
}

// Equipment is one device registered with the hub.
type Equipment struct {
	ID       int            `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Online   bool           `json:"online"`
	Relays   []RelayChannel `json:"relays,omitempty"`
	LastSeen time.Time      `json:"lastSeen,omitempty"`
}

// SensorReading is one telemetry sample.
type SensorReading struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorHistory is an equipment's historical plus latest readings.
type SensorHistory struct {
	EquipmentID int             `json:"equipmentId"`
	Latest      []SensorReading `json:"latest"`
	History     []SensorReading `json:"history"`
}

// Automation is one rule configured on the hub.
type Automation struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
	LastRun     string `json:"lastRun,omitempty"`
}

// AutomationResult reports the outcome of a trigger or enable toggle.
type AutomationResult struct {
	ID      int    `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// RelayResult reports the hub-side outcome of a relay command.
type RelayResult struct {
	EquipmentID int    `json:"equipmentId"`
	Channel     int    `json:"channel"`
	State       bool   `json:"state"`
	Status      string `json:"status"`
}

// Alert is one hub-raised alert.
type Alert struct {
	ID           int       `json:"id"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	EquipmentID  int       `json:"equipmentId,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	RaisedAt     time.Time `json:"raisedAt,omitempty"`
}
