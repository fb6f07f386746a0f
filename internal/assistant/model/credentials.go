package model

import "time"

// Device hub connection states stored on the block record.
const (
	HubStatusConnected    = "connected"
	HubStatusDisconnected = "disconnected"
)

// DeviceHubCredentials is the credential bundle embedded in the block record.
// The password is stored encrypted and is only ever decrypted inside the
// connection manager; plaintext is never persisted or logged. The cached token
// is written back after every authenticated hub interaction so concurrent
// orchestrator runs reuse it instead of re-authenticating (last write wins).
type DeviceHubCredentials struct {
	Endpoint          string    `json:"endpoint"`
	Port              int       `json:"port"`
	Email             string    `json:"email"`
	EncryptedPassword string    `json:"encryptedPassword"`
	CachedToken       string    `json:"cachedToken,omitempty"`
	TokenExpiresAt    time.Time `json:"tokenExpiresAt,omitempty"`
	ConnectionStatus  string    `json:"connectionStatus"`
	ConnectedAt       time.Time `json:"connectedAt,omitempty"`
	EquipmentCount    int       `json:"equipmentCount,omitempty"`
}
