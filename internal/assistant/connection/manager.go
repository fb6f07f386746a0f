package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/plotpilot/server/internal/assistant/model"
	"github.com/plotpilot/server/internal/devicehub"
	logx "github.com/plotpilot/server/pkg/logger"
)

// ConnectInput carries the administrator-supplied hub coordinates.
type ConnectInput struct {
	Endpoint string `json:"endpoint"`
	Port     int    `json:"port"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Status reports the link between a block and its device hub. Live is a
// best-effort probe; connection state is informational and never blocks on a
// failing hub.
type Status struct {
	ConnectionStatus string     `json:"connection_status"`
	Endpoint         string     `json:"endpoint,omitempty"`
	Port             int        `json:"port,omitempty"`
	ConnectedAt      *time.Time `json:"connected_at,omitempty"`
	EquipmentCount   int        `json:"equipment_count,omitempty"`
	Live             bool       `json:"live"`
	LiveError        string     `json:"live_error,omitempty"`
}

// Manager creates, destroys, and reports the device hub link for blocks, and
// is the only path by which stored passwords are ever decrypted.
type Manager struct {
	repo   model.BlockRepository
	cipher *CredentialCipher
}

func NewManager(repo model.BlockRepository, cipher *CredentialCipher) *Manager {
	return &Manager{repo: repo, cipher: cipher}
}

// Connect verifies the hub, logs in once, and persists the encrypted
// credential bundle onto the block record. Errors here are administrative and
// surface directly to the caller with actionable messages.
func (m *Manager) Connect(ctx context.Context, farmID, blockID string, in ConnectInput) (*Status, error) {
	if _, err := m.repo.GetBlock(ctx, farmID, blockID); err != nil {
		return nil, fmt.Errorf("block lookup: %w", err)
	}

	probe := devicehub.New(devicehub.Credentials{
		Endpoint: in.Endpoint,
		Port:     in.Port,
		Email:    in.Email,
		Password: in.Password,
	})

	if _, err := probe.Health(ctx); err != nil {
		return nil, fmt.Errorf("device hub at %s:%d is unreachable: %w", in.Endpoint, in.Port, err)
	}
	setup, err := probe.SetupStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("device hub setup probe failed: %w", err)
	}
	if !setup.SetupCompleted {
		return nil, fmt.Errorf("device hub at %s:%d has not completed its first-run setup", in.Endpoint, in.Port)
	}
	if err := probe.Login(ctx); err != nil {
		return nil, fmt.Errorf("device hub rejected the account credentials: %w", err)
	}

	// Equipment count is a nicety for the status summary, not a requirement.
	equipmentCount := 0
	if equipment, err := probe.ListEquipment(ctx); err == nil {
		equipmentCount = len(equipment)
	} else {
		logx.Warn().Err(err).Str("block_id", blockID).Msg("equipment probe failed during connect")
	}

	encrypted, err := m.cipher.Encrypt(in.Password)
	if err != nil {
		return nil, fmt.Errorf("encrypt credentials: %w", err)
	}

	token, tokenExp := probe.Token()
	now := time.Now()
	creds := &model.DeviceHubCredentials{
		Endpoint:          in.Endpoint,
		Port:              in.Port,
		Email:             in.Email,
		EncryptedPassword: encrypted,
		CachedToken:       token,
		TokenExpiresAt:    tokenExp,
		ConnectionStatus:  model.HubStatusConnected,
		ConnectedAt:       now,
		EquipmentCount:    equipmentCount,
	}
	if err := m.repo.SaveDeviceHub(ctx, farmID, blockID, creds); err != nil {
		return nil, fmt.Errorf("persist credentials: %w", err)
	}

	logx.Info().
		Str("farm_id", farmID).
		Str("block_id", blockID).
		Str("endpoint", in.Endpoint).
		Int("equipment_count", equipmentCount).
		Msg("device hub connected")

	return &Status{
		ConnectionStatus: model.HubStatusConnected,
		Endpoint:         in.Endpoint,
		Port:             in.Port,
		ConnectedAt:      &now,
		EquipmentCount:   equipmentCount,
		Live:             true,
	}, nil
}

// Disconnect clears stored credentials and flips the status.
func (m *Manager) Disconnect(ctx context.Context, farmID, blockID string) error {
	if err := m.repo.SaveDeviceHub(ctx, farmID, blockID, nil); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	logx.Info().Str("farm_id", farmID).Str("block_id", blockID).Msg("device hub disconnected")
	return nil
}

// GetStatus reports the last known connection metadata plus a best-effort
// live probe.
func (m *Manager) GetStatus(ctx context.Context, farmID, blockID string) (*Status, error) {
	block, err := m.repo.GetBlock(ctx, farmID, blockID)
	if err != nil {
		return nil, fmt.Errorf("block lookup: %w", err)
	}
	if block.DeviceHub == nil || block.DeviceHub.ConnectionStatus != model.HubStatusConnected {
		return &Status{ConnectionStatus: model.HubStatusDisconnected}, nil
	}

	creds := block.DeviceHub
	status := &Status{
		ConnectionStatus: creds.ConnectionStatus,
		Endpoint:         creds.Endpoint,
		Port:             creds.Port,
		EquipmentCount:   creds.EquipmentCount,
	}
	if !creds.ConnectedAt.IsZero() {
		t := creds.ConnectedAt
		status.ConnectedAt = &t
	}

	probe := devicehub.New(devicehub.Credentials{Endpoint: creds.Endpoint, Port: creds.Port})
	if _, err := probe.Health(ctx); err != nil {
		status.LiveError = err.Error()
	} else {
		status.Live = true
	}
	return status, nil
}

// Client rehydrates a device hub client from the block's stored credentials.
// This is the only place the password is decrypted; the plaintext lives in the
// returned client's memory and nowhere else. Refreshed tokens are written back
// onto the block record so later requests reuse them (last write wins).
func (m *Manager) Client(ctx context.Context, farmID, blockID string) (*devicehub.Client, error) {
	block, err := m.repo.GetBlock(ctx, farmID, blockID)
	if err != nil {
		return nil, fmt.Errorf("block lookup: %w", err)
	}
	creds := block.DeviceHub
	if creds == nil || creds.ConnectionStatus != model.HubStatusConnected {
		return nil, fmt.Errorf("block %s has no connected device hub", blockID)
	}

	password, err := m.cipher.Decrypt(creds.EncryptedPassword)
	if err != nil {
		return nil, fmt.Errorf("stored device hub credentials are unreadable, reconnect the hub: %w", err)
	}

	client := devicehub.New(devicehub.Credentials{
		Endpoint:       creds.Endpoint,
		Port:           creds.Port,
		Email:          creds.Email,
		Password:       password,
		CachedToken:    creds.CachedToken,
		TokenExpiresAt: creds.TokenExpiresAt,
	}, devicehub.WithTokenRefreshHook(func(token string, expiresAt time.Time) {
		// Best-effort write-back; a failed save only costs a re-login later.
		if err := m.repo.SaveDeviceHubToken(context.WithoutCancel(ctx), farmID, blockID, token, expiresAt); err != nil {
			logx.Warn().Err(err).Str("block_id", blockID).Msg("token write-back failed")
		}
	}))
	return client, nil
}
