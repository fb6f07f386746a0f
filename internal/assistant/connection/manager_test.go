package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plotpilot/server/internal/assistant/model"
	"github.com/plotpilot/server/internal/devicehub"
)

type memBlockRepo struct {
	blocks      map[string]*model.Block
	savedCreds  *model.DeviceHubCredentials
	savedToken  string
	savedExpiry time.Time
	tokenSaves  int
}

func (r *memBlockRepo) GetBlock(_ context.Context, farmID, blockID string) (*model.Block, error) {
	if b, ok := r.blocks[blockID]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("block %s not found", blockID)
}

func (r *memBlockRepo) ListChildBlocks(context.Context, string, string) ([]*model.Block, error) {
	return nil, nil
}

func (r *memBlockRepo) GetCrop(context.Context, string) (*model.Crop, error) {
	return nil, fmt.Errorf("not implemented")
}

func (r *memBlockRepo) SaveDeviceHub(_ context.Context, farmID, blockID string, creds *model.DeviceHubCredentials) error {
	r.savedCreds = creds
	if b, ok := r.blocks[blockID]; ok {
		b.DeviceHub = creds
	}
	return nil
}

func (r *memBlockRepo) SaveDeviceHubToken(_ context.Context, farmID, blockID, token string, expiresAt time.Time) error {
	r.savedToken = token
	r.savedExpiry = expiresAt
	r.tokenSaves++
	return nil
}

// fakeHub serves the endpoints Connect and Client exercise.
func fakeHub(t *testing.T, setupCompleted bool) (*httptest.Server, string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/health":
			json.NewEncoder(w).Encode(devicehub.Health{Status: "ok"})
		case "/api/setup/status":
			json.NewEncoder(w).Encode(devicehub.SetupStatus{SetupCompleted: setupCompleted})
		case "/api/auth/login":
			json.NewEncoder(w).Encode(map[string]string{"token": "hub-token"})
		case "/api/equipment":
			json.NewEncoder(w).Encode([]devicehub.Equipment{{ID: 1}, {ID: 2}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return srv, u.Hostname(), port
}

func newTestManager(t *testing.T, repo *memBlockRepo) *Manager {
	t.Helper()
	cipher, err := NewCredentialCipher(testKeyHex)
	require.NoError(t, err)
	return NewManager(repo, cipher)
}

func TestConnectPersistsEncryptedCredentials(t *testing.T) {
	_, host, port := fakeHub(t, true)
	repo := &memBlockRepo{blocks: map[string]*model.Block{"b1": {ID: "b1", FarmID: "f1"}}}
	m := newTestManager(t, repo)

	status, err := m.Connect(context.Background(), "f1", "b1", ConnectInput{
		Endpoint: host, Port: port, Email: "ops@example.com", Password: "hub-password",
	})
	require.NoError(t, err)

	assert.Equal(t, model.HubStatusConnected, status.ConnectionStatus)
	assert.Equal(t, 2, status.EquipmentCount)
	assert.True(t, status.Live)

	require.NotNil(t, repo.savedCreds)
	assert.Equal(t, "ops@example.com", repo.savedCreds.Email)
	// The password is stored sealed, never in the clear.
	assert.NotEqual(t, "hub-password", repo.savedCreds.EncryptedPassword)
	assert.NotContains(t, repo.savedCreds.EncryptedPassword, "hub-password")
	// The login token from the probe is cached for the first client.
	assert.Equal(t, "hub-token", repo.savedCreds.CachedToken)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), repo.savedCreds.TokenExpiresAt, time.Minute)
}

func TestConnectRejectsIncompleteSetup(t *testing.T) {
	_, host, port := fakeHub(t, false)
	repo := &memBlockRepo{blocks: map[string]*model.Block{"b1": {ID: "b1", FarmID: "f1"}}}
	m := newTestManager(t, repo)

	_, err := m.Connect(context.Background(), "f1", "b1", ConnectInput{
		Endpoint: host, Port: port, Email: "ops@example.com", Password: "hub-password",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first-run setup")
	assert.Nil(t, repo.savedCreds)
}

func TestConnectRejectsUnknownBlock(t *testing.T) {
	repo := &memBlockRepo{blocks: map[string]*model.Block{}}
	m := newTestManager(t, repo)
	_, err := m.Connect(context.Background(), "f1", "nope", ConnectInput{
		Endpoint: "127.0.0.1", Port: 1, Email: "a@b.c", Password: "x",
	})
	require.Error(t, err)
}

func TestDisconnectClearsCredentials(t *testing.T) {
	repo := &memBlockRepo{blocks: map[string]*model.Block{
		"b1": {ID: "b1", FarmID: "f1", DeviceHub: &model.DeviceHubCredentials{ConnectionStatus: model.HubStatusConnected}},
	}}
	m := newTestManager(t, repo)

	require.NoError(t, m.Disconnect(context.Background(), "f1", "b1"))
	assert.Nil(t, repo.blocks["b1"].DeviceHub)

	status, err := m.GetStatus(context.Background(), "f1", "b1")
	require.NoError(t, err)
	assert.Equal(t, model.HubStatusDisconnected, status.ConnectionStatus)
}

func TestGetStatusWithoutHub(t *testing.T) {
	repo := &memBlockRepo{blocks: map[string]*model.Block{"b1": {ID: "b1", FarmID: "f1"}}}
	m := newTestManager(t, repo)

	status, err := m.GetStatus(context.Background(), "f1", "b1")
	require.NoError(t, err)
	assert.Equal(t, model.HubStatusDisconnected, status.ConnectionStatus)
	assert.False(t, status.Live)
}

func TestClientDecryptsAndWritesBackTokens(t *testing.T) {
	_, host, port := fakeHub(t, true)
	repo := &memBlockRepo{blocks: map[string]*model.Block{"b1": {ID: "b1", FarmID: "f1"}}}
	m := newTestManager(t, repo)

	encrypted, err := m.cipher.Encrypt("hub-password")
	require.NoError(t, err)
	repo.blocks["b1"].DeviceHub = &model.DeviceHubCredentials{
		Endpoint:          host,
		Port:              port,
		Email:             "ops@example.com",
		EncryptedPassword: encrypted,
		ConnectionStatus:  model.HubStatusConnected,
		// No cached token, so the first authenticated call must log in.
	}

	client, err := m.Client(context.Background(), "f1", "b1")
	require.NoError(t, err)

	equipment, err := client.ListEquipment(context.Background())
	require.NoError(t, err)
	assert.Len(t, equipment, 2)

	// The login fired the refresh hook, which persisted the fresh token.
	assert.Equal(t, 1, repo.tokenSaves)
	assert.Equal(t, "hub-token", repo.savedToken)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), repo.savedExpiry, time.Minute)
}

func TestClientRequiresConnectedHub(t *testing.T) {
	repo := &memBlockRepo{blocks: map[string]*model.Block{"b1": {ID: "b1", FarmID: "f1"}}}
	m := newTestManager(t, repo)

	_, err := m.Client(context.Background(), "f1", "b1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no connected device hub")
}

func TestClientFailsOnUnreadableCredentials(t *testing.T) {
	repo := &memBlockRepo{blocks: map[string]*model.Block{"b1": {ID: "b1", FarmID: "f1", DeviceHub: &model.DeviceHubCredentials{
		Endpoint:          "127.0.0.1",
		Port:              80,
		EncryptedPassword: "garbage",
		ConnectionStatus:  model.HubStatusConnected,
	}}}}
	m := newTestManager(t, repo)

	_, err := m.Client(context.Background(), "f1", "b1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect the hub")
}

var _ model.BlockRepository = (*memBlockRepo)(nil)
