package tools

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

	"github.com/plotpilot/server/internal/assistant/websearch"
	"github.com/plotpilot/server/internal/devicehub"
)

type staticHubSource struct {
	client *devicehub.Client
	err    error
}

func (s *staticHubSource) Client(context.Context, string, string) (*devicehub.Client, error) {
	return s.client, s.err
}

type staticSearcher struct {
	result *websearch.Result
	err    error
	gotQ   string
}

func (s *staticSearcher) Search(_ context.Context, query string) (*websearch.Result, error) {
	s.gotQ = query
	return s.result, s.err
}

// hubClientFor points a devicehub client at an httptest server with a token
// already cached so reads skip the login round trip.
func hubClientFor(t *testing.T, srv *httptest.Server) *devicehub.Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return devicehub.New(devicehub.Credentials{
		Endpoint:       u.Hostname(),
		Port:           port,
		Email:          "ops@example.com",
		Password:       "secret",
		CachedToken:    "test-token",
		TokenExpiresAt: time.Now().Add(4 * time.Hour),
	})
}

func TestExecuteReadListEquipment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/equipment", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]devicehub.Equipment{{ID: 12, Name: "Pump A", Online: true}})
	}))
	defer srv.Close()

	exec := NewExecutor(&staticHubSource{client: hubClientFor(t, srv)}, nil)
	out := exec.ExecuteRead(context.Background(), "f1", "b1", ToolListEquipment, "{}")

	var got []devicehub.Equipment
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Pump A", got[0].Name)
}

func TestExecuteReadSensorHoursClamped(t *testing.T) {
	var gotHours []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/equipment/5/history", r.URL.Path)
		gotHours = append(gotHours, r.URL.Query().Get("hours"))
		json.NewEncoder(w).Encode(devicehub.SensorHistory{EquipmentID: 5})
	}))
	defer srv.Close()

	exec := NewExecutor(&staticHubSource{client: hubClientFor(t, srv)}, nil)

	// Missing hours defaults to 24; oversized requests clamp to a week.
	exec.ExecuteRead(context.Background(), "f1", "b1", ToolGetSensorReadings, `{"equipment_id":5}`)
	exec.ExecuteRead(context.Background(), "f1", "b1", ToolGetSensorReadings, `{"equipment_id":5,"hours":5000}`)

	require.Equal(t, []string{"24", "168"}, gotHours)
}

func TestExecuteReadHubFailureBecomesErrorPayload(t *testing.T) {
	exec := NewExecutor(&staticHubSource{err: fmt.Errorf("no device hub connected")}, nil)
	out := exec.ExecuteRead(context.Background(), "f1", "b1", ToolListAutomations, "{}")

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Contains(t, payload["error"], "no device hub connected")
}

func TestExecuteReadUnknownToolFailsClosed(t *testing.T) {
	exec := NewExecutor(&staticHubSource{}, nil)
	out := exec.ExecuteRead(context.Background(), "f1", "b1", "format_disk", "{}")

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Contains(t, payload["error"], "unknown tool")
}

func TestExecuteReadWebSearch(t *testing.T) {
	searcher := &staticSearcher{result: &websearch.Result{
		Digest:  "Powdery mildew thrives above 90% humidity.",
		Sources: []websearch.Source{{Title: "Extension guide", URL: "https://example.org/mildew"}},
	}}
	exec := NewExecutor(&staticHubSource{}, searcher)

	out := exec.ExecuteRead(context.Background(), "f1", "b1", ToolWebSearch, `{"query":"tomato powdery mildew humidity"}`)

	var got websearch.Result
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "tomato powdery mildew humidity", searcher.gotQ)
	assert.Contains(t, got.Digest, "Powdery mildew")
	require.Len(t, got.Sources, 1)
}

func TestExecuteReadWebSearchRequiresQuery(t *testing.T) {
	exec := NewExecutor(&staticHubSource{}, &staticSearcher{})
	out := exec.ExecuteRead(context.Background(), "f1", "b1", ToolWebSearch, `{}`)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Contains(t, payload["error"], "query is required")
}

func TestExecuteWriteToggleRelay(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/equipment/12/relay", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(devicehub.RelayResult{EquipmentID: 12, Channel: 1, State: true, Status: "ok"})
	}))
	defer srv.Close()

	exec := NewExecutor(&staticHubSource{client: hubClientFor(t, srv)}, nil)
	result, err := exec.ExecuteWrite(context.Background(), "f1", "b1", ToolToggleRelay,
		`{"equipment_id":12,"channel":1,"state":true}`)
	require.NoError(t, err)

	relay, ok := result.(*devicehub.RelayResult)
	require.True(t, ok)
	assert.Equal(t, "ok", relay.Status)
	assert.Equal(t, float64(1), gotBody["channel"])
	assert.Equal(t, true, gotBody["state"])
}

func TestExecuteWriteRejectsReadTools(t *testing.T) {
	exec := NewExecutor(&staticHubSource{}, nil)
	_, err := exec.ExecuteWrite(context.Background(), "f1", "b1", ToolListEquipment, "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a write tool")
}
