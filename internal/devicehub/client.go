package devicehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	errx "github.com/plotpilot/server/internal/core/error"
	logx "github.com/plotpilot/server/pkg/logger"
)

const (
	// tokenLifetime is how long a hub-issued bearer token stays valid.
	tokenLifetime = 8 * time.Hour
	// refreshBuffer is the remaining lifetime below which the client logs in
	// again proactively instead of reusing the cached token.
	refreshBuffer = 30 * time.Minute
	// requestTimeout suits a local-network appliance, not a cloud API.
	requestTimeout = 5 * time.Second
)

// Credentials is what the client needs to reach and authenticate against one hub.
// Password is plaintext here; it only ever lives in memory, decrypted by the
// connection manager for the lifetime of a request.
type Credentials struct {
	Endpoint       string
	Port           int
	Email          string
	Password       string
	CachedToken    string
	TokenExpiresAt time.Time
}

// Client is a stateless-per-call HTTP wrapper around one device hub instance.
// It owns the cached bearer token and its expiry. Safe for concurrent use.
type Client struct {
	baseURL string
	email   string
	pass    string
	httpc   *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time

	// onTokenRefresh is invoked after every successful login so the caller can
	// persist the refreshed token next to the stored credentials.
	onTokenRefresh func(token string, expiresAt time.Time)
}

// Option customizes a Client.
type Option func(*Client)

// WithTokenRefreshHook registers a callback fired after each successful login.
func WithTokenRefreshHook(hook func(token string, expiresAt time.Time)) Option {
	return func(c *Client) { c.onTokenRefresh = hook }
}

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New builds a client from stored credentials. A still-valid cached token is
// seeded so the first call does not have to log in.
func New(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:  fmt.Sprintf("http://%s:%d", creds.Endpoint, creds.Port),
		email:    creds.Email,
		pass:     creds.Password,
		httpc:    &http.Client{Timeout: requestTimeout},
		token:    creds.CachedToken,
		tokenExp: creds.TokenExpiresAt,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ================ Unauthenticated probes ================

// Health checks hub liveness. Bypasses token logic entirely.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.doUnauthenticated(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetupStatus reports whether the hub completed its first-run setup.
func (c *Client) SetupStatus(ctx context.Context) (*SetupStatus, error) {
	var out SetupStatus
	if err := c.doUnauthenticated(ctx, http.MethodGet, "/api/setup/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ================ Authentication ================

// Login authenticates against the hub and caches the fresh token with a newly
// computed expiry.
func (c *Client) Login(ctx context.Context) error {
	var out loginResponse
	err := c.doUnauthenticated(ctx, http.MethodPost, "/api/auth/login",
		loginRequest{Email: c.email, Password: c.pass}, &out)
	if err != nil {
		return errx.WrapDeviceHub(err, "device hub login failed")
	}
	if out.Token == "" {
		return errx.WrapDeviceHub(fmt.Errorf("empty token in login response"), "device hub login failed")
	}

	exp := time.Now().Add(tokenLifetime)
	c.mu.Lock()
	c.token = out.Token
	c.tokenExp = exp
	c.mu.Unlock()

	if c.onTokenRefresh != nil {
		c.onTokenRefresh(out.Token, exp)
	}
	return nil
}

// Token returns the cached token and its expiry.
func (c *Client) Token() (string, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.tokenExp
}

// ensureToken reuses the cached token while its remaining lifetime exceeds the
// refresh buffer, and logs in otherwise.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	remaining := time.Until(c.tokenExp)
	c.mu.Unlock()

	if token != "" && remaining > refreshBuffer {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	token, _ = c.Token()
	return token, nil
}

// ================ Authenticated endpoints ================

// ListEquipment returns all equipment registered with the hub.
func (c *Client) ListEquipment(ctx context.Context) ([]Equipment, error) {
	var out []Equipment
	if err := c.do(ctx, http.MethodGet, "/api/equipment", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EquipmentHistory fetches an equipment's historical and latest readings.
func (c *Client) EquipmentHistory(ctx context.Context, equipmentID, hours int) (*SensorHistory, error) {
	path := fmt.Sprintf("/api/equipment/%d/history", equipmentID)
	if hours > 0 {
		path += "?" + url.Values{"hours": {strconv.Itoa(hours)}}.Encode()
	}
	var out SensorHistory
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetRelay commands one relay channel on a piece of equipment.
func (c *Client) SetRelay(ctx context.Context, equipmentID, channel int, state bool) (*RelayResult, error) {
	var out RelayResult
	body := map[string]any{"channel": channel, "state": state}
	path := fmt.Sprintf("/api/equipment/%d/relay", equipmentID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAutomations returns the hub's configured automations.
func (c *Client) ListAutomations(ctx context.Context) ([]Automation, error) {
	var out []Automation
	if err := c.do(ctx, http.MethodGet, "/api/automations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TriggerAutomation runs an automation once.
func (c *Client) TriggerAutomation(ctx context.Context, automationID int) (*AutomationResult, error) {
	var out AutomationResult
	path := fmt.Sprintf("/api/automations/%d/trigger", automationID)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetAutomationEnabled enables or disables an automation.
func (c *Client) SetAutomationEnabled(ctx context.Context, automationID int, enabled bool) (*AutomationResult, error) {
	var out AutomationResult
	path := fmt.Sprintf("/api/automations/%d/toggle", automationID)
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"enabled": enabled}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAlerts returns hub alerts, optionally filtered by severity.
func (c *Client) ListAlerts(ctx context.Context, severity string) ([]Alert, error) {
	path := "/api/alerts"
	if severity != "" {
		path += "?" + url.Values{"severity": {severity}}.Encode()
	}
	var out []Alert
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AcknowledgeAlert marks an alert as seen.
func (c *Client) AcknowledgeAlert(ctx context.Context, alertID int) error {
	path := fmt.Sprintf("/api/alerts/%d/ack", alertID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// ================ Transport ================

// do performs an authenticated request. On a 401 it runs exactly one
// login-and-retry cycle before surfacing the error, never more, so a broken
// credential cannot loop.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	status, err := c.roundTrip(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if status != http.StatusUnauthorized {
		return nil
	}

	logx.Debug().Str("path", path).Msg("device hub returned 401, retrying after re-login")
	if err := c.Login(ctx); err != nil {
		return err
	}
	token, _ = c.Token()
	status, err = c.roundTrip(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return errx.WrapDeviceHub(fmt.Errorf("unauthorized after re-login"), "device hub rejected credentials")
	}
	return nil
}

func (c *Client) doUnauthenticated(ctx context.Context, method, path string, body, out any) error {
	status, err := c.roundTrip(ctx, method, path, "", body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		return errx.WrapDeviceHub(fmt.Errorf("unexpected 401 on %s", path), "")
	}
	return nil
}

// roundTrip runs one HTTP exchange. A 401 is reported through the status
// return, not as an error, so do() can decide on the retry; other non-2xx
// statuses become errors. out may be nil when the body is irrelevant.
func (c *Client) roundTrip(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, errx.WrapDeviceHub(err, "device hub unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, errx.WrapDeviceHub(
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(b)), "")
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, errx.WrapDeviceHub(fmt.Errorf("decode %s response: %w", path, err), "")
	}
	return resp.StatusCode, nil
}
